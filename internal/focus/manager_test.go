package focus

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/multishiva/multishiva/internal/event"
)

func newTestManager(t *testing.T, friction time.Duration) (*Manager, *sync.Mutex, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var calls []string
	m := New(Config{FrictionMS: friction, RingCapacity: 4, DrainMaxAge: 100 * time.Millisecond}, zap.NewNop(),
		func(peer string, edge event.Edge, x, y int32) {
			mu.Lock()
			calls = append(calls, "grant:"+peer)
			mu.Unlock()
		},
		func(peer string, edge event.Edge) {
			mu.Lock()
			calls = append(calls, "release:"+peer)
			mu.Unlock()
		},
	)
	return m, &mu, &calls
}

func TestZeroFrictionTransitionsImmediately(t *testing.T) {
	m, _, calls := newTestManager(t, 0)
	m.HandleEdgeHit("agent", event.EdgeRight, 0, 0, time.Now())
	if got := m.Snapshot(); got.Phase != Remote || got.Peer != "agent" {
		t.Fatalf("expected immediate Remote transition, got %+v", got)
	}
	if len(*calls) != 1 || (*calls)[0] != "grant:agent" {
		t.Fatalf("expected one grant call, got %v", *calls)
	}
}

func TestFrictionElapsesIntoRemote(t *testing.T) {
	m, _, _ := newTestManager(t, 20*time.Millisecond)
	m.HandleEdgeHit("agent", event.EdgeRight, 0, 0, time.Now())
	if got := m.Snapshot(); got.Phase != Pending {
		t.Fatalf("expected Pending immediately, got %v", got.Phase)
	}
	time.Sleep(60 * time.Millisecond)
	if got := m.Snapshot(); got.Phase != Remote {
		t.Fatalf("expected Remote after friction elapses, got %v", got.Phase)
	}
}

func TestMovedAwayCancelsPending(t *testing.T) {
	m, _, calls := newTestManager(t, 50*time.Millisecond)
	m.HandleEdgeHit("agent", event.EdgeRight, 0, 0, time.Now())
	m.HandleMovedAway()
	time.Sleep(80 * time.Millisecond)
	if got := m.Snapshot(); got.Phase != Local {
		t.Fatalf("expected Local after moved-away, got %v", got.Phase)
	}
	if len(*calls) != 0 {
		t.Fatalf("expected no grant after cancellation, got %v", *calls)
	}
}

func TestFocusReleaseReturnsToLocal(t *testing.T) {
	m, _, _ := newTestManager(t, 0)
	m.HandleEdgeHit("agent", event.EdgeRight, 0, 0, time.Now())
	m.HandleFocusReleaseReceived("agent")
	if got := m.Snapshot(); got.Phase != Local {
		t.Fatalf("expected Local after FocusRelease, got %v", got.Phase)
	}
}

func TestKillSwitchEmitsReleaseAndReturnsLocal(t *testing.T) {
	m, _, calls := newTestManager(t, 0)
	m.HandleEdgeHit("agent", event.EdgeRight, 0, 0, time.Now())
	m.HandleKillSwitch()
	if got := m.Snapshot(); got.Phase != Local {
		t.Fatalf("expected Local after kill-switch, got %v", got.Phase)
	}
	if len(*calls) != 2 || (*calls)[1] != "release:agent" {
		t.Fatalf("expected release call after grant, got %v", *calls)
	}
}

func TestConnectionLostReturnsToLocal(t *testing.T) {
	m, _, _ := newTestManager(t, 0)
	m.HandleEdgeHit("agent", event.EdgeRight, 0, 0, time.Now())
	m.HandleConnectionLost("agent")
	if got := m.Snapshot(); got.Phase != Local {
		t.Fatalf("expected Local after connection loss, got %v", got.Phase)
	}
}

func TestConnectionLostIgnoresUnrelatedPeer(t *testing.T) {
	m, _, _ := newTestManager(t, 0)
	m.HandleEdgeHit("agent", event.EdgeRight, 0, 0, time.Now())
	m.HandleConnectionLost("someone-else")
	if got := m.Snapshot(); got.Phase != Remote {
		t.Fatalf("expected to remain Remote, got %v", got.Phase)
	}
}

func TestRingBufferDrainDiscardsStaleEntries(t *testing.T) {
	r := newRingBuffer(4)
	now := time.Now()
	r.Push("old", now.Add(-200*time.Millisecond))
	r.Push("fresh", now.Add(-10*time.Millisecond))
	out := r.Drain(now, 100*time.Millisecond)
	if len(out) != 1 || out[0] != "fresh" {
		t.Fatalf("expected only fresh entry to survive drain, got %v", out)
	}
}

func TestRingBufferEvictsOldestWhenFull(t *testing.T) {
	r := newRingBuffer(2)
	now := time.Now()
	r.Push("a", now)
	r.Push("b", now)
	r.Push("c", now)
	out := r.Drain(now, time.Hour)
	if len(out) != 2 || out[0] != "b" || out[1] != "c" {
		t.Fatalf("expected eviction of oldest, got %v", out)
	}
}

func TestBufferAndMarkFirstMoveSent(t *testing.T) {
	m, _, _ := newTestManager(t, 0)
	now := time.Now()
	m.HandleEdgeHit("agent", event.EdgeRight, 0, 0, now)
	m.Buffer("k1", now.Add(time.Millisecond))
	m.Buffer("k2", now.Add(2*time.Millisecond))

	drained := m.MarkFirstMoveSent(now.Add(3 * time.Millisecond))
	if len(drained) != 2 {
		t.Fatalf("expected 2 buffered events drained, got %d", len(drained))
	}

	// Further buffering after first move is a no-op.
	m.Buffer("k3", now.Add(4*time.Millisecond))
	if got := m.MarkFirstMoveSent(now.Add(5 * time.Millisecond)); got != nil {
		t.Fatalf("expected no further drain after first move marked, got %v", got)
	}
}
