package agentd

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/multishiva/multishiva/internal/config"
	"github.com/multishiva/multishiva/internal/connstats"
	"github.com/multishiva/multishiva/internal/event"
	"github.com/multishiva/multishiva/internal/input"
	"github.com/multishiva/multishiva/internal/topology"
)

type fakeConn struct {
	mu   sync.Mutex
	peer string
	sent []event.Event
	recv chan event.Event
	done chan struct{}
}

func newFakeConn(peer string) *fakeConn {
	return &fakeConn{peer: peer, recv: make(chan event.Event, 16), done: make(chan struct{})}
}

func (f *fakeConn) PeerName() string { return f.peer }
func (f *fakeConn) Send(e event.Event) error {
	f.mu.Lock()
	f.sent = append(f.sent, e)
	f.mu.Unlock()
	return nil
}
func (f *fakeConn) Recv() <-chan event.Event { return f.recv }
func (f *fakeConn) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return nil
	}
}
func (f *fakeConn) Close() error {
	close(f.done)
	return nil
}
func (f *fakeConn) Sent() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Event(nil), f.sent...)
}

type fakeDialer struct{ conn *fakeConn }

func (d fakeDialer) Run(ctx context.Context, onConnected func(wireConn)) error {
	onConnected(d.conn)
	return nil
}

func testAgent(t *testing.T) (*Agent, *fakeConn) {
	t.Helper()
	cfg := &config.Config{
		SelfName: "agent",
		Mode:     config.ModeAgent,
		Behavior: config.Behavior{EdgeThresholdPx: 10},
	}
	topo := topology.New("agent", topology.Declaration{event.EdgeLeft: "host"})
	device := input.NewSimulated()
	bounds := topology.Bounds{Width: 1920, Height: 1080}
	a := New(cfg, zap.NewNop(), topo, device, nil, connstats.NewTracker(), bounds)
	conn := newFakeConn("host")
	a.hostName = conn.PeerName() // as handleConnection does on connect
	return a, conn
}

func TestFocusGrantWarpsAndGrabs(t *testing.T) {
	a, conn := testAgent(t)
	a.onFocusGrant(conn, event.FocusGrant{From: "host", EnteredEdge: event.EdgeRight, EntryX: 0, EntryY: 500})

	if !a.RemoteOwned() {
		t.Fatalf("expected agent to be remote-owned after FocusGrant")
	}
	sim := a.device.(*input.Simulated)
	if !sim.Grabbed() {
		t.Fatalf("expected device grabbed after FocusGrant")
	}
	injected := sim.Injected()
	if len(injected) != 1 || injected[0].Kind != input.KindMouseWarp {
		t.Fatalf("expected one warp injection, got %+v", injected)
	}
	if injected[0].DX != 0 || injected[0].DY != 500 {
		t.Fatalf("expected warp to (0,500), got (%d,%d)", injected[0].DX, injected[0].DY)
	}
}

func TestInjectMoveDetectsReturnEdgeAndReleases(t *testing.T) {
	a, conn := testAgent(t)
	a.onFocusGrant(conn, event.FocusGrant{From: "host", EnteredEdge: event.EdgeRight, EntryX: 5, EntryY: 500})

	// Move left until within threshold of x=0, which maps back to "host"
	// via the agent's left-edge declaration.
	a.injectMove(conn, event.MouseMove{DX: -5, DY: 0})

	if a.RemoteOwned() {
		t.Fatalf("expected focus released after hitting the edge back to host")
	}
	sent := conn.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one FocusRelease sent, got %d", len(sent))
	}
	fr, ok := sent[0].(event.FocusRelease)
	if !ok {
		t.Fatalf("expected FocusRelease, got %T", sent[0])
	}
	if fr.ExitEdge != event.EdgeLeft {
		t.Fatalf("expected release on left edge, got %s", fr.ExitEdge)
	}
}

func TestInjectMoveAwayFromEdgeStaysOwned(t *testing.T) {
	a, conn := testAgent(t)
	a.onFocusGrant(conn, event.FocusGrant{From: "host", EnteredEdge: event.EdgeRight, EntryX: 500, EntryY: 500})

	a.injectMove(conn, event.MouseMove{DX: 10, DY: 10})

	if !a.RemoteOwned() {
		t.Fatalf("expected focus to remain owned away from any edge")
	}
	if len(conn.Sent()) != 0 {
		t.Fatalf("expected no FocusRelease sent")
	}
}

func TestButtonAndKeyIgnoredWhenNotOwned(t *testing.T) {
	a, _ := testAgent(t)
	a.injectIfOwned(input.RawEvent{Kind: input.KindKey, Code: 30, Pressed: true})
	sim := a.device.(*input.Simulated)
	if len(sim.Injected()) != 0 {
		t.Fatalf("expected no injection while not remote-owned")
	}
}

func TestRunUsesResolvedAddr(t *testing.T) {
	a, conn := testAgent(t)
	a.cfg.HostAddress = "10.0.0.5:53421"

	var gotAddr string
	ctx, cancel := context.WithCancel(context.Background())
	newDialer := func(addr string) dialer {
		gotAddr = addr
		return fakeDialer{conn: conn}
	}

	done := make(chan struct{})
	go func() {
		a.Run(ctx, newDialer)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	conn.Close()
	<-done

	if gotAddr != "10.0.0.5:53421" {
		t.Fatalf("expected resolved addr to be the configured host_address, got %q", gotAddr)
	}
}
