package connstats

import (
	"sync"
	"testing"

	"github.com/multishiva/multishiva/internal/event"
)

func TestIncrementEventPerPeerAndTag(t *testing.T) {
	tr := NewTracker()
	tr.IncrementEvent("agent", event.TagMouseMove)
	tr.IncrementEvent("agent", event.TagMouseMove)
	tr.IncrementEvent("agent", event.TagKeyEvent)
	tr.IncrementEvent("other-agent", event.TagMouseMove)

	counts := tr.EventCounts()
	if counts["agent"]["mouse_move"] != 2 {
		t.Fatalf("expected 2 mouse_move for agent, got %d", counts["agent"]["mouse_move"])
	}
	if counts["agent"]["key_event"] != 1 {
		t.Fatalf("expected 1 key_event for agent, got %d", counts["agent"]["key_event"])
	}
	if counts["other-agent"]["mouse_move"] != 1 {
		t.Fatalf("expected 1 mouse_move for other-agent, got %d", counts["other-agent"]["mouse_move"])
	}
}

func TestIncrementFocusGrant(t *testing.T) {
	tr := NewTracker()
	tr.IncrementFocusGrant("agent")
	tr.IncrementFocusGrant("agent")
	if got := tr.FocusGrantCounts()["agent"]; got != 2 {
		t.Fatalf("expected 2 focus grants, got %d", got)
	}
}

func TestResetClearsCounters(t *testing.T) {
	tr := NewTracker()
	tr.IncrementEvent("agent", event.TagMouseMove)
	tr.IncrementFocusGrant("agent")
	tr.Reset()
	if len(tr.EventCounts()) != 0 || len(tr.FocusGrantCounts()) != 0 {
		t.Fatalf("expected counters cleared after Reset")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.IncrementEvent("agent", event.TagMouseMove)
		}()
	}
	wg.Wait()
	if got := tr.EventCounts()["agent"]["mouse_move"]; got != 50 {
		t.Fatalf("expected 50 increments, got %d", got)
	}
}
