package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndReadConnectionEvents(t *testing.T) {
	j := openTemp(t)
	now := time.Now()
	if err := j.RecordConnectionEvent("agent", ConnectionDialing, "", now); err != nil {
		t.Fatalf("RecordConnectionEvent: %v", err)
	}
	if err := j.RecordConnectionEvent("agent", ConnectionAuthenticated, "peer verified", now.Add(time.Second)); err != nil {
		t.Fatalf("RecordConnectionEvent: %v", err)
	}

	events, err := j.RecentConnectionEvents(10)
	if err != nil {
		t.Fatalf("RecentConnectionEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != ConnectionDialing || events[1].Kind != ConnectionAuthenticated {
		t.Fatalf("expected oldest-first ordering, got %+v", events)
	}
}

func TestRecentConnectionEventsRespectsLimit(t *testing.T) {
	j := openTemp(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		j.RecordConnectionEvent("agent", ConnectionClosed, "", now.Add(time.Duration(i)*time.Second))
	}
	events, err := j.RecentConnectionEvents(2)
	if err != nil {
		t.Fatalf("RecentConnectionEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events under limit, got %d", len(events))
	}
}

func TestRecordAndReadFocusEvents(t *testing.T) {
	j := openTemp(t)
	now := time.Now()
	if err := j.RecordFocusEvent("remote", "agent", "right", now); err != nil {
		t.Fatalf("RecordFocusEvent: %v", err)
	}
	events, err := j.RecentFocusEvents(10)
	if err != nil {
		t.Fatalf("RecentFocusEvents: %v", err)
	}
	if len(events) != 1 || events[0].Phase != "remote" || events[0].Peer != "agent" {
		t.Fatalf("unexpected focus events: %+v", events)
	}
}
