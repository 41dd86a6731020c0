package input

import "testing"

func TestSimulatedCaptureDeliversToCallback(t *testing.T) {
	s := NewSimulated()
	var got []RawEvent
	if err := s.StartCapture(func(e RawEvent) { got = append(got, e) }, nil); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	s.Feed(RawEvent{Kind: KindMouseMove, DX: 3, DY: -1})
	s.Feed(RawEvent{Kind: KindKey, Code: 30, Pressed: true})

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].DX != 3 || got[1].Code != 30 {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestSimulatedStopCaptureSilencesCallback(t *testing.T) {
	s := NewSimulated()
	var count int
	s.StartCapture(func(RawEvent) { count++ }, nil)
	s.Feed(RawEvent{Kind: KindMouseMove})
	s.StopCapture()
	s.Feed(RawEvent{Kind: KindMouseMove})

	if count != 1 {
		t.Fatalf("expected 1 delivered event after stop, got %d", count)
	}
}

func TestSimulatedInjectPreservesOrder(t *testing.T) {
	s := NewSimulated()
	want := []RawEvent{
		{Kind: KindKey, Code: 1, Pressed: true},
		{Kind: KindKey, Code: 1, Pressed: false},
		{Kind: KindMouseMove, DX: 1},
	}
	for _, e := range want {
		if err := s.Inject(e); err != nil {
			t.Fatalf("Inject: %v", err)
		}
	}
	got := s.Injected()
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSimulatedGrabUngrab(t *testing.T) {
	s := NewSimulated()
	if s.Grabbed() {
		t.Fatalf("expected not grabbed initially")
	}
	if err := s.Grab(); err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if !s.Grabbed() {
		t.Fatalf("expected grabbed after Grab")
	}
	if err := s.Ungrab(); err != nil {
		t.Fatalf("Ungrab: %v", err)
	}
	if s.Grabbed() {
		t.Fatalf("expected not grabbed after Ungrab")
	}
}

func TestSimulatedFeedErrorReachesHandler(t *testing.T) {
	s := NewSimulated()
	var got *DeviceError
	s.StartCapture(nil, func(e *DeviceError) { got = e })
	s.FeedError(&DeviceError{Op: "read", Transient: true})
	if got == nil || got.Op != "read" {
		t.Fatalf("expected device error delivered, got %+v", got)
	}
}
