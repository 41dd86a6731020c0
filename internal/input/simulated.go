package input

import (
	"sync"
)

// Simulated is a Device backed by an in-process queue instead of real
// hardware: it captures nothing on its own, but lets callers (tests, the
// --simulate CLI mode) feed synthetic events in and observe injected
// events out. Grounded on the teacher's preference for a loopback/no-op
// transport in test helpers (peer package's in-memory pipe fixtures).
type Simulated struct {
	mu       sync.Mutex
	onEvent  func(RawEvent)
	onError  func(*DeviceError)
	injected []RawEvent
	grabbed  bool
}

// NewSimulated returns a ready-to-use simulated device.
func NewSimulated() *Simulated {
	return &Simulated{}
}

func (s *Simulated) StartCapture(onEvent func(RawEvent), onError func(*DeviceError)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = onEvent
	s.onError = onError
	return nil
}

func (s *Simulated) StopCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = nil
	s.onError = nil
	return nil
}

// Feed delivers a synthetic event to the registered capture callback, as
// if it had come from real hardware.
func (s *Simulated) Feed(e RawEvent) {
	s.mu.Lock()
	cb := s.onEvent
	s.mu.Unlock()
	if cb != nil {
		cb(e)
	}
}

// FeedError delivers a synthetic device error to the registered error
// callback, for exercising the retry/demote-to-Local error contract.
func (s *Simulated) FeedError(err *DeviceError) {
	s.mu.Lock()
	cb := s.onError
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (s *Simulated) Inject(e RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected = append(s.injected, e)
	return nil
}

// Injected returns every event passed to Inject so far, in order.
func (s *Simulated) Injected() []RawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RawEvent, len(s.injected))
	copy(out, s.injected)
	return out
}

func (s *Simulated) Grab() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grabbed = true
	return nil
}

func (s *Simulated) Ungrab() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grabbed = false
	return nil
}

// Grabbed reports whether Grab has been called without a matching
// Ungrab.
func (s *Simulated) Grabbed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grabbed
}

func (s *Simulated) Close() error {
	return s.StopCapture()
}

var _ Device = (*Simulated)(nil)
