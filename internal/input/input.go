// Package input abstracts local keyboard/mouse capture and injection
// behind a platform-selected Device. The capture/inject
// callback shape is grounded on other_examples/bnema-waymon's
// internal/input/wayland_barrier.go (SetCallbacks/StartCapture/
// StopCapture); the Linux backend's device/grab mechanics are grounded on
// canonical-snapd's use of github.com/gvalkov/golang-evdev.
package input

import (
	"errors"
	"time"
)

// Kind tags the class of a raw input event, mirroring the variants
// internal/event.Event carries over the wire so capture and transport
// share one vocabulary of event shapes across platforms.
type Kind uint8

const (
	KindMouseMove Kind = iota
	KindMouseButton
	KindMouseScroll
	KindKey
	// KindMouseWarp is injection-only: DX/DY carry an absolute position
	// rather than a delta, used once per FocusGrant to seat the cursor at
	// the computed entry point.
	KindMouseWarp
)

// RawEvent is one locally captured input sample, timestamped with a
// monotonic clock reading.
type RawEvent struct {
	Kind      Kind
	DX, DY    int32
	Button    uint8
	Pressed   bool
	Code      uint32
	Modifiers uint8
	Monotonic time.Duration
}

// DeviceError reports a capture or injection failure.
// Transient errors are worth a bounded retry with backoff; persistent
// ones should surface and force focus back to Local.
type DeviceError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *DeviceError) Error() string {
	return "input: " + e.Op + ": " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ErrNotSupported is returned by backends that exist only to satisfy the
// Device interface on a platform with no working capture/injection path
// (see stub_other.go).
var ErrNotSupported = errors.New("input: not supported on this platform")

// Device is the capture+injection+grab surface an orchestrator drives.
// Capture delivers a lazy, unbounded, non-restartable sequence of events
// to onEvent until Close; Inject synthesizes one event locally, in the
// order callers submit it, since reordering injected input relative to
// what the wire delivered would desync the remote cursor from user
// intent.
type Device interface {
	StartCapture(onEvent func(RawEvent), onError func(*DeviceError)) error
	StopCapture() error
	Inject(RawEvent) error
	// Grab acquires exclusive access to captured devices so the local
	// compositor stops processing them (Linux only; a no-op elsewhere).
	Grab() error
	// Ungrab releases a prior Grab. Must be safe to call when not
	// grabbed, and is called on focus return, connection loss,
	// kill-switch, and process exit.
	Ungrab() error
	Close() error
}
