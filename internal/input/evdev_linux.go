//go:build linux

package input

import (
	"fmt"
	"sync"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// evIOCGrab is EVIOCGRAB, not exposed by golang-evdev itself; the ioctl
// takes an int (1 to grab, 0 to release).
const evIOCGrab = 0x40044590

// Evdev captures from Linux's kernel input layer via /dev/input/event*,
// auto-detecting pointer and keyboard devices. It does not inject: Inject
// returns ErrNotSupported.
// Grounded on canonical-snapd's dependency on
// github.com/gvalkov/golang-evdev for device enumeration and event
// reading; the grab/ungrab ioctl is hand-wired via golang.org/x/sys/unix
// since golang-evdev doesn't wrap EVIOCGRAB.
type Evdev struct {
	mu      sync.Mutex
	devices []*evdev.InputDevice
	grabbed bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// OpenPlatformDevice opens the real (non-simulated) Device for the
// current GOOS; cmd/multishiva calls this behind --simulate's absence so
// it doesn't need its own per-platform build tags.
func OpenPlatformDevice() (Device, error) {
	return OpenEvdev()
}

// OpenEvdev enumerates /dev/input/event* and keeps the ones classified as
// pointer or keyboard devices.
func OpenEvdev() (*Evdev, error) {
	all, err := evdev.ListInputDevices("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("input: enumerate devices: %w", err)
	}
	var picked []*evdev.InputDevice
	for _, d := range all {
		if isPointerOrKeyboard(d) {
			picked = append(picked, d)
		}
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("input: no pointer or keyboard devices found")
	}
	return &Evdev{devices: picked}, nil
}

func isPointerOrKeyboard(d *evdev.InputDevice) bool {
	_, hasRel := d.Capabilities[evdev.CapabilityType{Type: evdev.EV_REL}]
	_, hasKey := d.Capabilities[evdev.CapabilityType{Type: evdev.EV_KEY}]
	return hasRel || hasKey
}

func (e *Evdev) StartCapture(onEvent func(RawEvent), onError func(*DeviceError)) error {
	e.mu.Lock()
	e.stop = make(chan struct{})
	devices := e.devices
	e.mu.Unlock()

	for _, d := range devices {
		e.wg.Add(1)
		go e.readLoop(d, onEvent, onError)
	}
	return nil
}

func (e *Evdev) readLoop(d *evdev.InputDevice, onEvent func(RawEvent), onError func(*DeviceError)) {
	defer e.wg.Done()
	var dx, dy int32
	for {
		select {
		case <-e.stop:
			return
		default:
		}
		ev, err := d.ReadOne()
		if err != nil {
			if onError != nil {
				onError(&DeviceError{Op: "read", Transient: true, Err: err})
			}
			return
		}
		switch ev.Type {
		case evdev.EV_REL:
			switch ev.Code {
			case evdev.REL_X:
				dx += int32(ev.Value)
			case evdev.REL_Y:
				dy += int32(ev.Value)
			}
			continue
		case evdev.EV_KEY:
			if onEvent != nil {
				onEvent(RawEvent{
					Kind:      KindKey,
					Code:      uint32(ev.Code),
					Pressed:   ev.Value != 0,
					Monotonic: time.Duration(ev.Time.Sec)*time.Second + time.Duration(ev.Time.Usec)*time.Microsecond,
				})
			}
		case evdev.EV_SYN:
			if dx != 0 || dy != 0 {
				if onEvent != nil {
					onEvent(RawEvent{Kind: KindMouseMove, DX: dx, DY: dy})
				}
				dx, dy = 0, 0
			}
		}
	}
}

func (e *Evdev) StopCapture() error {
	e.mu.Lock()
	stop := e.stop
	e.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	e.wg.Wait()
	return nil
}

// Inject is not implemented for the evdev backend: injection on Linux
// targets a uinput virtual device, which this backend does not create.
// It always returns ErrNotSupported. OpenPlatformDevice returns this
// backend on Linux, so a Linux agent using it logs the error and does not
// synthesize the events it receives.
func (e *Evdev) Inject(RawEvent) error {
	return ErrNotSupported
}

func (e *Evdev) Grab() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grabbed {
		return nil
	}
	for _, d := range e.devices {
		if err := unix.IoctlSetInt(int(d.File.Fd()), evIOCGrab, 1); err != nil {
			return &DeviceError{Op: "grab", Transient: false, Err: err}
		}
	}
	e.grabbed = true
	return nil
}

func (e *Evdev) Ungrab() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.grabbed {
		return nil
	}
	for _, d := range e.devices {
		_ = unix.IoctlSetInt(int(d.File.Fd()), evIOCGrab, 0)
	}
	e.grabbed = false
	return nil
}

func (e *Evdev) Close() error {
	_ = e.Ungrab()
	return e.StopCapture()
}

var _ Device = (*Evdev)(nil)
