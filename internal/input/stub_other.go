//go:build !linux

package input

// HookDevice is the macOS/Windows capture+injection backend placeholder:
// a user-space global hook would produce the same event shape as the
// Linux evdev path. Wiring a concrete hook library (e.g. a CGO-based
// Carbon/Win32 hook) is out of scope for this pass; HookDevice exists so
// cmd/multishiva can select a Device on every GOOS and fail loudly rather
// than not compile. Grab/Ungrab are no-ops: the exclusive-grab discipline
// only applies to the Linux evdev path.
type HookDevice struct{}

// OpenHookDevice returns a HookDevice. Its capture/injection methods
// report ErrNotSupported until a platform hook is wired in.
func OpenHookDevice() (*HookDevice, error) {
	return &HookDevice{}, nil
}

// OpenPlatformDevice opens the real (non-simulated) Device for the
// current GOOS; cmd/multishiva calls this behind --simulate's absence so
// it doesn't need its own per-platform build tags.
func OpenPlatformDevice() (Device, error) {
	return OpenHookDevice()
}

func (h *HookDevice) StartCapture(onEvent func(RawEvent), onError func(*DeviceError)) error {
	return ErrNotSupported
}

func (h *HookDevice) StopCapture() error { return nil }

func (h *HookDevice) Inject(RawEvent) error { return ErrNotSupported }

func (h *HookDevice) Grab() error { return nil }

func (h *HookDevice) Ungrab() error { return nil }

func (h *HookDevice) Close() error { return nil }

var _ Device = (*HookDevice)(nil)
