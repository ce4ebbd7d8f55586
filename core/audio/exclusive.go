package audio

import (
	"context"
	"errors"
	"sync"

	"geojournal/core/device"
)

var ErrDeviceBusy = errors.New("audio input device is in use")

// Exclusive wraps dev so that only one handle is outstanding at a time,
// no matter how many sessions share it.
func Exclusive(dev Device) Device {
	return &exclusiveDevice{dev: dev}
}

type exclusiveDevice struct {
	dev  Device
	mu   sync.Mutex
	held bool
}

func (d *exclusiveDevice) Acquire(ctx context.Context) (Handle, error) {
	d.mu.Lock()
	if d.held {
		d.mu.Unlock()
		return nil, &device.AccessError{Device: DeviceName, Err: ErrDeviceBusy}
	}
	d.held = true
	d.mu.Unlock()

	h, err := d.dev.Acquire(ctx)
	if err != nil {
		d.free()
		return nil, err
	}
	return &exclusiveHandle{Handle: h, free: d.free}, nil
}

func (d *exclusiveDevice) free() {
	d.mu.Lock()
	d.held = false
	d.mu.Unlock()
}

type exclusiveHandle struct {
	Handle
	once sync.Once
	free func()
}

func (h *exclusiveHandle) Flush(ctx context.Context) ([]byte, error) {
	if f, ok := h.Handle.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil, nil
}

func (h *exclusiveHandle) Release() error {
	err := h.Handle.Release()
	h.once.Do(h.free)
	return err
}
