// Package device holds the error shared by every hardware-backed collaborator
// (geolocation receiver, audio input).
package device

import (
	"errors"
	"fmt"
)

// ErrAccess matches any *AccessError through errors.Is.
var ErrAccess = errors.New("device access denied or unavailable")

// AccessError reports that a device could not be used: unsupported, permission
// denied, busy or timed out. It aborts the submission that needed the device.
type AccessError struct {
	Device string
	Err    error
}

func (e *AccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s device unavailable: %v", e.Device, e.Err)
	}
	return fmt.Sprintf("%s device unavailable", e.Device)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

func (e *AccessError) Is(target error) bool {
	return target == ErrAccess
}

// Wrap returns err as an *AccessError for dev, leaving existing access errors alone.
func Wrap(dev string, err error) error {
	if err == nil {
		return nil
	}
	var accessErr *AccessError
	if errors.As(err, &accessErr) {
		return err
	}
	return &AccessError{Device: dev, Err: err}
}
