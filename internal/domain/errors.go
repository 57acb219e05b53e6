package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a lookup for a machine the tracker has never seen.
	ErrNotFound = errors.New("machine not found")
	// ErrDeviceNotConfigured is returned by device refreshes when no hardware adapter is bound.
	ErrDeviceNotConfigured = errors.New("device reader is not configured")
	// ErrInvalidState marks a snapshot or sample that breaks a model invariant.
	ErrInvalidState = errors.New("invalid machine state")
)

// DeviceError wraps a failure reported by the bound hardware adapter.
type DeviceError struct {
	MachineID string
	Err       error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device read machine=%s: %v", e.MachineID, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
