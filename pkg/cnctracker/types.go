package cnctracker

import (
	"github.com/oofurkan/CncMachineTracker/internal/app/simulation"
	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// MachineState is the current snapshot of one machine.
type MachineState = domain.MachineState

// Sample is one committed history record.
type Sample = domain.Sample

// Status is the operating status of a machine.
type Status = domain.Status

const (
	StatusRunning = domain.StatusRunning
	StatusStopped = domain.StatusStopped
	StatusAlarm   = domain.StatusAlarm
)

// DeviceError wraps a hardware adapter failure.
type DeviceError = domain.DeviceError

var (
	ErrNotFound            = domain.ErrNotFound
	ErrDeviceNotConfigured = domain.ErrDeviceNotConfigured
	ErrInvalidState        = domain.ErrInvalidState
)

// Store holds current snapshots and bounded history per machine.
type Store = ports.MachineStore

// DeviceReader reads the live state of a machine from hardware.
type DeviceReader = ports.DeviceReader

// Sink receives batches of committed samples for the historian.
type Sink = ports.Sink

// Observability emits structured logs and metrics.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Rand is the random source driving the simulator.
type Rand = simulation.Rand

// NewRand returns a seeded, goroutine-safe Rand.
func NewRand(seed uint64) Rand {
	return simulation.NewRand(seed)
}
