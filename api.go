package cnctracker

import (
	base "github.com/oofurkan/CncMachineTracker/pkg/cnctracker"
)

// Re-exported errors for convenience.
var (
	ErrNotFound            = base.ErrNotFound
	ErrDeviceNotConfigured = base.ErrDeviceNotConfigured
	ErrInvalidState        = base.ErrInvalidState
	ErrChannelSinkClosed   = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/oofurkan/CncMachineTracker directly.
type (
	Config          = base.Config
	RetentionPolicy = base.RetentionPolicy
	ExportPolicy    = base.ExportPolicy
	OPCUAConfig     = base.OPCUAConfig
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	MachineState    = base.MachineState
	Sample          = base.Sample
	Status          = base.Status
	DeviceError     = base.DeviceError
	Store           = base.Store
	DeviceReader    = base.DeviceReader
	Sink            = base.Sink
	SampleBatchSink = base.SampleBatchSink
	Observability   = base.Observability
	Field           = base.Field
	Rand            = base.Rand
)

const (
	StatusRunning = base.StatusRunning
	StatusStopped = base.StatusStopped
	StatusAlarm   = base.StatusAlarm
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithStore(s Store) RuntimeOption {
	return base.WithStore(s)
}

func WithDeviceReader(d DeviceReader) RuntimeOption {
	return base.WithDeviceReader(d)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithRand(r Rand) RuntimeOption {
	return base.WithRand(r)
}

func NewRand(seed uint64) Rand {
	return base.NewRand(seed)
}

// Sink adapters.
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []Sample, func()) {
	return base.NewChannelSink(name, buffer)
}
