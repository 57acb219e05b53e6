package cnctracker

import (
	"github.com/oofurkan/CncMachineTracker/internal/adapters/opcua"
	"github.com/oofurkan/CncMachineTracker/internal/app/config"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// RetentionPolicy bounds per-machine history.
	RetentionPolicy = ports.RetentionPolicy
	// ExportPolicy controls the historian queue.
	ExportPolicy = ports.ExportPolicy
	// OPCUAConfig holds connection details for the hardware adapter.
	OPCUAConfig = opcua.Config
	// OPCUAMachineNodes maps one machine onto its OPC UA tags.
	OPCUAMachineNodes = opcua.MachineNodes
	ServerConfig      = config.ServerConfig
	DeviceConfig      = config.DeviceConfig
	HistorianConfig   = config.HistorianConfig
	SimulatorConfig   = config.SimulatorConfig
	MetricsConfig     = config.MetricsConfig
	LogConfig         = config.LogConfig
)

const (
	DeviceNone  = config.DeviceNone
	DeviceMock  = config.DeviceMock
	DeviceOPCUA = config.DeviceOPCUA
)

// LoadConfig loads YAML from disk, applies defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
