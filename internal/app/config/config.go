package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oofurkan/CncMachineTracker/internal/adapters/opcua"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

const (
	DeviceNone  = "none"
	DeviceMock  = "mock"
	DeviceOPCUA = "opcua"
)

type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Retention ports.RetentionPolicy `yaml:"retention"`
	Device    DeviceConfig          `yaml:"device"`
	Historian HistorianConfig       `yaml:"historian"`
	Simulator SimulatorConfig       `yaml:"simulator"`
	Metrics   MetricsConfig         `yaml:"metrics"`
	Log       LogConfig             `yaml:"log"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	HistoryWindow     time.Duration `yaml:"history_window"`
}

type DeviceConfig struct {
	Mode  string       `yaml:"mode"`
	Seed  uint64       `yaml:"seed"`
	OPCUA opcua.Config `yaml:"opcua"`
}

type HistorianConfig struct {
	Enabled    bool               `yaml:"enabled"`
	Driver     string             `yaml:"driver"`
	ConnString string             `yaml:"conn_string"`
	Table      string             `yaml:"table"`
	Policy     ports.ExportPolicy `yaml:",inline"`
}

type SimulatorConfig struct {
	Machines []string      `yaml:"machines"`
	Interval time.Duration `yaml:"interval"`
}

type MetricsConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if c.Server.HistoryWindow == 0 {
		c.Server.HistoryWindow = 10 * time.Minute
	}
	if c.Retention.Horizon == 0 {
		c.Retention.Horizon = ports.DefaultRetention.Horizon
	}
	if c.Retention.Floor == 0 {
		c.Retention.Floor = ports.DefaultRetention.Floor
	}
	if c.Device.Mode == "" {
		c.Device.Mode = DeviceNone
	}
	if c.Device.Mode == DeviceOPCUA {
		c.Device.OPCUA.ApplyDefaults()
	}
	if c.Historian.Driver == "" {
		c.Historian.Driver = "postgres"
	}
	if c.Historian.Table == "" {
		c.Historian.Table = "machine_samples"
	}
	if c.Historian.Policy.MaxQueueLen == 0 {
		c.Historian.Policy.MaxQueueLen = 10_000
	}
	if c.Historian.Policy.MaxBatchSize == 0 {
		c.Historian.Policy.MaxBatchSize = 500
	}
	if c.Historian.Policy.IdleSleep == 0 {
		c.Historian.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Historian.Policy.OnQueueFull == "" {
		c.Historian.Policy.OnQueueFull = "drop"
	}
	if c.Simulator.Interval == 0 {
		c.Simulator.Interval = 2 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.HistoryWindow < 0 {
		return errors.New("server.history_window must be positive")
	}
	if c.Retention.Horizon <= 0 || c.Retention.Floor <= 0 {
		return fmt.Errorf("retention config: horizon and floor must be positive, got %s/%d", c.Retention.Horizon, c.Retention.Floor)
	}

	switch c.Device.Mode {
	case DeviceNone, DeviceMock:
	case DeviceOPCUA:
		if err := c.Device.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	default:
		return fmt.Errorf("device.mode %q must be one of none, mock, opcua", c.Device.Mode)
	}

	if err := c.Historian.validate(); err != nil {
		return fmt.Errorf("historian config: %w", err)
	}

	if c.Simulator.Interval < 0 {
		return errors.New("simulator.interval must be positive")
	}
	for i, id := range c.Simulator.Machines {
		if id == "" {
			return fmt.Errorf("simulator.machines[%d] is empty", i)
		}
	}
	return nil
}

func (h *HistorianConfig) validate() error {
	if !h.Enabled {
		return nil
	}
	if h.Driver != "postgres" && h.Driver != "sqlite3" {
		return fmt.Errorf("driver %q must be postgres or sqlite3", h.Driver)
	}
	if h.ConnString == "" {
		return errors.New("conn_string is required")
	}
	if !tableName.MatchString(h.Table) {
		return fmt.Errorf("table %q is not a valid identifier", h.Table)
	}
	if h.Policy.MaxQueueLen <= 0 || h.Policy.MaxBatchSize <= 0 {
		return errors.New("queue_len and batch_size must be > 0")
	}
	switch h.Policy.OnQueueFull {
	case "drop", "block":
	default:
		return fmt.Errorf("on_queue_full %q must be drop or block", h.Policy.OnQueueFull)
	}
	return nil
}
