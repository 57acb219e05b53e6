package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the coarse operating state reported for a CNC machine.
type Status string

const (
	StatusRunning Status = "Running"
	StatusStopped Status = "Stopped"
	StatusAlarm   Status = "Alarm"
)

// Statuses lists every known status in declaration order.
var Statuses = []Status{StatusRunning, StatusStopped, StatusAlarm}

func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusAlarm:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(raw string) (Status, error) {
	for _, s := range Statuses {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown machine status %q", raw)
}

// MachineState is the current snapshot of one machine.
type MachineState struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	ProductionCount  int64     `json:"productionCount"`
	CycleTimeSeconds float64   `json:"cycleTimeSeconds"`
	Timestamp        time.Time `json:"timestamp"`
}

// Sample is an immutable history record of a committed MachineState.
type Sample struct {
	MachineID        string    `json:"machineId"`
	Status           Status    `json:"status"`
	ProductionCount  int64     `json:"productionCount"`
	CycleTimeSeconds float64   `json:"cycleTimeSeconds"`
	Timestamp        time.Time `json:"timestamp"`
}

// SampleOf captures the state as a history record.
func SampleOf(m MachineState) Sample {
	return Sample{
		MachineID:        m.ID,
		Status:           m.Status,
		ProductionCount:  m.ProductionCount,
		CycleTimeSeconds: m.CycleTimeSeconds,
		Timestamp:        m.Timestamp,
	}
}

// Validate reports an ErrInvalidState when the snapshot breaks a model invariant.
func (m MachineState) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: empty machine id", ErrInvalidState)
	case !m.Status.Valid():
		return fmt.Errorf("%w: machine %s has unknown status %q", ErrInvalidState, m.ID, m.Status)
	case m.ProductionCount < 0:
		return fmt.Errorf("%w: machine %s has negative production count %d", ErrInvalidState, m.ID, m.ProductionCount)
	case m.CycleTimeSeconds < 0:
		return fmt.Errorf("%w: machine %s has negative cycle time %v", ErrInvalidState, m.ID, m.CycleTimeSeconds)
	case m.Status != StatusRunning && m.CycleTimeSeconds != 0:
		return fmt.Errorf("%w: machine %s is %s with cycle time %v", ErrInvalidState, m.ID, m.Status, m.CycleTimeSeconds)
	}
	return nil
}
