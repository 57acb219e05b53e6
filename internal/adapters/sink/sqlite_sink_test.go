package sink

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
)

func TestSQLiteSinkWriteBatchIsIdempotent(t *testing.T) {
	s, err := OpenSQLiteSink(filepath.Join(t.TempDir(), "history.db"), "machine_samples")
	if err != nil {
		t.Fatalf("open sqlite sink: %v", err)
	}
	defer s.Close()

	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	batch := []domain.Sample{
		{MachineID: "M1", Timestamp: ts, Status: domain.StatusRunning, ProductionCount: 10, CycleTimeSeconds: 30},
		{MachineID: "M1", Timestamp: ts.Add(time.Second), Status: domain.StatusStopped, ProductionCount: 10},
		{MachineID: "M2", Timestamp: ts, Status: domain.StatusAlarm, ProductionCount: 3},
	}

	if err := s.WriteBatch(batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := s.WriteBatch(batch[:1]); err != nil {
		t.Fatalf("rewrite batch: %v", err)
	}

	n, err := s.Count("M1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 samples for M1, got %d", n)
	}
	if s.Name() != "sqlite" {
		t.Fatalf("expected sink name sqlite, got %s", s.Name())
	}
}
