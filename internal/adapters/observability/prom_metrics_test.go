package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg, nil)

	obs.IncCounter("cnc_advances_total", 5)
	if got := testutil.ToFloat64(obs.counters["cnc_advances_total"]); got != 5 {
		t.Fatalf("expected advances counter 5, got %f", got)
	}

	obs.IncCounter("cnc_export_dropped_total", 2)
	if got := testutil.ToFloat64(obs.counters["cnc_export_dropped_total"]); got != 2 {
		t.Fatalf("expected export drop counter 2, got %f", got)
	}

	obs.SetGauge("cnc_machines_tracked", 42)
	if got := testutil.ToFloat64(obs.gauges["cnc_machines_tracked"]); got != 42 {
		t.Fatalf("expected machines gauge 42, got %f", got)
	}

	obs.ObserveLatency("cnc_device_read_latency_seconds", 0.5)
	hCollector := obs.histos["cnc_device_read_latency_seconds"].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	// unknown names are ignored
	obs.IncCounter("does_not_exist", 1)
	obs.SetGauge("does_not_exist", 1)

	if n, err := testutil.GatherAndCount(reg); err != nil || n != 10 {
		t.Fatalf("expected 10 registered metrics, got %d (%v)", n, err)
	}
}

func TestPromObsStructuredLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	obs := NewPromObs(prometheus.NewRegistry(), zap.New(core))

	obs.LogInfo("machine_registered", ports.Field{Key: "machine_id", Value: "M1"})
	obs.LogError("export_sink_failed", errors.New("boom"), ports.Field{Key: "batch", Value: 3})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["machine_id"]; got != "M1" {
		t.Fatalf("expected machine_id field M1, got %v", got)
	}
	if got := entries[1].ContextMap()["error"]; got != "boom" {
		t.Fatalf("expected error field boom, got %v", got)
	}
}
