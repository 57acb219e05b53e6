package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// Exporter buffers committed samples and drains them to a historian sink.
type Exporter struct {
	q    ports.SampleQueue
	sink ports.Sink
	pol  ports.ExportPolicy
	obs  ports.Observability
}

func NewExporter(q ports.SampleQueue, sink ports.Sink, pol ports.ExportPolicy, obs ports.Observability) *Exporter {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Exporter{q: q, sink: sink, pol: pol, obs: obs}
}

// Publish offers s to the export queue. It is shaped as a store commit
// listener and never fails the commit; drops are counted instead.
func (x *Exporter) Publish(s domain.Sample) {
	if !enqueueWithPolicy(x.q, s, x.pol, x.obs) {
		x.obs.IncCounter("cnc_export_dropped_total", 1)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (x *Exporter) Run(ctx context.Context) {
	idle := idleSleep(x.pol)
	for {
		if ctx.Err() != nil {
			x.flush()
			return
		}
		if x.drainOnce() == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(idle):
			}
		}
	}
}

// drainOnce writes at most one batch and reports its size.
func (x *Exporter) drainOnce() int {
	batch := x.q.DequeueBatch(x.pol.MaxBatchSize)
	x.obs.SetGauge("cnc_export_queue_length", float64(x.q.Len()))
	if len(batch) == 0 {
		return 0
	}

	start := time.Now()
	if err := x.sink.WriteBatch(batch); err != nil {
		x.obs.LogError("export_sink_failed", err,
			ports.Field{Key: "sink", Value: x.sink.Name()},
			ports.Field{Key: "samples", Value: len(batch)})
		x.obs.IncCounter("cnc_export_dropped_total", float64(len(batch)))
		return len(batch)
	}
	x.obs.ObserveLatency("cnc_export_sink_latency_seconds", time.Since(start).Seconds())
	x.obs.IncCounter("cnc_export_written_total", float64(len(batch)))
	return len(batch)
}

func (x *Exporter) flush() {
	for x.drainOnce() > 0 {
	}
}

func enqueueWithPolicy(q ports.SampleQueue, s domain.Sample, pol ports.ExportPolicy, obs ports.Observability) bool {
	sleep := idleSleep(pol)
	for {
		if ok := q.Enqueue(s); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("export_queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
				ports.Field{Key: "machine_id", Value: s.MachineID})
			return false
		default:
			obs.LogError("export_queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

func idleSleep(pol ports.ExportPolicy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}
