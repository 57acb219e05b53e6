package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oofurkan/CncMachineTracker/internal/adapters/queue"
	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

func TestEnqueueWithPolicyBlock(t *testing.T) {
	q := &mockQueue{}
	q.failures = 1

	pol := ports.ExportPolicy{
		OnQueueFull: "block",
		IdleSleep:   time.Millisecond,
	}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, domain.Sample{}, pol, obs); !ok {
		t.Fatalf("expected enqueue to eventually succeed")
	}
	if q.calls != 2 {
		t.Fatalf("expected two enqueue attempts, got %d", q.calls)
	}
}

func TestEnqueueWithPolicyDrop(t *testing.T) {
	q := &mockQueue{failAlways: true}
	pol := ports.ExportPolicy{OnQueueFull: "drop"}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, domain.Sample{}, pol, obs); ok {
		t.Fatalf("expected enqueueWithPolicy to fail")
	}
	if len(obs.errorList()) == 0 {
		t.Fatalf("expected drop to log an error")
	}
}

func TestExporterPublishCountsDrops(t *testing.T) {
	obs := &mockObs{}
	x := NewExporter(queue.NewMemQueue(1), &mockSink{}, ports.ExportPolicy{OnQueueFull: "drop", MaxQueueLen: 1}, obs)

	x.Publish(domain.Sample{MachineID: "M1"})
	x.Publish(domain.Sample{MachineID: "M1"})

	if got := obs.counter("cnc_export_dropped_total"); got != 1 {
		t.Fatalf("expected 1 dropped sample, got %v", got)
	}
}

func TestExporterRunWritesBatchesAndFlushesOnCancel(t *testing.T) {
	q := queue.NewMemQueue(100)
	sink := &mockSink{}
	obs := &mockObs{}
	x := NewExporter(q, sink, ports.ExportPolicy{MaxBatchSize: 3, IdleSleep: time.Millisecond, OnQueueFull: "drop"}, obs)

	for i := 0; i < 7; i++ {
		x.Publish(domain.Sample{MachineID: "M1", ProductionCount: int64(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		x.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sink.total() < 7 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for export, wrote %d", sink.total())
		case <-time.After(time.Millisecond):
		}
	}
	x.Publish(domain.Sample{MachineID: "M1", ProductionCount: 7})
	cancel()
	<-done

	if got := sink.total(); got != 8 {
		t.Fatalf("expected 8 exported samples after flush, got %d", got)
	}
	for _, b := range sink.batchSizes() {
		if b > 3 {
			t.Fatalf("batch of %d exceeds max batch size", b)
		}
	}
	if got := obs.counter("cnc_export_written_total"); got != 8 {
		t.Fatalf("expected written counter 8, got %v", got)
	}
}

func TestExporterSinkFailureIsCounted(t *testing.T) {
	q := queue.NewMemQueue(10)
	obs := &mockObs{}
	x := NewExporter(q, &mockSink{err: errors.New("db down")}, ports.ExportPolicy{MaxBatchSize: 10, OnQueueFull: "drop"}, obs)

	x.Publish(domain.Sample{MachineID: "M1"})
	x.Publish(domain.Sample{MachineID: "M2"})

	if n := x.drainOnce(); n != 2 {
		t.Fatalf("expected batch of 2, got %d", n)
	}
	if got := obs.counter("cnc_export_dropped_total"); got != 2 {
		t.Fatalf("expected 2 dropped samples, got %v", got)
	}
	if len(obs.errorList()) != 1 {
		t.Fatalf("expected sink failure to be logged")
	}
}

type mockQueue struct {
	failures   int32
	failAlways bool
	calls      int
}

func (m *mockQueue) Enqueue(domain.Sample) bool {
	m.calls++
	if m.failAlways {
		return false
	}
	if atomic.LoadInt32(&m.failures) > 0 {
		atomic.AddInt32(&m.failures, -1)
		return false
	}
	return true
}

func (m *mockQueue) DequeueBatch(int) []domain.Sample { return nil }
func (m *mockQueue) Len() int                         { return 0 }

type mockSink struct {
	mu      sync.Mutex
	err     error
	batches [][]domain.Sample
}

func (m *mockSink) WriteBatch(samples []domain.Sample) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, samples)
	return nil
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func (m *mockSink) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batches))
	for i, b := range m.batches {
		out[i] = len(b)
	}
	return out
}

type mockObs struct {
	mu       sync.Mutex
	errors   []error
	counters map[string]float64
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) errorList() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errors...)
}
