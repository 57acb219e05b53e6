package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// baseline centers the randomized simulation of one machine.
type baseline struct {
	cycleSeconds float64
	initial      domain.MachineState
}

// Engine derives synthetic machine states and commits them to a store.
//
// Baselines live as long as the Engine. A fresh Engine re-seeds each
// machine's baseline from whatever snapshot the store holds at the time.
type Engine struct {
	store  ports.MachineStore
	device ports.DeviceReader
	rng    Rand
	now    func() time.Time
	obs    ports.Observability

	mu        sync.Mutex
	baselines map[string]baseline
	locks     map[string]*sync.Mutex
}

// Option customizes an Engine.
type Option func(*Engine)

// WithDevice binds a hardware adapter; a nil reader leaves the engine unbound.
func WithDevice(d ports.DeviceReader) Option {
	return func(e *Engine) { e.device = d }
}

// WithRand swaps the random source, mostly for deterministic tests.
func WithRand(r Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(e *Engine) {
		if obs != nil {
			e.obs = obs
		}
	}
}

func NewEngine(store ports.MachineStore, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		rng:       globalRand{},
		now:       time.Now,
		obs:       ports.NopObservability{},
		baselines: make(map[string]baseline),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// DeviceBound reports whether RefreshFromDevice can reach real hardware.
func (e *Engine) DeviceBound() bool { return e.device != nil }

// Advance computes and commits the next synthetic state for id.
// Calls for the same id are serialized; different ids run in parallel.
func (e *Engine) Advance(id string) (domain.MachineState, error) {
	unlock := e.lockMachine(id)
	defer unlock()

	base, err := e.ensureBaseline(id)
	if err != nil {
		return domain.MachineState{}, err
	}

	current, ok := e.store.GetLatest(id)
	if !ok {
		current = base.initial
	}

	status := nextStatus(current.Status, e.rng.Float64())
	next := domain.MachineState{
		ID:               id,
		Status:           status,
		ProductionCount:  nextProductionCount(e.rng, current.ProductionCount, status),
		CycleTimeSeconds: nextCycleTime(e.rng, base.cycleSeconds, status),
		Timestamp:        e.now().UTC(),
	}

	if err := e.store.Upsert(next, domain.SampleOf(next)); err != nil {
		return domain.MachineState{}, fmt.Errorf("advance machine %s: %w", id, err)
	}
	e.obs.IncCounter("cnc_advances_total", 1)
	return next, nil
}

// RefreshFromDevice commits a reading from the bound hardware adapter.
// Without an adapter it fails with domain.ErrDeviceNotConfigured; adapter
// failures come back as *domain.DeviceError and nothing is committed.
func (e *Engine) RefreshFromDevice(ctx context.Context, id string) (domain.MachineState, error) {
	if e.device == nil {
		return domain.MachineState{}, fmt.Errorf("refresh machine %s: %w", id, domain.ErrDeviceNotConfigured)
	}

	unlock := e.lockMachine(id)
	defer unlock()

	start := time.Now()
	state, err := e.device.ReadCurrent(ctx, id)
	e.obs.ObserveLatency("cnc_device_read_latency_seconds", time.Since(start).Seconds())
	if err != nil {
		e.obs.IncCounter("cnc_refresh_failures_total", 1)
		return domain.MachineState{}, &domain.DeviceError{MachineID: id, Err: err}
	}
	if state.ID == "" {
		state.ID = id
	}
	if state.Timestamp.IsZero() {
		state.Timestamp = e.now()
	}
	state.Timestamp = state.Timestamp.UTC()

	if state.ID != id {
		e.obs.IncCounter("cnc_refresh_failures_total", 1)
		return domain.MachineState{}, &domain.DeviceError{
			MachineID: id,
			Err:       fmt.Errorf("%w: reading carries machine id %q", domain.ErrInvalidState, state.ID),
		}
	}
	if err := e.store.Upsert(state, domain.SampleOf(state)); err != nil {
		e.obs.IncCounter("cnc_refresh_failures_total", 1)
		return domain.MachineState{}, &domain.DeviceError{MachineID: id, Err: err}
	}
	e.obs.IncCounter("cnc_refreshes_total", 1)
	return state, nil
}

// ensureBaseline returns the cached baseline for id, seeding it from the
// store or from a freshly synthesized machine on first encounter.
// The caller holds the machine lock.
func (e *Engine) ensureBaseline(id string) (baseline, error) {
	e.mu.Lock()
	b, ok := e.baselines[id]
	e.mu.Unlock()
	if ok {
		return b, nil
	}

	initial, found := e.store.GetLatest(id)
	var cycle float64
	if found {
		cycle = initial.CycleTimeSeconds
		if cycle <= 0 {
			cycle = e.drawBaseCycle()
		}
	} else {
		initial, cycle = e.synthesize(id)
		if err := e.store.EnsureExists(id, initial); err != nil {
			return baseline{}, fmt.Errorf("register machine %s: %w", id, err)
		}
		e.obs.LogInfo("machine_registered",
			ports.Field{Key: "machine_id", Value: id},
			ports.Field{Key: "status", Value: initial.Status.String()},
			ports.Field{Key: "base_cycle_seconds", Value: cycle})
	}

	b = baseline{cycleSeconds: cycle, initial: initial}
	e.mu.Lock()
	e.baselines[id] = b
	e.mu.Unlock()
	return b, nil
}

// synthesize builds the first snapshot of an unseen machine. The drawn base
// cycle time is reported as the snapshot's cycle time only while Running.
func (e *Engine) synthesize(id string) (domain.MachineState, float64) {
	cycle := e.drawBaseCycle()
	status := domain.Statuses[e.rng.IntN(len(domain.Statuses))]
	count := int64(e.rng.IntN(100))

	m := domain.MachineState{
		ID:              id,
		Status:          status,
		ProductionCount: count,
		Timestamp:       e.now().UTC(),
	}
	if status == domain.StatusRunning {
		m.CycleTimeSeconds = cycle
	}
	return m, cycle
}

func (e *Engine) drawBaseCycle() float64 {
	return float64(minBaseCycleSeconds + e.rng.IntN(maxBaseCycleSeconds-minBaseCycleSeconds))
}

// lockMachine serializes read-compute-commit sequences for one id.
func (e *Engine) lockMachine(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}
