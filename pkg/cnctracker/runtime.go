package cnctracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oofurkan/CncMachineTracker/internal/adapters/device"
	"github.com/oofurkan/CncMachineTracker/internal/adapters/httpapi"
	"github.com/oofurkan/CncMachineTracker/internal/adapters/memstore"
	"github.com/oofurkan/CncMachineTracker/internal/adapters/observability"
	"github.com/oofurkan/CncMachineTracker/internal/adapters/opcua"
	"github.com/oofurkan/CncMachineTracker/internal/adapters/queue"
	"github.com/oofurkan/CncMachineTracker/internal/adapters/sink"
	"github.com/oofurkan/CncMachineTracker/internal/app/config"
	"github.com/oofurkan/CncMachineTracker/internal/app/pipeline"
	"github.com/oofurkan/CncMachineTracker/internal/app/simulation"
	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	store         ports.MachineStore
	device        ports.DeviceReader
	sink          ports.Sink
	observability ports.Observability
	rng           simulation.Rand
}

// WithStore replaces the in-memory store. Committed samples still reach the
// historian exporter through a wrapping listener.
func WithStore(s Store) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithDeviceReader binds a hardware adapter regardless of device.mode.
func WithDeviceReader(d DeviceReader) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.device = d
	}
}

// WithSink exports committed samples to s instead of the configured historian.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRand makes the simulator deterministic.
func WithRand(r Rand) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.rng = r
	}
}

// Runtime wires the store, simulation engine, device adapter, historian
// exporter and HTTP API into one process.
type Runtime struct {
	cfg      *Config
	obs      ports.Observability
	logger   *zap.Logger
	registry *prometheus.Registry
	store    ports.MachineStore
	engine   *simulation.Engine
	device   ports.DeviceReader
	exporter *pipeline.Exporter
	closers  []func(context.Context) error
	handler  http.Handler

	mu         sync.Mutex
	server     *http.Server
	cancel     context.CancelFunc
	background sync.WaitGroup
}

// NewRuntime bootstraps the default adapters (in-memory store, device reader
// per device.mode, SQL historian when enabled, Prometheus and zap
// observability). RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg, registry: prometheus.NewRegistry()}

	obs := overrides.observability
	if obs == nil {
		logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		rt.logger = logger
		rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		obs = observability.NewPromObs(rt.registry, logger)
	}
	rt.obs = obs

	snk, err := rt.buildSink(overrides.sink)
	if err != nil {
		rt.closeAll(context.Background())
		return nil, err
	}

	listeners := []ports.CommitListener{rt.countCommit}
	if snk != nil {
		rt.exporter = pipeline.NewExporter(queue.NewMemQueue(cfg.Historian.Policy.MaxQueueLen), snk, cfg.Historian.Policy, obs)
		listeners = append(listeners, rt.exporter.Publish)
	}

	if overrides.store != nil {
		rt.store = &listeningStore{MachineStore: overrides.store, listeners: listeners}
	} else {
		storeOpts := []memstore.Option{memstore.WithRetention(cfg.Retention)}
		for _, fn := range listeners {
			storeOpts = append(storeOpts, memstore.WithCommitListener(fn))
		}
		rt.store = memstore.New(storeOpts...)
	}

	dev := overrides.device
	if dev == nil {
		dev, err = rt.buildDevice()
		if err != nil {
			rt.closeAll(context.Background())
			return nil, err
		}
	}
	rt.device = dev

	engineOpts := []simulation.Option{simulation.WithObservability(obs)}
	if dev != nil {
		engineOpts = append(engineOpts, simulation.WithDevice(dev))
	}
	if overrides.rng != nil {
		engineOpts = append(engineOpts, simulation.WithRand(overrides.rng))
	}
	rt.engine = simulation.NewEngine(rt.store, engineOpts...)

	rt.handler = httpapi.NewServer(rt.store, rt.engine,
		httpapi.WithHistoryWindow(cfg.Server.HistoryWindow),
		httpapi.WithMetricsHandler(cfg.Metrics.Path, promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})),
		httpapi.WithObservability(obs),
	)

	obs.LogInfo("runtime_ready",
		ports.Field{Key: "device_mode", Value: cfg.Device.Mode},
		ports.Field{Key: "device_bound", Value: rt.engine.DeviceBound()},
		ports.Field{Key: "historian", Value: snk != nil})
	return rt, nil
}

// Store returns the machine store backing the runtime.
func (r *Runtime) Store() Store { return r.store }

// Engine returns the simulation engine.
func (r *Runtime) Engine() *simulation.Engine { return r.engine }

// Handler returns the HTTP API so callers can mount it in their own server.
func (r *Runtime) Handler() http.Handler { return r.handler }

// Start launches the exporter, the simulation loop and the HTTP server.
// It returns once the listener is bound; call Run to block on a context.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}

	ln, err := net.Listen("tcp", r.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", r.cfg.Server.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.server = &http.Server{
		Handler:           r.handler,
		ReadHeaderTimeout: r.cfg.Server.ReadHeaderTimeout,
	}
	srv := r.server
	r.mu.Unlock()

	r.startBackground(ctx)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogCritical("http_server_exited", err)
		}
	}()
	r.obs.LogInfo("http_listening", ports.Field{Key: "addr", Value: ln.Addr().String()})
	return nil
}

func (r *Runtime) startBackground(ctx context.Context) {
	if r.exporter != nil {
		r.background.Add(1)
		go func() {
			defer r.background.Done()
			r.exporter.Run(ctx)
		}()
	}

	if len(r.cfg.Simulator.Machines) > 0 {
		r.background.Add(1)
		go func() {
			defer r.background.Done()
			pipeline.RunSimulationLoop(ctx, r.engine, r.cfg.Simulator.Machines, r.cfg.Simulator.Interval, r.obs)
		}()
	}

	r.background.Add(1)
	go func() {
		defer r.background.Done()
		r.recordGauges(ctx, time.Second)
	}()
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server, drains the exporter and releases the
// device session and database handles.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	r.mu.Lock()
	srv, cancel := r.server, r.cancel
	r.server, r.cancel = nil, nil
	r.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if cancel != nil {
		cancel()
	}
	r.background.Wait()

	errs = append(errs, r.closeAll(ctx))
	if r.logger != nil {
		_ = r.logger.Sync()
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runtime) buildSink(override ports.Sink) (ports.Sink, error) {
	if override != nil {
		return override, nil
	}
	h := r.cfg.Historian
	if !h.Enabled {
		return nil, nil
	}

	switch h.Driver {
	case "sqlite3":
		s, err := sink.OpenSQLiteSink(h.ConnString, h.Table)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func(context.Context) error { return s.Close() })
		return s, nil
	default:
		db, err := sql.Open("postgres", h.ConnString)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func(context.Context) error { return db.Close() })
		s := sink.NewTimescaleSink(db, h.Table)
		if err := s.EnsureTable(); err != nil {
			return nil, fmt.Errorf("historian schema: %w", err)
		}
		return s, nil
	}
}

func (r *Runtime) buildDevice() (ports.DeviceReader, error) {
	switch r.cfg.Device.Mode {
	case config.DeviceMock:
		return device.NewMockReader(r.cfg.Device.Seed), nil
	case config.DeviceOPCUA:
		rd, err := opcua.NewReader(r.cfg.Device.OPCUA)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, rd.Close)
		return rd, nil
	default:
		return nil, nil
	}
}

func (r *Runtime) countCommit(domain.Sample) {
	r.obs.IncCounter("cnc_history_samples_total", 1)
}

func (r *Runtime) recordGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.obs.SetGauge("cnc_machines_tracked", float64(len(r.store.GetAll())))
		}
	}
}

// listeningStore forwards commits of a caller-supplied store to listeners.
type listeningStore struct {
	ports.MachineStore
	listeners []ports.CommitListener
}

func (s *listeningStore) Upsert(snapshot domain.MachineState, sample domain.Sample) error {
	if err := s.MachineStore.Upsert(snapshot, sample); err != nil {
		return err
	}
	for _, fn := range s.listeners {
		fn(sample)
	}
	return nil
}
