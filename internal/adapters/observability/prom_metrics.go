package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// PromObs records metrics in Prometheus and writes structured logs with zap.
type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the tracker metrics with reg. A nil logger discards logs.
func NewPromObs(reg prometheus.Registerer, logger *zap.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	advances := counter("cnc_advances_total", "Synthetic machine states committed.")
	refreshes := counter("cnc_refreshes_total", "Device readings committed.")
	refreshFailures := counter("cnc_refresh_failures_total", "Device refreshes that failed before commit.")
	committed := counter("cnc_history_samples_total", "History samples committed across all machines.")
	exported := counter("cnc_export_written_total", "Samples written to the historian sink.")
	exportDrops := counter("cnc_export_dropped_total", "Samples lost to export backpressure or sink failures.")

	machines := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cnc_machines_tracked",
		Help: "Machines with a current snapshot.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cnc_export_queue_length",
		Help: "Samples waiting for the historian sink.",
	})
	deviceLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cnc_device_read_latency_seconds",
		Help:    "Latency of hardware adapter reads.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	sinkLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cnc_export_sink_latency_seconds",
		Help:    "Latency of historian batch writes.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(advances, refreshes, refreshFailures, committed, exported, exportDrops,
		machines, queueGauge, deviceLatency, sinkLatency)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			"cnc_advances_total":         advances,
			"cnc_refreshes_total":        refreshes,
			"cnc_refresh_failures_total": refreshFailures,
			"cnc_history_samples_total":  committed,
			"cnc_export_written_total":   exported,
			"cnc_export_dropped_total":   exportDrops,
		},
		gauges: map[string]prometheus.Gauge{
			"cnc_machines_tracked":    machines,
			"cnc_export_queue_length": queueGauge,
		},
		histos: map[string]prometheus.Observer{
			"cnc_device_read_latency_seconds": deviceLatency,
			"cnc_export_sink_latency_seconds": sinkLatency,
		},
	}
}

// NewLogger builds a production or development zap logger at level.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
