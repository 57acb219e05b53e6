package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// Simulator is the part of the simulation engine the API drives.
type Simulator interface {
	Advance(id string) (domain.MachineState, error)
	RefreshFromDevice(ctx context.Context, id string) (domain.MachineState, error)
}

// Option configures optional Server behavior.
type Option func(*Server)

// WithHistoryWindow sets the window used when a history request has no minutes parameter.
func WithHistoryWindow(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.historyWindow = d
		}
	}
}

// WithMetricsHandler mounts h (typically promhttp) at path.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// WithObservability routes request logs through obs.
func WithObservability(obs ports.Observability) Option {
	return func(s *Server) {
		if obs != nil {
			s.obs = obs
		}
	}
}

// Server exposes the machine store and simulator over HTTP.
type Server struct {
	router        chi.Router
	store         ports.MachineStore
	sim           Simulator
	obs           ports.Observability
	historyWindow time.Duration
	metricsPath   string
	metrics       http.Handler
}

// NewServer creates a Server with all routes configured.
func NewServer(store ports.MachineStore, sim Simulator, opts ...Option) *Server {
	s := &Server{
		store:         store,
		sim:           sim,
		obs:           ports.NopObservability{},
		historyWindow: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements the http.Handler interface, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics)
	}

	r.Route("/api/machines", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/history", s.handleHistory)
		r.Post("/{id}/simulate", s.handleSimulate)
		r.Post("/{id}/refresh", s.handleRefresh)
	})

	return r
}

// logRequests writes one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.obs.LogInfo("http_request",
			ports.Field{Key: "method", Value: r.Method},
			ports.Field{Key: "path", Value: r.URL.Path},
			ports.Field{Key: "status", Value: status},
			ports.Field{Key: "duration", Value: time.Since(start).String()})
	})
}
