package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
)

// historyResponse lists samples in the same shape as a machine snapshot.
type historyResponse struct {
	ID      string                `json:"id"`
	Samples []domain.MachineState `json:"samples"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetAll())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, ok := s.store.GetLatest(id)
	if !ok {
		writeError(w, http.StatusNotFound, "machine "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	window := s.historyWindow
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "minutes must be a positive integer")
			return
		}
		window = time.Duration(minutes) * time.Minute
	}

	if _, ok := s.store.GetLatest(id); !ok {
		writeError(w, http.StatusNotFound, "machine "+id+" not found")
		return
	}
	samples := s.store.GetHistory(id, window)
	resp := historyResponse{ID: id, Samples: make([]domain.MachineState, len(samples))}
	for i, smp := range samples {
		resp.Samples[i] = stateOf(smp)
	}
	writeJSON(w, http.StatusOK, resp)
}

func stateOf(s domain.Sample) domain.MachineState {
	return domain.MachineState{
		ID:               s.MachineID,
		Status:           s.Status,
		ProductionCount:  s.ProductionCount,
		CycleTimeSeconds: s.CycleTimeSeconds,
		Timestamp:        s.Timestamp,
	}
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.sim.Advance(id)
	if err != nil {
		s.obs.LogError("simulate_failed", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.sim.RefreshFromDevice(r.Context(), id)
	if err != nil {
		s.obs.LogError("refresh_failed", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var devErr *domain.DeviceError
	switch {
	case errors.Is(err, domain.ErrDeviceNotConfigured):
		return http.StatusNotImplemented
	case errors.As(err, &devErr):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
