package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oofurkan/CncMachineTracker/internal/adapters/memstore"
	"github.com/oofurkan/CncMachineTracker/internal/app/simulation"
	"github.com/oofurkan/CncMachineTracker/internal/domain"
)

type stubDevice struct {
	state domain.MachineState
	err   error
}

func (d *stubDevice) ReadCurrent(_ context.Context, id string) (domain.MachineState, error) {
	if d.err != nil {
		return domain.MachineState{}, d.err
	}
	s := d.state
	s.ID = id
	return s, nil
}

func newTestServer(t *testing.T, engineOpts ...simulation.Option) (*Server, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	opts := append([]simulation.Option{simulation.WithRand(simulation.NewRand(7))}, engineOpts...)
	eng := simulation.NewEngine(store, opts...)
	return NewServer(store, eng, WithHistoryWindow(10*time.Minute)), store
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListStartsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/machines")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSimulateThenGet(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/machines/M100/simulate")
	require.Equal(t, http.StatusOK, rec.Code)

	var simulated domain.MachineState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &simulated))
	assert.Equal(t, "M100", simulated.ID)
	assert.NoError(t, simulated.Validate())

	rec = do(t, srv, http.MethodGet, "/api/machines/M100")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.MachineState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, simulated.ProductionCount, got.ProductionCount)
	assert.Equal(t, simulated.Status, got.Status)

	rec = do(t, srv, http.MethodGet, "/api/machines")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []domain.MachineState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}

func TestGetUnknownMachineIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/machines/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/machines/M1/simulate").Code)
	}

	rec := do(t, srv, http.MethodGet, "/api/machines/M1/history?minutes=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "M1", body.ID)
	require.Len(t, body.Samples, 3)
	for i := 1; i < len(body.Samples); i++ {
		assert.False(t, body.Samples[i].Timestamp.After(body.Samples[i-1].Timestamp))
	}

	rec = do(t, srv, http.MethodGet, "/api/machines/M1/history")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHistorySamplesUseMachineShape(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/machines/M1/simulate").Code)

	rec := do(t, srv, http.MethodGet, "/api/machines/M1/history?minutes=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw struct {
		Samples []map[string]any `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw.Samples, 1)
	sample := raw.Samples[0]
	assert.Equal(t, "M1", sample["id"])
	assert.NotContains(t, sample, "machineId")
	for _, key := range []string{"status", "productionCount", "cycleTimeSeconds", "timestamp"} {
		assert.Contains(t, sample, key)
	}
}

func TestHistoryRejectsBadMinutes(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/machines/M1/simulate").Code)

	for _, q := range []string{"abc", "0", "-3"} {
		rec := do(t, srv, http.MethodGet, "/api/machines/M1/history?minutes="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "minutes=%s", q)
	}
}

func TestHistoryUnknownMachineIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/machines/ghost/history?minutes=5")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshWithoutDeviceIs501(t *testing.T) {
	srv, store := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/machines/M1/refresh")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	_, ok := store.GetLatest("M1")
	assert.False(t, ok)
}

func TestRefreshDeviceFailureIs502(t *testing.T) {
	srv, _ := newTestServer(t, simulation.WithDevice(&stubDevice{err: errors.New("timeout")}))

	rec := do(t, srv, http.MethodPost, "/api/machines/M1/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRefreshCommitsReading(t *testing.T) {
	reading := domain.MachineState{
		Status:           domain.StatusRunning,
		ProductionCount:  321,
		CycleTimeSeconds: 30,
		Timestamp:        time.Now().UTC(),
	}
	srv, store := newTestServer(t, simulation.WithDevice(&stubDevice{state: reading}))

	rec := do(t, srv, http.MethodPost, "/api/machines/M9/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	got, ok := store.GetLatest("M9")
	require.True(t, ok)
	assert.Equal(t, int64(321), got.ProductionCount)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	store := memstore.New()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("cnc_advances_total 0\n"))
	})
	srv := NewServer(store, simulation.NewEngine(store), WithMetricsHandler("/metrics", metrics))

	rec := do(t, srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cnc_advances_total")
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrDeviceNotConfigured, http.StatusNotImplemented},
		{&domain.DeviceError{MachineID: "M1", Err: errors.New("x")}, http.StatusBadGateway},
		{&domain.DeviceError{MachineID: "M1", Err: domain.ErrInvalidState}, http.StatusBadGateway},
		{domain.ErrInvalidState, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "%v", tc.err)
	}
}
