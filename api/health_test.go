package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celim/oraculo/internal/log"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func checkHealth(t *testing.T, deps []NamedPinger) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	handler := NewHealth(deps, log.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.Check(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestHealthAllDependenciesUp(t *testing.T) {
	t.Parallel()

	rec, resp := checkHealth(t, []NamedPinger{
		{Name: "postgres", Pinger: &fakePinger{}},
		{Name: "memory", Pinger: &fakePinger{}},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data, 2)
}

func TestHealthReportsFailingDependency(t *testing.T) {
	t.Parallel()

	rec, resp := checkHealth(t, []NamedPinger{
		{Name: "postgres", Pinger: &fakePinger{err: assert.AnError}},
		{Name: "memory", Pinger: &fakePinger{}},
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", resp.Status)

	pg, ok := resp.Data["postgres"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", pg["status"])

	mem, ok := resp.Data["memory"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", mem["status"])
}

func TestRecoveryMiddlewareContainsPanic(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := Chain(panicking, RecoveryMiddleware(log.NewNop()), LoggingMiddleware(log.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() { handler.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
