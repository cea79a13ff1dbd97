package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz_OmitsComponents(t *testing.T) {
	health := NewHealthManager()
	health.UpdateComponent("graph", ComponentHealth{Status: ComponentHealthy})
	s := NewServer(health, ServerConfig{})

	rec := doRequest(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Empty(t, body.Components)
}

func TestReadyz_FailedCriticalComponentReturns503(t *testing.T) {
	health := NewHealthManager()
	health.UpdateComponent("graph", ComponentHealth{Status: ComponentFailed, Error: "connection refused"})
	s := NewServer(health, ServerConfig{})

	rec := doRequest(t, s, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, "connection refused", body.Components["graph"].Error)
}

func TestStatus_ReturnsPayloadFromFunc(t *testing.T) {
	s := NewServer(NewHealthManager(), ServerConfig{})
	s.SetStatusFunc(func(ctx context.Context) (any, error) {
		return map[string]any{"processed": 7, "total": 10}, nil
	})

	rec := doRequest(t, s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(7), body["processed"])
}

func TestStatus_NotWiredReturns501(t *testing.T) {
	s := NewServer(NewHealthManager(), ServerConfig{})
	rec := doRequest(t, s, http.MethodGet, "/status")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestReindex_QueuesAPass(t *testing.T) {
	s := NewServer(NewHealthManager(), ServerConfig{})
	triggered := 0
	s.SetReindexFunc(func(ctx context.Context) { triggered++ })

	rec := doRequest(t, s, http.MethodPost, "/reindex")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, triggered)
}

func TestPauseResume(t *testing.T) {
	s := NewServer(NewHealthManager(), ServerConfig{})

	rec := doRequest(t, s, http.MethodPost, "/pause")
	assert.Equal(t, http.StatusNotImplemented, rec.Code, "no watcher attached")

	paused, resumed := 0, 0
	s.SetPauseFuncs(func() { paused++ }, func() { resumed++ })

	assert.Equal(t, http.StatusOK, doRequest(t, s, http.MethodPost, "/pause").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, s, http.MethodPost, "/resume").Code)
	assert.Equal(t, 1, paused)
	assert.Equal(t, 1, resumed)
}
