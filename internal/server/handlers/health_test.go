package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgate/docgate/internal/core/engine"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

type stubGate struct {
	stats engine.WindowStats
}

func (s stubGate) Stats() engine.WindowStats { return s.stats }

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("ok", stubChecker{err: nil})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "healthy", resp.Checks["ok"])
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("db", stubChecker{err: errors.New("down")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok, "expected checks in error details")
	assert.Equal(t, "unhealthy", checks["db"])
}

func TestDetermineOverallStatusTreatsTimeoutAsDegraded(t *testing.T) {
	manager := NewHealthManager("dev")

	assert.Equal(t, "degraded", manager.determineOverallStatus(map[string]string{"db": "timeout"}))
	assert.Equal(t, "healthy", manager.determineOverallStatus(nil))
}

func TestGateCheckerStates(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, GateChecker{Gate: stubGate{engine.WindowStats{Limit: 10, Count: 10, Waiting: 3}}}.CheckHealth(ctx))

	err := GateChecker{Gate: stubGate{engine.WindowStats{Closed: true}}}.CheckHealth(ctx)
	require.ErrorIs(t, err, engine.ErrWindowClosed)

	err = GateChecker{Gate: stubGate{engine.WindowStats{Waiting: 20}}, WaitingThreshold: 5}.CheckHealth(ctx)
	var degraded *DegradedError
	require.ErrorAs(t, err, &degraded)

	require.Error(t, GateChecker{}.CheckHealth(ctx))
}

func TestReadinessReportsDegradedGateAsOK(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("gate", GateChecker{Gate: stubGate{engine.WindowStats{Waiting: 50}}, WaitingThreshold: 1})

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestGlobalHandlersWithoutManager(t *testing.T) {
	previous := globalHealthManager
	globalHealthManager = nil
	t.Cleanup(func() { globalHealthManager = previous })

	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
