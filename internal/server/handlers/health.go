package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/docgate/docgate/internal/metrics"
)

// Check results.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusTimeout   = "timeout"
)

// HealthResponse represents the aggregate health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker defines interface for health checkable components
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// DegradedError marks a check that still works but is under pressure.
type DegradedError struct {
	Reason string
}

func (e *DegradedError) Error() string { return "degraded: " + e.Reason }

// HealthManager manages health checks and probe states
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = statusTimeout
			continue
		}
		hm.mu.RLock()
		checker := hm.checkers[name]
		hm.mu.RUnlock()

		start := time.Now()
		err := checker.CheckHealth(ctx)
		var degraded *DegradedError
		switch {
		case err == nil:
			checks[name] = statusHealthy
		case stderrors.As(err, &degraded):
			checks[name] = statusDegraded
		default:
			checks[name] = statusUnhealthy
		}
		metrics.RecordHealthCheck(name, checks[name] != statusUnhealthy, time.Since(start))
	}
	return checks
}

func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		if status == statusUnhealthy {
			return statusUnhealthy
		}
		if status == statusDegraded || status == statusTimeout {
			degraded = true
		}
	}
	if degraded {
		return statusDegraded
	}
	return statusHealthy
}

func (hm *HealthManager) evaluate(r *http.Request, timeout time.Duration) (string, map[string]string) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	checks := hm.runHealthChecks(ctx)
	return hm.determineOverallStatus(checks), checks
}

// HealthHandler handles aggregate health check requests
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, checks := hm.evaluate(r, 5*time.Second)
	if status == statusUnhealthy {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "aggregate health check failed")
		respondWithError(w, r, enrichHealthEnvelope(envelope, "", status, checks))
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func (hm *HealthManager) probe(probe string, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, checks := hm.evaluate(r, timeout)
		if status == statusUnhealthy {
			envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", probe+" probe failed")
			respondWithError(w, r, enrichHealthEnvelope(envelope, probe, status, checks))
			return
		}
		writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
	}
}

// LivenessHandler reports whether the process is running.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe("liveness", 2*time.Second)(w, r)
}

// ReadinessHandler reports whether the relay can accept documents.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe("readiness", 5*time.Second)(w, r)
}

// StartupHandler reports whether initialization has finished.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe("startup", 3*time.Second)(w, r)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	details := map[string]interface{}{"status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probe != "" {
		details["probe"] = probe
	}
	envelope = envelope.WithDetails(details)

	contextData := map[string]interface{}{"status": status}
	if probe != "" {
		contextData["probe"] = probe
	}
	var unhealthy []string
	for name, result := range checks {
		if result != statusHealthy {
			unhealthy = append(unhealthy, name)
		}
	}
	if len(unhealthy) > 0 {
		sort.Strings(unhealthy)
		contextData["unhealthy_checks"] = unhealthy
	}

	envelope, _ = envelope.WithContext(contextData)
	return envelope
}

var globalHealthManager *HealthManager

// InitHealthManager initializes the global health manager
func InitHealthManager(version string) *HealthManager {
	globalHealthManager = NewHealthManager(version)
	return globalHealthManager
}

// GetHealthManager returns the global health manager
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func withGlobal(probe string, fn func(*HealthManager) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if globalHealthManager == nil {
			envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health manager not initialized")
			respondWithError(w, r, enrichHealthEnvelope(envelope, probe, "unknown", nil))
			return
		}
		fn(globalHealthManager)(w, r)
	}
}

// Handlers backed by the global manager.
var (
	HealthHandler    = withGlobal("aggregate", func(hm *HealthManager) http.HandlerFunc { return hm.HealthHandler })
	LivenessHandler  = withGlobal("liveness", func(hm *HealthManager) http.HandlerFunc { return hm.LivenessHandler })
	ReadinessHandler = withGlobal("readiness", func(hm *HealthManager) http.HandlerFunc { return hm.ReadinessHandler })
	StartupHandler   = withGlobal("startup", func(hm *HealthManager) http.HandlerFunc { return hm.StartupHandler })
)
