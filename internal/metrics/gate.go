package metrics

import (
	"strconv"
	"time"

	"github.com/docgate/docgate/internal/core/engine"
	"github.com/docgate/docgate/internal/observability"
)

// Gate metric names.
const (
	GateAdmissionsTotal      = "gate_admissions_total"
	GateWaitDuration         = "gate_wait_duration_ms"
	GateSubmissionsTotal     = "gate_submissions_total"
	GateSubmitDuration       = "gate_submit_duration_ms"
	GateTransportErrorsTotal = "gate_transport_errors_total"
	GateWaiting              = "gate_waiting"
	GateWindowCount          = "gate_window_count"

	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"
)

// GateObserver emits gate events to the telemetry system. A nil system
// makes every call a no-op.
type GateObserver struct{}

var _ engine.Observer = GateObserver{}

// Admitted records one admission and how long it waited.
func (GateObserver) Admitted(waited time.Duration) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}
	_ = sys.Counter(GateAdmissionsTotal, 1, nil)
	_ = sys.Histogram(GateWaitDuration, waited, nil)
}

// Completed records the transport outcome labelled by status code.
func (GateObserver) Completed(result *engine.Result, err error) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		_ = sys.Counter(GateTransportErrorsTotal, 1, nil)
	}
	status := "none"
	if result != nil && result.StatusCode > 0 {
		status = strconv.Itoa(result.StatusCode)
	}
	_ = sys.Counter(GateSubmissionsTotal, 1, map[string]string{
		"outcome": outcome,
		"status":  status,
	})
	if result != nil {
		_ = sys.Histogram(GateSubmitDuration, result.Duration, nil)
	}
}

// RecordWindow publishes the window snapshot as gauges.
func RecordWindow(stats engine.WindowStats) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}
	_ = sys.Gauge(GateWaiting, float64(stats.Waiting), nil)
	_ = sys.Gauge(GateWindowCount, float64(stats.Count), nil)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	_ = sys.Counter(HealthCheckTotal, 1, map[string]string{"check": checkName, "status": status})
	_ = sys.Histogram(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
