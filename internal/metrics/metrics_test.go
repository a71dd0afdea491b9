package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgate/docgate/internal/core/engine"
	"github.com/docgate/docgate/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func TestGateObserverEmitsAdmissionAndOutcome(t *testing.T) {
	collector := setupTelemetry(t)
	obs := GateObserver{}

	obs.Admitted(25 * time.Millisecond)
	obs.Completed(&engine.Result{StatusCode: 200, Duration: time.Millisecond}, nil)

	assert.Equal(t, 1, collector.CountMetricsByName(GateAdmissionsTotal))
	assert.Greater(t, collector.CountMetricsByName(GateWaitDuration), 0)
	assert.Equal(t, 1, collector.CountMetricsByName(GateSubmissionsTotal))
	assert.Equal(t, 0, collector.CountMetricsByName(GateTransportErrorsTotal))
}

func TestGateObserverCountsTransportErrors(t *testing.T) {
	collector := setupTelemetry(t)

	GateObserver{}.Completed(&engine.Result{}, errors.New("refused"))
	GateObserver{}.Completed(nil, errors.New("refused"))

	assert.Equal(t, 2, collector.CountMetricsByName(GateTransportErrorsTotal))
	assert.Equal(t, 2, collector.CountMetricsByName(GateSubmissionsTotal))
}

func TestRecordWindowAndErrors(t *testing.T) {
	collector := setupTelemetry(t)

	RecordWindow(engine.WindowStats{Limit: 5, Count: 5, Waiting: 3})
	RecordError("EXTERNAL_SERVICE_ERROR", 502)
	RecordPanic()

	assert.Greater(t, collector.CountMetricsByName(GateWaiting), 0)
	assert.Equal(t, 1, collector.CountMetricsByName(ErrorsTotalName))
	assert.Equal(t, 1, collector.CountMetricsByName(PanicsTotalName))
}

func TestMetricsNoopWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	GateObserver{}.Admitted(time.Second)
	GateObserver{}.Completed(nil, nil)
	RecordWindow(engine.WindowStats{})
	RecordHealthCheck("gate", true, time.Millisecond)
}
