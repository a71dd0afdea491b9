package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggersInitialize(t *testing.T) {
	origCLI, origServer := CLILogger, ServerLogger
	t.Cleanup(func() { CLILogger, ServerLogger = origCLI, origServer })

	CLILogger, ServerLogger = nil, nil
	require.Nil(t, Current())

	InitCLILogger("docgate-test", true)
	require.NotNil(t, CLILogger)
	require.Same(t, CLILogger, Current())
	CLILogger.Debug("cli logger ready", zap.String("mode", "verbose"))

	InitServerLogger("docgate-test", "warn", "docgate_test")
	require.NotNil(t, ServerLogger)
	require.Same(t, ServerLogger, Current())
	ServerLogger.Warn("server logger ready", zap.Int("limit", 10))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "TRACE", parseLogLevel("trace"))
	assert.Equal(t, "DEBUG", parseLogLevel(" Debug "))
	assert.Equal(t, "WARN", parseLogLevel("warning"))
	assert.Equal(t, "ERROR", parseLogLevel("error"))
	assert.Equal(t, "INFO", parseLogLevel("verbose"))
}

func TestMetricsLifecycle(t *testing.T) {
	require.NoError(t, InitMetrics("docgate-test", 0, "docgate_test"))
	require.NotNil(t, TelemetrySystem)
	assert.Greater(t, GetMetricsPort(), 0)

	require.NoError(t, ShutdownMetrics())
	assert.Nil(t, TelemetrySystem)
	require.NoError(t, ShutdownMetrics())
}

func TestCrucibleVersionAvailable(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, crucible.GetVersionString())
}
