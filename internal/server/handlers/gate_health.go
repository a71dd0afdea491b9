package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/docgate/docgate/internal/core/engine"
	"github.com/docgate/docgate/internal/metrics"
)

// GateStatser exposes the window snapshot of an admission gate.
type GateStatser interface {
	Stats() engine.WindowStats
}

// GateChecker reports the admission gate's health. A closed gate is
// unhealthy; a backlog above WaitingThreshold is degraded.
type GateChecker struct {
	Gate             GateStatser
	WaitingThreshold int
}

// CheckHealth implements HealthChecker and publishes the window gauges.
func (c GateChecker) CheckHealth(ctx context.Context) error {
	if c.Gate == nil {
		return errors.New("gate not configured")
	}
	stats := c.Gate.Stats()
	metrics.RecordWindow(stats)

	if stats.Closed {
		return engine.ErrWindowClosed
	}
	if c.WaitingThreshold > 0 && stats.Waiting > c.WaitingThreshold {
		return &DegradedError{Reason: fmt.Sprintf("%d submissions waiting for quota", stats.Waiting)}
	}
	return nil
}
