package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLimit is returned when a gate or window is built with a non-positive limit.
	ErrInvalidLimit = errors.New("quota limit must be positive")

	// ErrInvalidPeriod is returned when the reset period is not positive.
	ErrInvalidPeriod = errors.New("quota period must be positive")

	// ErrNoTransport is returned when a gate is built without a transport.
	ErrNoTransport = errors.New("gate transport is required")

	// ErrWaitTimeout is returned when the configured max wait elapses before admission.
	ErrWaitTimeout = errors.New("timed out waiting for quota")

	// ErrWindowClosed is returned to callers still waiting when the gate shuts down.
	ErrWindowClosed = errors.New("quota window closed")
)

// TransportError reports a failed send for an admitted payload. The quota
// unit it consumed is not refunded.
type TransportError struct {
	DocID      string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := "transport failed"
	if e.DocID != "" {
		prefix = fmt.Sprintf("transport failed for document %s", e.DocID)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %v", prefix, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
