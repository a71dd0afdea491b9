// Package errors builds gofulmen error envelopes for the CLI and relay and
// maps them onto HTTP responses.
package errors

import (
	"context"
	stderrors "errors"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"

	"github.com/docgate/docgate/internal/core/engine"
	"github.com/docgate/docgate/internal/core/transport"
	"github.com/docgate/docgate/internal/server/middleware"
)

// Error codes used across the CLI and relay server.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeUpstreamRejected   = "UPSTREAM_REJECTED"
	CodeTimeout            = "TIMEOUT"
	CodeQuotaWaitTimeout   = "QUOTA_WAIT_TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid      = "CONFIG_INVALID"
)

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewPayloadTooLargeError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodePayloadTooLarge, message)
}

func NewRateLimitedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeRateLimited, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// Wrap builds an envelope correlated with the request in ctx and records
// err's text under wrapped_error.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	id := correlationID(ctx)
	envelope := errors.NewErrorEnvelope(code, message).
		WithCorrelationID(id).
		WithTraceID(id)
	if err == nil {
		return envelope
	}
	return withFields(envelope, map[string]interface{}{"wrapped_error": err.Error()})
}

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInvalidInput, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInternal, err, message)
}

func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeExternalService, err, message)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeConfigInvalid, err, message)
}

// FromSubmitError maps a gate or transport failure to an envelope. Upstream
// status codes and document IDs are carried in the envelope context.
func FromSubmitError(ctx context.Context, err error) *errors.ErrorEnvelope {
	if err == nil {
		return nil
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	var (
		statusErr    *transport.StatusError
		transportErr *engine.TransportError
	)
	if stderrors.As(err, &transportErr) {
		fields := map[string]interface{}{"doc_id": transportErr.DocID}
		if stderrors.As(err, &statusErr) {
			fields["upstream_status"] = statusErr.StatusCode
			return withFields(Wrap(ctx, CodeUpstreamRejected, err, "registration service rejected the document"), fields)
		}
		return withFields(Wrap(ctx, CodeExternalService, err, "registration service request failed"), fields)
	}

	switch {
	case stderrors.As(err, &statusErr):
		envelope := Wrap(ctx, CodeUpstreamRejected, err, "registration service rejected the document")
		return withFields(envelope, map[string]interface{}{"upstream_status": statusErr.StatusCode})
	case stderrors.Is(err, engine.ErrWaitTimeout):
		return Wrap(ctx, CodeQuotaWaitTimeout, err, "timed out waiting for submission quota")
	case stderrors.Is(err, engine.ErrWindowClosed):
		return Wrap(ctx, CodeServiceUnavailable, err, "submission gate is shutting down")
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(ctx, CodeTimeout, err, "submission cancelled before admission")
	default:
		return Wrap(ctx, CodeInternal, err, "submission failed")
	}
}

// withFields merges fields into the envelope context, dropping empty strings.
// WithContext replaces the context map, so existing entries are carried over.
func withFields(envelope *errors.ErrorEnvelope, fields map[string]interface{}) *errors.ErrorEnvelope {
	merged := make(map[string]interface{}, len(envelope.Context)+len(fields))
	for key, value := range envelope.Context {
		merged[key] = value
	}
	for key, value := range fields {
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		merged[key] = value
	}
	if len(merged) == 0 {
		return envelope
	}
	updated, err := envelope.WithContext(merged)
	if err != nil {
		return envelope
	}
	return updated
}

// correlationID prefers the request ID so logs and envelopes line up.
func correlationID(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// EnsureEnvelope normalizes any error into an envelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env, _ := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error").WithSeverity(errors.SeverityCritical)
		return env
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}
	env := withFields(errors.NewErrorEnvelope(CodeInternal, "unexpected error"),
		map[string]interface{}{"wrapped_error": err.Error()})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// EnsureCorrelationID fills in a missing correlation ID from ctx.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}
	var id string
	if ctx != nil {
		id = middleware.GetRequestID(ctx)
	}
	if id == "" {
		id = "fallback-" + errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(id)
}
