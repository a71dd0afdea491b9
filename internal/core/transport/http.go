// Package transport sends admitted payloads to the registration service.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docgate/docgate/internal/core/engine"
)

const (
	// DefaultEndpoint is the document creation endpoint of the registration service.
	DefaultEndpoint = "https://ismp.crpt.ru/api/v3/lk/document/create"

	// DefaultSignatureHeader carries the caller-supplied signature.
	DefaultSignatureHeader = "Signature"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// StatusError reports a non-2xx response from the registration service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// HTTPTransport posts each payload once to a fixed endpoint.
type HTTPTransport struct {
	Client          *http.Client
	Endpoint        string
	SignatureHeader string
	UserAgent       string
	Clock           func() time.Time
}

var _ engine.Transport = (*HTTPTransport)(nil)

// Send performs a single POST. The response body is returned as text even
// when the status is not 2xx.
func (t *HTTPTransport) Send(ctx context.Context, payload engine.Payload) (*engine.Response, error) {
	if t == nil {
		return nil, errors.New("http transport is not configured")
	}
	endpoint, err := t.endpoint()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload.Body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	if payload.Signature != "" {
		req.Header.Set(t.signatureHeader(), payload.Signature)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	start := t.now()
	entry := TraceEntry{
		Timestamp:   start,
		Endpoint:    endpoint,
		Method:      http.MethodPost,
		DocID:       payload.DocID,
		RequestBody: rawJSON(payload.Body),
	}

	resp, err := client.Do(req)
	if err != nil {
		entry.Error = err.Error()
		entry.DurationMs = t.now().Sub(start).Milliseconds()
		Trace(entry)
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	out := &engine.Response{StatusCode: resp.StatusCode, Body: string(data)}

	entry.StatusCode = resp.StatusCode
	entry.Response = rawJSON(data)
	entry.DurationMs = t.now().Sub(start).Milliseconds()
	if err != nil {
		entry.Error = err.Error()
		Trace(entry)
		return out, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: out.Body}
		entry.Error = statusErr.Error()
		Trace(entry)
		return out, statusErr
	}

	Trace(entry)
	return out, nil
}

func (t *HTTPTransport) endpoint() (string, error) {
	value := strings.TrimSpace(t.Endpoint)
	if value == "" {
		value = DefaultEndpoint
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid transport endpoint %q", value)
	}
	return parsed.String(), nil
}

func (t *HTTPTransport) signatureHeader() string {
	if h := strings.TrimSpace(t.SignatureHeader); h != "" {
		return h
	}
	return DefaultSignatureHeader
}

func (t *HTTPTransport) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}
