package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgate/docgate/internal/config"
	"github.com/docgate/docgate/internal/core"
	"github.com/docgate/docgate/internal/core/engine"
	"github.com/docgate/docgate/internal/core/submit"
	apperrors "github.com/docgate/docgate/internal/errors"
	"github.com/docgate/docgate/internal/server/handlers"
)

func newRelay(t *testing.T, limit int, inbound config.InboundConfig) (*Server, *[]engine.Payload) {
	t.Helper()
	var sent []engine.Payload
	transport := engine.TransportFunc(func(ctx context.Context, payload engine.Payload) (*engine.Response, error) {
		sent = append(sent, payload)
		return &engine.Response{StatusCode: 200, Body: `{"value":"ok"}`}, nil
	})
	gate, err := engine.NewGate(time.Minute, limit, transport, engine.WithMaxWait(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(gate.Close)

	health := handlers.NewHealthManager("test")
	health.RegisterChecker("gate", handlers.GateChecker{Gate: gate})

	srv := New(Options{
		Server:    config.ServerConfig{Host: "127.0.0.1", MaxBodyBytes: 1 << 16},
		Inbound:   inbound,
		Submitter: &submit.Submitter{Gate: gate},
		Health:    health,
	})
	return srv, &sent
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _ := newRelay(t, 1, config.InboundConfig{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRelaySubmitsThroughGate(t *testing.T) {
	srv, sent := newRelay(t, 1, config.InboundConfig{})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader(`{"doc_id":"doc-1"}`))
		req.Header.Set(handlers.SignatureHeader, "sig")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := post()
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp handlers.DocumentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, core.StatusAccepted, resp.Receipt.Status)
	require.Len(t, *sent, 1)
	assert.Equal(t, "sig", (*sent)[0].Signature)
	assert.Contains(t, string((*sent)[0].Body), `"doc_type": "LP_INTRODUCE_GOODS"`)

	// Quota exhausted for the minute; the gate gives up after max wait.
	rec = post()
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "QUOTA_WAIT_TIMEOUT", body.Error.Code)
	assert.Len(t, *sent, 1)
}

func TestRelayInboundLimit(t *testing.T) {
	srv, _ := newRelay(t, 10, config.InboundConfig{Enabled: true, Rate: 0.001, Burst: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader(`{"doc_id":"d"}`))
		req.Header.Set(handlers.SignatureHeader, "sig")
		req.RemoteAddr = "203.0.113.5:4000"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusTooManyRequests}, codes)
}

func TestRelayHealthIncludesGate(t *testing.T) {
	srv, _ := newRelay(t, 1, config.InboundConfig{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Checks["gate"])
}

func TestServeAndShutdown(t *testing.T) {
	srv, _ := newRelay(t, 1, config.InboundConfig{Enabled: true, Rate: 10, Burst: 10})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/health/live")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}
