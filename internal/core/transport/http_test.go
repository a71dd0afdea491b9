package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgate/docgate/internal/core/engine"
)

func TestHTTPTransportPostsPayload(t *testing.T) {
	var (
		gotMethod, gotType, gotSig, gotAgent string
		gotBody                              []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotSig = r.Header.Get("Signature")
		gotAgent = r.Header.Get("User-Agent")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":"accepted"}`))
	}))
	defer srv.Close()

	tr := &HTTPTransport{Client: srv.Client(), Endpoint: srv.URL, UserAgent: "docgate/test"}
	resp, err := tr.Send(context.Background(), engine.Payload{Body: []byte(`{"doc_id":"1"}`), Signature: "c2ln"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "c2ln", gotSig)
	assert.Equal(t, "docgate/test", gotAgent)
	assert.JSONEq(t, `{"doc_id":"1"}`, string(gotBody))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"value":"accepted"}`, resp.Body)
}

func TestHTTPTransportCustomSignatureHeader(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tr := &HTTPTransport{Client: srv.Client(), Endpoint: srv.URL, SignatureHeader: "X-Signature"}
	_, err := tr.Send(context.Background(), engine.Payload{Body: []byte(`{}`), Signature: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", gotSig)
}

func TestHTTPTransportNon2xxReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad signature"}`))
	}))
	defer srv.Close()

	tr := &HTTPTransport{Client: srv.Client(), Endpoint: srv.URL}
	resp, err := tr.Send(context.Background(), engine.Payload{Body: []byte(`{}`)})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "bad signature")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPTransportConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	tr := &HTTPTransport{Endpoint: endpoint}
	resp, err := tr.Send(context.Background(), engine.Payload{Body: []byte(`{}`)})
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestHTTPTransportHonorsCancelledContext(t *testing.T) {
	var called atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &HTTPTransport{Endpoint: srv.URL}
	resp, err := tr.Send(ctx, engine.Payload{Body: []byte(`{}`)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
	assert.False(t, called.Load())
}

func TestHTTPTransportRejectsInvalidEndpoint(t *testing.T) {
	tr := &HTTPTransport{Endpoint: "not a url"}
	_, err := tr.Send(context.Background(), engine.Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transport endpoint")
}

func TestTracingWritesNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "trace.ndjson")
	cleanup, err := EnableTracing(path)
	require.NoError(t, err)
	require.True(t, TracingEnabled())

	tr := &HTTPTransport{Client: srv.Client(), Endpoint: srv.URL}
	_, err = tr.Send(context.Background(), engine.Payload{Body: []byte("{\n  \"doc_id\": \"t1\"\n}"), DocID: "t1"})
	require.NoError(t, err)
	cleanup()
	require.False(t, TracingEnabled())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() // nolint:errcheck

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var entry TraceEntry
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "t1", entry.DocID)
	assert.Equal(t, http.StatusOK, entry.StatusCode)
	assert.JSONEq(t, `"plain text"`, string(entry.Response))
	assert.JSONEq(t, `{"doc_id":"t1"}`, string(entry.RequestBody))
	assert.False(t, scanner.Scan())
}
