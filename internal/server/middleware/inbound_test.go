package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", nil)
	req.RemoteAddr = addr
	return req
}

func TestInboundLimiterAllowsBurstThenRejects(t *testing.T) {
	limiter := NewInboundLimiter(1, 2)
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.1:5001"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)

	// Other clients have their own bucket.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.2:5000"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInboundLimiterZeroRateRejectsAfterBurst(t *testing.T) {
	limiter := NewInboundLimiter(0, 1)
	handler := limiter.Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.3:1"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.3:1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestInboundLimiterCleanupDropsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewInboundLimiter(10, 10)
	limiter.now = func() time.Time { return now }

	limiter.limiter("a")
	now = now.Add(10 * time.Minute)
	limiter.limiter("b")
	now = now.Add(6 * time.Minute)

	limiter.Cleanup()
	assert.Equal(t, 1, limiter.Clients())
}

func TestInboundLimiterJanitorStopsWithContext(t *testing.T) {
	limiter := NewInboundLimiter(10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	limiter.StartJanitor(ctx, time.Millisecond)
	limiter.StartJanitor(ctx, 0)
	cancel()
}

func TestClientKeyWithoutPort(t *testing.T) {
	req := requestFrom("192.0.2.7")
	assert.Equal(t, "192.0.2.7", clientKey(req))
	assert.Equal(t, "192.0.2.8", clientKey(requestFrom("192.0.2.8:80")))
}
