package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"

	"github.com/docgate/docgate/internal/metrics"
)

// InboundLimiter throttles relay callers per client IP with a token bucket,
// so a single client cannot fill the admission gate's wait queue.
type InboundLimiter struct {
	mu      sync.Mutex
	clients map[string]*inboundClient
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type inboundClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewInboundLimiter allows rps requests per second per client with the given burst.
func NewInboundLimiter(rps float64, burst int) *InboundLimiter {
	if burst < 1 {
		burst = 1
	}
	return &InboundLimiter{
		clients: make(map[string]*inboundClient),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
}

func (l *InboundLimiter) limiter(key string) *rate.Limiter {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.clients[key]; ok {
		c.lastSeen = now
		return c.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.clients[key] = &inboundClient{limiter: lim, lastSeen: now}
	return lim
}

// Cleanup drops clients idle for longer than the TTL.
func (l *InboundLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// Clients returns the number of tracked clients.
func (l *InboundLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (l *InboundLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

// Middleware rejects callers over their budget with 429 and Retry-After.
func (l *InboundLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := l.limiter(clientKey(r)).ReserveN(l.now(), 1)
		if !reservation.OK() {
			l.reject(w, r, 0)
			return
		}
		if delay := reservation.DelayFrom(l.now()); delay > 0 {
			reservation.CancelAt(l.now())
			// A zero rate never refills, so there is no retry time to advertise.
			if delay == rate.InfDuration {
				delay = 0
			}
			l.reject(w, r, delay)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *InboundLimiter) reject(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	if retryAfter > 0 {
		seconds := int(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	envelope := errors.NewErrorEnvelope("RATE_LIMITED", "too many requests from this client").
		WithCorrelationID(GetRequestID(r.Context()))
	metrics.RecordError(envelope.Code, http.StatusTooManyRequests)
	writeErrorResponse(w, envelope, http.StatusTooManyRequests)
}

// clientKey uses RemoteAddr, which chi's RealIP has already rewritten.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
