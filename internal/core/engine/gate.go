package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Payload is an already-serialized submission forwarded verbatim to the transport.
type Payload struct {
	Body      []byte
	Signature string
	DocID     string
}

// Response is what a transport reports back for a single send.
type Response struct {
	StatusCode int
	Body       string
}

// Transport performs the single outbound call for an admitted payload.
type Transport interface {
	Send(ctx context.Context, payload Payload) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, payload Payload) (*Response, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, payload Payload) (*Response, error) {
	return f(ctx, payload)
}

// Result describes an admitted submission.
type Result struct {
	StatusCode int           `json:"status_code"`
	Body       string        `json:"body"`
	Waited     time.Duration `json:"waited"`
	Duration   time.Duration `json:"duration"`
	AdmittedAt time.Time     `json:"admitted_at"`
}

// Logger is the subset of the zap-style API the gate logs through.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// Observer receives admission and completion events.
type Observer interface {
	Admitted(waited time.Duration)
	Completed(result *Result, err error)
}

type noopObserver struct{}

func (noopObserver) Admitted(time.Duration)   {}
func (noopObserver) Completed(*Result, error) {}

// Gate blocks submitters until quota is available in the current window and
// then hands the payload to the transport on the caller's goroutine.
type Gate struct {
	window    *Window
	transport Transport
	maxWait   time.Duration
	logger    Logger
	observer  Observer
	clock     func() time.Time
}

// Option configures a Gate.
type Option func(*gateConfig)

type gateConfig struct {
	maxWait  time.Duration
	logger   Logger
	observer Observer
	clock    func() time.Time
	ticker   tickerFunc
}

// WithMaxWait bounds how long Submit waits for quota. Zero waits indefinitely.
func WithMaxWait(d time.Duration) Option {
	return func(c *gateConfig) { c.maxWait = d }
}

// WithLogger sets the gate logger.
func WithLogger(logger Logger) Option {
	return func(c *gateConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an observer for admission events.
func WithObserver(observer Observer) Option {
	return func(c *gateConfig) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// WithClock overrides the time source used for wait and duration measurements.
func WithClock(clock func() time.Time) Option {
	return func(c *gateConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func withTicker(ticker tickerFunc) Option {
	return func(c *gateConfig) { c.ticker = ticker }
}

// NewGate builds a gate admitting at most limit submissions per period.
func NewGate(period time.Duration, limit int, transport Transport, opts ...Option) (*Gate, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}

	cfg := gateConfig{
		logger:   zap.NewNop(),
		observer: noopObserver{},
		clock:    time.Now,
		ticker:   realTicker,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxWait < 0 {
		cfg.maxWait = 0
	}

	window, err := newWindow(limit, period, cfg.ticker)
	if err != nil {
		return nil, err
	}

	return &Gate{
		window:    window,
		transport: transport,
		maxWait:   cfg.maxWait,
		logger:    cfg.logger,
		observer:  cfg.observer,
		clock:     cfg.clock,
	}, nil
}

// Submit waits for a unit of quota and sends the payload once. A transport
// failure is returned as a *TransportError and still counts against the window.
func (g *Gate) Submit(ctx context.Context, payload Payload) (*Result, error) {
	start := g.clock()
	if err := g.admit(ctx); err != nil {
		g.logger.Warn("Submission not admitted",
			zap.String("doc_id", payload.DocID),
			zap.Duration("waited", g.clock().Sub(start)),
			zap.Error(err))
		return nil, err
	}

	admittedAt := g.clock()
	waited := admittedAt.Sub(start)
	g.observer.Admitted(waited)
	g.logger.Debug("Submission admitted",
		zap.String("doc_id", payload.DocID),
		zap.Duration("waited", waited))

	resp, sendErr := g.transport.Send(ctx, payload)

	result := &Result{
		Waited:     waited,
		AdmittedAt: admittedAt,
		Duration:   g.clock().Sub(admittedAt),
	}
	if resp != nil {
		result.StatusCode = resp.StatusCode
		result.Body = resp.Body
	}

	if sendErr != nil {
		err := &TransportError{DocID: payload.DocID, StatusCode: result.StatusCode, Err: sendErr}
		g.logger.Error("Submission failed",
			zap.String("doc_id", payload.DocID),
			zap.Int("status", result.StatusCode),
			zap.Duration("duration", result.Duration),
			zap.Error(sendErr))
		g.observer.Completed(result, err)
		return result, err
	}

	g.logger.Info("Submission accepted",
		zap.String("doc_id", payload.DocID),
		zap.Int("status", result.StatusCode),
		zap.Duration("waited", waited),
		zap.Duration("duration", result.Duration),
		zap.String("body", result.Body))
	g.observer.Completed(result, nil)
	return result, nil
}

func (g *Gate) admit(ctx context.Context) error {
	waitCtx := ctx
	if g.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.maxWait)
		defer cancel()
	}

	for !g.window.TryConsume() {
		if err := g.window.WaitForCapacity(waitCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return ErrWaitTimeout
			}
			return err
		}
	}
	return nil
}

// Stats returns the current window snapshot.
func (g *Gate) Stats() WindowStats {
	return g.window.Stats()
}

// Limit returns admissions allowed per period.
func (g *Gate) Limit() int {
	return g.window.Limit()
}

// Period returns the window reset cadence.
func (g *Gate) Period() time.Duration {
	return g.window.Period()
}

// Close stops the reset ticker. Callers still waiting receive ErrWindowClosed.
func (g *Gate) Close() {
	g.window.Close()
}
