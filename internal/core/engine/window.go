package engine

import (
	"context"
	"sync"
	"time"
)

// Window tracks admissions granted in the current period and resets the
// count on a fixed cadence driven by its own ticker.
type Window struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	count   int
	waiting int
	resets  uint64
	closed  bool
	// wake is closed on every reset and replaced with a fresh channel.
	wake chan struct{}

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// WindowStats is a point-in-time snapshot of a window.
type WindowStats struct {
	Limit   int           `json:"limit"`
	Count   int           `json:"count"`
	Waiting int           `json:"waiting"`
	Resets  uint64        `json:"resets"`
	Period  time.Duration `json:"period"`
	Closed  bool          `json:"closed"`
}

// tickerFunc starts a recurring tick source and returns its channel and a stop func.
type tickerFunc func(period time.Duration) (<-chan time.Time, func())

func realTicker(period time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(period)
	return t.C, t.Stop
}

// NewWindow creates a window admitting at most limit units per period and
// starts its reset ticker.
func NewWindow(limit int, period time.Duration) (*Window, error) {
	return newWindow(limit, period, realTicker)
}

func newWindow(limit int, period time.Duration, ticker tickerFunc) (*Window, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if ticker == nil {
		ticker = realTicker
	}

	w := &Window{
		limit:  limit,
		period: period,
		wake:   make(chan struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	ticks, stopTicker := ticker(period)
	go w.run(ticks, stopTicker)

	return w, nil
}

func (w *Window) run(ticks <-chan time.Time, stopTicker func()) {
	defer close(w.done)
	defer stopTicker()

	for {
		select {
		case <-w.stop:
			return
		case <-ticks:
			w.resetTick()
		}
	}
}

// TryConsume claims one unit of capacity if any is left in the current period.
func (w *Window) TryConsume() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.count >= w.limit {
		return false
	}
	w.count++
	return true
}

// WaitForCapacity blocks until the window has capacity again. It returns as
// soon as a unit may be available; callers retry TryConsume since another
// waiter can win the unit first.
//
// The capacity check and the capture of the wake channel happen under the
// same lock the reset takes, so a reset landing between a failed TryConsume
// and this call is never missed.
func (w *Window) WaitForCapacity(ctx context.Context) error {
	w.mu.Lock()
	for {
		if w.closed {
			w.mu.Unlock()
			return ErrWindowClosed
		}
		if w.count < w.limit {
			w.mu.Unlock()
			return nil
		}

		wake := w.wake
		w.waiting++
		w.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			w.mu.Lock()
			w.waiting--
			w.mu.Unlock()
			return ctx.Err()
		}

		w.mu.Lock()
		w.waiting--
	}
}

// resetTick zeroes the count and wakes every waiter.
func (w *Window) resetTick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.count = 0
	w.resets++
	close(w.wake)
	w.wake = make(chan struct{})
}

// Close stops the reset ticker and releases all waiters with ErrWindowClosed.
func (w *Window) Close() {
	w.closeOnce.Do(func() {
		close(w.stop)

		w.mu.Lock()
		w.closed = true
		close(w.wake)
		w.mu.Unlock()

		<-w.done
	})
}

// Limit returns the configured admissions per period.
func (w *Window) Limit() int {
	return w.limit
}

// Period returns the reset cadence.
func (w *Window) Period() time.Duration {
	return w.period
}

// Stats returns a snapshot of the window state.
func (w *Window) Stats() WindowStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return WindowStats{
		Limit:   w.limit,
		Count:   w.count,
		Waiting: w.waiting,
		Resets:  w.resets,
		Period:  w.period,
		Closed:  w.closed,
	}
}
