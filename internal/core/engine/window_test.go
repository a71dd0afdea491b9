package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// manualTicker hands the test control over when a window resets.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) start(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() { m.stopped.Store(true) }
}

// tick delivers one tick and waits until the window has applied it.
func (m *manualTicker) tick(t *testing.T, w *Window) {
	t.Helper()
	before := w.Stats().Resets
	select {
	case m.ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatalf("window did not accept tick")
	}
	require.Eventually(t, func() bool { return w.Stats().Resets > before }, time.Second, time.Millisecond)
}

func newTestWindow(t *testing.T, limit int) (*Window, *manualTicker) {
	t.Helper()
	ticker := newManualTicker()
	w, err := newWindow(limit, time.Second, ticker.start)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w, ticker
}

func TestNewWindowRejectsInvalidConfig(t *testing.T) {
	_, err := NewWindow(0, time.Second)
	require.ErrorIs(t, err, ErrInvalidLimit)

	_, err = NewWindow(-3, time.Second)
	require.ErrorIs(t, err, ErrInvalidLimit)

	_, err = NewWindow(1, 0)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestWindowTryConsumeUpToLimit(t *testing.T) {
	w, _ := newTestWindow(t, 3)

	require.True(t, w.TryConsume())
	require.True(t, w.TryConsume())
	require.True(t, w.TryConsume())
	require.False(t, w.TryConsume())
	require.Equal(t, 3, w.Stats().Count)
}

func TestWindowResetRestoresCapacity(t *testing.T) {
	w, _ := newTestWindow(t, 2)

	require.True(t, w.TryConsume())
	require.True(t, w.TryConsume())
	require.False(t, w.TryConsume())

	w.resetTick()

	require.Equal(t, 0, w.Stats().Count)
	require.True(t, w.TryConsume())
	require.True(t, w.TryConsume())
	require.False(t, w.TryConsume())
	require.Equal(t, uint64(1), w.Stats().Resets)
}

func TestWindowTryConsumeIsAtomic(t *testing.T) {
	const limit = 10
	const extra = 15
	w, _ := newTestWindow(t, limit)

	var (
		wg        sync.WaitGroup
		successes atomic.Int64
		failures  atomic.Int64
		start     = make(chan struct{})
	)
	for i := 0; i < limit+extra; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if w.TryConsume() {
				successes.Add(1)
			} else {
				failures.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(limit), successes.Load())
	require.Equal(t, int64(extra), failures.Load())
	require.Equal(t, limit, w.Stats().Count)
}

func TestWindowWaitReturnsImmediatelyWithCapacity(t *testing.T) {
	w, _ := newTestWindow(t, 1)

	require.NoError(t, w.WaitForCapacity(context.Background()))
}

func TestWindowWaitObservesResetBeforeWaitStarts(t *testing.T) {
	w, _ := newTestWindow(t, 1)

	require.True(t, w.TryConsume())
	require.False(t, w.TryConsume())

	// Reset lands between the failed check and the wait.
	w.resetTick()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, w.WaitForCapacity(ctx))
	require.True(t, w.TryConsume())
}

func TestWindowBroadcastWakesAllWaiters(t *testing.T) {
	const waiters = 5
	w, ticker := newTestWindow(t, 1)
	require.True(t, w.TryConsume())

	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- w.WaitForCapacity(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return w.Stats().Waiting == waiters }, time.Second, time.Millisecond)

	ticker.tick(t, w)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 0, w.Stats().Waiting)
}

func TestWindowWaitHonorsContext(t *testing.T) {
	w, _ := newTestWindow(t, 1)
	require.True(t, w.TryConsume())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := w.WaitForCapacity(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 0, w.Stats().Waiting)
}

func TestWindowCloseReleasesWaiters(t *testing.T) {
	ticker := newManualTicker()
	w, err := newWindow(1, time.Second, ticker.start)
	require.NoError(t, err)
	require.True(t, w.TryConsume())

	errCh := make(chan error, 1)
	go func() { errCh <- w.WaitForCapacity(context.Background()) }()
	require.Eventually(t, func() bool { return w.Stats().Waiting == 1 }, time.Second, time.Millisecond)

	w.Close()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrWindowClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released on close")
	}
	require.True(t, ticker.stopped.Load())
	require.False(t, w.TryConsume())
	require.True(t, w.Stats().Closed)

	// Idempotent.
	w.Close()
	w.resetTick()
	require.ErrorIs(t, w.WaitForCapacity(context.Background()), ErrWindowClosed)
}

func TestWindowRealTickerResets(t *testing.T) {
	w, err := NewWindow(1, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.True(t, w.TryConsume())
	require.False(t, w.TryConsume())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.WaitForCapacity(ctx))
	require.GreaterOrEqual(t, w.Stats().Resets, uint64(1))
}
