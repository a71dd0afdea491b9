//go:build cucumber

package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
)

// TestAdmissionFeatures executes the admission gate scenarios via godog.
func TestAdmissionFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "admission-gate",
		ScenarioInitializer: InitializeAdmissionScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "admission.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeAdmissionScenario wires step definitions for the gate feature.
func InitializeAdmissionScenario(ctx *godog.ScenarioContext) {
	state := &admissionState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		state.close()
		return ctx, nil
	})

	ctx.Step(`^a gate admitting (\d+) submissions? per period$`, state.givenGate)
	ctx.Step(`^the transport fails$`, state.transportFails)
	ctx.Step(`^the transport recovers$`, state.transportRecovers)
	ctx.Step(`^(\d+) submissions? arrives?(?: at once)?$`, state.submissionsArrive)
	ctx.Step(`^(\d+) submissions? (?:has|have) been sent$`, state.sentCount)
	ctx.Step(`^(\d+) submissions? (?:is|are) waiting$`, state.waitingCount)
	ctx.Step(`^(\d+) submissions? failed$`, state.failedCount)
	ctx.Step(`^the period resets$`, func() error { return state.resets(1) })
	ctx.Step(`^the period resets (\d+) times$`, state.resets)
	ctx.Step(`^every submission succeeded$`, state.allSucceeded)
	ctx.Step(`^no period sent more than (\d+) submissions?$`, state.maxPerPeriod)
}

type admissionState struct {
	gate      *Gate
	ticker    *manualTicker
	transport *recordingTransport

	mu     sync.Mutex
	wg     sync.WaitGroup
	errs   []error
	failed int
}

func (s *admissionState) reset() {
	s.close()
	s.gate = nil
	s.ticker = newManualTicker()
	s.transport = &recordingTransport{}
	s.errs = nil
	s.failed = 0
}

func (s *admissionState) close() {
	if s.gate != nil {
		s.gate.Close()
	}
	s.wg.Wait()
}

func (s *admissionState) givenGate(limit int) error {
	gate, err := NewGate(time.Second, limit, s.transport, withTicker(s.ticker.start))
	if err != nil {
		return err
	}
	s.gate = gate
	s.transport.window = gate.window
	return nil
}

func (s *admissionState) transportFails() error {
	s.transport.mu.Lock()
	s.transport.fail = errors.New("upstream unavailable")
	s.transport.mu.Unlock()
	return nil
}

func (s *admissionState) transportRecovers() error {
	s.transport.mu.Lock()
	s.transport.fail = nil
	s.transport.mu.Unlock()
	return nil
}

func (s *admissionState) submissionsArrive(n int) error {
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, err := s.gate.Submit(context.Background(), Payload{Body: []byte(`{}`)})
			s.mu.Lock()
			defer s.mu.Unlock()
			s.errs = append(s.errs, err)
			var transportErr *TransportError
			if errors.As(err, &transportErr) {
				s.failed++
			}
		}()
	}
	return nil
}

func (s *admissionState) sentCount(n int) error {
	return eventually(func() bool { return s.transport.count() == n },
		func() string { return fmt.Sprintf("expected %d sends, got %d", n, s.transport.count()) })
}

func (s *admissionState) waitingCount(n int) error {
	return eventually(func() bool { return s.gate.Stats().Waiting == n },
		func() string { return fmt.Sprintf("expected %d waiting, got %d", n, s.gate.Stats().Waiting) })
}

func (s *admissionState) failedCount(n int) error {
	return eventually(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.failed == n
	}, func() string { return fmt.Sprintf("expected %d failures", n) })
}

func (s *admissionState) resets(n int) error {
	for i := 0; i < n; i++ {
		before := s.gate.Stats().Resets
		select {
		case s.ticker.ch <- time.Now():
		case <-time.After(time.Second):
			return errors.New("window did not accept tick")
		}
		if err := eventually(func() bool { return s.gate.Stats().Resets > before },
			func() string { return "reset was not applied" }); err != nil {
			return err
		}
		// Let the woken callers finish sending before the next tick.
		if err := eventually(func() bool {
			stats := s.gate.Stats()
			settled := stats.Count == stats.Limit || stats.Waiting == 0
			return settled && s.transport.sendsIn(stats.Resets) == stats.Count
		}, func() string { return "admissions did not settle" }); err != nil {
			return err
		}
	}
	return nil
}

func (s *admissionState) allSucceeded() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range s.errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *admissionState) maxPerPeriod(n int) error {
	if got := s.transport.maxPerPeriod(); got > n {
		return fmt.Errorf("a period sent %d submissions, limit %d", got, n)
	}
	return nil
}

func eventually(cond func() bool, msg func() string) error {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return errors.New(msg())
}
