// Package resilience restarts failing source watchers with capped
// exponential backoff and marks them degraded once the retry ceiling is hit.
package resilience

import (
	"context"
	"log"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
)

// Source is a restartable watcher. Run blocks until ctx is cancelled
// (returning nil) or the underlying resource fails (returning an error).
// Run must release everything it acquired before returning.
type Source interface {
	Name() string
	Run(ctx context.Context, emit events.Emitter) error
}

// Policy bounds restarts.
type Policy struct {
	MaxRetries  int           // consecutive failures tolerated before degrading
	Initial     time.Duration // delay before the first retry
	Max         time.Duration // delay cap
	StableAfter time.Duration // a run this long resets the failure count
}

// Backoff returns the delay before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Max || d <= 0 {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Supervisor runs one source under a Policy.
type Supervisor struct {
	policy Policy
	emit   events.Emitter
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewSupervisor creates a supervisor that reports source health through emit.
// A zero StableAfter defaults to the maximum backoff.
func NewSupervisor(policy Policy, emit events.Emitter) *Supervisor {
	if policy.StableAfter <= 0 {
		policy.StableAfter = policy.Max
	}
	return &Supervisor{
		policy: policy,
		emit:   emit,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run supervises src until ctx is cancelled or src is degraded. It never
// returns a source failure: failures become health events.
func (s *Supervisor) Run(ctx context.Context, src Source) model.SourceState {
	name := src.Name()
	attempts := 0
	s.report(name, model.SourceStarting, 0, nil)

	for {
		started := s.now()
		s.report(name, model.SourceOK, attempts, nil)
		err := src.Run(ctx, s.emit)

		if ctx.Err() != nil {
			s.report(name, model.SourceStopped, attempts, nil)
			return model.SourceStopped
		}
		if err == nil {
			log.Printf("[resilience] source %s exited", name)
			s.report(name, model.SourceStopped, attempts, nil)
			return model.SourceStopped
		}

		if s.now().Sub(started) >= s.policy.StableAfter {
			attempts = 0
		}
		attempts++
		err = model.Classify(err)

		if attempts > s.policy.MaxRetries {
			log.Printf("[resilience] source %s degraded after %d attempts: %v", name, attempts, err)
			s.report(name, model.SourceDegraded, attempts, err)
			return model.SourceDegraded
		}

		delay := s.policy.Backoff(attempts)
		log.Printf("[resilience] source %s failed (attempt %d/%d), retrying in %v: %v",
			name, attempts, s.policy.MaxRetries, delay, err)
		s.report(name, model.SourceRetrying, attempts, err)

		if err := s.sleep(ctx, delay); err != nil {
			s.report(name, model.SourceStopped, attempts, nil)
			return model.SourceStopped
		}
	}
}

func (s *Supervisor) report(name string, state model.SourceState, attempts int, err error) {
	if s.emit == nil {
		return
	}
	h := model.SourceHealth{Name: name, State: state, Attempts: attempts, Since: s.now()}
	if err != nil {
		h.LastError = err.Error()
	}
	s.emit(events.State(h))
}
