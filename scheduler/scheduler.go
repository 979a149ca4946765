// Package scheduler drives monitor entities: one long-lived timer loop per
// monitor, each firing an independent unit of work whose records enter the
// bus as fresh emissions. Delivery is synchronous from the poll, so a
// monitor's fan-out completes before its next scheduled poll; different
// monitors run concurrently with respect to each other.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/15532th/avtdl/bus"
	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/pkg/retry"
	"github.com/15532th/avtdl/record"
)

// Spec binds one monitor entity to its poll interval.
type Spec struct {
	Entity   *entity.Entity
	Interval time.Duration
}

// Scheduler owns the poll loops of one configuration generation. A reload
// stops the old scheduler and starts a new one against the new generation.
type Scheduler struct {
	bus     *bus.Bus
	logger  *slog.Logger
	limiter *rate.Limiter
	backoff retry.Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithRateLimit applies a global limit across all monitor polls, smoothing
// out bursts when many timers align.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Scheduler) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithBackoff overrides the poll failure backoff configuration.
func WithBackoff(cfg retry.Config) Option {
	return func(s *Scheduler) {
		s.backoff = cfg
	}
}

// New creates a scheduler feeding the given bus.
func New(b *bus.Bus, opts ...Option) *Scheduler {
	s := &Scheduler{
		bus: b,
		backoff: retry.Config{
			InitialDelay: 10 * time.Second,
			MaxDelay:     10 * time.Minute,
			Multiplier:   2.0,
			AddJitter:    true,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "scheduler")
	}
	return s
}

// Start launches one poll loop per monitor. It returns immediately; loops
// run until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context, monitors []Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Scheduler", "Start", "lifecycle check")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	for _, spec := range monitors {
		spec := spec
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx, spec)
		}()
	}

	s.logger.Info("scheduler started", "monitors", len(monitors))
	return nil
}

// Stop cancels all poll loops and waits for them to exit. In-flight polls
// complete their downstream fan-out before the loop observes cancellation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// run is one monitor's poll loop: poll immediately, then on every interval.
// Consecutive failures stretch the delay with exponential backoff; a
// successful poll resets it.
func (s *Scheduler) run(ctx context.Context, spec Spec) {
	interval := spec.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	failures := 0
	timer := time.NewTimer(0) // first poll fires immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := s.poll(ctx, spec.Entity); err != nil {
			failures++
			delay := s.backoff.NextDelay(failures)
			if delay < interval {
				delay = interval
			}
			timer.Reset(delay)
			continue
		}
		failures = 0
		timer.Reset(interval)
	}
}

// poll runs one unit of work: rate limit, poll, then emit every produced
// record with fresh origin. A poll error is converted to an error Event
// emitted from the monitor itself so that chains observing the monitor can
// route it.
func (s *Scheduler) poll(ctx context.Context, mon *entity.Entity) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	core := s.bus.Metrics().Metrics
	records, err := mon.Poll(ctx)
	if err != nil {
		core.PollsTotal.WithLabelValues(mon.Actor, "error").Inc()
		s.logger.Warn("monitor poll failed", "monitor", mon.Ref(), "error", err)
		s.bus.Emit(ctx, mon, record.Errorf("%s: %v", mon.Ref(), err), bus.Fresh())
		return err
	}

	core.PollsTotal.WithLabelValues(mon.Actor, "success").Inc()
	for _, rec := range records {
		s.bus.Emit(ctx, mon, rec, bus.Fresh())
	}
	return nil
}
