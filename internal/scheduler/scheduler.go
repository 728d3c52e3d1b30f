package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"arena-tracker/internal/config"
	"arena-tracker/internal/constants"
	"arena-tracker/internal/recompute"

	"github.com/rs/zerolog"
)

// PassRunner is what the scheduler drives on every tick.
type PassRunner interface {
	RunFullPass(ctx context.Context) (recompute.Stats, error)
}

// Scheduler runs the full recompute pass on a fixed interval. Exactly one
// pass may be in flight at a time; a tick that lands while a pass is still
// running is dropped. Repeated consecutive failures push the next tick out
// by an extended cooldown.
type Scheduler struct {
	runner PassRunner
	logger zerolog.Logger

	initialDelay    time.Duration
	interval        time.Duration
	failureCooldown time.Duration
	maxFailures     int

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(runner PassRunner, cfg *config.Config, logger zerolog.Logger) *Scheduler {
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = constants.SchedulerInterval
	}
	return &Scheduler{
		runner:          runner,
		logger:          logger,
		initialDelay:    constants.SchedulerInitialDelay,
		interval:        interval,
		failureCooldown: constants.SchedulerFailureCooldown,
		maxFailures:     constants.SchedulerMaxFailures,
		done:            make(chan struct{}),
	}
}

// Start launches the scheduling loop in the background.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
	s.logger.Info().
		Dur("initial_delay", s.initialDelay).
		Dur("interval", s.interval).
		Msg("recompute scheduler started")
}

// Stop cancels the loop and waits for it to exit. An in-flight pass runs to
// completion; only the wait between passes is interrupted.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info().Msg("recompute scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	if !sleep(ctx, s.initialDelay) {
		return
	}

	failures := 0
	for {
		if err := s.RunOnce(ctx); err != nil {
			failures++
			s.logger.Error().Err(err).
				Int("consecutive_failures", failures).
				Msg("recompute pass failed")
		} else {
			failures = 0
		}

		delay := s.interval
		if failures >= s.maxFailures {
			s.logger.Warn().
				Int("consecutive_failures", failures).
				Dur("cooldown", s.failureCooldown).
				Msg("too many consecutive failures, backing off")
			delay = s.failureCooldown
			failures = 0
		}

		if !sleep(ctx, delay) {
			return
		}
	}
}

// RunOnce executes a single pass unless one is already in flight, in which
// case the trigger is dropped.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("pass already in flight, dropping trigger")
		return nil
	}
	defer s.running.Store(false)

	stats, err := s.runner.RunFullPass(ctx)
	if err != nil {
		return err
	}
	s.logger.Info().
		Int("processed", stats.Processed).
		Int("failed", stats.Failed).
		Msg("scheduled recompute pass finished")
	return nil
}

// sleep waits for d, returning false when the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
