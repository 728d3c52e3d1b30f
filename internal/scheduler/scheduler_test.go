package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"arena-tracker/internal/recompute"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   atomic.Int64
	err     error
	started chan struct{}
	release chan struct{}
}

func (r *fakeRunner) RunFullPass(context.Context) (recompute.Stats, error) {
	r.calls.Add(1)
	if r.started != nil {
		close(r.started)
	}
	if r.release != nil {
		<-r.release
	}
	return recompute.Stats{}, r.err
}

func newTestScheduler(runner PassRunner, initialDelay, interval, cooldown time.Duration, maxFailures int) *Scheduler {
	return &Scheduler{
		runner:          runner,
		logger:          zerolog.Nop(),
		initialDelay:    initialDelay,
		interval:        interval,
		failureCooldown: cooldown,
		maxFailures:     maxFailures,
		done:            make(chan struct{}),
	}
}

func TestRunsRepeatedlyAfterInitialDelay(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(runner, 5*time.Millisecond, 10*time.Millisecond, time.Hour, 3)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return runner.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestBacksOffAfterConsecutiveFailures(t *testing.T) {
	runner := &fakeRunner{err: errors.New("pass broke")}
	s := newTestScheduler(runner, time.Millisecond, 5*time.Millisecond, time.Hour, 2)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return runner.calls.Load() == 2
	}, time.Second, time.Millisecond)

	// Failure threshold reached: the loop is now in its extended cooldown
	// and must not fire again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(2), runner.calls.Load())
}

func TestStopInterruptsWaitPromptly(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(runner, time.Hour, time.Hour, time.Hour, 3)

	s.Start()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the scheduler wait")
	}
	assert.Equal(t, int64(0), runner.calls.Load())
}

func TestRunOnceDropsOverlappingTrigger(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestScheduler(runner, time.Hour, time.Hour, time.Hour, 3)

	go func() { _ = s.RunOnce(context.Background()) }()
	<-runner.started

	// A second trigger while the first pass is still running is a no-op.
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, int64(1), runner.calls.Load())

	close(runner.release)
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, time.Hour, time.Hour, time.Hour, 3)
	s.Stop()
}
