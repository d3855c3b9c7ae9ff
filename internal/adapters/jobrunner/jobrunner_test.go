package jobrunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/integrations-dispatch/internal/service"
)

type countingWorker struct {
	mu      sync.Mutex
	calls   int
	stopAt  int
	cancel  context.CancelFunc
	outcome service.RunOutcome
	err     error
}

func (w *countingWorker) RunOnce(context.Context) (service.RunOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls >= w.stopAt {
		w.cancel()
	}
	return w.outcome, w.err
}

func TestJitterBounds(t *testing.T) {
	interval := 10 * time.Second
	for range 200 {
		j := jitter(interval)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, interval/2)
	}
	assert.Zero(t, jitter(0))
}

func TestNewRunner_Defaults(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)

	r, err := NewRunner(RunnerOptions{Worker: &countingWorker{}})
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, r.interval)
	assert.Equal(t, 1, r.workers)
}

func TestRunner_SleepsAfterEveryIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &countingWorker{stopAt: 3, cancel: cancel, outcome: service.OutcomeDone}
	r, err := NewRunner(RunnerOptions{Worker: w, Interval: 4 * time.Second})
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		sleeps []time.Duration
	)
	r.sleep = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return ctx.Err() == nil
	}

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 3, w.calls)
	require.Len(t, sleeps, 3, "a found job still pauses the loop")
	for _, d := range sleeps {
		assert.GreaterOrEqual(t, d, 4*time.Second)
		assert.Less(t, d, 6*time.Second)
	}
}

func TestRunner_IterationErrorsDoNotStopLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &countingWorker{stopAt: 6, cancel: cancel, err: errors.New("boom")}
	r, err := NewRunner(RunnerOptions{Worker: w, Interval: time.Second, Concurrency: 2})
	require.NoError(t, err)
	r.sleep = func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil }

	require.NoError(t, r.Run(ctx))
	assert.GreaterOrEqual(t, w.calls, 6)
}
