package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/trip"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// fakeRunner counts sweep invocations and can block or fail on demand
type fakeRunner struct {
	runs    atomic.Int64
	block   chan struct{}
	failErr error
	panics  bool
}

func (f *fakeRunner) RunDateBasedSweep(ctx context.Context, now time.Time) (*trip.SweepResult, error) {
	f.runs.Add(1)
	if f.panics {
		panic("sweep exploded")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &trip.SweepResult{
		StartedAt:      now,
		FinishedAt:     time.Now(),
		ProcessedCount: 2,
		Transitions:    []trip.StatusTransition{{}},
	}, nil
}

func TestStatusSweepConfig_Validate(t *testing.T) {
	cfg := DefaultStatusSweepConfig()
	require.NoError(t, cfg.Validate())

	cfg.Interval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultStatusSweepConfig()
	cfg.RunTimeout = -time.Second
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestStatusSweepScheduler_RunsAtStart(t *testing.T) {
	runner := &fakeRunner{}
	s := NewStatusSweepScheduler(StatusSweepConfig{
		Enabled:    true,
		Interval:   time.Hour,
		RunTimeout: time.Minute,
		RunAtStart: true,
	}, runner, newTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	assert.Eventually(t, func() bool {
		return runner.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.TotalRuns)
	assert.Equal(t, 2, stats.LastProcessed)
	assert.Equal(t, 1, stats.LastTransition)
}

func TestStatusSweepScheduler_RunsOnInterval(t *testing.T) {
	runner := &fakeRunner{}
	s := NewStatusSweepScheduler(StatusSweepConfig{
		Enabled:    true,
		Interval:   20 * time.Millisecond,
		RunTimeout: time.Minute,
		RunAtStart: false,
	}, runner, newTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	assert.Eventually(t, func() bool {
		return runner.runs.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestStatusSweepScheduler_SkipsOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := NewStatusSweepScheduler(StatusSweepConfig{
		Enabled:    true,
		Interval:   10 * time.Millisecond,
		RunTimeout: time.Minute,
		RunAtStart: true,
	}, runner, newTestLogger())

	require.NoError(t, s.Start(context.Background()))

	// First run blocks; ticker fires must be skipped, not stacked
	assert.Eventually(t, func() bool {
		return s.Stats().SkippedRuns >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), runner.runs.Load())
	assert.True(t, s.Stats().Running)

	close(runner.block)
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Stats().Running)
}

func TestStatusSweepScheduler_RunTimeoutAbandonsRun(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := NewStatusSweepScheduler(StatusSweepConfig{
		Enabled:    true,
		Interval:   time.Hour,
		RunTimeout: 20 * time.Millisecond,
		RunAtStart: true,
	}, runner, newTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	assert.Eventually(t, func() bool {
		stats := s.Stats()
		return stats.FailedRuns == 1 && !stats.Running
	}, time.Second, 10*time.Millisecond)
}

func TestStatusSweepScheduler_SweepErrorDoesNotStopFutureRuns(t *testing.T) {
	runner := &fakeRunner{failErr: errors.New("db unavailable")}
	s := NewStatusSweepScheduler(StatusSweepConfig{
		Enabled:    true,
		Interval:   15 * time.Millisecond,
		RunTimeout: time.Minute,
		RunAtStart: true,
	}, runner, newTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	assert.Eventually(t, func() bool {
		return s.Stats().FailedRuns >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStatusSweepScheduler_RecoversFromPanic(t *testing.T) {
	runner := &fakeRunner{panics: true}
	s := NewStatusSweepScheduler(StatusSweepConfig{
		Enabled:    true,
		Interval:   15 * time.Millisecond,
		RunTimeout: time.Minute,
		RunAtStart: true,
	}, runner, newTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	assert.Eventually(t, func() bool {
		return runner.runs.Load() >= 2 && s.Stats().FailedRuns >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStatusSweepScheduler_DisabledNeverRuns(t *testing.T) {
	runner := &fakeRunner{}
	s := NewStatusSweepScheduler(StatusSweepConfig{
		Enabled:    false,
		Interval:   10 * time.Millisecond,
		RunTimeout: time.Minute,
		RunAtStart: true,
	}, runner, newTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), runner.runs.Load())
	assert.Equal(t, uint64(0), s.Stats().TotalRuns)
}

func TestStatusSweepScheduler_StartIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	s := NewStatusSweepScheduler(StatusSweepConfig{
		Enabled:    true,
		Interval:   time.Hour,
		RunTimeout: time.Minute,
	}, runner, newTestLogger())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestStatusSweepScheduler_InvalidConfigRejected(t *testing.T) {
	s := NewStatusSweepScheduler(StatusSweepConfig{}, &fakeRunner{}, newTestLogger())
	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidConfig)
}
