package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/trip"
)

var (
	// ErrInvalidConfig is returned when scheduler configuration is invalid
	ErrInvalidConfig = errors.New("invalid sweep scheduler configuration")

	// ErrSweepTimeout is returned when a sweep run exceeds its hard ceiling
	ErrSweepTimeout = errors.New("sweep run exceeded its timeout")
)

// SweepRunner executes one date-based status sweep across all eligible trips
type SweepRunner interface {
	RunDateBasedSweep(ctx context.Context, now time.Time) (*trip.SweepResult, error)
}

// StatusSweepConfig holds configuration for the status sweep scheduler
type StatusSweepConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// Interval is how often the sweep runs
	Interval time.Duration
	// RunTimeout is the hard ceiling for one run; a run exceeding it is
	// abandoned and logged as failed
	RunTimeout time.Duration
	// RunAtStart triggers one sweep immediately when the scheduler starts
	RunAtStart bool
}

// DefaultStatusSweepConfig returns default configuration
func DefaultStatusSweepConfig() StatusSweepConfig {
	return StatusSweepConfig{
		Enabled:    true,
		Interval:   30 * time.Minute,
		RunTimeout: 5 * time.Minute,
		RunAtStart: true,
	}
}

// Validate validates the configuration
func (c *StatusSweepConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.RunTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// RunStats describes the most recent and cumulative sweep activity,
// exposed through the scheduler status endpoint
type RunStats struct {
	Running        bool       `json:"running"`
	TotalRuns      uint64     `json:"total_runs"`
	SkippedRuns    uint64     `json:"skipped_runs"`
	FailedRuns     uint64     `json:"failed_runs"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastProcessed  int        `json:"last_processed"`
	LastTransition int        `json:"last_transitions"`
	LastErrors     int        `json:"last_errors"`
}

// StatusSweepScheduler periodically re-evaluates all trips and applies
// date-based transitions. A single scheduler process is assumed: the
// re-entrancy guard is an in-memory flag, not a distributed lock, so
// running multiple instances would attempt duplicate transitions (the
// transition validator rejects them, the scheduler does not).
type StatusSweepScheduler struct {
	config StatusSweepConfig
	runner SweepRunner
	logger *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	running bool
	stats   RunStats
}

// NewStatusSweepScheduler creates a new status sweep scheduler
func NewStatusSweepScheduler(config StatusSweepConfig, runner SweepRunner, logger *zap.Logger) *StatusSweepScheduler {
	return &StatusSweepScheduler{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Start starts the recurring sweep timer. Invoked explicitly by the
// application entry point; there is no timer-at-import side effect.
func (s *StatusSweepScheduler) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if !s.config.Enabled {
		s.logger.Info("Status sweep scheduler disabled")
		return nil
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Status sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("run_timeout", s.config.RunTimeout),
		zap.Bool("run_at_start", s.config.RunAtStart),
	)

	return nil
}

// Stop cancels the timer and waits for an in-flight sweep to finish or be
// abandoned at its timeout
func (s *StatusSweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Status sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Status sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// Stats returns a snapshot of scheduler activity
func (s *StatusSweepScheduler) Stats() RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Running = s.running
	return stats
}

func (s *StatusSweepScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunAtStart {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a single sweep, skipping if the previous run has not
// finished. Failures are logged and never stop future scheduled runs.
func (s *StatusSweepScheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.stats.SkippedRuns++
		s.mu.Unlock()
		s.logger.Warn("Skipping status sweep, previous run still active")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Status sweep panicked", zap.Any("panic", r))
			s.finishRun(nil, true)
		}
	}()

	runCtx, cancel := context.WithTimeoutCause(ctx, s.config.RunTimeout, ErrSweepTimeout)
	defer cancel()

	now := time.Now()
	result, err := s.runner.RunDateBasedSweep(runCtx, now)
	if err != nil {
		s.logger.Error("Status sweep failed", zap.Error(err))
		s.finishRun(nil, true)
		return
	}

	s.finishRun(result, false)

	s.logger.Info("Status sweep completed",
		zap.Int("processed", result.ProcessedCount),
		zap.Int("transitions", len(result.Transitions)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
}

func (s *StatusSweepScheduler) finishRun(result *trip.SweepResult, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.running = false
	s.stats.TotalRuns++
	s.stats.LastRunAt = &now
	if failed {
		s.stats.FailedRuns++
		return
	}
	s.stats.LastProcessed = result.ProcessedCount
	s.stats.LastTransition = len(result.Transitions)
	s.stats.LastErrors = len(result.Errors)
}
