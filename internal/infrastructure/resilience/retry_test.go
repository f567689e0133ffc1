package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func zapTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestCancellationToken_Monotonic(t *testing.T) {
	token := NewCancellationToken()
	assert.False(t, token.IsCancelled())

	token.Cancel()
	assert.True(t, token.IsCancelled())

	// No un-cancel: cancelling again keeps it cancelled
	token.Cancel()
	assert.True(t, token.IsCancelled())
}

func TestCancellationToken_NilSafe(t *testing.T) {
	var token *CancellationToken
	assert.False(t, token.IsCancelled())
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryOptions{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_Exhausted(t *testing.T) {
	attemptErrs := []error{errors.New("first"), errors.New("second"), errors.New("third")}
	calls := 0

	err := Retry(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		defer func() { calls++ }()
		return attemptErrs[calls]
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Attempts, 3, "exhaustion must carry every per-attempt error")
	assert.Equal(t, attemptErrs, exhausted.Attempts)
	assert.Equal(t, attemptErrs[2], exhausted.LastError)
	assert.ErrorIs(t, err, attemptErrs[2])
}

func TestRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	token := NewCancellationToken()
	token.Cancel()

	calls := 0
	err := Retry(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond, Token: token}, func(ctx context.Context) error {
		calls++
		return errors.New("should not run")
	})

	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted), "cancellation is distinct from exhaustion")
	assert.Equal(t, 0, calls)
}

func TestRetry_CancelledBetweenAttempts(t *testing.T) {
	token := NewCancellationToken()

	calls := 0
	err := Retry(context.Background(), RetryOptions{MaxAttempts: 5, BaseDelay: time.Millisecond, Token: token}, func(ctx context.Context) error {
		calls++
		token.Cancel()
		return errors.New("fail then cancel")
	})

	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, 1, calls, "no new attempt may start once cancellation is observed")
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := Retry(ctx, RetryOptions{MaxAttempts: 3, BaseDelay: time.Minute}, func(ctx context.Context) error {
		cancel()
		return errors.New("fail")
	})

	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled, "context cancellation must not wait out the backoff")
}

func TestRetry_ProgressReporting(t *testing.T) {
	var events []Progress

	_ = Retry(context.Background(), RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnProgress:  func(p Progress) { events = append(events, p) },
	}, func(ctx context.Context) error {
		return errors.New("fail")
	})

	// attempt, wait, attempt, wait, attempt
	require.Len(t, events, 5)
	assert.Equal(t, 1, events[0].CurrentAttempt)
	assert.False(t, events[0].IsRetrying)
	assert.True(t, events[1].IsRetrying)
	assert.Equal(t, time.Millisecond, events[1].NextRetryDelay)
	assert.True(t, events[3].IsRetrying)
	assert.Equal(t, 2*time.Millisecond, events[3].NextRetryDelay)
	assert.Equal(t, 3, events[4].MaxAttempts)
}

func TestRetryOptions_BackoffDelay(t *testing.T) {
	opts := RetryOptions{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		attempt int
		delay   time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{6, 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.delay, opts.backoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}

	// Monotonically non-decreasing
	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := opts.backoffDelay(attempt)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestRetry_ComposesWithBreaker(t *testing.T) {
	b := NewBreaker("ai", Settings{FailureThreshold: 2, ResetTimeout: time.Hour})

	err := Retry(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		_, err := b.Execute(ctx, failingOp, nil)
		return err
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	// First two attempts fail through the breaker, the third is short-circuited
	var openErr *OpenError
	assert.ErrorAs(t, exhausted.LastError, &openErr)
	assert.Equal(t, StateOpen, b.State())
}
