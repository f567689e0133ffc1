package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CancellationToken lets a caller request early termination of a retry
// loop. Cancellation is cooperative and monotonic: once cancelled, a token
// stays cancelled. A token is scoped to a single logical operation and
// owned by the caller that started it.
type CancellationToken struct {
	mu        sync.Mutex
	cancelled bool
}

// NewCancellationToken creates a token in the not-cancelled state
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// Cancel requests termination. Safe to call multiple times.
func (t *CancellationToken) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
}

// IsCancelled reports whether cancellation was requested
func (t *CancellationToken) IsCancelled() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Progress describes the state of a retry session between attempts so a
// caller can render live status
type Progress struct {
	CurrentAttempt      int
	MaxAttempts         int
	NextRetryDelay      time.Duration
	IsRetrying          bool
	EstimatedCompletion time.Time
}

// CancelledError is returned when the retry loop observed a cancelled
// token. Distinct from exhaustion: the caller aborted, the operation did
// not fail N times.
type CancelledError struct {
	Attempt int
}

// Error implements the error interface
func (e *CancelledError) Error() string {
	return fmt.Sprintf("operation cancelled during attempt %d", e.Attempt)
}

// ExhaustedError is returned when every attempt failed without
// cancellation. It carries the per-attempt errors so the caller can
// categorize the root cause for user messaging.
type ExhaustedError struct {
	Attempts  []error
	LastError error
}

// Error implements the error interface
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", len(e.Attempts), e.LastError)
}

// Unwrap exposes the final attempt's error for errors.Is/As chains
func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// RetryOptions configures a retry session
type RetryOptions struct {
	// MaxAttempts bounds the number of attempts (default 3)
	MaxAttempts int
	// BaseDelay is the delay before the first retry; subsequent delays
	// double per attempt (default 1s)
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay (default 30s)
	MaxDelay time.Duration
	// Token enables cooperative cancellation; may be nil
	Token *CancellationToken
	// OnProgress is invoked before each attempt and before each backoff
	// wait; may be nil
	OnProgress func(Progress)
}

func (o *RetryOptions) withDefaults() RetryOptions {
	opts := *o
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	return opts
}

// backoffDelay returns the delay after the given 1-based attempt:
// BaseDelay * 2^(attempt-1), capped at MaxDelay. Deterministic and
// monotonically non-decreasing in the attempt number.
func (o RetryOptions) backoffDelay(attempt int) time.Duration {
	delay := o.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if delay > o.MaxDelay {
		return o.MaxDelay
	}
	return delay
}

// estimatedCompletion is the worst-case finish time assuming every
// remaining attempt waits its full backoff
func (o RetryOptions) estimatedCompletion(now time.Time, attempt int) time.Time {
	remaining := time.Duration(0)
	for a := attempt; a < o.MaxAttempts; a++ {
		remaining += o.backoffDelay(a)
	}
	return now.Add(remaining)
}

// Retry attempts op up to MaxAttempts times with exponential backoff.
// The token is checked before every attempt and around every wait; once
// observed cancelled the loop stops with a *CancelledError. It does not
// interrupt an attempt already in flight. Context cancellation is treated
// the same way as token cancellation. All waiting is a timer select, never
// a blocking sleep.
func Retry(ctx context.Context, opts RetryOptions, op func(ctx context.Context) error) error {
	o := opts.withDefaults()
	attempts := make([]error, 0, o.MaxAttempts)

	report := func(attempt int, delay time.Duration, retrying bool) {
		if o.OnProgress == nil {
			return
		}
		o.OnProgress(Progress{
			CurrentAttempt:      attempt,
			MaxAttempts:         o.MaxAttempts,
			NextRetryDelay:      delay,
			IsRetrying:          retrying,
			EstimatedCompletion: o.estimatedCompletion(time.Now(), attempt),
		})
	}

	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		if o.Token.IsCancelled() || ctx.Err() != nil {
			return &CancelledError{Attempt: attempt}
		}

		report(attempt, 0, false)

		err := op(ctx)
		if err == nil {
			return nil
		}
		attempts = append(attempts, err)

		if attempt == o.MaxAttempts {
			break
		}

		delay := o.backoffDelay(attempt)
		report(attempt, delay, true)

		if o.Token.IsCancelled() {
			return &CancelledError{Attempt: attempt}
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return &CancelledError{Attempt: attempt}
		}
	}

	return &ExhaustedError{Attempts: attempts, LastError: attempts[len(attempts)-1]}
}
