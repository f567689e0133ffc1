package resilience

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state name rather than its numeric value
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// OpenError is returned when a call is short-circuited because the breaker
// is open and no fallback was supplied. NextAttempt tells the caller when
// the breaker will allow a probe.
type OpenError struct {
	Name        string
	NextAttempt time.Time
}

// Error implements the error interface
func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, next attempt at %s", e.Name, e.NextAttempt.Format(time.RFC3339))
}

// TimeoutError is returned when a single call exceeds the per-call deadline.
// It counts as a failure for breaker-state purposes but is distinguished
// from an application-level error.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("circuit breaker %q call timed out after %s", e.Name, e.Timeout)
}

// Operation is the call executed under the breaker's state and timeout rules
type Operation func(ctx context.Context) (interface{}, error)

// Fallback is invoked instead of the operation when the breaker
// short-circuits. cause is the error the caller would otherwise receive.
type Fallback func(ctx context.Context, cause error) (interface{}, error)

// Settings configures a circuit breaker
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from closed to open
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open before allowing a
	// half-open probe
	ResetTimeout time.Duration
	// CallTimeout is the hard deadline for a single call; exceeding it
	// counts as a failure
	CallTimeout time.Duration
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Stats is a read-only snapshot of a breaker, used for health reporting
type Stats struct {
	State              State     `json:"state"`
	FailureCount       int       `json:"failure_count"`
	TotalRequests      uint64    `json:"total_requests"`
	SuccessfulRequests uint64    `json:"successful_requests"`
	FailedRequests     uint64    `json:"failed_requests"`
	CircuitOpenCount   uint64    `json:"circuit_open_count"`
	LastFailureMessage string    `json:"last_failure_message,omitempty"`
	LastFailureTime    time.Time `json:"last_failure_time,omitzero"`
	NextAttemptTime    time.Time `json:"next_attempt_time,omitzero"`
}

// Breaker guards one named external dependency. State is per-process and
// in-memory; it resets on restart. Each dependency owns an independent
// instance, so failures in one never affect another.
type Breaker struct {
	name     string
	settings Settings

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	lastFailureMsg  string
	nextAttemptTime time.Time
	probing         bool

	totalRequests      uint64
	successfulRequests uint64
	failedRequests     uint64
	circuitOpenCount   uint64
}

// NewBreaker creates a circuit breaker for a named dependency
func NewBreaker(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = 60 * time.Second
	}
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = 30 * time.Second
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
}

// Name returns the dependency name this breaker guards
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs op under the current state and timeout rules. When the
// breaker is open (or a half-open probe is already in flight) the call is
// short-circuited: fallback is invoked if supplied, otherwise an *OpenError
// is returned. A short-circuit served by fallback still counts as a failed
// request in the stats so that degraded operation stays visible.
func (b *Breaker) Execute(ctx context.Context, op Operation, fallback Fallback) (interface{}, error) {
	cause, allowed := b.beforeCall()
	if !allowed {
		if fallback != nil {
			return fallback(ctx, cause)
		}
		return nil, cause
	}

	result, err := b.call(ctx, op)
	b.afterCall(err, ctx.Err())
	return result, err
}

// call runs op with the per-call hard timeout. The operation goroutine is
// not forcibly interrupted on timeout; it completes or times out on its own
// schedule while the breaker stops waiting for it.
func (b *Breaker) call(ctx context.Context, op Operation) (interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.settings.CallTimeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := op(callCtx)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Name: b.name, Timeout: b.settings.CallTimeout}
	}
}

// beforeCall decides whether the call may proceed. When it may not, the
// returned error is the short-circuit cause.
func (b *Breaker) beforeCall() (error, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	now := time.Now()

	if b.state == StateOpen && !now.Before(b.nextAttemptTime) {
		b.setState(StateHalfOpen, now)
	}

	switch b.state {
	case StateOpen:
		b.failedRequests++
		return &OpenError{Name: b.name, NextAttempt: b.nextAttemptTime}, false
	case StateHalfOpen:
		// Exactly one probe is allowed through
		if b.probing {
			b.failedRequests++
			return &OpenError{Name: b.name, NextAttempt: b.nextAttemptTime}, false
		}
		b.probing = true
	}

	return nil, true
}

// afterCall records the outcome and drives the state machine. ctxErr is the
// caller context's error at completion time.
func (b *Breaker) afterCall(err error, ctxErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.probing = false

	if err == nil {
		b.successfulRequests++
		b.failureCount = 0
		if b.state == StateHalfOpen {
			b.setState(StateClosed, now)
		}
		return
	}

	// A call abandoned because the caller cancelled or ran out of time
	// says nothing about the dependency's health, so it neither counts
	// toward the failure threshold nor resets the streak
	if ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return
	}

	b.failedRequests++
	b.failureCount++
	b.lastFailureTime = now
	b.lastFailureMsg = err.Error()

	switch b.state {
	case StateHalfOpen:
		b.trip(now)
	case StateClosed:
		if b.failureCount >= b.settings.FailureThreshold {
			b.trip(now)
		}
	}
}

// trip opens the breaker and stamps the next attempt time
func (b *Breaker) trip(now time.Time) {
	b.nextAttemptTime = now.Add(b.settings.ResetTimeout)
	b.circuitOpenCount++
	b.setState(StateOpen, now)
}

// setState changes the breaker state, firing the OnStateChange callback
func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state

	if state == StateHalfOpen {
		b.probing = false
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}

// State returns the current state, promoting open to half-open when the
// reset timeout has elapsed
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !time.Now().Before(b.nextAttemptTime) {
		b.setState(StateHalfOpen, time.Now())
	}
	return b.state
}

// Stats returns a read-only snapshot for health-check reporting
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:              b.state,
		FailureCount:       b.failureCount,
		TotalRequests:      b.totalRequests,
		SuccessfulRequests: b.successfulRequests,
		FailedRequests:     b.failedRequests,
		CircuitOpenCount:   b.circuitOpenCount,
		LastFailureMessage: b.lastFailureMsg,
		LastFailureTime:    b.lastFailureTime,
		NextAttemptTime:    b.nextAttemptTime,
	}
}

// Reset is an administrative override back to closed with zeroed counters.
// Used for manual recovery, never by normal call paths.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.failureCount = 0
	b.lastFailureMsg = ""
	b.lastFailureTime = time.Time{}
	b.nextAttemptTime = time.Time{}
	b.probing = false
	b.totalRequests = 0
	b.successfulRequests = 0
	b.failedRequests = 0
	b.circuitOpenCount = 0
	b.setState(StateClosed, now)
}
