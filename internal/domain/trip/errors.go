package trip

import "fmt"

// InvalidTransitionError is returned when a requested status transition is
// not an edge in the legal transition table. It is never retried
// automatically and is always surfaced to the caller.
type InvalidTransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// NewInvalidTransitionError creates a new InvalidTransitionError
func NewInvalidTransitionError(from, to Status) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}
