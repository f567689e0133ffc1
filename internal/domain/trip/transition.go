package trip

import (
	"time"

	"github.com/google/uuid"
)

// StatusTransition is an immutable audit entry for a single status change.
// Entries are append-only: created once per transition, never mutated,
// never deleted. OldStatus is nil only for the creation event.
type StatusTransition struct {
	ID         uuid.UUID
	TripID     uuid.UUID
	OldStatus  *Status
	NewStatus  Status
	Reason     TransitionReason
	ActingUser *uuid.UUID
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// NewStatusTransition creates an audit entry for a status change.
// actingUser is nil for automatic (date-based or system) transitions.
func NewStatusTransition(tripID uuid.UUID, oldStatus *Status, newStatus Status, reason TransitionReason, actingUser *uuid.UUID) *StatusTransition {
	return &StatusTransition{
		ID:         uuid.New(),
		TripID:     tripID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Reason:     reason,
		ActingUser: actingUser,
		CreatedAt:  time.Now(),
	}
}

// NewCreationTransition creates the audit entry written when a trip is
// created. OldStatus is nil to mark it as the creation event.
func NewCreationTransition(tripID uuid.UUID, actingUser *uuid.UUID) *StatusTransition {
	return NewStatusTransition(tripID, nil, StatusDraft, ReasonTripCreated, actingUser)
}

// WithMetadata attaches free-form metadata to the entry and returns it
func (st *StatusTransition) WithMetadata(metadata map[string]interface{}) *StatusTransition {
	st.Metadata = metadata
	return st
}

// IsAutomatic reports whether the transition was triggered without a user
func (st *StatusTransition) IsAutomatic() bool {
	return st.ActingUser == nil
}
