package trip

import (
	"context"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository defines persistence operations for the Trip aggregate
type Repository interface {
	// Save persists a new trip together with its creation audit entry
	// in a single transaction
	Save(ctx context.Context, trip *Trip, creation *StatusTransition) error

	// FindByID finds a trip by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Trip, error)

	// FindAllForOwner finds trips for an owner with filtering and pagination
	FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]Trip, int64, error)

	// Update persists changes to trip fields other than status
	Update(ctx context.Context, trip *Trip) error

	// Delete removes a trip and its transition history
	Delete(ctx context.Context, id uuid.UUID) error

	// Transition executes a status change atomically. The trip is re-read
	// with a row lock inside the transaction, apply mutates it and returns
	// the audit entry to append, and both writes commit together. The
	// audit entry therefore always reflects the actual prior status.
	Transition(ctx context.Context, tripID uuid.UUID, apply func(t *Trip) (*StatusTransition, error)) (*Trip, *StatusTransition, error)

	// ListSweepCandidates returns all trips eligible for the date-based
	// sweep, i.e. every trip not in CANCELLED status
	ListSweepCandidates(ctx context.Context) ([]Trip, error)
}

// TransitionRepository defines read access to the append-only status
// transition log
type TransitionRepository interface {
	// FindByTrip returns the transition history for a trip, newest first
	FindByTrip(ctx context.Context, tripID uuid.UUID, filter shared.Filter) ([]StatusTransition, int64, error)
}
