package trip

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Trip is the top-level planning aggregate with a lifecycle status.
// A trip always holds exactly one current status; every change of that
// status is recorded as an immutable StatusTransition.
type Trip struct {
	shared.OwnedAggregateRoot
	Title       string
	Destination string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Budget      decimal.Decimal
	Status      Status
	Travelers   int
}

// NewTrip creates a new trip in DRAFT status
func NewTrip(ownerID uuid.UUID, title, destination string, startDate, endDate time.Time) (*Trip, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewDomainError("INVALID_TITLE", "Trip title cannot be empty")
	}
	if destination == "" {
		return nil, shared.NewDomainError("INVALID_DESTINATION", "Trip destination cannot be empty")
	}
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Trip owner cannot be empty")
	}
	if endDate.Before(startDate) {
		return nil, shared.NewDomainError("INVALID_DATES", "Trip end date cannot be before start date")
	}

	return &Trip{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(ownerID),
		Title:              title,
		Destination:        destination,
		StartDate:          startDate,
		EndDate:            endDate,
		Budget:             decimal.Zero,
		Status:             StatusDraft,
		Travelers:          1,
	}, nil
}

// ApplyTransition moves the trip to the target status if the transition is
// legal. When force is true the legality check is bypassed (admin override);
// the caller is still expected to audit the real old and new statuses.
func (t *Trip) ApplyTransition(target Status, force bool) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown trip status: "+target.String())
	}
	if !force && !t.Status.CanTransitionTo(target) {
		return NewInvalidTransitionError(t.Status, target)
	}

	t.Status = target
	t.UpdatedAt = time.Now()
	return nil
}

// UpdateDetails updates the editable trip fields. Only allowed while the
// trip has not started its lifecycle proper (DRAFT or PLANNED).
func (t *Trip) UpdateDetails(title, destination, description string, startDate, endDate time.Time) error {
	if !t.CanModify() {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify trip in "+t.Status.String()+" status")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Trip title cannot be empty")
	}
	if endDate.Before(startDate) {
		return shared.NewDomainError("INVALID_DATES", "Trip end date cannot be before start date")
	}

	t.Title = title
	t.Destination = destination
	t.Description = description
	t.StartDate = startDate
	t.EndDate = endDate
	t.UpdatedAt = time.Now()
	return nil
}

// SetBudget sets the planned budget for the trip
func (t *Trip) SetBudget(budget decimal.Decimal) error {
	if budget.IsNegative() {
		return shared.NewDomainError("INVALID_BUDGET", "Trip budget cannot be negative")
	}
	t.Budget = budget
	t.UpdatedAt = time.Now()
	return nil
}

// SetTravelers sets the number of travelers
func (t *Trip) SetTravelers(n int) error {
	if n < 1 {
		return shared.NewDomainError("INVALID_TRAVELERS", "Trip must have at least one traveler")
	}
	t.Travelers = n
	t.UpdatedAt = time.Now()
	return nil
}

// IsDraft checks if the trip is in draft status
func (t *Trip) IsDraft() bool {
	return t.Status == StatusDraft
}

// IsCancelled checks if the trip is cancelled
func (t *Trip) IsCancelled() bool {
	return t.Status == StatusCancelled
}

// CanModify checks if the trip details can still be edited
func (t *Trip) CanModify() bool {
	return t.Status == StatusDraft || t.Status == StatusPlanned
}

// SweepEligible reports whether the date-based sweep should consider this
// trip. Cancelled trips are never touched by the sweep.
func (t *Trip) SweepEligible() bool {
	return t.Status != StatusCancelled
}
