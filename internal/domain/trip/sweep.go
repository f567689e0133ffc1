package trip

import (
	"time"

	"github.com/google/uuid"
)

// SweepError records a single trip's failure during a date-based sweep.
// One trip's failure never aborts the sweep for other trips.
type SweepError struct {
	TripID  uuid.UUID `json:"trip_id"`
	Message string    `json:"message"`
}

// SweepResult aggregates the outcome of one date-based sweep run
type SweepResult struct {
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	ProcessedCount int                `json:"processed_count"`
	Transitions    []StatusTransition `json:"transitions"`
	Errors         []SweepError       `json:"errors"`
}

// DateBasedTarget evaluates the sweep rule set for a trip at the given
// instant. Precedence order: a planned trip whose start date has arrived
// becomes active; an active trip whose end date has passed becomes
// completed; anything else is a no-op. Cancelled trips are never eligible.
func DateBasedTarget(t *Trip, now time.Time) (Status, bool) {
	if !t.SweepEligible() {
		return "", false
	}
	switch t.Status {
	case StatusPlanned:
		if !now.Before(t.StartDate) {
			return StatusActive, true
		}
	case StatusActive:
		if now.After(t.EndDate) {
			return StatusCompleted, true
		}
	}
	return "", false
}
