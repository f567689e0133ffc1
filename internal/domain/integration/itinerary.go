package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProviderNotConfigured   = errors.New("integration: provider not configured")
	ErrProviderUnavailable     = errors.New("integration: provider temporarily unavailable")
	ErrProviderRequestFailed   = errors.New("integration: provider request failed")
	ErrProviderInvalidResponse = errors.New("integration: invalid provider response")
)

// ItineraryRequest carries the trip facts the generator plans from.
type ItineraryRequest struct {
	TripID      uuid.UUID
	Destination string
	StartDate   time.Time
	EndDate     time.Time
	Travelers   int
	Budget      decimal.Decimal
	Preferences []string
}

// ItineraryDay is one planned day of a generated itinerary.
type ItineraryDay struct {
	Day        int       `json:"day"`
	Date       time.Time `json:"date"`
	Summary    string    `json:"summary"`
	Activities []string  `json:"activities"`
}

// Itinerary is a generated day-by-day plan for a trip.
type Itinerary struct {
	TripID      uuid.UUID      `json:"trip_id"`
	Summary     string         `json:"summary"`
	Days        []ItineraryDay `json:"days"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ItineraryGenerator defines the port interface for the external itinerary
// planning provider. Implementations own their transport-level resilience;
// cancelling ctx aborts an in-flight generation, including between retry
// attempts.
type ItineraryGenerator interface {
	Generate(ctx context.Context, req *ItineraryRequest) (*Itinerary, error)
}
