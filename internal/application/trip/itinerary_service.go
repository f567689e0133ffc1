package trip

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/integration"
	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/domain/trip"
)

// ItineraryResponse carries a generated itinerary together with the trip
// status after generation. TripStatus reflects the itinerary_generated
// transition when one was recorded.
type ItineraryResponse struct {
	Itinerary  *integration.Itinerary `json:"itinerary"`
	TripStatus string                 `json:"trip_status"`
}

// ItineraryService orchestrates itinerary generation and weather lookups
// for trips. Generation that succeeds on a DRAFT trip promotes it to
// PLANNED with an itinerary_generated audit entry; trips in any other
// status keep their status.
type ItineraryService struct {
	repo      trip.Repository
	generator integration.ItineraryGenerator
	weather   integration.WeatherProvider
	logger    *zap.Logger
}

// NewItineraryService creates a new ItineraryService
func NewItineraryService(repo trip.Repository, generator integration.ItineraryGenerator, weather integration.WeatherProvider, logger *zap.Logger) *ItineraryService {
	return &ItineraryService{
		repo:      repo,
		generator: generator,
		weather:   weather,
		logger:    logger,
	}
}

// Generate produces an itinerary for an owned trip. The provider call runs
// under the caller's ctx, so a disconnected client aborts generation. On
// success a legal DRAFT to PLANNED transition is recorded; when the trip
// moved concurrently and the transition is no longer legal, the itinerary
// is still returned and the trip keeps its status.
func (s *ItineraryService) Generate(ctx context.Context, ownerID, tripID uuid.UUID, preferences []string) (*ItineraryResponse, error) {
	t, err := s.findOwned(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	if t.Status == trip.StatusCancelled {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot generate an itinerary for a cancelled trip")
	}

	itinerary, err := s.generator.Generate(ctx, &integration.ItineraryRequest{
		TripID:      t.ID,
		Destination: t.Destination,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		Travelers:   t.Travelers,
		Budget:      t.Budget,
		Preferences: preferences,
	})
	if err != nil {
		return nil, err
	}

	// The DRAFT check runs inside the transaction; a trip that moved
	// concurrently keeps its status and the transition becomes a no-op.
	updated, _, err := s.repo.Transition(ctx, tripID, func(t *trip.Trip) (*trip.StatusTransition, error) {
		if t.Status != trip.StatusDraft {
			return nil, nil
		}
		old := t.Status
		if err := t.ApplyTransition(trip.StatusPlanned, false); err != nil {
			return nil, err
		}
		entry := trip.NewStatusTransition(t.ID, &old, trip.StatusPlanned, trip.ReasonItineraryGenerated, &ownerID)
		return entry.WithMetadata(map[string]interface{}{
			"days":         len(itinerary.Days),
			"generated_at": itinerary.GeneratedAt.Format(time.RFC3339),
		}), nil
	})
	if err != nil {
		return nil, err
	}
	status := updated.Status

	s.logger.Info("Itinerary generated",
		zap.String("trip_id", tripID.String()),
		zap.Int("days", len(itinerary.Days)),
		zap.String("trip_status", status.String()),
	)

	return &ItineraryResponse{
		Itinerary:  itinerary,
		TripStatus: status.String(),
	}, nil
}

// Weather returns the destination forecast for the trip's date range
func (s *ItineraryService) Weather(ctx context.Context, ownerID, tripID uuid.UUID) (*integration.WeatherReport, error) {
	t, err := s.findOwned(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	return s.weather.Forecast(ctx, t.Destination, t.StartDate, t.EndDate)
}

func (s *ItineraryService) findOwned(ctx context.Context, ownerID, tripID uuid.UUID) (*trip.Trip, error) {
	t, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, shared.ErrForbidden
	}
	return t, nil
}
