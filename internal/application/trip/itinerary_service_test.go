package trip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/integration"
	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/domain/trip"
)

type fakeGenerator struct {
	itinerary *integration.Itinerary
	err       error
	lastReq   *integration.ItineraryRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req *integration.ItineraryRequest) (*integration.Itinerary, error) {
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	out := *g.itinerary
	out.TripID = req.TripID
	return &out, nil
}

type fakeWeather struct {
	report  *integration.WeatherReport
	err     error
	lastDst string
}

func (w *fakeWeather) Forecast(ctx context.Context, destination string, from, to time.Time) (*integration.WeatherReport, error) {
	w.lastDst = destination
	if w.err != nil {
		return nil, w.err
	}
	return w.report, nil
}

func testItinerary() *integration.Itinerary {
	return &integration.Itinerary{
		Summary: "A week in Kyoto",
		Days: []integration.ItineraryDay{
			{Day: 1, Summary: "Arrival", Activities: []string{"Gion walk"}},
			{Day: 2, Summary: "Temples", Activities: []string{"Kinkaku-ji"}},
		},
		GeneratedAt: time.Now(),
	}
}

func TestItineraryService_Generate(t *testing.T) {
	ctx := context.Background()
	start := time.Now().AddDate(0, 1, 0)
	end := start.AddDate(0, 0, 7)

	t.Run("generation promotes draft to planned with audit entry", func(t *testing.T) {
		repo := newFakeTripRepository()
		gen := &fakeGenerator{itinerary: testItinerary()}
		svc := NewItineraryService(repo, gen, &fakeWeather{}, zap.NewNop())
		tr := mustTrip(t, repo, start, end)

		resp, err := svc.Generate(ctx, tr.OwnerID, tr.ID, []string{"food"})
		require.NoError(t, err)
		assert.Equal(t, "PLANNED", resp.TripStatus)
		assert.Equal(t, tr.ID, resp.Itinerary.TripID)
		assert.Len(t, resp.Itinerary.Days, 2)
		assert.Equal(t, trip.StatusPlanned, repo.statusOf(t, tr.ID))

		require.NotNil(t, gen.lastReq)
		assert.Equal(t, "Kyoto, Japan", gen.lastReq.Destination)
		assert.Equal(t, []string{"food"}, gen.lastReq.Preferences)

		history, _, err := repo.FindByTrip(ctx, tr.ID, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, trip.ReasonItineraryGenerated, history[0].Reason)
		require.NotNil(t, history[0].OldStatus)
		assert.Equal(t, trip.StatusDraft, *history[0].OldStatus)
		assert.Equal(t, 2, history[0].Metadata["days"])
	})

	t.Run("non-draft trip keeps its status", func(t *testing.T) {
		repo := newFakeTripRepository()
		gen := &fakeGenerator{itinerary: testItinerary()}
		statusSvc := newStatusService(repo)
		svc := NewItineraryService(repo, gen, &fakeWeather{}, zap.NewNop())
		tr := mustTrip(t, repo, start, end)

		_, err := statusSvc.RequestTransition(ctx, tr.ID, trip.StatusPlanned, nil, trip.ReasonManual, nil)
		require.NoError(t, err)

		resp, err := svc.Generate(ctx, tr.OwnerID, tr.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, "PLANNED", resp.TripStatus)

		// no itinerary_generated entry beyond creation and the manual move
		history, total, err := repo.FindByTrip(ctx, tr.ID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, trip.ReasonManual, history[0].Reason)
	})

	t.Run("cancelled trip is rejected before calling the provider", func(t *testing.T) {
		repo := newFakeTripRepository()
		gen := &fakeGenerator{itinerary: testItinerary()}
		statusSvc := newStatusService(repo)
		svc := NewItineraryService(repo, gen, &fakeWeather{}, zap.NewNop())
		tr := mustTrip(t, repo, start, end)

		_, err := statusSvc.RequestTransition(ctx, tr.ID, trip.StatusCancelled, nil, trip.ReasonManual, nil)
		require.NoError(t, err)

		_, err = svc.Generate(ctx, tr.OwnerID, tr.ID, nil)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
		assert.Nil(t, gen.lastReq)
	})

	t.Run("provider failure leaves the trip untouched", func(t *testing.T) {
		repo := newFakeTripRepository()
		gen := &fakeGenerator{err: integration.ErrProviderUnavailable}
		svc := NewItineraryService(repo, gen, &fakeWeather{}, zap.NewNop())
		tr := mustTrip(t, repo, start, end)

		_, err := svc.Generate(ctx, tr.OwnerID, tr.ID, nil)
		require.ErrorIs(t, err, integration.ErrProviderUnavailable)
		assert.Equal(t, trip.StatusDraft, repo.statusOf(t, tr.ID))
	})

	t.Run("foreign trip is forbidden", func(t *testing.T) {
		repo := newFakeTripRepository()
		svc := NewItineraryService(repo, &fakeGenerator{itinerary: testItinerary()}, &fakeWeather{}, zap.NewNop())
		tr := mustTrip(t, repo, start, end)

		_, err := svc.Generate(ctx, uuid.New(), tr.ID, nil)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("missing trip", func(t *testing.T) {
		repo := newFakeTripRepository()
		svc := NewItineraryService(repo, &fakeGenerator{itinerary: testItinerary()}, &fakeWeather{}, zap.NewNop())

		_, err := svc.Generate(ctx, uuid.New(), uuid.New(), nil)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestItineraryService_Weather(t *testing.T) {
	ctx := context.Background()
	start := time.Now().AddDate(0, 1, 0)
	end := start.AddDate(0, 0, 7)

	t.Run("returns the forecast for the trip destination", func(t *testing.T) {
		repo := newFakeTripRepository()
		weather := &fakeWeather{report: &integration.WeatherReport{
			Destination: "Kyoto, Japan",
			Days:        []integration.WeatherDay{{Condition: "sunny"}},
		}}
		svc := NewItineraryService(repo, &fakeGenerator{}, weather, zap.NewNop())
		tr := mustTrip(t, repo, start, end)

		report, err := svc.Weather(ctx, tr.OwnerID, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, "Kyoto, Japan", weather.lastDst)
		assert.Len(t, report.Days, 1)
	})

	t.Run("provider errors pass through", func(t *testing.T) {
		repo := newFakeTripRepository()
		weather := &fakeWeather{err: errors.New("forecast down")}
		svc := NewItineraryService(repo, &fakeGenerator{}, weather, zap.NewNop())
		tr := mustTrip(t, repo, start, end)

		_, err := svc.Weather(ctx, tr.OwnerID, tr.ID)
		assert.EqualError(t, err, "forecast down")
	})

	t.Run("foreign trip is forbidden", func(t *testing.T) {
		repo := newFakeTripRepository()
		svc := NewItineraryService(repo, &fakeGenerator{}, &fakeWeather{}, zap.NewNop())
		tr := mustTrip(t, repo, start, end)

		_, err := svc.Weather(ctx, uuid.New(), tr.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})
}
