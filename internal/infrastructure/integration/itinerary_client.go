package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/integration"
	"github.com/tripline/backend/internal/infrastructure/config"
	"github.com/tripline/backend/internal/infrastructure/resilience"
)

// maxItineraryDays bounds how many planned days a response may carry
const maxItineraryDays = 60

type itineraryAPIRequest struct {
	Destination string   `json:"destination"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Travelers   int      `json:"travelers"`
	Budget      string   `json:"budget"`
	Preferences []string `json:"preferences,omitempty"`
}

type itineraryAPIResponse struct {
	Summary string `json:"summary"`
	Days    []struct {
		Day        int      `json:"day"`
		Date       string   `json:"date"`
		Summary    string   `json:"summary"`
		Activities []string `json:"activities"`
	} `json:"days"`
}

// ItineraryClient calls the external itinerary planning service. Every
// generation runs under the shared breaker and a bounded retry loop; a
// cancelled ctx stops the loop between attempts via the cooperative token.
type ItineraryClient struct {
	client  *resty.Client
	breaker *resilience.Breaker
	retry   config.RetryConfig
	logger  *zap.Logger
}

// NewItineraryClient creates an itinerary client from the integration config
func NewItineraryClient(cfg config.IntegrationConfig, retry config.RetryConfig, breaker *resilience.Breaker, logger *zap.Logger) *ItineraryClient {
	client := resty.New().
		SetBaseURL(cfg.ItineraryBaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json")
	if cfg.ItineraryAPIKey != "" {
		client.SetAuthToken(cfg.ItineraryAPIKey)
	}

	return &ItineraryClient{
		client:  client,
		breaker: breaker,
		retry:   retry,
		logger:  logger.Named("itinerary_client"),
	}
}

// Generate requests a day-by-day plan for the trip. Attempts are retried
// with exponential backoff; cancelling ctx cancels the retry token so a
// disconnected caller never keeps a generation loop alive.
func (c *ItineraryClient) Generate(ctx context.Context, req *integration.ItineraryRequest) (*integration.Itinerary, error) {
	if c.client.BaseURL == "" {
		return nil, integration.ErrProviderNotConfigured
	}

	token := resilience.NewCancellationToken()
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			token.Cancel()
		case <-watchDone:
		}
	}()

	var itinerary *integration.Itinerary
	err := resilience.Retry(ctx, resilience.RetryOptions{
		MaxAttempts: c.retry.MaxAttempts,
		BaseDelay:   c.retry.BaseDelay,
		MaxDelay:    c.retry.MaxDelay,
		Token:       token,
		OnProgress:  c.logProgress(req.TripID.String()),
	}, func(ctx context.Context) error {
		result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return c.generateOnce(ctx, req)
		}, nil)
		if err != nil {
			return err
		}
		itinerary = result.(*integration.Itinerary)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return itinerary, nil
}

// generateOnce performs a single HTTP call to the provider
func (c *ItineraryClient) generateOnce(ctx context.Context, req *integration.ItineraryRequest) (*integration.Itinerary, error) {
	body := itineraryAPIRequest{
		Destination: req.Destination,
		StartDate:   req.StartDate.Format(time.DateOnly),
		EndDate:     req.EndDate.Format(time.DateOnly),
		Travelers:   req.Travelers,
		Budget:      req.Budget.String(),
		Preferences: req.Preferences,
	}

	var apiResp itineraryAPIResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&apiResp).
		Post("/v1/itineraries")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrProviderUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, fmt.Errorf("%w: status %d", integration.ErrProviderRequestFailed, resp.StatusCode())
	}
	if len(apiResp.Days) == 0 || len(apiResp.Days) > maxItineraryDays {
		return nil, fmt.Errorf("%w: %d planned days", integration.ErrProviderInvalidResponse, len(apiResp.Days))
	}

	itinerary := &integration.Itinerary{
		TripID:      req.TripID,
		Summary:     apiResp.Summary,
		Days:        make([]integration.ItineraryDay, 0, len(apiResp.Days)),
		GeneratedAt: time.Now(),
	}
	for _, day := range apiResp.Days {
		date, err := time.Parse(time.DateOnly, day.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad day date %q", integration.ErrProviderInvalidResponse, day.Date)
		}
		itinerary.Days = append(itinerary.Days, integration.ItineraryDay{
			Day:        day.Day,
			Date:       date,
			Summary:    day.Summary,
			Activities: day.Activities,
		})
	}
	return itinerary, nil
}

func (c *ItineraryClient) logProgress(tripID string) func(resilience.Progress) {
	return func(p resilience.Progress) {
		if !p.IsRetrying {
			return
		}
		c.logger.Info("Retrying itinerary generation",
			zap.String("trip_id", tripID),
			zap.Int("attempt", p.CurrentAttempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("next_retry_delay", p.NextRetryDelay),
			zap.Time("estimated_completion", p.EstimatedCompletion),
		)
	}
}

var _ integration.ItineraryGenerator = (*ItineraryClient)(nil)
