package integration

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/integration"
	"github.com/tripline/backend/internal/infrastructure/config"
	"github.com/tripline/backend/internal/infrastructure/resilience"
)

type weatherAPIResponse struct {
	Days []struct {
		Date        string  `json:"date"`
		Condition   string  `json:"condition"`
		HighCelsius float64 `json:"high_celsius"`
		LowCelsius  float64 `json:"low_celsius"`
	} `json:"days"`
}

// WeatherClient calls the external weather service under its own breaker.
// The last successful report per destination is kept in memory; when the
// breaker short-circuits, the cached report is served with Stale set
// instead of failing the caller.
type WeatherClient struct {
	client  *resty.Client
	breaker *resilience.Breaker
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]*integration.WeatherReport
}

// NewWeatherClient creates a weather client from the integration config
func NewWeatherClient(cfg config.IntegrationConfig, breaker *resilience.Breaker, logger *zap.Logger) *WeatherClient {
	client := resty.New().
		SetBaseURL(cfg.WeatherBaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json")
	if cfg.WeatherAPIKey != "" {
		client.SetQueryParam("apikey", cfg.WeatherAPIKey)
	}

	return &WeatherClient{
		client:  client,
		breaker: breaker,
		logger:  logger.Named("weather_client"),
		cache:   make(map[string]*integration.WeatherReport),
	}
}

// Forecast returns the forecast for a destination between from and to.
// A live response refreshes the per-destination cache; a short-circuited
// call serves the cached report marked stale when one exists.
func (c *WeatherClient) Forecast(ctx context.Context, destination string, from, to time.Time) (*integration.WeatherReport, error) {
	if c.client.BaseURL == "" {
		return nil, integration.ErrProviderNotConfigured
	}

	key := cacheKey(destination)
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.fetch(ctx, destination, from, to)
	}, func(ctx context.Context, cause error) (interface{}, error) {
		cached := c.cached(key)
		if cached == nil {
			return nil, cause
		}
		c.logger.Warn("Serving cached weather report",
			zap.String("destination", destination),
			zap.Time("retrieved_at", cached.RetrievedAt),
			zap.Error(cause),
		)
		stale := *cached
		stale.Stale = true
		return &stale, nil
	})
	if err != nil {
		return nil, err
	}

	report := result.(*integration.WeatherReport)
	if !report.Stale {
		c.mu.Lock()
		c.cache[key] = report
		c.mu.Unlock()
	}
	return report, nil
}

func (c *WeatherClient) fetch(ctx context.Context, destination string, from, to time.Time) (*integration.WeatherReport, error) {
	var apiResp weatherAPIResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"destination": destination,
			"from":        from.Format(time.DateOnly),
			"to":          to.Format(time.DateOnly),
		}).
		SetResult(&apiResp).
		Get("/v1/forecast")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrProviderUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", integration.ErrProviderRequestFailed, resp.StatusCode())
	}

	report := &integration.WeatherReport{
		Destination: destination,
		Days:        make([]integration.WeatherDay, 0, len(apiResp.Days)),
		RetrievedAt: time.Now(),
	}
	for _, day := range apiResp.Days {
		date, err := time.Parse(time.DateOnly, day.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad day date %q", integration.ErrProviderInvalidResponse, day.Date)
		}
		report.Days = append(report.Days, integration.WeatherDay{
			Date:        date,
			Condition:   day.Condition,
			HighCelsius: day.HighCelsius,
			LowCelsius:  day.LowCelsius,
		})
	}
	return report, nil
}

func (c *WeatherClient) cached(key string) *integration.WeatherReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache[key]
}

func cacheKey(destination string) string {
	return strings.ToLower(strings.TrimSpace(destination))
}

var _ integration.WeatherProvider = (*WeatherClient)(nil)
