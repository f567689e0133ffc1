package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/integration"
	"github.com/tripline/backend/internal/infrastructure/config"
	"github.com/tripline/backend/internal/infrastructure/resilience"
)

func newWeatherTestClient(baseURL string, threshold int) *WeatherClient {
	cfg := config.IntegrationConfig{
		WeatherBaseURL: baseURL,
		WeatherAPIKey:  "test-key",
		RequestTimeout: 5 * time.Second,
	}
	breaker := resilience.NewBreaker("weather", resilience.Settings{
		FailureThreshold: threshold,
		ResetTimeout:     time.Minute,
		CallTimeout:      5 * time.Second,
	})
	return NewWeatherClient(cfg, breaker, zap.NewNop())
}

func weatherPayload() map[string]interface{} {
	return map[string]interface{}{
		"days": []map[string]interface{}{
			{"date": "2026-04-01", "condition": "sunny", "high_celsius": 18.5, "low_celsius": 9.0},
			{"date": "2026-04-02", "condition": "rain", "high_celsius": 14.0, "low_celsius": 8.5},
		},
	}
}

func TestWeatherClient_Forecast(t *testing.T) {
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	t.Run("successful forecast", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/forecast", r.URL.Path)
			require.Equal(t, "test-key", r.URL.Query().Get("apikey"))
			require.Equal(t, "Kyoto", r.URL.Query().Get("destination"))
			require.Equal(t, "2026-04-01", r.URL.Query().Get("from"))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(weatherPayload())
		}))
		defer server.Close()

		client := newWeatherTestClient(server.URL, 5)
		report, err := client.Forecast(context.Background(), "Kyoto", from, to)
		require.NoError(t, err)
		assert.Equal(t, "Kyoto", report.Destination)
		assert.False(t, report.Stale)
		require.Len(t, report.Days, 2)
		assert.Equal(t, "sunny", report.Days[0].Condition)
		assert.InDelta(t, 18.5, report.Days[0].HighCelsius, 0.001)
	})

	t.Run("open breaker serves cached report marked stale", func(t *testing.T) {
		var failing atomic.Bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(weatherPayload())
		}))
		defer server.Close()

		client := newWeatherTestClient(server.URL, 2)

		// Prime the cache with a live response
		report, err := client.Forecast(context.Background(), "Kyoto", from, to)
		require.NoError(t, err)
		require.False(t, report.Stale)

		// Trip the breaker
		failing.Store(true)
		for i := 0; i < 2; i++ {
			_, err := client.Forecast(context.Background(), "Kyoto", from, to)
			require.Error(t, err)
		}
		require.Equal(t, resilience.StateOpen, client.breaker.State())

		report, err = client.Forecast(context.Background(), "Kyoto", from, to)
		require.NoError(t, err)
		assert.True(t, report.Stale)
		require.Len(t, report.Days, 2)
		assert.Equal(t, "rain", report.Days[1].Condition)
	})

	t.Run("open breaker without cache returns open error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newWeatherTestClient(server.URL, 1)
		_, err := client.Forecast(context.Background(), "Lisbon", from, to)
		require.Error(t, err)

		var open *resilience.OpenError
		_, err = client.Forecast(context.Background(), "Lisbon", from, to)
		require.ErrorAs(t, err, &open)
		assert.Equal(t, "weather", open.Name)
	})

	t.Run("cache keys are case insensitive", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(weatherPayload())
		}))
		defer server.Close()

		client := newWeatherTestClient(server.URL, 5)
		_, err := client.Forecast(context.Background(), "Kyoto", from, to)
		require.NoError(t, err)
		assert.NotNil(t, client.cached("kyoto"))
		assert.NotNil(t, client.cached(cacheKey(" KYOTO ")))
	})

	t.Run("rejects malformed day date", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"days": []map[string]interface{}{{"date": "April 1st", "condition": "sunny"}},
			})
		}))
		defer server.Close()

		client := newWeatherTestClient(server.URL, 5)
		_, err := client.Forecast(context.Background(), "Kyoto", from, to)
		assert.ErrorIs(t, err, integration.ErrProviderInvalidResponse)
	})

	t.Run("unconfigured base URL", func(t *testing.T) {
		client := newWeatherTestClient("", 5)
		_, err := client.Forecast(context.Background(), "Kyoto", from, to)
		assert.ErrorIs(t, err, integration.ErrProviderNotConfigured)
	})
}
