package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/integration"
	"github.com/tripline/backend/internal/infrastructure/config"
	"github.com/tripline/backend/internal/infrastructure/resilience"
)

func newItineraryTestClient(baseURL string, retry config.RetryConfig) *ItineraryClient {
	cfg := config.IntegrationConfig{
		ItineraryBaseURL: baseURL,
		ItineraryAPIKey:  "test-key",
		RequestTimeout:   5 * time.Second,
	}
	breaker := resilience.NewBreaker("itinerary", resilience.Settings{
		FailureThreshold: 10,
		ResetTimeout:     time.Minute,
		CallTimeout:      5 * time.Second,
	})
	return NewItineraryClient(cfg, retry, breaker, zap.NewNop())
}

func testGenerateRequest() *integration.ItineraryRequest {
	return &integration.ItineraryRequest{
		TripID:      uuid.New(),
		Destination: "Kyoto",
		StartDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		Travelers:   2,
		Budget:      decimal.NewFromInt(3000),
		Preferences: []string{"temples", "food"},
	}
}

func itineraryPayload() map[string]interface{} {
	return map[string]interface{}{
		"summary": "Three days in Kyoto",
		"days": []map[string]interface{}{
			{"day": 1, "date": "2026-04-01", "summary": "Arrival and Gion", "activities": []string{"Gion walk"}},
			{"day": 2, "date": "2026-04-02", "summary": "Temples", "activities": []string{"Kinkaku-ji", "Fushimi Inari"}},
			{"day": 3, "date": "2026-04-03", "summary": "Departure", "activities": []string{"Nishiki market"}},
		},
	}
}

func TestItineraryClient_Generate(t *testing.T) {
	t.Run("successful generation", func(t *testing.T) {
		var gotAuth string
		var gotBody itineraryAPIRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/itineraries", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(itineraryPayload())
		}))
		defer server.Close()

		client := newItineraryTestClient(server.URL, config.RetryConfig{MaxAttempts: 1})
		req := testGenerateRequest()

		itinerary, err := client.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, "Kyoto", gotBody.Destination)
		assert.Equal(t, "2026-04-01", gotBody.StartDate)
		assert.Equal(t, "3000", gotBody.Budget)
		assert.Equal(t, req.TripID, itinerary.TripID)
		assert.Equal(t, "Three days in Kyoto", itinerary.Summary)
		require.Len(t, itinerary.Days, 3)
		assert.Equal(t, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), itinerary.Days[1].Date)
		assert.Equal(t, []string{"Kinkaku-ji", "Fushimi Inari"}, itinerary.Days[1].Activities)
	})

	t.Run("retries server errors until success", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(itineraryPayload())
		}))
		defer server.Close()

		client := newItineraryTestClient(server.URL, config.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		})

		itinerary, err := client.Generate(context.Background(), testGenerateRequest())
		require.NoError(t, err)
		assert.EqualValues(t, 3, calls.Load())
		assert.Len(t, itinerary.Days, 3)
	})

	t.Run("exhausts attempts on persistent failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newItineraryTestClient(server.URL, config.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		})

		_, err := client.Generate(context.Background(), testGenerateRequest())
		var exhausted *resilience.ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Len(t, exhausted.Attempts, 2)
		assert.ErrorIs(t, exhausted.LastError, integration.ErrProviderRequestFailed)
	})

	t.Run("cancelled context stops the retry loop", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := newItineraryTestClient(server.URL, config.RetryConfig{
			MaxAttempts: 10,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    time.Second,
		})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		_, err := client.Generate(ctx, testGenerateRequest())
		require.Error(t, err)
		var cancelled *resilience.CancelledError
		if !errors.As(err, &cancelled) {
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("rejects empty day list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{"summary": "empty", "days": []interface{}{}})
		}))
		defer server.Close()

		client := newItineraryTestClient(server.URL, config.RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   time.Millisecond,
		})

		_, err := client.Generate(context.Background(), testGenerateRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, integration.ErrProviderInvalidResponse)
	})

	t.Run("unconfigured base URL", func(t *testing.T) {
		client := newItineraryTestClient("", config.RetryConfig{MaxAttempts: 1})
		_, err := client.Generate(context.Background(), testGenerateRequest())
		assert.ErrorIs(t, err, integration.ErrProviderNotConfigured)
	})
}
