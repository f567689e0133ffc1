package integration

import (
	"context"
	"time"
)

// WeatherDay is one day of forecast for a destination.
type WeatherDay struct {
	Date        time.Time `json:"date"`
	Condition   string    `json:"condition"`
	HighCelsius float64   `json:"high_celsius"`
	LowCelsius  float64   `json:"low_celsius"`
}

// WeatherReport is a multi-day forecast for a destination. Stale marks a
// report served from a provider-side outage fallback rather than a live
// response.
type WeatherReport struct {
	Destination string       `json:"destination"`
	Days        []WeatherDay `json:"days"`
	RetrievedAt time.Time    `json:"retrieved_at"`
	Stale       bool         `json:"stale"`
}

// WeatherProvider defines the port interface for the external weather
// provider.
type WeatherProvider interface {
	Forecast(ctx context.Context, destination string, from, to time.Time) (*WeatherReport, error)
}
