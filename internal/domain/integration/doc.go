// Package integration defines the port interfaces for external travel
// providers. The interfaces live in the domain layer and the concrete
// HTTP adapters (itinerary AI, weather) live in the infrastructure layer.
package integration
