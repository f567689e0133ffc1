package handler

import (
	"github.com/gin-gonic/gin"

	apptrip "github.com/tripline/backend/internal/application/trip"
)

// ItineraryHandler handles itinerary generation and weather endpoints
type ItineraryHandler struct {
	BaseHandler
	itineraries *apptrip.ItineraryService
}

// NewItineraryHandler creates a new ItineraryHandler
func NewItineraryHandler(itineraries *apptrip.ItineraryService) *ItineraryHandler {
	return &ItineraryHandler{itineraries: itineraries}
}

// RegisterRoutes registers itinerary routes on the given router group
func (h *ItineraryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	trips := rg.Group("/trips")
	{
		trips.POST("/:id/itinerary", h.Generate)
		trips.GET("/:id/weather", h.Weather)
	}
}

type generateItineraryRequest struct {
	Preferences []string `json:"preferences" binding:"omitempty,max=20,dive,max=100"`
}

// Generate handles POST /trips/:id/itinerary. The generation runs under the
// request context; a client that disconnects cancels the provider retry
// loop.
func (h *ItineraryHandler) Generate(c *gin.Context) {
	userID, tripID, ok := h.bindTripRequest(c)
	if !ok {
		return
	}

	var req generateItineraryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	resp, err := h.itineraries.Generate(c.Request.Context(), userID, tripID, req.Preferences)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Weather handles GET /trips/:id/weather
func (h *ItineraryHandler) Weather(c *gin.Context) {
	userID, tripID, ok := h.bindTripRequest(c)
	if !ok {
		return
	}

	report, err := h.itineraries.Weather(c.Request.Context(), userID, tripID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
