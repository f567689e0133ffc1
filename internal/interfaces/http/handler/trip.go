package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apptrip "github.com/tripline/backend/internal/application/trip"
	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/domain/trip"
	"github.com/tripline/backend/internal/interfaces/http/dto"
)

// TripHandler handles trip CRUD and lifecycle endpoints
type TripHandler struct {
	BaseHandler
	trips  *apptrip.TripService
	status *apptrip.StatusService

	// idempotency guards the transition endpoint; nil disables the check
	idempotency gin.HandlerFunc
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(trips *apptrip.TripService, status *apptrip.StatusService, idempotency gin.HandlerFunc) *TripHandler {
	return &TripHandler{
		trips:       trips,
		status:      status,
		idempotency: idempotency,
	}
}

// RegisterRoutes registers trip routes on the given router group
func (h *TripHandler) RegisterRoutes(rg *gin.RouterGroup) {
	trips := rg.Group("/trips")
	{
		trips.POST("", h.Create)
		trips.GET("", h.List)
		trips.GET("/:id", h.Get)
		trips.PUT("/:id", h.Update)
		trips.DELETE("/:id", h.Delete)

		if h.idempotency != nil {
			trips.POST("/:id/status", h.idempotency, h.Transition)
		} else {
			trips.POST("/:id/status", h.Transition)
		}
		trips.GET("/:id/status/options", h.TransitionOptions)
		trips.GET("/:id/transitions", h.History)
	}
}

type createTripRequest struct {
	Title       string    `json:"title" binding:"required,max=255"`
	Destination string    `json:"destination" binding:"required,max=255"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
	Budget      *float64  `json:"budget" binding:"omitempty,gte=0"`
	Travelers   *int      `json:"travelers" binding:"omitempty,min=1"`
}

type updateTripRequest struct {
	Title       string    `json:"title" binding:"required,max=255"`
	Destination string    `json:"destination" binding:"required,max=255"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
	Budget      *float64  `json:"budget" binding:"omitempty,gte=0"`
	Travelers   *int      `json:"travelers" binding:"omitempty,min=1"`
}

type transitionRequest struct {
	Status   string                 `json:"status" binding:"required"`
	Reason   string                 `json:"reason"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Create handles POST /trips
func (h *TripHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req createTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.trips.Create(c.Request.Context(), userID, apptrip.CreateTripRequest{
		Title:       req.Title,
		Destination: req.Destination,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Budget:      req.Budget,
		Travelers:   req.Travelers,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get handles GET /trips/:id
func (h *TripHandler) Get(c *gin.Context) {
	userID, tripID, ok := h.bindTripRequest(c)
	if !ok {
		return
	}

	resp, err := h.trips.GetByID(c.Request.Context(), userID, tripID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List handles GET /trips
func (h *TripHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := apptrip.TripListFilter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
		Search:   listReq.Search,
	}
	if raw := c.Query("status"); raw != "" {
		status := trip.Status(raw)
		if !status.IsValid() {
			h.BadRequest(c, "Unknown trip status: "+raw)
			return
		}
		filter.Status = &status
	}

	trips, total, err := h.trips.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, trips, total, filter.Page, filter.PageSize)
}

// Update handles PUT /trips/:id
func (h *TripHandler) Update(c *gin.Context) {
	userID, tripID, ok := h.bindTripRequest(c)
	if !ok {
		return
	}

	var req updateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.trips.Update(c.Request.Context(), userID, tripID, apptrip.UpdateTripRequest{
		Title:       req.Title,
		Destination: req.Destination,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Budget:      req.Budget,
		Travelers:   req.Travelers,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete handles DELETE /trips/:id
func (h *TripHandler) Delete(c *gin.Context) {
	userID, tripID, ok := h.bindTripRequest(c)
	if !ok {
		return
	}

	if err := h.trips.Delete(c.Request.Context(), userID, tripID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Transition handles POST /trips/:id/status
func (h *TripHandler) Transition(c *gin.Context) {
	userID, tripID, ok := h.bindTripRequest(c)
	if !ok {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	// Automatic reasons (date_based, system, ...) are assigned by the
	// server, never accepted from clients
	var reason trip.TransitionReason
	switch req.Reason {
	case "", string(trip.ReasonManual):
		reason = trip.ReasonManual
	case string(trip.ReasonAdminOverride):
		if !isAdmin(c) {
			h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden,
				"Admin role required for admin_override transitions")
			return
		}
		reason = trip.ReasonAdminOverride
	default:
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation,
			"Transition reason must be manual or admin_override")
		return
	}

	// Ownership check happens before the transition so foreign trips 403
	// instead of transitioning
	if _, err := h.trips.GetByID(c.Request.Context(), userID, tripID); err != nil {
		h.HandleError(c, err)
		return
	}

	resp, err := h.status.RequestTransition(
		c.Request.Context(),
		tripID,
		trip.Status(req.Status),
		&userID,
		reason,
		req.Metadata,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// TransitionOptions handles GET /trips/:id/status/options
func (h *TripHandler) TransitionOptions(c *gin.Context) {
	userID, tripID, ok := h.bindTripRequest(c)
	if !ok {
		return
	}

	if _, err := h.trips.GetByID(c.Request.Context(), userID, tripID); err != nil {
		h.HandleError(c, err)
		return
	}

	resp, err := h.status.GetTransitionOptions(c.Request.Context(), tripID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// History handles GET /trips/:id/transitions
func (h *TripHandler) History(c *gin.Context) {
	userID, tripID, ok := h.bindTripRequest(c)
	if !ok {
		return
	}

	if _, err := h.trips.GetByID(c.Request.Context(), userID, tripID); err != nil {
		h.HandleError(c, err)
		return
	}

	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	entries, total, err := h.status.GetHistory(c.Request.Context(), tripID, shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, listReq.Page, listReq.PageSize)
}

// bindTripRequest extracts the authenticated user and the trip ID path
// parameter, writing the error response itself on failure
func (h *BaseHandler) bindTripRequest(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}

	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid trip ID")
		return uuid.Nil, uuid.Nil, false
	}
	tripID, err := uuid.Parse(idReq.ID)
	if err != nil {
		h.BadRequest(c, "Invalid trip ID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, tripID, true
}
