package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/domain/trip"
	"github.com/tripline/backend/internal/infrastructure/resilience"
	"github.com/tripline/backend/internal/interfaces/http/dto"
	"github.com/tripline/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDContextKey); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// getUserID extracts the authenticated user ID from JWT claims
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr := middleware.GetJWTUserID(c)
	if userIDStr == "" {
		// development fallback
		userIDStr = c.GetHeader("X-User-ID")
	}
	if userIDStr == "" {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return uuid.Parse(userIDStr)
}

// isAdmin reports whether the request carries admin JWT claims. The
// X-User-ID development fallback never grants admin.
func isAdmin(c *gin.Context) bool {
	claims := middleware.GetJWTClaims(c)
	return claims != nil && claims.IsAdmin()
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// HandleError maps domain, lifecycle, and dependency errors to HTTP
// responses. Unknown error types become 500s without leaking internals.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var invalidTransition *trip.InvalidTransitionError
	if errors.As(err, &invalidTransition) {
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidTransition, invalidTransition.Error())
		return
	}

	var cancelled *resilience.CancelledError
	if errors.As(err, &cancelled) {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeRetryCancelled), dto.ErrCodeRetryCancelled,
			"The operation was cancelled before completing")
		return
	}

	// Exhaustion is checked before the breaker errors it may wrap, so a
	// retried-then-failed call reports exhaustion rather than the final
	// attempt's cause
	var exhausted *resilience.ExhaustedError
	if errors.As(err, &exhausted) {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeRetryExhausted), dto.ErrCodeRetryExhausted,
			"The upstream service kept failing and all attempts were used")
		return
	}

	var open *resilience.OpenError
	if errors.As(err, &open) {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeDependencyUnavailable), dto.ErrCodeDependencyUnavailable,
			"An upstream dependency is temporarily unavailable")
		return
	}

	var timeout *resilience.TimeoutError
	if errors.As(err, &timeout) {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeDependencyTimeout), dto.ErrCodeDependencyTimeout,
			"An upstream dependency timed out")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
