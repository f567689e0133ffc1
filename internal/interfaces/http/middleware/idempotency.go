package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader is the request header carrying the client's key
const IdempotencyKeyHeader = "Idempotency-Key"

// maxIdempotencyKeyLength bounds accepted key sizes
const maxIdempotencyKeyLength = 255

// Idempotency rejects requests whose Idempotency-Key was already processed
// within the TTL. The key is claimed before the handler runs; a handler
// failure does not release it, so clients must use a fresh key to retry a
// failed request. Requests without the header pass through untouched.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				dto.ErrCodeBadRequest, "Idempotency key is too long"))
			return
		}

		// Scope the key to method and path so the same key may be reused
		// against different endpoints
		scoped := c.Request.Method + " " + c.FullPath() + " " + key

		newlyMarked, err := store.MarkProcessed(c.Request.Context(), scoped, ttl)
		if err != nil {
			logger.Error("Idempotency check failed",
				zap.String("key", key),
				zap.Error(err),
			)
			// store errors fail open
			c.Next()
			return
		}
		if !newlyMarked {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponse(
				dto.ErrCodeDuplicateRequest, "Request with this idempotency key was already processed"))
			return
		}

		c.Next()
	}
}
