package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tripline/backend/internal/infrastructure/resilience"
	"github.com/tripline/backend/internal/infrastructure/scheduler"
	"github.com/tripline/backend/internal/interfaces/http/dto"
)

// Pinger reports whether the database connection is alive
type Pinger interface {
	Ping() error
}

// SweepStats reports the status sweep scheduler's activity
type SweepStats interface {
	Stats() scheduler.RunStats
}

// SystemHandler serves health and readiness endpoints
type SystemHandler struct {
	BaseHandler
	db        Pinger
	breakers  *resilience.Registry
	scheduler SweepStats
	version   string
	startedAt time.Time
}

// NewSystemHandler creates a new SystemHandler. scheduler may be nil when
// the sweep is disabled.
func NewSystemHandler(db Pinger, breakers *resilience.Registry, sweep SweepStats, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		breakers:  breakers,
		scheduler: sweep,
		version:   version,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers system routes directly on the engine root
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
}

type healthResponse struct {
	Status    string                      `json:"status"`
	Version   string                      `json:"version"`
	UptimeSec int64                       `json:"uptime_seconds"`
	Database  string                      `json:"database"`
	Breakers  map[string]resilience.Stats `json:"breakers"`
	Sweep     *scheduler.RunStats         `json:"sweep,omitempty"`
}

// Health handles GET /health. Reports degraded (but still 200) when a
// breaker is open, and 503 when the database is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := healthResponse{
		Status:    "ok",
		Version:   h.version,
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
		Database:  "ok",
	}

	statusCode := http.StatusOK
	if err := h.db.Ping(); err != nil {
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		statusCode = http.StatusServiceUnavailable
	}

	if h.breakers != nil {
		resp.Breakers = h.breakers.Snapshot()
		for _, stats := range resp.Breakers {
			if stats.State != resilience.StateClosed && resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
	}

	if h.scheduler != nil {
		stats := h.scheduler.Stats()
		resp.Sweep = &stats
	}

	c.JSON(statusCode, dto.NewSuccessResponse(resp))
}

// Ready handles GET /ready, a minimal readiness probe
func (h *SystemHandler) Ready(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(
			dto.ErrCodeDependencyUnavailable, "Database is unreachable"))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ready"}))
}
