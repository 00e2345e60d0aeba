package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency the health check probes
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports database and cache reachability
type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates a health handler. cache may be nil when Redis is not configured.
func NewHealthHandler(db, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Check godoc
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbStatus := "up"
	if err := h.db.Ping(ctx); err != nil {
		dbStatus = "down"
	}

	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "up"
		if err := h.cache.Ping(ctx); err != nil {
			cacheStatus = "down"
		}
	}

	status, overall := http.StatusOK, "healthy"
	if dbStatus == "down" || cacheStatus == "down" {
		status, overall = http.StatusServiceUnavailable, "unhealthy"
	}

	return c.JSON(status, map[string]any{
		"status":   overall,
		"database": dbStatus,
		"cache":    cacheStatus,
	})
}
