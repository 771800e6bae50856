package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
	"github.com/noah-isme/sma-timetable-sync/internal/service"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type snapshotCounter interface {
	Counts(ctx context.Context) (models.SnapshotCounts, error)
}

// HealthHandler exposes liveness, readiness and Prometheus endpoints.
type HealthHandler struct {
	db       pinger
	snapshot snapshotCounter
	metrics  *service.MetricsService
}

// NewHealthHandler constructs the handler. snapshot may be nil.
func NewHealthHandler(db pinger, snapshot snapshotCounter, metrics *service.MetricsService) *HealthHandler {
	return &HealthHandler{db: db, snapshot: snapshot, metrics: metrics}
}

// Health always answers ok while the process serves requests.
// @Summary Health check
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks the database and reports the size of the stored timetable.
// @Summary Readiness check
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not configured"})
		return
	}
	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}

	body := gin.H{"status": "ready"}
	if h.snapshot != nil {
		if counts, err := h.snapshot.Counts(ctx); err == nil {
			body["snapshot"] = counts
		}
	}
	c.JSON(http.StatusOK, body)
}

// Prometheus serves the metrics registry.
// @Summary Prometheus metrics
// @Tags Ops
// @Produce plain
// @Success 200 {string} string
// @Router /metrics [get]
func (h *HealthHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
