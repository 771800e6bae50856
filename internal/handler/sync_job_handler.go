package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-sync/pkg/errors"
	"github.com/noah-isme/sma-timetable-sync/pkg/response"
)

type syncJobReader interface {
	Get(ctx context.Context, id string) (*models.SyncJob, error)
	ListRecent(ctx context.Context, limit int) ([]models.SyncJob, error)
}

// SyncJobHandler serves read-only sync job status.
type SyncJobHandler struct {
	jobs syncJobReader
}

// NewSyncJobHandler constructs the handler.
func NewSyncJobHandler(jobs syncJobReader) *SyncJobHandler {
	return &SyncJobHandler{jobs: jobs}
}

// List returns the most recent jobs. Accepts an optional limit query.
// @Summary List recent sync jobs
// @Tags Sync Jobs
// @Produce json
// @Param limit query int false "Maximum number of jobs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sync/jobs [get]
func (h *SyncJobHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	list, err := h.jobs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, map[string]interface{}{"count": len(list)})
}

// Get returns one job.
// @Summary Get sync job
// @Tags Sync Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sync/jobs/{id} [get]
func (h *SyncJobHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}
