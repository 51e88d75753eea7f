package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/logger"
	"github.com/timmy/dropcart/internal/repository"
	"github.com/timmy/dropcart/internal/service"
)

// JobHandler exposes the job engine to an external scheduler.
type JobHandler struct {
	engine *service.JobEngine
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - engine: job engine instance.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(engine *service.JobEngine) *JobHandler {
	return &JobHandler{engine: engine}
}

// ListJobsResponse is the body of GET /api/v1/jobs.
type ListJobsResponse struct {
	Jobs   []domain.Job `json:"jobs"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// ListItemsResponse is the body of GET /api/v1/jobs/:id/items.
type ListItemsResponse struct {
	Items  []domain.JobItem `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// RunRequest is the optional body of POST /api/v1/jobs/:id/run.
type RunRequest struct {
	MaxSteps int `json:"max_steps" binding:"omitempty,min=1,max=100000"`
}

// CreateJob handles POST /api/v1/jobs.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req service.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	job, err := h.engine.CreateJob(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, offset := pagination(c, 50)
	jobs, total, err := h.engine.ListJobs(c.Request.Context(), repository.JobFilter{
		Kind:   domain.JobKind(c.Query("kind")),
		Status: domain.JobStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListJobsResponse{Jobs: jobs, Total: total, Limit: limit, Offset: offset})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.engine.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListItems handles GET /api/v1/jobs/:id/items.
func (h *JobHandler) ListItems(c *gin.Context) {
	limit, offset := pagination(c, 100)
	items, total, err := h.engine.Items(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListItemsResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// Step handles POST /api/v1/jobs/:id/step.
// The step outlives a dropped client connection so its work is persisted.
func (h *JobHandler) Step(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.engine.RunOneStep(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Run handles POST /api/v1/jobs/:id/run.
func (h *JobHandler) Run(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.engine.RunToCompletion(ctx, c.Param("id"), service.RunOptions{MaxSteps: req.MaxSteps})
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("steps", res.Steps).Warn("Run stopped early")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Cancel handles POST /api/v1/jobs/:id/cancel.
func (h *JobHandler) Cancel(c *gin.Context) {
	job, err := h.engine.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// pagination reads limit and offset query parameters.
func pagination(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 || limit > 500 {
		limit = defaultLimit
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
