package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tuneedit/api/internal/model"
	"github.com/tuneedit/api/internal/service"
	"github.com/tuneedit/api/pkg/response"
)

type SubmitHandler struct {
	service *service.SubmitService
}

func NewSubmitHandler(svc *service.SubmitService) *SubmitHandler {
	return &SubmitHandler{service: svc}
}

// Submit handles POST /api/sessions/:sessionId/submit
func (h *SubmitHandler) Submit(c *fiber.Ctx) error {
	job, err := h.service.Start(c.Context(), c.Params("sessionId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, model.SubmitStartResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	})
}

// Status handles GET /api/sessions/:sessionId/submission/:jobId
func (h *SubmitHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.Status(c.Context(), c.Params("sessionId"), jobID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, model.SubmissionStatusResponse{
		JobID:       job.ID,
		SessionID:   job.SessionID,
		Status:      job.Status,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	})
}
