package handler

import (
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tuneedit/api/internal/model"
	"github.com/tuneedit/api/internal/service"
	"github.com/tuneedit/api/pkg/response"
)

type SessionHandler struct {
	service   *service.SessionService
	validator *validator.Validate
}

func NewSessionHandler(svc *service.SessionService, v *validator.Validate) *SessionHandler {
	return &SessionHandler{
		service:   svc,
		validator: v,
	}
}

// Launch handles POST /api/sessions?<launch query>
func (h *SessionHandler) Launch(c *fiber.Ctx) error {
	var req model.LaunchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		if err := h.validator.Struct(&req); err != nil {
			return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
		}
	}

	// Malformed pairs are dropped; whatever parsed is kept.
	query, _ := url.ParseQuery(string(c.Request().URI().QueryString()))

	result, err := h.service.Launch(c.Context(), query, req.Theme)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, model.LaunchResponse{
		SessionID: result.Session.ID,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		State:     stateResponse(result.Session, false),
	})
}

// Get handles GET /api/sessions/:sessionId
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")

	sess, err := h.service.Get(c.Context(), sessionID)
	if err != nil {
		return serviceError(c, err)
	}
	return respondState(c, h.service, sess)
}

// SetTitle handles PUT /api/sessions/:sessionId/title
func (h *SessionHandler) SetTitle(c *fiber.Ctx) error {
	var req model.UpdateTextRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	sess, err := h.service.SetTitle(c.Context(), c.Params("sessionId"), *req.Value)
	if err != nil {
		return serviceError(c, err)
	}
	return respondState(c, h.service, sess)
}

// SetArtist handles PUT /api/sessions/:sessionId/artist
func (h *SessionHandler) SetArtist(c *fiber.Ctx) error {
	var req model.UpdateTextRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	sess, err := h.service.SetArtist(c.Context(), c.Params("sessionId"), *req.Value)
	if err != nil {
		return serviceError(c, err)
	}
	return respondState(c, h.service, sess)
}

func respondState(c *fiber.Ctx, svc *service.SessionService, sess *model.Session) error {
	submitting, err := svc.IsSubmitting(c.Context(), sess.ID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, stateResponse(sess, submitting))
}

func stateResponse(sess *model.Session, submitting bool) model.SessionStateResponse {
	return model.SessionStateResponse{
		SessionID:  sess.ID,
		Initial:    sess.Form.Initial,
		Effective:  sess.Form.Effective(),
		IsChanged:  sess.Form.IsChanged(),
		Submitting: submitting,
		Theme:      sess.Theme,
	}
}
