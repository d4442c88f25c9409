package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tuneedit/api/internal/model"
	"github.com/tuneedit/api/internal/service"
	"github.com/tuneedit/api/internal/thumbnail"
	"github.com/tuneedit/api/pkg/response"
)

// serviceError maps service errors onto the response envelope.
func serviceError(c *fiber.Ctx, err error) error {
	var rej *thumbnail.Rejection
	switch {
	case errors.As(err, &rej):
		return response.ValidationError(c, rej.Reason.Message(), model.ThumbnailRejection{
			Reason:  string(rej.Reason),
			Message: rej.Reason.Message(),
		})
	case errors.Is(err, service.ErrSessionNotFound):
		return response.NotFound(c, "Session not found")
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrSubmitInFlight):
		return response.Conflict(c, "Submission already in progress")
	case errors.Is(err, service.ErrStaleValidation):
		return response.Conflict(c, "A newer thumbnail was selected")
	case errors.Is(err, service.ErrNothingToSubmit):
		return response.NothingToSubmit(c)
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
