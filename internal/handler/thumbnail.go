package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/tuneedit/api/internal/service"
	"github.com/tuneedit/api/internal/thumbnail"
	"github.com/tuneedit/api/pkg/response"
)

// MaxUploadSize caps a single multipart file. Larger parts are only sniffed
// so the selection guard still runs first, then rejected as too large.
const MaxUploadSize = 10 * 1024 * 1024

// sniffLen is enough content for media type detection.
const sniffLen = 3072

type ThumbnailHandler struct {
	service *service.SessionService
}

func NewThumbnailHandler(svc *service.SessionService) *ThumbnailHandler {
	return &ThumbnailHandler{service: svc}
}

// Upload handles POST /api/sessions/:sessionId/thumbnail
func (h *ThumbnailHandler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return response.ValidationError(c, "Multipart form with a file field is required", nil)
	}

	files := form.File["file"]
	candidates := make([]thumbnail.Candidate, 0, len(files))
	oversize := false
	for _, fh := range files {
		limit := fh.Size
		if fh.Size > MaxUploadSize {
			oversize = true
			limit = sniffLen
		}

		f, err := fh.Open()
		if err != nil {
			return response.ServiceError(c, "Failed to open file")
		}
		data, err := io.ReadAll(io.LimitReader(f, limit))
		f.Close()
		if err != nil {
			return response.ServiceError(c, "Failed to read file")
		}

		candidates = append(candidates, thumbnail.Candidate{
			Name:         fh.Filename,
			DeclaredType: fh.Header.Get("Content-Type"),
			Data:         data,
		})
	}

	// Media type and count are judged before size.
	if rej := thumbnail.CheckSelection(candidates); rej != nil {
		return serviceError(c, rej)
	}
	if oversize {
		return serviceError(c, &thumbnail.Rejection{Reason: thumbnail.ReasonFileTooLarge})
	}

	sess, err := h.service.StageThumbnail(c.Context(), c.Params("sessionId"), candidates)
	if err != nil {
		return serviceError(c, err)
	}
	return respondState(c, h.service, sess)
}

// Clear handles DELETE /api/sessions/:sessionId/thumbnail
func (h *ThumbnailHandler) Clear(c *fiber.Ctx) error {
	sess, err := h.service.ClearThumbnail(c.Context(), c.Params("sessionId"))
	if err != nil {
		return serviceError(c, err)
	}
	return respondState(c, h.service, sess)
}
