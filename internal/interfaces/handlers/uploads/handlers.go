package uploads

import (
	"errors"

	uploadsvc "campus-market/internal/application/uploads"
	"campus-market/internal/middleware"
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers bundles upload handlers with the service and the bucket names.
type Handlers struct {
	Service             *uploadsvc.Service
	ListingImagesBucket string
	MessageImagesBucket string
}

type uploadRequest struct {
	FileName string `json:"file_name"`
}

func (h *Handlers) signed(c *fiber.Ctx, bucket string) error {
	var req uploadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, uploadsvc.ErrFileNameRequired.Error())
	}
	res, err := h.Service.GetSignedUploadURL(c.Context(), middleware.UserID(c), bucket, req.FileName)
	switch {
	case err == nil:
		return response.Success(c, "Upload URL generated", res, nil)
	case errors.Is(err, uploadsvc.ErrFileNameRequired):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, uploadsvc.ErrNotAuthenticated):
		return response.Unauthorized(c, err.Error())
	}
	log.Error().Err(err).Str("bucket", bucket).Msg("upload: failed to generate signed URL")
	return response.Error(c, "Failed to generate upload URL", fiber.StatusInternalServerError, nil)
}

// ListingImage POST /api/v1/uploads/listing-image
func (h *Handlers) ListingImage(c *fiber.Ctx) error {
	return h.signed(c, h.ListingImagesBucket)
}

// MessageImage POST /api/v1/uploads/message-image
func (h *Handlers) MessageImage(c *fiber.Ctx) error {
	return h.signed(c, h.MessageImagesBucket)
}
