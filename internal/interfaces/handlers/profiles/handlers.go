package profiles

import (
	"errors"

	profilesvc "campus-market/internal/application/profiles"
	"campus-market/internal/middleware"
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *profilesvc.Service
}

// GetProfile GET /api/v1/profiles/:id
func (h *Handlers) GetProfile(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid profile id")
	}
	p, err := h.Service.GetProfile(c.Context(), id)
	if err != nil {
		if errors.Is(err, profilesvc.ErrProfileNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		log.Error().Err(err).Msg("profiles: get failed")
		return response.Internal(c)
	}
	return response.Success(c, "Profile fetched successfully", p, nil)
}

// UpdateMe PATCH /api/v1/profiles/me
func (h *Handlers) UpdateMe(c *fiber.Ctx) error {
	var fields map[string]interface{}
	if err := c.BodyParser(&fields); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	p, err := h.Service.UpdateProfile(c.Context(), middleware.UserID(c), fields)
	switch {
	case err == nil:
		return response.Success(c, "Profile updated successfully", p, nil)
	case errors.Is(err, profilesvc.ErrNoValidFields),
		errors.Is(err, profilesvc.ErrInvalidName),
		errors.Is(err, profilesvc.ErrInvalidFieldValue):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, profilesvc.ErrProfileNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	}
	log.Error().Err(err).Msg("profiles: update failed")
	return response.Internal(c)
}
