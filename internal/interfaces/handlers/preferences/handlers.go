package preferences

import (
	"errors"

	prefsvc "campus-market/internal/application/preferences"
	"campus-market/internal/middleware"
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *prefsvc.Service
}

type favoriteRequest struct {
	ListingID string `json:"listing_id"`
}

type languageRequest struct {
	Language string `json:"language"`
}

func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, prefsvc.ErrNotAuthenticated):
		return response.Unauthorized(c, err.Error())
	case errors.Is(err, prefsvc.ErrInvalidLanguage):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, prefsvc.ErrConflict):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("preferences: request failed")
	return response.Internal(c)
}

// Favorites GET /api/v1/preferences/favorites
func (h *Handlers) Favorites(c *fiber.Ctx) error {
	ids, err := h.Service.GetFavorites(c.Context(), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Favorites fetched successfully", ids, nil)
}

// AddFavorite POST /api/v1/preferences/favorites
func (h *Handlers) AddFavorite(c *fiber.Ctx) error {
	var req favoriteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "listing_id is required")
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return response.BadRequest(c, "listing_id is required")
	}
	ids, err := h.Service.AddFavorite(c.Context(), middleware.UserID(c), listingID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Favorite added", ids, nil)
}

// RemoveFavorite DELETE /api/v1/preferences/favorites/:listing_id
func (h *Handlers) RemoveFavorite(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	ids, err := h.Service.RemoveFavorite(c.Context(), middleware.UserID(c), listingID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Favorite removed", ids, nil)
}

// Language GET /api/v1/preferences/language
func (h *Handlers) Language(c *fiber.Ctx) error {
	lang, err := h.Service.GetLanguage(c.Context(), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Language fetched successfully", fiber.Map{"language": lang}, nil)
}

// SetLanguage PUT /api/v1/preferences/language
func (h *Handlers) SetLanguage(c *fiber.Ctx) error {
	var req languageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, prefsvc.ErrInvalidLanguage.Error())
	}
	lang, err := h.Service.SetLanguage(c.Context(), middleware.UserID(c), req.Language)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Language saved", fiber.Map{"language": lang}, nil)
}
