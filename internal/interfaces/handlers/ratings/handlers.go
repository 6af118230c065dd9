package ratings

import (
	"errors"

	ratingsvc "campus-market/internal/application/ratings"
	"campus-market/internal/middleware"
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var errSelfRating = errors.New("You cannot rate yourself")

type Handlers struct {
	Service *ratingsvc.Service
}

type submitRequest struct {
	Rating int `json:"rating"`
}

// Summary GET /api/v1/ratings/:seller_id
func (h *Handlers) Summary(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("seller_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid seller id")
	}
	sum, err := h.Service.GetSellerRatings(c.Context(), sellerID)
	if err != nil {
		log.Error().Err(err).Msg("ratings: summary failed")
		return response.Internal(c)
	}
	return response.Success(c, "Ratings fetched successfully", sum, nil)
}

// Mine GET /api/v1/ratings/:seller_id/mine; data is null when not rated yet.
func (h *Handlers) Mine(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("seller_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid seller id")
	}
	r, err := h.Service.GetUserRatingForSeller(c.Context(), sellerID, middleware.UserID(c))
	if err != nil {
		log.Error().Err(err).Msg("ratings: lookup failed")
		return response.Internal(c)
	}
	return response.Success(c, "Rating fetched successfully", r, nil)
}

// Submit PUT /api/v1/ratings/:seller_id
func (h *Handlers) Submit(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("seller_id"))
	if err != nil {
		return response.BadRequest(c, "Invalid seller id")
	}
	caller := middleware.UserID(c)
	if caller == sellerID {
		return response.Error(c, errSelfRating.Error(), fiber.StatusForbidden, nil)
	}
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, ratingsvc.ErrInvalidRating.Error())
	}
	r, err := h.Service.SubmitRating(c.Context(), sellerID, caller, req.Rating)
	switch {
	case err == nil:
		return response.Success(c, "Rating saved", r, nil)
	case errors.Is(err, ratingsvc.ErrInvalidRating):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, ratingsvc.ErrNotAuthenticated):
		return response.Unauthorized(c, err.Error())
	}
	log.Error().Err(err).Msg("ratings: submit failed")
	return response.Internal(c)
}
