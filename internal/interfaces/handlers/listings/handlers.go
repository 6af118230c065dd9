package listings

import (
	"errors"
	"strconv"
	"strings"

	listsvc "campus-market/internal/application/listings"
	"campus-market/internal/middleware"
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *listsvc.Service
}

func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, listsvc.ErrNotAuthenticated):
		return response.Unauthorized(c, err.Error())
	case errors.Is(err, listsvc.ErrNotOwner):
		return response.Error(c, err.Error(), fiber.StatusForbidden, nil)
	case errors.Is(err, listsvc.ErrListingNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, listsvc.ErrTitleRequired),
		errors.Is(err, listsvc.ErrCategoryRequired),
		errors.Is(err, listsvc.ErrInvalidPrice),
		errors.Is(err, listsvc.ErrInvalidStatus),
		errors.Is(err, listsvc.ErrInvalidSort),
		errors.Is(err, listsvc.ErrNoValidChanges):
		return response.BadRequest(c, err.Error())
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("listings: request failed")
	return response.Internal(c)
}

func pageMeta(p *listsvc.Page) response.Page {
	return response.Page{Total: p.Total, Limit: p.Limit, Offset: p.Offset}
}

// parseQuery turns the query string into a filter, sort and window.
func parseQuery(c *fiber.Ctx) (listsvc.Filter, listsvc.Sort, int, int, error) {
	f := listsvc.Filter{
		Category:  c.Query("category"),
		Status:    c.Query("status"),
		Condition: c.Query("condition"),
		Search:    c.Query("search"),
	}
	if s := c.Query("user_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return f, listsvc.Sort{}, 0, 0, errors.New("Invalid user_id")
		}
		f.UserID = id
	}
	for key, dst := range map[string]**float64{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		if s := c.Query(key); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return f, listsvc.Sort{}, 0, 0, errors.New("Invalid " + key)
			}
			*dst = &v
		}
	}
	sort := listsvc.Sort{Field: c.Query("sort"), Ascending: strings.EqualFold(c.Query("order"), "asc")}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return f, sort, 0, 0, err
	}
	offset, err := intQuery(c, "offset")
	return f, sort, limit, offset, err
}

func intQuery(c *fiber.Ctx, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("Invalid " + key)
	}
	return v, nil
}

// GetListings GET /api/v1/listings
func (h *Handlers) GetListings(c *fiber.Ctx) error {
	f, sort, limit, offset, err := parseQuery(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	page, err := h.Service.GetListings(c.Context(), f, sort, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Listings fetched successfully", page.Listings, pageMeta(page))
}

// GetMine GET /api/v1/listings/mine
func (h *Handlers) GetMine(c *fiber.Ctx) error {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	page, err := h.Service.GetMyListings(c.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Listings fetched successfully", page.Listings, pageMeta(page))
}

// GetListing GET /api/v1/listings/:id
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	l, err := h.Service.GetListing(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Listing fetched successfully", l, nil)
}

// CreateListing POST /api/v1/listings
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	p, files, release, err := parsePayload(c)
	defer release()
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	l, err := h.Service.CreateListing(c.Context(), middleware.UserID(c), p.createInput(), files)
	if err != nil {
		return fail(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", l, nil)
}

// UpdateListing PATCH /api/v1/listings/:id
func (h *Handlers) UpdateListing(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	p, files, release, err := parsePayload(c)
	defer release()
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	l, err := h.Service.UpdateListing(c.Context(), middleware.UserID(c), id, p.updateInput(), files)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Listing updated successfully", l, nil)
}

// DeleteListing DELETE /api/v1/listings/:id
func (h *Handlers) DeleteListing(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid listing id")
	}
	if err := h.Service.DeleteListing(c.Context(), middleware.UserID(c), id); err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Listing deleted successfully", fiber.Map{"id": id}, nil)
}
