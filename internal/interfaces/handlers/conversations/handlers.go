package conversations

import (
	"errors"
	"strings"

	convsvc "campus-market/internal/application/conversations"
	"campus-market/internal/infrastructure/storage"
	"campus-market/internal/middleware"
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *convsvc.Service
}

type createRequest struct {
	ListingID string `json:"listing_id"`
}

type messageRequest struct {
	Content string `json:"content" form:"content"`
}

func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, convsvc.ErrNotAuthenticated):
		return response.Unauthorized(c, err.Error())
	case errors.Is(err, convsvc.ErrNotParticipant):
		return response.Error(c, err.Error(), fiber.StatusForbidden, nil)
	case errors.Is(err, convsvc.ErrListingNotFound), errors.Is(err, convsvc.ErrConversationNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, convsvc.ErrOwnListing), errors.Is(err, convsvc.ErrEmptyMessage):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, convsvc.ErrInconsistentParticipants):
		log.Error().Err(err).Str("path", c.Path()).Msg("conversations: inconsistent conversation")
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("conversations: request failed")
	return response.Internal(c)
}

// Create POST /api/v1/conversations
func (h *Handlers) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "listing_id is required")
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return response.BadRequest(c, "listing_id is required")
	}
	conv, err := h.Service.GetOrCreateConversation(c.Context(), middleware.UserID(c), listingID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Conversation ready", conv, nil)
}

// List GET /api/v1/conversations
func (h *Handlers) List(c *fiber.Ctx) error {
	convs, err := h.Service.GetUserConversations(c.Context(), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Conversations fetched successfully", convs, nil)
}

// Get GET /api/v1/conversations/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}
	detail, err := h.Service.GetConversationWithMessages(c.Context(), middleware.UserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Conversation fetched successfully", detail, nil)
}

// SendMessage POST /api/v1/conversations/:id/messages accepts JSON {content}
// or multipart with "content" and an optional "image" file.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var image *storage.File
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if fh, err := c.FormFile("image"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return response.BadRequest(c, "Invalid image")
			}
			defer f.Close()
			image = &storage.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Size:        fh.Size,
				Body:        f,
			}
		}
	}

	msg, err := h.Service.SendMessage(c.Context(), middleware.UserID(c), id, req.Content, image)
	if err != nil {
		return fail(c, err)
	}
	return response.SuccessCreated(c, "Message sent", msg, nil)
}
