package auth

import (
	"context"
	"errors"
	"time"

	authsvc "campus-market/internal/application/auth"
	"campus-market/internal/application/emails"
	"campus-market/internal/domain"
	"campus-market/internal/middleware"
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Service *authsvc.Service
	Tickets *authsvc.Tickets
	Rdb     *redis.Client
	Config  middleware.SessionConfig
	Mailer  emails.Sender // optional
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, authsvc.ErrEmailPasswordRequired),
		errors.Is(err, authsvc.ErrInvalidEmailFormat),
		errors.Is(err, authsvc.ErrInvalidPassword),
		errors.Is(err, authsvc.ErrInvalidName):
		return fiber.StatusBadRequest
	case errors.Is(err, authsvc.ErrEmailTaken):
		return fiber.StatusConflict
	case errors.Is(err, authsvc.ErrInvalidEmail),
		errors.Is(err, authsvc.ErrIncorrectPassword),
		errors.Is(err, authsvc.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	code := authStatus(err)
	if code == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("auth: request failed")
		return response.Internal(c)
	}
	return response.Error(c, err.Error(), code, nil)
}

// startSession signs the profile in: new session id, user_sessions index, cookie.
func (h *Handlers) startSession(c *fiber.Ctx, p *domain.Profile) error {
	sid := middleware.StartSession(c, middleware.SessionUser{
		UserID:    p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	})
	if err := h.Rdb.SAdd(c.Context(), middleware.UserSessionsPrefix+p.ID.String(), sid).Err(); err != nil {
		return err
	}
	c.Cookie(middleware.SessionCookie(h.Config, sid))
	return nil
}

// SignUp POST /api/v1/auth/sign-up
func (h *Handlers) SignUp(c *fiber.Ctx) error {
	var in authsvc.SignUpInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	profile, err := h.Service.SignUp(c.Context(), in)
	if err != nil {
		return fail(c, err)
	}
	if err := h.startSession(c, profile); err != nil {
		log.Error().Err(err).Msg("auth: session start failed")
		return response.Internal(c)
	}
	log.Info().Str("user_id", profile.ID.String()).Msg("auth: signed up")
	if h.Mailer != nil {
		go h.sendWelcome(profile.Email, profile.FirstName)
	}
	return response.SuccessCreated(c, "Account created", fiber.Map{"user": profile}, nil)
}

func (h *Handlers) sendWelcome(email, firstName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := h.Mailer.SendWelcome(ctx, email, firstName); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("auth: welcome email failed")
	}
}

// SignIn POST /api/v1/auth/sign-in
func (h *Handlers) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, authsvc.ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}
	profile, err := h.Service.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	if err := h.startSession(c, profile); err != nil {
		log.Error().Err(err).Msg("auth: session start failed")
		return response.Internal(c)
	}
	return response.Success(c, "Login successful", fiber.Map{"user": profile}, nil)
}

// Session GET /api/v1/auth/session
func (h *Handlers) Session(c *fiber.Ctx) error {
	user, err := authsvc.VerifySession(middleware.GetUser(c))
	if err != nil {
		log.Debug().Bool("cookie_present", c.Cookies(middleware.SessionCookieName) != "").Msg("auth: no session")
		return response.Unauthorized(c, err.Error())
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// SignOut DELETE /api/v1/auth/sign-out
func (h *Handlers) SignOut(c *fiber.Ctx) error {
	sid := middleware.GetSessionID(c)
	if user := middleware.GetUser(c); user != nil && sid != "" {
		_ = h.Rdb.SRem(c.Context(), middleware.UserSessionsPrefix+user.UserID.String(), sid).Err()
	}
	middleware.DestroySession(c)
	c.Cookie(middleware.SessionCookie(h.Config, ""))
	return response.Success(c, "Logged out successfully", nil, nil)
}

// SignOutEverywhere DELETE /api/v1/auth/sessions ends every session of the caller.
func (h *Handlers) SignOutEverywhere(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	n, err := middleware.DestroyUserSessions(c.Context(), h.Rdb, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("auth: destroy sessions failed")
		return response.Internal(c)
	}
	log.Info().Str("user_id", userID.String()).Int64("sessions", n).Msg("auth: signed out everywhere")
	middleware.DestroySession(c)
	c.Cookie(middleware.SessionCookie(h.Config, ""))
	return response.Success(c, "Logged out of all sessions", fiber.Map{"sessions": n}, nil)
}

// RealtimeTicket GET /api/v1/realtime/ticket issues a short-lived token for the websocket gateway.
func (h *Handlers) RealtimeTicket(c *fiber.Ctx) error {
	token, expires, err := h.Tickets.Issue(middleware.UserID(c))
	if err != nil {
		log.Error().Err(err).Msg("auth: ticket issue failed")
		return response.Internal(c)
	}
	return response.Success(c, "Ticket issued", fiber.Map{"ticket": token, "expires_at": expires}, nil)
}
