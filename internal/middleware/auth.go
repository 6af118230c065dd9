package middleware

import (
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUser(c) == nil {
			return response.Unauthorized(c, "Not authenticated")
		}
		return c.Next()
	}
}

// GetUser returns the session user (nil if not signed in).
func GetUser(c *fiber.Ctx) *SessionUser {
	u, _ := c.Locals(userLocal).(*SessionUser)
	return u
}

// UserID returns the signed-in user's id, or uuid.Nil.
func UserID(c *fiber.Ctx) uuid.UUID {
	if u := GetUser(c); u != nil {
		return u.UserID
	}
	return uuid.Nil
}

// WithUser puts user into the request as if the session carried it. Used by tests
// and by routes mounted outside the session middleware.
func WithUser(user *SessionUser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, user)
		return c.Next()
	}
}
