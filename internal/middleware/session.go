package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig controls the session cookie flags.
type SessionConfig struct {
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "cm.sid"
	SessionRedisPrefix = "session:"
	UserSessionsPrefix = "user_sessions:"
	sessionMaxAge      = 7 * 24 * time.Hour

	userLocal      = "user"
	sessionIDLocal = "session_id"
	dirtyLocal     = "session_dirty"
)

// SessionUser is what a signed-in session carries.
type SessionUser struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

type sessionData struct {
	User *SessionUser `json:"user,omitempty"`
}

// Session loads the session referenced by the cookie from Redis and, after the
// handler ran, persists it again when the handler changed it.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := trimSID(c.Cookies(SessionCookieName))
		c.Locals(sessionIDLocal, sessionID)
		c.Locals(userLocal, nil)

		if sessionID != "" {
			b, err := rdb.Get(c.Context(), SessionRedisPrefix+sessionID).Bytes()
			switch {
			case err == nil:
				var data sessionData
				if jerr := json.Unmarshal(b, &data); jerr == nil && data.User != nil {
					c.Locals(userLocal, data.User)
				}
			case !errors.Is(err, redis.Nil):
				log.Error().Err(err).Msg("session: redis get failed")
			}
		}

		if err := c.Next(); err != nil {
			return err
		}

		if dirty, _ := c.Locals(dirtyLocal).(bool); !dirty {
			return nil
		}
		sid := GetSessionID(c)
		if sid == "" {
			return nil
		}
		user, _ := c.Locals(userLocal).(*SessionUser)
		if user == nil {
			return rdb.Del(context.Background(), SessionRedisPrefix+sid).Err()
		}
		b, _ := json.Marshal(sessionData{User: user})
		return rdb.Set(context.Background(), SessionRedisPrefix+sid, b, sessionMaxAge).Err()
	}
}

// GetSessionID returns the current session id (empty when none).
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionIDLocal).(string)
	return sid
}

// StartSession assigns a fresh session id holding user and returns the id.
// The caller sets the cookie.
func StartSession(c *fiber.Ctx, user SessionUser) string {
	sid := uuid.New().String()
	c.Locals(sessionIDLocal, sid)
	c.Locals(userLocal, &user)
	c.Locals(dirtyLocal, true)
	return sid
}

// DestroySession drops the user; the Redis key is deleted after the handler returns.
func DestroySession(c *fiber.Ctx) {
	c.Locals(userLocal, nil)
	c.Locals(dirtyLocal, true)
}

// DestroyUserSessions deletes every session indexed under userID along with
// the index itself and returns how many session keys were removed.
func DestroyUserSessions(ctx context.Context, rdb *redis.Client, userID uuid.UUID) (int64, error) {
	index := UserSessionsPrefix + userID.String()
	sids, err := rdb.SMembers(ctx, index).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(sids))
	for _, sid := range sids {
		keys = append(keys, SessionRedisPrefix+sid)
	}
	var removed *redis.IntCmd
	_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, index)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed == nil {
		return 0, nil
	}
	return removed.Val(), nil
}

// SessionCookie returns the cookie carrying sid, or an expiring cookie when sid is empty.
func SessionCookie(cfg SessionConfig, sid string) *fiber.Cookie {
	sameSite := fiber.CookieSameSiteLaxMode
	if cfg.AllowCrossSiteDev {
		sameSite = fiber.CookieSameSiteNoneMode
	}
	cookie := &fiber.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction || cfg.AllowCrossSiteDev,
		SameSite: sameSite,
	}
	if sid == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	}
	return cookie
}

// trimSID tolerates "s:<id>.<sig>" cookies written by older clients.
func trimSID(raw string) string {
	if strings.HasPrefix(raw, "s:") {
		return strings.SplitN(raw[2:], ".", 2)[0]
	}
	return raw
}
