package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TicketTTL bounds how long a realtime ticket can be used to open a socket.
const TicketTTL = 60 * time.Second

const ticketAudience = "realtime"

// Tickets issues and verifies short-lived HS256 tokens that let a browser open a
// websocket on the realtime listener, which does not see the session cookie.
type Tickets struct {
	Secret []byte
	Now    func() time.Time
}

func (t *Tickets) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Issue returns a signed ticket for userID.
func (t *Tickets) Issue(userID uuid.UUID) (string, time.Time, error) {
	if len(t.Secret) == 0 {
		return "", time.Time{}, errors.New("realtime secret is not configured")
	}
	now := t.now()
	exp := now.Add(TicketTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{ticketAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString(t.Secret)
	return signed, exp, err
}

// Verify parses a ticket and returns the user id it was issued for.
func (t *Tickets) Verify(raw string) (uuid.UUID, error) {
	if raw == "" || len(t.Secret) == 0 {
		return uuid.Nil, ErrInvalidTicket
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(ticketAudience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return uuid.Nil, ErrInvalidTicket
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidTicket
	}
	return id, nil
}
