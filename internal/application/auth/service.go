package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus-market/internal/domain"
	"campus-market/internal/middleware"
	"campus-market/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

// Service handles credentials: sign-up and sign-in. Sessions are kept by the middleware.
type Service struct {
	DB *gorm.DB
}

// SignUpInput is the registration form.
type SignUpInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	StudyCycle string `json:"study_cycle"`
	SchoolYear string `json:"school_year"`
}

// SignUp creates the credentials row and the public profile in one transaction.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*domain.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmailFormat
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, ErrInvalidPassword
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if !validation.IsValidName(first) || !validation.IsValidName(last) {
		return nil, ErrInvalidName
	}

	var existing domain.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error().Err(err).Msg("auth: sign-up lookup failed")
		return nil, fmt.Errorf("Failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Email: email, PasswordHash: string(hash)}
	var profile *domain.Profile
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		profile = &domain.Profile{
			ID:         user.ID,
			FirstName:  first,
			LastName:   last,
			Email:      email,
			Phone:      strings.TrimSpace(in.Phone),
			StudyCycle: strings.TrimSpace(in.StudyCycle),
			SchoolYear: strings.TrimSpace(in.SchoolYear),
		}
		return tx.Create(profile).Error
	})
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("auth: sign-up failed")
		return nil, fmt.Errorf("Failed to create account: %w", err)
	}
	return profile, nil
}

// VerifySession returns the session user, or ErrNotAuthenticated when there is none.
func VerifySession(u *middleware.SessionUser) (*middleware.SessionUser, error) {
	if u == nil || u.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return u, nil
}

// SignIn verifies credentials and returns the caller's profile.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrEmailPasswordRequired
	}
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrIncorrectPassword
	}

	var p domain.Profile
	if err := s.DB.WithContext(ctx).Where("id = ?", u.ID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Credentials without a profile: fall back to what we know.
			return &domain.Profile{ID: u.ID, Email: u.Email}, nil
		}
		return nil, err
	}
	return &p, nil
}
