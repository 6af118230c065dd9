package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus-market/internal/domain"
	"campus-market/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrProfileNotFound   = errors.New("Profile not found")
	ErrNoValidFields     = errors.New("No valid update fields provided")
	ErrInvalidName       = errors.New("Name may only contain letters, spaces, hyphens and apostrophes")
	ErrInvalidFieldValue = errors.New("Profile fields must be strings")
)

// editable maps request keys to columns a user may change on their own profile.
var editable = map[string]string{
	"first_name":  "first_name",
	"last_name":   "last_name",
	"phone":       "phone",
	"study_cycle": "study_cycle",
	"school_year": "school_year",
}

type Service struct {
	DB *gorm.DB
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		log.Error().Err(err).Str("profile_id", id.String()).Msg("profiles: fetch failed")
		return nil, fmt.Errorf("Failed to fetch profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile applies the editable subset of fields to the caller's own profile.
// Unknown keys are ignored.
func (s *Service) UpdateProfile(ctx context.Context, callerID uuid.UUID, fields map[string]interface{}) (*domain.Profile, error) {
	upd := map[string]interface{}{}
	for k, v := range fields {
		col, ok := editable[k]
		if !ok {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, ErrInvalidFieldValue
		}
		str = strings.TrimSpace(str)
		if (k == "first_name" || k == "last_name") && !validation.IsValidName(str) {
			return nil, ErrInvalidName
		}
		upd[col] = str
	}
	if len(upd) == 0 {
		return nil, ErrNoValidFields
	}

	res := s.DB.WithContext(ctx).Model(&domain.Profile{}).Where("id = ?", callerID).Updates(upd)
	if res.Error != nil {
		log.Error().Err(res.Error).Str("profile_id", callerID.String()).Msg("profiles: update failed")
		return nil, fmt.Errorf("Failed to update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProfileNotFound
	}
	return s.GetProfile(ctx, callerID)
}

// GetProfiles loads several profiles keyed by id; missing ids are simply absent.
func (s *Service) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Profile, error) {
	out := make(map[uuid.UUID]domain.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Profile
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch profiles: %w", err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}
