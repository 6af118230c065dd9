package ratings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-market/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MinRating = 1
	MaxRating = 5
)

var (
	ErrNotAuthenticated = errors.New("Not authenticated")
	ErrInvalidRating    = errors.New("Rating must be between 1 and 5")
)

type Service struct {
	DB *gorm.DB
}

// Summary is the aggregate shown on a seller profile.
type Summary struct {
	SellerID   uuid.UUID `json:"seller_id"`
	Average    float64   `json:"average"`
	TotalVotes int       `json:"total_votes"`
}

// GetSellerRatings averages every rating of sellerID. No ratings yields 0/0.
func (s *Service) GetSellerRatings(ctx context.Context, sellerID uuid.UUID) (*Summary, error) {
	var values []int
	if err := s.DB.WithContext(ctx).Model(&domain.Rating{}).Where("seller_id = ?", sellerID).Pluck("rating", &values).Error; err != nil {
		log.Error().Err(err).Str("seller_id", sellerID.String()).Msg("ratings: query failed")
		return nil, fmt.Errorf("Failed to fetch ratings: %w", err)
	}
	sum := &Summary{SellerID: sellerID, TotalVotes: len(values)}
	if len(values) == 0 {
		return sum, nil
	}
	total := 0
	for _, v := range values {
		total += v
	}
	sum.Average = float64(total) / float64(len(values))
	return sum, nil
}

// GetUserRatingForSeller returns nil when userID has not rated sellerID.
func (s *Service) GetUserRatingForSeller(ctx context.Context, sellerID, userID uuid.UUID) (*domain.Rating, error) {
	var r domain.Rating
	err := s.DB.WithContext(ctx).Where("seller_id = ? AND user_id = ?", sellerID, userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("seller_id", sellerID.String()).Msg("ratings: lookup failed")
		return nil, fmt.Errorf("Failed to fetch rating: %w", err)
	}
	return &r, nil
}

// SubmitRating stores userID's rating of sellerID, replacing an earlier one.
func (s *Service) SubmitRating(ctx context.Context, sellerID, userID uuid.UUID, value int) (*domain.Rating, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if value < MinRating || value > MaxRating {
		return nil, ErrInvalidRating
	}
	r := &domain.Rating{SellerID: sellerID, UserID: userID, Rating: value, UpdatedAt: time.Now()}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "updated_at"}),
	}).Create(r).Error
	if err != nil {
		log.Error().Err(err).Str("seller_id", sellerID.String()).Msg("ratings: upsert failed")
		return nil, fmt.Errorf("Failed to submit rating: %w", err)
	}
	return r, nil
}
