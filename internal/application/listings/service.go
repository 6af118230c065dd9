package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus-market/internal/domain"
	"campus-market/internal/infrastructure/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	Store  storage.ObjectStore
	Bucket string
}

type CreateListingInput struct {
	Title          string
	Course         string
	Category       string
	Attributes     map[string]interface{}
	Price          float64
	Condition      string
	Description    string
	ContactByEmail bool
	ContactEmail   string
	ContactByPhone bool
	ContactPhone   string
	Status         string
}

// UpdateListingInput carries optional changes; nil fields are left untouched.
// A non-nil KeepImageIDs removes every current image not listed.
type UpdateListingInput struct {
	Title          *string
	Course         *string
	Category       *string
	Attributes     map[string]interface{}
	Price          *float64
	Condition      *string
	Description    *string
	ContactByEmail *bool
	ContactEmail   *string
	ContactByPhone *bool
	ContactPhone   *string
	Status         *string
	KeepImageIDs   []uuid.UUID
}

func validStatus(s string) bool {
	return s == domain.ListingStatusActive || s == domain.ListingStatusInactive
}

func (s *Service) CreateListing(ctx context.Context, callerID uuid.UUID, in CreateListingInput, files []storage.File) (*ListingView, error) {
	if callerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, ErrCategoryRequired
	}
	if in.Price < 0 {
		return nil, ErrInvalidPrice
	}
	status := in.Status
	if status == "" {
		status = domain.ListingStatusActive
	}
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}

	listing := &domain.Listing{
		UserID:         callerID,
		Title:          title,
		Course:         strings.TrimSpace(in.Course),
		Category:       category,
		Attributes:     datatypes.JSONMap(in.Attributes),
		Price:          in.Price,
		Condition:      in.Condition,
		Description:    in.Description,
		ContactByEmail: in.ContactByEmail,
		ContactEmail:   in.ContactEmail,
		ContactByPhone: in.ContactByPhone,
		ContactPhone:   in.ContactPhone,
		Status:         status,
	}
	if err := s.DB.WithContext(ctx).Create(listing).Error; err != nil {
		log.Error().Err(err).Str("user_id", callerID.String()).Msg("listings: create failed")
		return nil, fmt.Errorf("Failed to create listing: %w", err)
	}

	s.uploadImages(ctx, listing.ID, files, 0)
	return s.GetListing(ctx, listing.ID)
}

// uploadImages stores files one by one starting at display_order next.
// A failed upload or row insert is logged and skipped; a partial batch
// is reported once with the stored and total counts.
func (s *Service) uploadImages(ctx context.Context, listingID uuid.UUID, files []storage.File, next int) {
	stored := 0
	for _, f := range files {
		key := storage.ObjectKey(listingID.String(), f.Name)
		if err := s.Store.Upload(ctx, s.Bucket, key, f.Body, f.Size, f.ContentType); err != nil {
			log.Warn().Err(err).Str("listing_id", listingID.String()).Str("file", f.Name).Msg("listings: image upload failed, skipping")
			continue
		}
		img := &domain.ListingImage{
			ListingID:    listingID,
			Path:         s.Store.PublicURL(s.Bucket, key),
			StorageKey:   key,
			DisplayOrder: next,
		}
		if err := s.DB.WithContext(ctx).Create(img).Error; err != nil {
			log.Warn().Err(err).Str("listing_id", listingID.String()).Msg("listings: image row insert failed, skipping")
			s.removeObjects(ctx, listingID, []string{key})
			continue
		}
		next++
		stored++
	}
	if stored < len(files) {
		log.Warn().Str("listing_id", listingID.String()).Int("stored", stored).Int("total", len(files)).
			Msgf("listings: stored %d of %d images", stored, len(files))
	}
}

// removeObjects deletes storage objects one key at a time; failures are only logged.
func (s *Service) removeObjects(ctx context.Context, listingID uuid.UUID, keys []string) {
	for _, k := range keys {
		if err := s.Store.Remove(ctx, s.Bucket, k); err != nil {
			log.Warn().Err(err).Str("listing_id", listingID.String()).Str("key", k).Msg("listings: image removal failed")
		}
	}
}

// ownedListing loads the listing and checks callerID owns it.
func (s *Service) ownedListing(ctx context.Context, callerID, listingID uuid.UUID) (*domain.Listing, error) {
	if callerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	var l domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", listingID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		log.Error().Err(err).Str("listing_id", listingID.String()).Msg("listings: fetch failed")
		return nil, fmt.Errorf("Failed to fetch listing: %w", err)
	}
	if l.UserID != callerID {
		return nil, ErrNotOwner
	}
	return &l, nil
}

func (s *Service) UpdateListing(ctx context.Context, callerID, listingID uuid.UUID, in UpdateListingInput, files []storage.File) (*ListingView, error) {
	listing, err := s.ownedListing(ctx, callerID, listingID)
	if err != nil {
		return nil, err
	}

	upd, err := in.columns()
	if err != nil {
		return nil, err
	}
	if len(upd) == 0 && in.KeepImageIDs == nil && len(files) == 0 {
		return nil, ErrNoValidChanges
	}
	if len(upd) > 0 {
		if err := s.DB.WithContext(ctx).Model(listing).Updates(upd).Error; err != nil {
			log.Error().Err(err).Str("listing_id", listingID.String()).Msg("listings: update failed")
			return nil, fmt.Errorf("Failed to update listing: %w", err)
		}
	}

	var current []domain.ListingImage
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Find(&current).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch listing images: %w", err)
	}

	if in.KeepImageIDs != nil {
		keep := make(map[uuid.UUID]bool, len(in.KeepImageIDs))
		for _, id := range in.KeepImageIDs {
			keep[id] = true
		}
		var dropIDs []uuid.UUID
		var dropKeys []string
		kept := current[:0]
		for _, img := range current {
			if keep[img.ID] {
				kept = append(kept, img)
				continue
			}
			dropIDs = append(dropIDs, img.ID)
			dropKeys = append(dropKeys, img.StorageKey)
		}
		current = kept
		if len(dropIDs) > 0 {
			s.removeObjects(ctx, listingID, dropKeys)
			if err := s.DB.WithContext(ctx).Where("id IN ?", dropIDs).Delete(&domain.ListingImage{}).Error; err != nil {
				log.Error().Err(err).Str("listing_id", listingID.String()).Msg("listings: image row delete failed")
				return nil, fmt.Errorf("Failed to remove listing images: %w", err)
			}
		}
	}

	next := 0
	for _, img := range current {
		if img.DisplayOrder >= next {
			next = img.DisplayOrder + 1
		}
	}
	s.uploadImages(ctx, listingID, files, next)
	return s.GetListing(ctx, listingID)
}

func (in UpdateListingInput) columns() (map[string]interface{}, error) {
	upd := map[string]interface{}{}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return nil, ErrTitleRequired
		}
		upd["title"] = t
	}
	if in.Category != nil {
		c := strings.TrimSpace(*in.Category)
		if c == "" {
			return nil, ErrCategoryRequired
		}
		upd["category"] = c
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, ErrInvalidPrice
		}
		upd["price"] = *in.Price
	}
	if in.Status != nil {
		if !validStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		upd["status"] = *in.Status
	}
	if in.Attributes != nil {
		upd["attributes"] = datatypes.JSONMap(in.Attributes)
	}
	setString := func(col string, v *string) {
		if v != nil {
			upd[col] = *v
		}
	}
	setString("course", in.Course)
	setString("condition", in.Condition)
	setString("description", in.Description)
	setString("contact_email", in.ContactEmail)
	setString("contact_phone", in.ContactPhone)
	if in.ContactByEmail != nil {
		upd["contact_by_email"] = *in.ContactByEmail
	}
	if in.ContactByPhone != nil {
		upd["contact_by_phone"] = *in.ContactByPhone
	}
	return upd, nil
}

// DeleteListing removes storage objects best-effort, then the listing's
// conversations, messages, image rows and the listing row together.
func (s *Service) DeleteListing(ctx context.Context, callerID, listingID uuid.UUID) error {
	if _, err := s.ownedListing(ctx, callerID, listingID); err != nil {
		return err
	}

	var images []domain.ListingImage
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Find(&images).Error; err != nil {
		return fmt.Errorf("Failed to fetch listing images: %w", err)
	}
	keys := make([]string, 0, len(images))
	for _, img := range images {
		keys = append(keys, img.StorageKey)
	}
	s.removeObjects(ctx, listingID, keys)

	tx := s.DB.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	convs := tx.Model(&domain.Conversation{}).Select("id").Where("listing_id = ?", listingID)
	if err := tx.Where("conversation_id IN (?)", convs).Delete(&domain.Message{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("Failed to delete listing messages: %w", err)
	}
	if err := tx.Where("listing_id = ?", listingID).Delete(&domain.Conversation{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("Failed to delete listing conversations: %w", err)
	}
	if err := tx.Where("listing_id = ?", listingID).Delete(&domain.ListingImage{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("Failed to delete listing images: %w", err)
	}
	if err := tx.Where("id = ?", listingID).Delete(&domain.Listing{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("Failed to delete listing: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("Failed to delete listing: %w", err)
	}
	log.Info().Str("listing_id", listingID.String()).Int("images", len(images)).Msg("listings: deleted")
	return nil
}

// GetMyListings returns every listing of the caller regardless of status, newest first.
func (s *Service) GetMyListings(ctx context.Context, callerID uuid.UUID, limit, offset int) (*Page, error) {
	if callerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.GetListings(ctx, Filter{UserID: callerID, Status: StatusAny}, Sort{}, limit, offset)
}
