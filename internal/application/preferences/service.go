package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"campus-market/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultLanguage = "en"

// maxWatchRetries bounds optimistic retries when two writers race on one key.
const maxWatchRetries = 5

var (
	ErrNotAuthenticated = errors.New("Not authenticated")
	ErrInvalidLanguage  = errors.New("Language must be a two-letter code")
	ErrConflict         = errors.New("Preferences changed concurrently, try again")
)

// Service keeps per-user UI preferences as JSON values in Redis.
type Service struct {
	Rdb *redis.Client
}

func favoritesKey(userID uuid.UUID) string {
	return "prefs:" + userID.String() + ":favorites"
}

func languageKey(userID uuid.UUID) string {
	return "prefs:" + userID.String() + ":language"
}

// GetFavorites returns favorite listing ids in insertion order.
func (s *Service) GetFavorites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return readFavorites(ctx, s.Rdb, favoritesKey(userID))
}

func readFavorites(ctx context.Context, c redis.Cmdable, key string) ([]uuid.UUID, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []uuid.UUID{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to read favorites: %w", err)
	}
	ids := []uuid.UUID{}
	if err := json.Unmarshal(raw, &ids); err != nil {
		// A corrupt value is treated as empty and overwritten on the next write.
		log.Warn().Err(err).Str("key", key).Msg("preferences: invalid favorites value")
		return []uuid.UUID{}, nil
	}
	return ids, nil
}

// AddFavorite appends listingID unless it is already present.
func (s *Service) AddFavorite(ctx context.Context, userID, listingID uuid.UUID) ([]uuid.UUID, error) {
	return s.updateFavorites(ctx, userID, func(ids []uuid.UUID) []uuid.UUID {
		for _, id := range ids {
			if id == listingID {
				return ids
			}
		}
		return append(ids, listingID)
	})
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, listingID uuid.UUID) ([]uuid.UUID, error) {
	return s.updateFavorites(ctx, userID, func(ids []uuid.UUID) []uuid.UUID {
		out := ids[:0]
		for _, id := range ids {
			if id != listingID {
				out = append(out, id)
			}
		}
		return out
	})
}

// updateFavorites applies fn under WATCH so concurrent writers never lose an update.
func (s *Service) updateFavorites(ctx context.Context, userID uuid.UUID, fn func([]uuid.UUID) []uuid.UUID) ([]uuid.UUID, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	key := favoritesKey(userID)
	var result []uuid.UUID
	txf := func(tx *redis.Tx) error {
		ids, err := readFavorites(ctx, tx, key)
		if err != nil {
			return err
		}
		result = fn(ids)
		payload, err := json.Marshal(result)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxWatchRetries; i++ {
		err := s.Rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("Failed to update favorites: %w", err)
		}
	}
	return nil, ErrConflict
}

// GetLanguage returns the stored UI language or DefaultLanguage.
func (s *Service) GetLanguage(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", ErrNotAuthenticated
	}
	raw, err := s.Rdb.Get(ctx, languageKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultLanguage, nil
	}
	if err != nil {
		return "", fmt.Errorf("Failed to read language: %w", err)
	}
	var lang string
	if err := json.Unmarshal(raw, &lang); err != nil || !validation.IsValidLanguage(lang) {
		return DefaultLanguage, nil
	}
	return lang, nil
}

func (s *Service) SetLanguage(ctx context.Context, userID uuid.UUID, lang string) (string, error) {
	if userID == uuid.Nil {
		return "", ErrNotAuthenticated
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if !validation.IsValidLanguage(lang) {
		return "", ErrInvalidLanguage
	}
	payload, _ := json.Marshal(lang)
	if err := s.Rdb.Set(ctx, languageKey(userID), payload, 0).Err(); err != nil {
		return "", fmt.Errorf("Failed to save language: %w", err)
	}
	return lang, nil
}
