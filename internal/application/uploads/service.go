package uploads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus-market/internal/infrastructure/storage"

	"github.com/google/uuid"
)

var (
	ErrFileNameRequired = errors.New("file_name is required")
	ErrNotAuthenticated = errors.New("Not authenticated")
)

// Service hands out signed URLs so the browser can upload straight into a bucket.
type Service struct {
	Store storage.ObjectStore
}

type UploadResult struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	Path      string `json:"path"`
}

// GetSignedUploadURL reserves "<callerID>/<unix-ms>-<shortid><ext>" in bucket.
func (s *Service) GetSignedUploadURL(ctx context.Context, callerID uuid.UUID, bucket, fileName string) (*UploadResult, error) {
	if callerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, ErrFileNameRequired
	}
	key := storage.ObjectKey(callerID.String(), fileName)

	signedURL, err := s.Store.CreateSignedUploadURL(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("Failed to generate upload URL: %w", err)
	}
	return &UploadResult{
		UploadURL: signedURL,
		PublicURL: s.Store.PublicURL(bucket, key),
		Path:      key,
	}, nil
}
