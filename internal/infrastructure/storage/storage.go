package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

// ObjectStore is the subset of a storage bucket API the services need.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, bucket string, keys ...string) error
	PublicURL(bucket, key string) string
	CreateSignedUploadURL(ctx context.Context, bucket, key string) (string, error)
}

// File is one file handed to a service for upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ObjectKey builds "<prefix>/<unix-ms>-<shortid><ext>" for a new object.
// The original file name only contributes its extension.
func ObjectKey(prefix, fileName string) string {
	id, err := shortid.Generate()
	if err != nil {
		id = uuid.NewString()[:8]
	}
	ext := strings.ToLower(path.Ext(fileName))
	key := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), id, ext)
	if prefix == "" {
		return key
	}
	return strings.Trim(prefix, "/") + "/" + key
}
