package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioConfig configures a MinIO (or any S3 compatible) backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PublicURL string // base used for public object URLs; defaults to the endpoint
}

// MinioClient is an ObjectStore backed by minio-go.
type MinioClient struct {
	client    *minio.Client
	publicURL string
}

// NewMinio connects to MinIO and makes sure every bucket exists.
func NewMinio(ctx context.Context, cfg MinioConfig, buckets ...string) (*MinioClient, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	for _, b := range buckets {
		exists, err := mc.BucketExists(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("minio bucket %q: %w", b, err)
		}
		if !exists {
			if err := mc.MakeBucket(ctx, b, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("minio make bucket %q: %w", b, err)
			}
			log.Info().Str("bucket", b).Msg("minio: created bucket")
		}
	}

	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	return &MinioClient{client: mc, publicURL: strings.TrimRight(public, "/")}, nil
}

func (m *MinioClient) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if size <= 0 {
		size = -1
	}
	_, err := m.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Remove deletes every key, continuing past individual failures.
func (m *MinioClient) Remove(ctx context.Context, bucket string, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := m.client.RemoveObject(ctx, bucket, k, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MinioClient) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", m.publicURL, bucket, key)
}

func (m *MinioClient) CreateSignedUploadURL(ctx context.Context, bucket, key string) (string, error) {
	u, err := m.client.PresignedPutObject(ctx, bucket, key, time.Hour)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
