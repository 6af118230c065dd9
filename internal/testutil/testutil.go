// Package testutil holds shared fixtures for package tests: an in-memory database,
// a miniredis-backed client and an in-memory object store.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"campus-market/internal/domain"
	"campus-market/internal/infrastructure/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with every table and view migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection: every ":memory:" connection would otherwise be its own database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// NewRedis starts miniredis and returns a client bound to it.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

// CreateProfile inserts a user + profile pair.
func CreateProfile(t *testing.T, db *gorm.DB, first, last string) domain.Profile {
	t.Helper()
	id := uuid.New()
	email := strings.ToLower(first) + "." + id.String()[:8] + "@campus.test"
	require.NoError(t, db.Create(&domain.User{ID: id, Email: email, PasswordHash: "x"}).Error)
	p := domain.Profile{ID: id, FirstName: first, LastName: last, Email: email}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// CreateListing inserts an active listing owned by owner; mutate may adjust fields first.
func CreateListing(t *testing.T, db *gorm.DB, owner uuid.UUID, mutate func(*domain.Listing)) domain.Listing {
	t.Helper()
	l := domain.Listing{
		UserID:   owner,
		Title:    "Listing",
		Category: "books",
		Price:    10,
		Status:   domain.ListingStatusActive,
	}
	if mutate != nil {
		mutate(&l)
	}
	require.NoError(t, db.Create(&l).Error)
	return l
}

// MemoryStore is an in-memory storage.ObjectStore for tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int

	// FailUploadAt makes the n-th Upload call (1-based) fail.
	FailUploadAt map[int]bool
	// FailRemove makes every Remove call fail.
	FailRemove bool
	// Removed records every key passed to Remove, including failed calls.
	Removed []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, FailUploadAt: map[int]bool{}}
}

func (m *MemoryStore) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.FailUploadAt[m.uploads] {
		return fmt.Errorf("upload %d failed", m.uploads)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+key] = b
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, bucket string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, keys...)
	if m.FailRemove {
		return errors.New("remove failed")
	}
	for _, k := range keys {
		delete(m.objects, bucket+"/"+k)
	}
	return nil
}

func (m *MemoryStore) PublicURL(bucket, key string) string {
	return "https://cdn.test/" + bucket + "/" + key
}

func (m *MemoryStore) CreateSignedUploadURL(ctx context.Context, bucket, key string) (string, error) {
	return "https://cdn.test/upload/" + bucket + "/" + key + "?token=t", nil
}

// Keys lists stored "<bucket>/<key>" entries, sorted.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
