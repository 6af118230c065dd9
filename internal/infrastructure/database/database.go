package database

import (
	"embed"
	"errors"
	"fmt"

	"campus-market/internal/domain"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ListingsView is the denormalized listings + owner profile view read by the listings composer.
const ListingsView = "listings_with_profiles"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens a GORM DB from DSN (Supabase/Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind connection poolers.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Profile{},
		&domain.Listing{},
		&domain.ListingImage{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.Rating{},
	}
}

// AutoMigrate creates/updates the tables and (re)creates the listings view.
// Works on Postgres and on SQLite (tests).
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return EnsureViews(db)
}

// EnsureViews recreates listings_with_profiles so it picks up columns added by AutoMigrate.
func EnsureViews(db *gorm.DB) error {
	if err := db.Exec("DROP VIEW IF EXISTS " + ListingsView).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE VIEW ` + ListingsView + ` AS
SELECT l.*,
	p.first_name  AS profile_first_name,
	p.last_name   AS profile_last_name,
	p.email       AS profile_email,
	p.phone       AS profile_phone,
	p.study_cycle AS profile_study_cycle,
	p.school_year AS profile_school_year,
	p.created_at  AS profile_created_at
FROM listings l
LEFT JOIN profiles p ON p.id = l.user_id`).Error
}

// Migrate applies the embedded Postgres-only SQL migrations (indexes the ORM can't express).
func Migrate(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
