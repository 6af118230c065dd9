package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User holds sign-in credentials. The public side of a user lives in Profile (same id).
type User struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Profile is the public student profile.
type Profile struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FirstName  string    `gorm:"column:first_name;not null" json:"first_name"`
	LastName   string    `gorm:"column:last_name;not null" json:"last_name"`
	Email      string    `gorm:"column:email;not null" json:"email"`
	Phone      string    `gorm:"column:phone" json:"phone"`
	StudyCycle string    `gorm:"column:study_cycle" json:"study_cycle"`
	SchoolYear string    `gorm:"column:school_year" json:"school_year"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// DisplayName is "First Last", trimmed when either part is missing.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
