package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rating is one user's score for a seller; (SellerID, UserID) is the identity.
type Rating struct {
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;primaryKey" json:"seller_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Rating    int       `gorm:"column:rating;not null" json:"rating"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Rating) TableName() string {
	return "ratings"
}
