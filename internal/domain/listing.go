package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ListingStatusActive   = "active"
	ListingStatusInactive = "inactive"
)

// Listing is a marketplace item post. Attributes carries category specific fields
// (e.g. isbn for books, size for clothes) as a JSON object.
type Listing struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Title          string            `gorm:"column:title;not null" json:"title"`
	Course         string            `gorm:"column:course" json:"course"`
	Category       string            `gorm:"column:category;not null;index" json:"category"`
	Attributes     datatypes.JSONMap `gorm:"column:attributes" json:"attributes"`
	Price          float64           `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	Condition      string            `gorm:"column:condition" json:"condition"`
	Description    string            `gorm:"column:description" json:"description"`
	ContactByEmail bool              `gorm:"column:contact_by_email;not null;default:false" json:"contact_by_email"`
	ContactEmail   string            `gorm:"column:contact_email" json:"contact_email"`
	ContactByPhone bool              `gorm:"column:contact_by_phone;not null;default:false" json:"contact_by_phone"`
	ContactPhone   string            `gorm:"column:contact_phone" json:"contact_phone"`
	Status         string            `gorm:"column:status;type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt      time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at" json:"updated_at"`

	Images []ListingImage `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"images"`
}

func (Listing) TableName() string {
	return "listings"
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ListingImage is one uploaded picture of a listing. Path is the public URL;
// StorageKey is the object key inside the listing images bucket.
type ListingImage struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ListingID    uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	Path         string    `gorm:"column:path;not null" json:"path"`
	StorageKey   string    `gorm:"column:storage_key;not null" json:"-"`
	DisplayOrder int       `gorm:"column:display_order;not null;default:0" json:"display_order"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ListingImage) TableName() string {
	return "listing_images"
}

func (i *ListingImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// SortImages orders images ascending by display_order in place.
func SortImages(images []ListingImage) {
	sort.SliceStable(images, func(a, b int) bool {
		return images[a].DisplayOrder < images[b].DisplayOrder
	})
}
