package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a buyer/seller thread about one listing. A buyer has at most one
// conversation per listing.
type Conversation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:idx_conversation_listing_buyer" json:"listing_id"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:idx_conversation_listing_buyer;index" json:"buyer_id"`
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsParticipant reports whether userID is the buyer or the seller.
func (c Conversation) IsParticipant(userID uuid.UUID) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// OtherParty returns the participant that is not userID.
func (c Conversation) OtherParty(userID uuid.UUID) uuid.UUID {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// Message is one entry of a conversation. Content and ImageURL are both optional
// but a stored message always has at least one of them.
type Message struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"column:conversation_id;type:uuid;not null;index" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"column:sender_id;type:uuid;not null" json:"sender_id"`
	Content        *string   `gorm:"column:content" json:"content"`
	ImageURL       *string   `gorm:"column:image_url" json:"image_url"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
