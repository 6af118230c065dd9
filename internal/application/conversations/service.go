package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campus-market/internal/application/profiles"
	"campus-market/internal/domain"
	"campus-market/internal/infrastructure/realtime"
	"campus-market/internal/infrastructure/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Conversation states. A conversation is pending until its first message.
const (
	StatePending = "pending"
	StateActive  = "active"
)

type Service struct {
	DB       *gorm.DB
	Profiles *profiles.Service
	Store    storage.ObjectStore
	Bucket   string
	Broker   realtime.Broker
}

// ListingSummary is the slice of a listing shown next to a conversation.
type ListingSummary struct {
	ID       uuid.UUID             `json:"id"`
	UserID   uuid.UUID             `json:"user_id"`
	Title    string                `json:"title"`
	Price    float64               `json:"price"`
	Category string                `json:"category"`
	Status   string                `json:"status"`
	Images   []domain.ListingImage `json:"images"`
}

type ConversationView struct {
	domain.Conversation
	State       string          `json:"state"`
	Listing     *ListingSummary `json:"listing"`
	OtherParty  *domain.Profile `json:"other_party"`
	LastMessage *domain.Message `json:"last_message,omitempty"`
}

type MessageView struct {
	domain.Message
	Sender            *domain.Profile `json:"sender"`
	SenderName        string          `json:"sender_name"`
	IsFromCurrentUser bool            `json:"is_from_current_user"`
}

type ConversationDetail struct {
	ConversationView
	Messages []MessageView `json:"messages"`
}

// GetOrCreateConversation returns the caller's conversation about listingID as
// buyer, creating it on first contact.
func (s *Service) GetOrCreateConversation(ctx context.Context, callerID, listingID uuid.UUID) (*ConversationView, error) {
	if callerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Select("id", "user_id").Where("id = ?", listingID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		log.Error().Err(err).Str("listing_id", listingID.String()).Msg("conversations: listing lookup failed")
		return nil, fmt.Errorf("Failed to fetch listing: %w", err)
	}
	if listing.UserID == callerID {
		return nil, ErrOwnListing
	}

	conv, err := s.findByBuyer(ctx, listingID, callerID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv = &domain.Conversation{ListingID: listingID, BuyerID: callerID, SellerID: listing.UserID}
		if err := s.DB.WithContext(ctx).Create(conv).Error; err != nil {
			// A concurrent create for the same (listing, buyer) wins the unique index.
			existing, findErr := s.findByBuyer(ctx, listingID, callerID)
			if findErr != nil || existing == nil {
				log.Error().Err(err).Str("listing_id", listingID.String()).Msg("conversations: create failed")
				return nil, fmt.Errorf("Failed to create conversation: %w", err)
			}
			conv = existing
		} else {
			log.Info().Str("conversation_id", conv.ID.String()).Str("listing_id", listingID.String()).Msg("conversations: created")
		}
	}

	views, err := s.hydrate(ctx, callerID, []domain.Conversation{*conv})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// findByBuyer returns nil without error when no row matches.
func (s *Service) findByBuyer(ctx context.Context, listingID, buyerID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.DB.WithContext(ctx).Where("listing_id = ? AND buyer_id = ?", listingID, buyerID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("listing_id", listingID.String()).Msg("conversations: lookup failed")
		return nil, fmt.Errorf("Failed to fetch conversation: %w", err)
	}
	return &conv, nil
}

// GetUserConversations lists the caller's inbox: conversations where the caller
// is buyer or seller and at least one message was exchanged, most recent first.
func (s *Service) GetUserConversations(ctx context.Context, callerID uuid.UUID) ([]ConversationView, error) {
	if callerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	var convs []domain.Conversation
	err := s.DB.WithContext(ctx).
		Where("(buyer_id = ? OR seller_id = ?)", callerID, callerID).
		Where("EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = conversations.id)").
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		log.Error().Err(err).Str("user_id", callerID.String()).Msg("conversations: inbox query failed")
		return nil, fmt.Errorf("Failed to fetch conversations: %w", err)
	}
	return s.hydrate(ctx, callerID, convs)
}

// hydrate attaches listing summaries, other-party profiles, last messages and state.
func (s *Service) hydrate(ctx context.Context, callerID uuid.UUID, convs []domain.Conversation) ([]ConversationView, error) {
	views := make([]ConversationView, len(convs))
	if len(convs) == 0 {
		return views, nil
	}

	convIDs := make([]uuid.UUID, len(convs))
	listingIDs := make([]uuid.UUID, 0, len(convs))
	partyIDs := make([]uuid.UUID, 0, len(convs))
	for i, c := range convs {
		convIDs[i] = c.ID
		listingIDs = append(listingIDs, c.ListingID)
		partyIDs = append(partyIDs, c.OtherParty(callerID))
	}

	var listings []domain.Listing
	if err := s.DB.WithContext(ctx).Where("id IN ?", listingIDs).Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch listings: %w", err)
	}
	var images []domain.ListingImage
	if err := s.DB.WithContext(ctx).Where("listing_id IN ?", listingIDs).Order("display_order ASC").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch listing images: %w", err)
	}
	summaries := make(map[uuid.UUID]*ListingSummary, len(listings))
	for _, l := range listings {
		summaries[l.ID] = &ListingSummary{
			ID: l.ID, UserID: l.UserID, Title: l.Title, Price: l.Price,
			Category: l.Category, Status: l.Status, Images: []domain.ListingImage{},
		}
	}
	for _, img := range images {
		if sum, ok := summaries[img.ListingID]; ok {
			sum.Images = append(sum.Images, img)
		}
	}
	for _, sum := range summaries {
		domain.SortImages(sum.Images)
	}

	people, err := s.Profiles.GetProfiles(ctx, partyIDs)
	if err != nil {
		return nil, err
	}

	last, err := s.lastMessages(ctx, convIDs)
	if err != nil {
		return nil, err
	}

	for i, c := range convs {
		v := ConversationView{Conversation: c, State: StatePending, Listing: summaries[c.ListingID]}
		if p, ok := people[c.OtherParty(callerID)]; ok {
			p := p
			v.OtherParty = &p
		}
		if m, ok := last[c.ID]; ok {
			m := m
			v.LastMessage = &m
			v.State = StateActive
		}
		views[i] = v
	}
	return views, nil
}

func (s *Service) lastMessages(ctx context.Context, convIDs []uuid.UUID) (map[uuid.UUID]domain.Message, error) {
	var rows []domain.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id IN ?", convIDs).
		Where("created_at = (SELECT MAX(m2.created_at) FROM messages m2 WHERE m2.conversation_id = messages.conversation_id)").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch last messages: %w", err)
	}
	out := make(map[uuid.UUID]domain.Message, len(rows))
	for _, m := range rows {
		out[m.ConversationID] = m
	}
	return out, nil
}

// authorize loads the conversation and checks the caller takes part in it.
func (s *Service) authorize(ctx context.Context, callerID, conversationID uuid.UUID) (*domain.Conversation, error) {
	if callerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	var conv domain.Conversation
	if err := s.DB.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		log.Error().Err(err).Str("conversation_id", conversationID.String()).Msg("conversations: fetch failed")
		return nil, fmt.Errorf("Failed to fetch conversation: %w", err)
	}
	isBuyer, isSeller := conv.BuyerID == callerID, conv.SellerID == callerID
	switch {
	case isBuyer && isSeller:
		return nil, ErrInconsistentParticipants
	case !isBuyer && !isSeller:
		return nil, ErrNotParticipant
	}
	return &conv, nil
}

// GetConversationWithMessages returns the conversation and its history, oldest first.
// Messages from anyone other than the two participants are dropped.
func (s *Service) GetConversationWithMessages(ctx context.Context, callerID, conversationID uuid.UUID) (*ConversationDetail, error) {
	conv, err := s.authorize(ctx, callerID, conversationID)
	if err != nil {
		return nil, err
	}
	views, err := s.hydrate(ctx, callerID, []domain.Conversation{*conv})
	if err != nil {
		return nil, err
	}

	var msgs []domain.Message
	if err := s.DB.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("created_at ASC, id ASC").Find(&msgs).Error; err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID.String()).Msg("conversations: message query failed")
		return nil, fmt.Errorf("Failed to fetch messages: %w", err)
	}

	people, err := s.Profiles.GetProfiles(ctx, []uuid.UUID{conv.BuyerID, conv.SellerID})
	if err != nil {
		return nil, err
	}
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		if !conv.IsParticipant(m.SenderID) {
			log.Warn().Str("conversation_id", conversationID.String()).Str("sender_id", m.SenderID.String()).Msg("conversations: dropping message from non-participant")
			continue
		}
		out = append(out, messageView(m, people, callerID))
	}
	return &ConversationDetail{ConversationView: views[0], Messages: out}, nil
}

func messageView(m domain.Message, people map[uuid.UUID]domain.Profile, callerID uuid.UUID) MessageView {
	v := MessageView{Message: m, IsFromCurrentUser: m.SenderID == callerID}
	if p, ok := people[m.SenderID]; ok {
		v.Sender = &p
		v.SenderName = p.DisplayName()
	}
	return v
}

// SendMessage stores a message with trimmed text, an image, or both. The image is
// uploaded before the row is inserted.
func (s *Service) SendMessage(ctx context.Context, callerID, conversationID uuid.UUID, text string, image *storage.File) (*MessageView, error) {
	conv, err := s.authorize(ctx, callerID, conversationID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" && image == nil {
		return nil, ErrEmptyMessage
	}

	msg := &domain.Message{ConversationID: conv.ID, SenderID: callerID}
	if text != "" {
		msg.Content = &text
	}
	if image != nil {
		key := storage.ObjectKey(conv.ID.String(), image.Name)
		if err := s.Store.Upload(ctx, s.Bucket, key, image.Body, image.Size, image.ContentType); err != nil {
			log.Error().Err(err).Str("conversation_id", conv.ID.String()).Msg("conversations: image upload failed")
			return nil, fmt.Errorf("Failed to upload image: %w", err)
		}
		url := s.Store.PublicURL(s.Bucket, key)
		msg.ImageURL = &url
	}

	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID.String()).Msg("conversations: message insert failed")
		return nil, fmt.Errorf("Failed to send message: %w", err)
	}
	if err := s.DB.WithContext(ctx).Model(conv).Update("updated_at", time.Now()).Error; err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID.String()).Msg("conversations: touch failed")
	}

	if s.Broker != nil {
		ev := realtime.Event{Type: realtime.EventMessageInserted, ConversationID: conv.ID, MessageID: msg.ID}
		if err := s.Broker.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("conversation_id", conv.ID.String()).Msg("conversations: publish failed")
		}
	}

	people, err := s.Profiles.GetProfiles(ctx, []uuid.UUID{callerID})
	if err != nil {
		return nil, err
	}
	v := messageView(*msg, people, callerID)
	return &v, nil
}
