package conversations

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"campus-market/internal/domain"
	"campus-market/internal/infrastructure/realtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SubscribeToMessages streams messages inserted into the conversation after the
// call returns. Each event is re-read from the store so the view carries its
// sender profile; ids already delivered on this stream are dropped. The returned
// func stops the stream and closes the channel; it may be called more than once.
func (s *Service) SubscribeToMessages(ctx context.Context, callerID, conversationID uuid.UUID) (<-chan MessageView, func(), error) {
	conv, err := s.authorize(ctx, callerID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if s.Broker == nil {
		return nil, nil, errors.New("realtime is not configured")
	}
	sub, err := s.Broker.Subscribe(ctx, conv.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to subscribe: %w", err)
	}

	out := make(chan MessageView, 16)
	stop := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			_ = sub.Close()
		})
	}

	go func() {
		defer close(out)
		defer sub.Close()
		seen := make(map[uuid.UUID]bool)
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if ev.Type != realtime.EventMessageInserted || ev.ConversationID != conv.ID || seen[ev.MessageID] {
					continue
				}
				view, err := s.loadMessage(ctx, conv, callerID, ev.MessageID)
				if err != nil {
					log.Warn().Err(err).Str("message_id", ev.MessageID.String()).Msg("conversations: dropping realtime event")
					continue
				}
				seen[ev.MessageID] = true
				select {
				case out <- *view:
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, unsubscribe, nil
}

func (s *Service) loadMessage(ctx context.Context, conv *domain.Conversation, callerID, messageID uuid.UUID) (*MessageView, error) {
	var m domain.Message
	err := s.DB.WithContext(ctx).Where("id = ? AND conversation_id = ?", messageID, conv.ID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(m.SenderID) {
		return nil, fmt.Errorf("sender %s is not a participant", m.SenderID)
	}
	people, err := s.Profiles.GetProfiles(ctx, []uuid.UUID{m.SenderID})
	if err != nil {
		return nil, err
	}
	v := messageView(m, people, callerID)
	return &v, nil
}
