package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventMessageInserted is published after a message row is committed.
const EventMessageInserted = "message.inserted"

const channelPrefix = "conversation:"

// Event is the push payload. It only references rows; subscribers re-read them.
type Event struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

// Broker fans out events scoped to one conversation.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, conversationID uuid.UUID) (*Subscription, error)
}

// Subscription delivers events for one conversation until Close is called.
type Subscription struct {
	events chan Event
	done   chan struct{}
	closer func() error
	once   sync.Once
	err    error
}

// Events is closed once the subscription is torn down.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close releases the underlying channel. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.closer()
	})
	return s.err
}

// RedisBroker implements Broker with Redis pub/sub, one channel per conversation.
type RedisBroker struct {
	Rdb *redis.Client
}

func channelName(conversationID uuid.UUID) string {
	return channelPrefix + conversationID.String()
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.Rdb.Publish(ctx, channelName(ev.ConversationID), payload).Err()
}

// Subscribe returns once Redis confirmed the subscription, so events published
// after it returns are never missed.
func (b *RedisBroker) Subscribe(ctx context.Context, conversationID uuid.UUID) (*Subscription, error) {
	ps := b.Rdb.Subscribe(ctx, channelName(conversationID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", conversationID, err)
	}

	sub := &Subscription{
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		closer: ps.Close,
	}
	go func() {
		defer close(sub.events)
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("realtime: dropping malformed event")
				continue
			}
			select {
			case sub.events <- ev:
			case <-sub.done:
				return
			}
		}
	}()
	return sub, nil
}
