// Package events publishes chat domain events for downstream consumers such as
// analytics, moderation and search indexing.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Domain event types.
const (
	MessageSent           = "message.sent"
	MessageDeleted        = "message.deleted"
	ConversationStarted   = "conversation.started"
	ConversationDeleted   = "conversation.deleted"
	ConversationSecure    = "conversation.secure_toggled"
	ConversationPurged    = "conversation.purged"
	StrangerGiftRecorded  = "stranger_gift.recorded"
	MediaExpired          = "media.expired"
	WebsocketConnected    = "ws.connected"
	WebsocketDisconnected = "ws.disconnected"
)

// Event is the envelope written to the events topic. Key drives partitioning so events
// of one conversation stay ordered.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Key        string         `json:"-"`
	ActorID    string         `json:"actorId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload"`
}

func New(eventType, key, actorID string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher never blocks the request path on broker health; failures are logged and
// counted by implementations.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}

func (NoopPublisher) Close() error { return nil }
