// Package bus mirrors session events onto a pub/sub fabric so observers
// can follow a session without holding its streaming connection. Subjects
// follow NATS conventions ("agentd.sessions.<id>.events") and both
// implementations honor the same wildcard rules.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published for every session event. Data carries
// the typed payload under the "payload" key.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent stamps an envelope with a fresh ID and the current time.
func NewEvent(eventType, source string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventHandler receives each event delivered to a subscription.
type EventHandler func(ctx context.Context, event *Event) error

// Subscription is a handle for cancelling delivery.
type Subscription interface {
	Unsubscribe() error
}

// EventBus publishes session events and fans them out to subscribers.
// Subscribe accepts NATS-style patterns: "*" matches one token, ">"
// matches the rest of the subject.
type EventBus interface {
	Publish(ctx context.Context, subject string, event *Event) error
	Subscribe(subject string, handler EventHandler) (Subscription, error)
	Close()
}
