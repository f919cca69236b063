package bus

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/agentd/agentd/internal/common/logger"
)

// MemoryEventBus is the in-process EventBus used when no NATS URL is
// configured. Delivery is asynchronous: each event is handed to each
// matching handler on its own goroutine, so a slow websocket mirror
// cannot stall the turn that produced the event.
type MemoryEventBus struct {
	mu     sync.RWMutex
	subs   map[uint64]*memorySubscription
	nextID uint64
	closed bool
	logger *logger.Logger
}

type memorySubscription struct {
	id      uint64
	pattern *regexp.Regexp
	handler EventHandler
	bus     *MemoryEventBus
}

func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		subs:   make(map[uint64]*memorySubscription),
		logger: log,
	}
}

func (b *MemoryEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	b.mu.RLock()
	var matched []*memorySubscription
	if !b.closed {
		for _, sub := range b.subs {
			if sub.pattern.MatchString(subject) {
				matched = append(matched, sub)
			}
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		go func(sub *memorySubscription) {
			if err := sub.handler(context.Background(), event); err != nil {
				b.logger.Error("event handler failed",
					zap.String("subject", subject),
					zap.String("event_type", event.Type),
					zap.Error(err),
				)
			}
		}(sub)
	}
	return nil
}

func (b *MemoryEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &memorySubscription{
		id:      b.nextID,
		pattern: compileSubject(subject),
		handler: handler,
		bus:     b,
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// Close drops all subscriptions. Publishes after Close are silently
// discarded, matching a drained NATS connection.
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[uint64]*memorySubscription)
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	return nil
}

// compileSubject turns a NATS subject pattern into a regexp. "*" spans
// one dot-separated token, ">" as the final token spans every remaining
// token.
func compileSubject(subject string) *regexp.Regexp {
	tokens := strings.Split(subject, ".")
	parts := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		switch {
		case tok == "*":
			parts = append(parts, `[^.]+`)
		case tok == ">" && i == len(tokens)-1:
			parts = append(parts, `.+`)
		default:
			parts = append(parts, regexp.QuoteMeta(tok))
		}
	}
	return regexp.MustCompile(`^` + strings.Join(parts, `\.`) + `$`)
}
