package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentd/agentd/internal/common/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func sessionSubject(id string) string {
	return fmt.Sprintf("agentd.sessions.%s.events", id)
}

// collector gathers delivered event types behind a mutex since the bus
// dispatches on separate goroutines.
type collector struct {
	mu    sync.Mutex
	types []string
}

func (c *collector) handle(ctx context.Context, ev *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, ev.Type)
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.types))
	copy(out, c.types)
	return out
}

func TestMemoryBus_MirrorsSessionEvents(t *testing.T) {
	b := NewMemoryEventBus(newTestLogger(t))
	t.Cleanup(b.Close)

	col := &collector{}
	sub, err := b.Subscribe(sessionSubject("s1"), col.handle)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	subject := sessionSubject("s1")
	require.NoError(t, b.Publish(context.Background(), subject,
		NewEvent("token", "agentd", map[string]interface{}{"payload": "hi"})))
	require.NoError(t, b.Publish(context.Background(), subject,
		NewEvent("done", "agentd", nil)))

	require.Eventually(t, func() bool {
		return len(col.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"token", "done"}, col.snapshot())
}

func TestMemoryBus_SubjectsAreIsolated(t *testing.T) {
	b := NewMemoryEventBus(newTestLogger(t))
	t.Cleanup(b.Close)

	s1 := &collector{}
	s2 := &collector{}
	_, err := b.Subscribe(sessionSubject("s1"), s1.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(sessionSubject("s2"), s2.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), sessionSubject("s2"),
		NewEvent("done", "agentd", nil)))

	require.Eventually(t, func() bool {
		return len(s2.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, s1.snapshot())
}

func TestMemoryBus_WildcardSubjects(t *testing.T) {
	b := NewMemoryEventBus(newTestLogger(t))
	t.Cleanup(b.Close)

	oneToken := &collector{}
	tail := &collector{}
	_, err := b.Subscribe("agentd.sessions.*.events", oneToken.handle)
	require.NoError(t, err)
	_, err = b.Subscribe("agentd.>", tail.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), sessionSubject("abc"),
		NewEvent("token", "agentd", nil)))
	require.NoError(t, b.Publish(context.Background(), "agentd.health",
		NewEvent("ping", "agentd", nil)))

	require.Eventually(t, func() bool {
		return len(tail.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"token"}, oneToken.snapshot())
	assert.ElementsMatch(t, []string{"token", "ping"}, tail.snapshot())
}

func TestMemoryBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryEventBus(newTestLogger(t))
	t.Cleanup(b.Close)

	col := &collector{}
	sub, err := b.Subscribe(sessionSubject("s1"), col.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), sessionSubject("s1"),
		NewEvent("token", "agentd", nil)))
	require.Eventually(t, func() bool {
		return len(col.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, b.Publish(context.Background(), sessionSubject("s1"),
		NewEvent("done", "agentd", nil)))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"token"}, col.snapshot())
}

func TestMemoryBus_CloseDiscardsPublishes(t *testing.T) {
	b := NewMemoryEventBus(newTestLogger(t))

	col := &collector{}
	_, err := b.Subscribe(sessionSubject("s1"), col.handle)
	require.NoError(t, err)

	b.Close()
	require.NoError(t, b.Publish(context.Background(), sessionSubject("s1"),
		NewEvent("token", "agentd", nil)))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, col.snapshot())
}

func TestMemoryBus_HandlerErrorIsContained(t *testing.T) {
	b := NewMemoryEventBus(newTestLogger(t))
	t.Cleanup(b.Close)

	col := &collector{}
	_, err := b.Subscribe(sessionSubject("s1"), func(ctx context.Context, ev *Event) error {
		return fmt.Errorf("mirror broke")
	})
	require.NoError(t, err)
	_, err = b.Subscribe(sessionSubject("s1"), col.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), sessionSubject("s1"),
		NewEvent("done", "agentd", nil)))

	require.Eventually(t, func() bool {
		return len(col.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent("token", "agentd", map[string]interface{}{"payload": "x"})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "token", ev.Type)
	assert.Equal(t, "agentd", ev.Source)
	assert.Equal(t, "x", ev.Data["payload"])
	assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, time.Minute)
}
