package session

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentd/agentd/internal/backend"
	"github.com/agentd/agentd/internal/common/config"
	"github.com/agentd/agentd/internal/common/errors"
	"github.com/agentd/agentd/internal/common/logger"
	"github.com/agentd/agentd/internal/events/bus"
	"github.com/agentd/agentd/internal/model"
	v1 "github.com/agentd/agentd/pkg/api/v1"
)

type eventCollector struct {
	mu     sync.Mutex
	events []v1.Event
}

func (c *eventCollector) send(ev v1.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) all() []v1.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]v1.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *eventCollector) last() v1.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		Agent: config.AgentConfig{
			DefaultModel:   "llama",
			CommandTimeout: 10,
			MaxIterations:  10,
		},
		Sandbox: config.SandboxConfig{
			Image:       "python:3.12-slim",
			MemoryMB:    512,
			CPUs:        1,
			StopTimeout: 5,
		},
	}
}

func newTestService(t *testing.T, m model.Model, eventBus bus.EventBus) *Service {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	factory := func(model.Info) model.Model { return m }
	return NewService(NewStore(), nil, testConfig(), factory, eventBus, log)
}

func TestService_CreateSessionFallsBackWithoutDocker(t *testing.T) {
	m := model.NewScripted("test", nil)
	svc := newTestService(t, m, nil)

	sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		Sandboxed: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteSession(context.Background(), sess.ID) })

	assert.False(t, sess.Sandboxed)
	assert.Nil(t, sess.Sandbox)
	assert.IsType(t, &backend.LocalShell{}, sess.Backend)
	assert.Equal(t, "llama", sess.Model)
	assert.Equal(t, v1.SessionStatusIdle, sess.Status())
}

func TestService_SendMessageCompletesTurn(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{Tokens: []string{"hello ", "world"}},
	})
	svc := newTestService(t, m, nil)

	sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteSession(context.Background(), sess.ID) })

	col := &eventCollector{}
	require.NoError(t, svc.SendMessage(context.Background(), sess.ID, "hi", col.send))

	events := col.all()
	require.Len(t, events, 3)
	assert.Equal(t, v1.TokenEvent{Content: "hello "}, events[0])
	assert.Equal(t, v1.TokenEvent{Content: "world"}, events[1])
	assert.Equal(t, v1.EventTypeDone, events[2].EventType())

	transcript := sess.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, v1.TranscriptMessage{Role: "user", Content: "hi"}, transcript[0])
	assert.Equal(t, v1.TranscriptMessage{Role: "assistant", Content: "hello world"}, transcript[1])
	assert.Equal(t, v1.SessionStatusIdle, sess.Status())
}

func TestService_SendMessageUnknownSession(t *testing.T) {
	m := model.NewScripted("test", nil)
	svc := newTestService(t, m, nil)

	err := svc.SendMessage(context.Background(), "nope", "hi", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestService_InterruptAndDecisionFlow(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "write_file",
			Args: map[string]interface{}{"path": "/out.txt", "content": "data"},
		}}},
		{Tokens: []string{"written"}},
	})
	svc := newTestService(t, m, nil)

	sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{HITL: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteSession(context.Background(), sess.ID) })

	col := &eventCollector{}
	require.NoError(t, svc.SendMessage(context.Background(), sess.ID, "write it", col.send))

	events := col.all()
	require.Len(t, events, 1)
	intr, ok := events[0].(v1.InterruptEvent)
	require.True(t, ok)
	require.Len(t, intr.Requests, 1)
	assert.Equal(t, "write_file", intr.Requests[0].Tool)
	assert.Equal(t, v1.SessionStatusInterrupted, sess.Status())
	require.NotNil(t, sess.Pending())

	// A new message is refused while decisions are outstanding.
	err = svc.SendMessage(context.Background(), sess.ID, "another", nil)
	require.Error(t, err)
	assert.Equal(t, v1.SessionStatusInterrupted, sess.Status())

	// A malformed decision list is rejected without touching the interrupt.
	err = svc.SubmitDecisions(context.Background(), sess.ID, nil, nil)
	assert.True(t, errors.IsBadRequest(err))
	err = svc.SubmitDecisions(context.Background(), sess.ID, []v1.Decision{{Action: "maybe"}}, nil)
	assert.True(t, errors.IsBadRequest(err))
	require.NotNil(t, sess.Pending())

	resume := &eventCollector{}
	require.NoError(t, svc.SubmitDecisions(context.Background(), sess.ID,
		[]v1.Decision{{Action: v1.DecisionApprove}}, resume.send))

	last := resume.last()
	require.NotNil(t, last)
	assert.Equal(t, v1.EventTypeDone, last.EventType())
	assert.Nil(t, sess.Pending())
	assert.Equal(t, v1.SessionStatusIdle, sess.Status())

	read, err := sess.Backend.Read(context.Background(), "/out.txt", 0, 0)
	require.NoError(t, err)
	assert.Contains(t, read, "data")
}

func TestService_SendMessageWhileInterrupted(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "execute",
			Args: map[string]interface{}{"command": "rm -rf /tmp/x"},
		}}},
		{Tokens: []string{"done"}},
	})
	svc := newTestService(t, m, nil)

	sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{HITL: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteSession(context.Background(), sess.ID) })

	require.NoError(t, svc.SendMessage(context.Background(), sess.ID, "clean up", nil))
	require.Equal(t, v1.SessionStatusInterrupted, sess.Status())
	require.NotNil(t, sess.Pending())

	err = svc.SendMessage(context.Background(), sess.ID, "one more thing", nil)
	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, errors.ErrCodeConflict, appErr.Code)

	// The refused message leaves the interrupt and transcript untouched.
	assert.Equal(t, v1.SessionStatusInterrupted, sess.Status())
	assert.NotNil(t, sess.Pending())
	assert.Len(t, sess.Transcript(), 1)
}

func TestService_SubmitDecisionsWithoutInterrupt(t *testing.T) {
	m := model.NewScripted("test", nil)
	svc := newTestService(t, m, nil)

	sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{HITL: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteSession(context.Background(), sess.ID) })

	err = svc.SubmitDecisions(context.Background(), sess.ID, []v1.Decision{{Action: v1.DecisionApprove}}, nil)
	assert.True(t, errors.IsBadRequest(err))
}

func TestService_DeleteSessionReleasesWorkspace(t *testing.T) {
	m := model.NewScripted("test", nil)
	svc := newTestService(t, m, nil)

	sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{})
	require.NoError(t, err)
	root := filepath.Join(os.TempDir(), "agentd", sess.ID)
	_, err = os.Stat(root)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(context.Background(), sess.ID))
	_, err = svc.GetSession(sess.ID)
	assert.True(t, errors.IsNotFound(err))

	err = svc.DeleteSession(context.Background(), sess.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestService_SessionsAreIndependent(t *testing.T) {
	mA := model.NewScripted("a", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "write_file",
			Args: map[string]interface{}{"path": "/a.txt", "content": "from a"},
		}}},
		{Tokens: []string{"ok"}},
	})
	mB := model.NewScripted("b", []model.Step{
		{Tokens: []string{"just text"}},
	})

	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	models := map[string]model.Model{}
	factory := func(info model.Info) model.Model { return models[info.Alias] }
	svc := NewService(NewStore(), nil, testConfig(), factory, nil, log)

	models["llama"] = mA
	sessA, err := svc.CreateSession(context.Background(), CreateSessionRequest{Model: "llama"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteSession(context.Background(), sessA.ID) })

	models["deepseek"] = mB
	sessB, err := svc.CreateSession(context.Background(), CreateSessionRequest{Model: "deepseek"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteSession(context.Background(), sessB.ID) })

	require.NoError(t, svc.SendMessage(context.Background(), sessA.ID, "hi", nil))
	require.NoError(t, svc.SendMessage(context.Background(), sessB.ID, "hi", nil))

	// Each session sees only its own workspace.
	read, err := sessA.Backend.Read(context.Background(), "/a.txt", 0, 0)
	require.NoError(t, err)
	assert.Contains(t, read, "from a")
	_, err = sessB.Backend.Read(context.Background(), "/a.txt", 0, 0)
	assert.Error(t, err)

	assert.Len(t, svc.ListSessions(), 2)
	assert.Len(t, sessA.Transcript(), 2)
	assert.Len(t, sessB.Transcript(), 2)
}

func TestService_EventsMirroredToBus(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{Tokens: []string{"mirrored"}},
	})
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	memBus := bus.NewMemoryEventBus(log)
	t.Cleanup(memBus.Close)

	svc := newTestService(t, m, memBus)
	sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteSession(context.Background(), sess.ID) })

	var mu sync.Mutex
	var received []string
	sub, err := memBus.Subscribe("agentd.sessions."+sess.ID+".events", func(ctx context.Context, ev *bus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev.Type)
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	require.NoError(t, svc.SendMessage(context.Background(), sess.ID, "hi", nil))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Delivery is asynchronous, so only membership is guaranteed.
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"token", "done"}, received)
}
