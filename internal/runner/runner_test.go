package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentd/agentd/internal/backend"
	"github.com/agentd/agentd/internal/common/logger"
	"github.com/agentd/agentd/internal/model"
	"github.com/agentd/agentd/internal/tools"
	v1 "github.com/agentd/agentd/pkg/api/v1"
)

type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) sink(e Event) {
	r.events = append(r.events, e)
}

func (r *eventRecorder) kinds() []EventKind {
	kinds := make([]EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func newTestRunner(t *testing.T, m model.Model, hitl bool) (*Runner, *backend.LocalShell, *CheckpointStore) {
	t.Helper()
	shell, err := backend.NewLocalShell(t.TempDir(), 0)
	require.NoError(t, err)
	reg := tools.NewRegistry()
	tools.RegisterFileTools(reg, shell)
	tools.RegisterExecTool(reg, shell)
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	cps := NewCheckpointStore()
	return New(m, reg, cps, hitl, 0, log), shell, cps
}

func TestRunner_PlainCompletion(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{Tokens: []string{"hi ", "there"}},
	})
	r, _, _ := newTestRunner(t, m, false)

	rec := &eventRecorder{}
	out, err := r.Run(context.Background(), "t1", "sys", nil, rec.sink)
	require.NoError(t, err)
	assert.False(t, out.Interrupted)
	assert.Equal(t, "hi there", out.Content)
	assert.Equal(t, []EventKind{EventToken, EventToken}, rec.kinds())
}

func TestRunner_ToolExecutionWithoutGating(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "execute",
			Args: map[string]interface{}{"command": "echo hi"},
		}}},
		{Tokens: []string{"done"}},
	})
	r, _, _ := newTestRunner(t, m, false)

	rec := &eventRecorder{}
	out, err := r.Run(context.Background(), "t1", "sys", nil, rec.sink)
	require.NoError(t, err)
	assert.False(t, out.Interrupted)
	assert.Equal(t, "done", out.Content)
	assert.Equal(t, []EventKind{EventToolStart, EventToolEnd, EventToken}, rec.kinds())
	assert.Equal(t, "hi\n", rec.events[1].Output)
}

func TestRunner_InterruptAndApprove(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "write_file",
			Args: map[string]interface{}{"path": "/a.txt", "content": "original"},
		}}},
		{Tokens: []string{"written"}},
	})
	r, shell, cps := newTestRunner(t, m, true)
	ctx := context.Background()

	rec := &eventRecorder{}
	out, err := r.Run(ctx, "t1", "sys", nil, rec.sink)
	require.NoError(t, err)
	require.True(t, out.Interrupted)
	require.Len(t, out.Requests, 1)
	assert.Equal(t, "write_file", out.Requests[0].Tool)
	require.Len(t, out.Reviews, 1)
	assert.True(t, out.Reviews[0].AllowEdit)

	// Nothing executed yet: no tool events, no file
	assert.Empty(t, rec.kinds())
	_, err = shell.Read(ctx, "/a.txt", 0, 0)
	assert.Error(t, err)

	// A checkpoint holds the suspension point
	cp, err := cps.Load("t1")
	require.NoError(t, err)
	assert.Len(t, cp.Pending, 1)

	rec = &eventRecorder{}
	out, err = r.Resume(ctx, "t1", []v1.Decision{{Action: v1.DecisionApprove}}, rec.sink)
	require.NoError(t, err)
	assert.False(t, out.Interrupted)
	assert.Equal(t, "written", out.Content)
	assert.Equal(t, []EventKind{EventToolStart, EventToolEnd, EventToken}, rec.kinds())

	got, err := shell.Read(ctx, "/a.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "original", got)

	// Checkpoint cleared after a completed turn
	_, err = cps.Load("t1")
	assert.Error(t, err)
}

func TestRunner_ResumeWithEditedArgs(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "write_file",
			Args: map[string]interface{}{"path": "/a.txt", "content": "original"},
		}}},
		{Tokens: []string{"ok"}},
	})
	r, shell, _ := newTestRunner(t, m, true)
	ctx := context.Background()

	out, err := r.Run(ctx, "t1", "sys", nil, func(Event) {})
	require.NoError(t, err)
	require.True(t, out.Interrupted)

	_, err = r.Resume(ctx, "t1", []v1.Decision{{
		Action: v1.DecisionEdit,
		Args:   map[string]interface{}{"path": "/b.txt", "content": "edited"},
	}}, func(Event) {})
	require.NoError(t, err)

	// The edited arguments ran, not the originals
	_, err = shell.Read(ctx, "/a.txt", 0, 0)
	assert.Error(t, err)
	got, err := shell.Read(ctx, "/b.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "edited", got)
}

func TestRunner_ResumeReject(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "execute",
			Args: map[string]interface{}{"command": "rm -rf /tmp/x"},
		}}},
		{Tokens: []string{"understood"}},
	})
	r, _, _ := newTestRunner(t, m, true)
	ctx := context.Background()

	out, err := r.Run(ctx, "t1", "sys", nil, func(Event) {})
	require.NoError(t, err)
	require.True(t, out.Interrupted)

	rec := &eventRecorder{}
	out, err = r.Resume(ctx, "t1", []v1.Decision{{Action: v1.DecisionReject}}, rec.sink)
	require.NoError(t, err)
	assert.False(t, out.Interrupted)
	assert.Equal(t, "understood", out.Content)

	// The rejected call never executed
	assert.Equal(t, []EventKind{EventToken}, rec.kinds())
}

func TestRunner_DecisionCountMismatch(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "write_file",
			Args: map[string]interface{}{"path": "/a.txt", "content": "x"},
		}}},
		{Tokens: []string{"ok"}},
	})
	r, _, cps := newTestRunner(t, m, true)
	ctx := context.Background()

	out, err := r.Run(ctx, "t1", "sys", nil, func(Event) {})
	require.NoError(t, err)
	require.True(t, out.Interrupted)

	_, err = r.Resume(ctx, "t1", []v1.Decision{
		{Action: v1.DecisionApprove},
		{Action: v1.DecisionApprove},
	}, func(Event) {})
	assert.Error(t, err)

	// The mismatch left the pending interrupt intact
	cp, err := cps.Load("t1")
	require.NoError(t, err)
	assert.Len(t, cp.Pending, 1)

	_, err = r.Resume(ctx, "t1", []v1.Decision{{Action: "maybe"}}, func(Event) {})
	assert.Error(t, err)

	_, err = r.Resume(ctx, "t1", []v1.Decision{{Action: v1.DecisionApprove}}, func(Event) {})
	require.NoError(t, err)
}

func TestRunner_ChainedInterrupts(t *testing.T) {
	m := model.NewScripted("test", []model.Step{
		{ToolCalls: []model.ToolCall{{
			ID: "c1", Name: "write_file",
			Args: map[string]interface{}{"path": "/first.txt", "content": "1"},
		}}},
		{ToolCalls: []model.ToolCall{{
			ID: "c2", Name: "write_file",
			Args: map[string]interface{}{"path": "/second.txt", "content": "2"},
		}}},
		{Tokens: []string{"both done"}},
	})
	r, shell, _ := newTestRunner(t, m, true)
	ctx := context.Background()

	out, err := r.Run(ctx, "t1", "sys", nil, func(Event) {})
	require.NoError(t, err)
	require.True(t, out.Interrupted)

	out, err = r.Resume(ctx, "t1", []v1.Decision{{Action: v1.DecisionApprove}}, func(Event) {})
	require.NoError(t, err)
	require.True(t, out.Interrupted, "second gate fires within the same turn")

	out, err = r.Resume(ctx, "t1", []v1.Decision{{Action: v1.DecisionApprove}}, func(Event) {})
	require.NoError(t, err)
	assert.False(t, out.Interrupted)
	assert.Equal(t, "both done", out.Content)

	got, err := shell.Read(ctx, "/first.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	got, err = shell.Read(ctx, "/second.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}
