// Package runner drives the agent loop for one session: it streams model
// turns, executes tool calls, and suspends into a checkpoint whenever a
// gated action needs a human decision. A suspended run resumes from the
// exact suspension point with the decisions injected; the model is never
// asked to restate or replan.
package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/agentd/agentd/internal/common/logger"
	"github.com/agentd/agentd/internal/model"
	"github.com/agentd/agentd/internal/tools"
	v1 "github.com/agentd/agentd/pkg/api/v1"
)

// DefaultMaxIterations bounds the number of model turns per message.
const DefaultMaxIterations = 50

// Outcome is the result of running or resuming a turn. Exactly one of
// Interrupted or a completed turn (possibly with empty content) holds.
type Outcome struct {
	Interrupted bool
	Requests    []v1.ActionRequest
	Reviews     []v1.ReviewConfig
	Content     string
}

// Runner executes turns for a single session.
type Runner struct {
	model       model.Model
	registry    *tools.Registry
	checkpoints *CheckpointStore
	hitl        bool
	maxIter     int
	logger      *logger.Logger
}

// New creates a runner. hitl enables the approval gate on mutating tools.
func New(m model.Model, reg *tools.Registry, cps *CheckpointStore, hitl bool, maxIter int, log *logger.Logger) *Runner {
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	return &Runner{
		model:       m,
		registry:    reg,
		checkpoints: cps,
		hitl:        hitl,
		maxIter:     maxIter,
		logger:      log,
	}
}

// Run starts a fresh turn for threadID with the given transcript.
func (r *Runner) Run(ctx context.Context, threadID, system string, msgs []model.Message, sink Sink) (*Outcome, error) {
	cp := &Checkpoint{
		ThreadID: threadID,
		System:   system,
		Messages: msgs,
	}
	return r.loop(ctx, cp, sink)
}

// Resume re-enters a suspended run with one decision per pending action,
// order-preserving. A count mismatch or an unknown decision action rejects
// the call without mutating any state.
func (r *Runner) Resume(ctx context.Context, threadID string, decisions []v1.Decision, sink Sink) (*Outcome, error) {
	cp, err := r.checkpoints.Load(threadID)
	if err != nil {
		return nil, err
	}
	if len(cp.Pending) == 0 {
		return nil, fmt.Errorf("no pending interrupt for thread %s", threadID)
	}
	if len(decisions) != len(cp.Pending) {
		return nil, fmt.Errorf("decision count mismatch: got %d, expected %d", len(decisions), len(cp.Pending))
	}
	for _, d := range decisions {
		switch d.Action {
		case v1.DecisionApprove, v1.DecisionReject, v1.DecisionEdit:
		default:
			return nil, fmt.Errorf("unknown decision action %q", d.Action)
		}
	}

	pending := cp.Pending
	cp.Pending = nil

	for i, call := range pending {
		switch decisions[i].Action {
		case v1.DecisionReject:
			r.logger.Info("Tool call rejected",
				zap.String("thread_id", threadID),
				zap.String("tool", call.Name),
			)
			cp.Messages = append(cp.Messages, model.Message{
				Role:       model.RoleTool,
				Content:    "Tool call rejected by the user.",
				ToolCallID: call.ID,
			})
		case v1.DecisionEdit:
			call.Args = decisions[i].Args
			fallthrough
		case v1.DecisionApprove:
			cp.Messages = append(cp.Messages, r.runCall(ctx, call, sink))
		}
	}

	return r.loop(ctx, cp, sink)
}

// loop advances the run until the model finishes, an approval gate fires,
// or the iteration budget is spent.
func (r *Runner) loop(ctx context.Context, cp *Checkpoint, sink Sink) (*Outcome, error) {
	for cp.Iteration < r.maxIter {
		cp.Iteration++

		turn, err := r.model.Stream(ctx, cp.System, cp.Messages, r.registry.Specs(), func(tok string) {
			sink(Event{Kind: EventToken, Token: tok})
		})
		if err != nil {
			return nil, fmt.Errorf("model stream: %w", err)
		}

		cp.Messages = append(cp.Messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   turn.Content,
			ToolCalls: turn.ToolCalls,
		})

		if len(turn.ToolCalls) == 0 {
			r.checkpoints.Delete(cp.ThreadID)
			return &Outcome{Content: turn.Content}, nil
		}

		var gated []model.ToolCall
		for _, call := range turn.ToolCalls {
			if r.hitl && Gated(call.Name, call.Args) {
				gated = append(gated, call)
				continue
			}
			cp.Messages = append(cp.Messages, r.runCall(ctx, call, sink))
		}

		if len(gated) > 0 {
			cp.Pending = gated
			r.checkpoints.Save(cp)

			requests := make([]v1.ActionRequest, len(gated))
			reviews := make([]v1.ReviewConfig, len(gated))
			for i, call := range gated {
				requests[i] = v1.ActionRequest{Tool: call.Name, Args: call.Args}
				reviews[i] = ReviewFor(requests[i])
			}
			r.logger.Info("Run suspended for approval",
				zap.String("thread_id", cp.ThreadID),
				zap.Int("pending_actions", len(gated)),
			)
			return &Outcome{Interrupted: true, Requests: requests, Reviews: reviews}, nil
		}
	}
	return nil, fmt.Errorf("turn exceeded %d iterations", r.maxIter)
}

// runCall executes one tool call, emitting the start and end events. Tool
// failures become tool output so the run can continue.
func (r *Runner) runCall(ctx context.Context, call model.ToolCall, sink Sink) model.Message {
	input := renderArgs(call.Args)
	sink(Event{Kind: EventToolStart, CallID: call.ID, Tool: call.Name, Input: input})

	var output string
	tool, err := r.registry.Get(call.Name)
	if err != nil {
		output = fmt.Sprintf("Error: %v", err)
	} else if output, err = tool.Execute(ctx, call.Args); err != nil {
		r.logger.Warn("Tool execution failed",
			zap.String("tool", call.Name),
			zap.Error(err),
		)
		output = fmt.Sprintf("Error: %v", err)
	}

	sink(Event{Kind: EventToolEnd, CallID: call.ID, Tool: call.Name, Output: output})
	return model.Message{
		Role:       model.RoleTool,
		Content:    output,
		ToolCallID: call.ID,
	}
}

func renderArgs(args map[string]interface{}) string {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}
