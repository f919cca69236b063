package model

import (
	"context"
	"sync"
)

// Step is one scripted assistant turn: tokens streamed in order, then any
// tool calls to request.
type Step struct {
	Tokens    []string
	ToolCalls []ToolCall
}

// Scripted is a deterministic Model that replays a fixed sequence of steps.
// It backs tests and the offline development mode. Once the script is
// exhausted every further call returns an empty final turn.
type Scripted struct {
	mu    sync.Mutex
	name  string
	steps []Step
	next  int
}

// NewScripted creates a scripted model named name.
func NewScripted(name string, steps []Step) *Scripted {
	if name == "" {
		name = "scripted"
	}
	return &Scripted{name: name, steps: steps}
}

func (s *Scripted) Name() string {
	return s.name
}

func (s *Scripted) Stream(ctx context.Context, system string, msgs []Message, tools []ToolSpec, onToken func(string)) (*Turn, error) {
	s.mu.Lock()
	var step Step
	if s.next < len(s.steps) {
		step = s.steps[s.next]
		s.next++
	}
	s.mu.Unlock()

	turn := &Turn{ToolCalls: step.ToolCalls}
	for _, tok := range step.Tokens {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if onToken != nil {
			onToken(tok)
		}
		turn.Content += tok
	}
	return turn, nil
}

// Reset rewinds the script to the beginning.
func (s *Scripted) Reset() {
	s.mu.Lock()
	s.next = 0
	s.mu.Unlock()
}
