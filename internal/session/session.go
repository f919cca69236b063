// Package session owns per-conversation state: the selected execution
// backend, the transcript, and the pending-interrupt slot, together with
// the store mapping session ids to sessions.
package session

import (
	"sync"
	"time"

	"github.com/agentd/agentd/internal/backend"
	"github.com/agentd/agentd/internal/runner"
	"github.com/agentd/agentd/internal/sandbox/docker"
	v1 "github.com/agentd/agentd/pkg/api/v1"
)

// PendingInterrupt holds the gated actions of a suspended turn awaiting
// decisions. At most one exists per session at a time.
type PendingInterrupt struct {
	Requests []v1.ActionRequest
	Reviews  []v1.ReviewConfig
}

// Session is one conversation and its execution environment. The session
// owns its backend, and the sandbox instance when one exists, for its
// whole lifetime.
type Session struct {
	ID           string
	Model        string
	Capabilities []string
	HITL         bool
	Sandboxed    bool
	ThreadID     string
	System       string
	Backend      backend.Executor
	Sandbox      *docker.Sandbox
	Runner       *runner.Runner
	CreatedAt    time.Time

	// mu serializes turns so a session never has two concurrent in-flight
	// runs against the same thread.
	mu         sync.Mutex
	status     v1.SessionStatus
	transcript []v1.TranscriptMessage
	pending    *PendingInterrupt
}

// Status returns the session's current turn state.
func (s *Session) Status() v1.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []v1.TranscriptMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]v1.TranscriptMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Pending returns the pending interrupt, or nil.
func (s *Session) Pending() *PendingInterrupt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// View renders the session as its wire representation.
func (s *Session) View() v1.Session {
	return v1.Session{
		ID:           s.ID,
		Model:        s.Model,
		Capabilities: s.Capabilities,
		HITL:         s.HITL,
		Sandboxed:    s.Sandboxed,
		Status:       s.Status(),
		CreatedAt:    s.CreatedAt,
	}
}

// Release tears down the session's execution environment. Safe to call
// while a turn is in flight; the turn surfaces the resulting failures as
// a terminal error event.
func (s *Session) Release() {
	if s.Sandbox != nil {
		s.Sandbox.Close()
	}
}
