// Package v1 defines the wire types of the agentd HTTP API. These shapes
// are the compatibility contract for any streaming client.
package v1

import "time"

// SessionStatus represents the state of a session's current turn.
type SessionStatus string

const (
	SessionStatusIdle        SessionStatus = "IDLE"
	SessionStatusRunning     SessionStatus = "RUNNING"
	SessionStatusInterrupted SessionStatus = "INTERRUPTED"
)

// Session describes a chat session and its execution environment.
type Session struct {
	ID           string        `json:"id"`
	Model        string        `json:"model"`
	Capabilities []string      `json:"capabilities"`
	HITL         bool          `json:"hitl"`
	Sandboxed    bool          `json:"sandboxed"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// TranscriptMessage is one entry in a session's conversation transcript.
type TranscriptMessage struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// ActionRequest is a tool invocation awaiting a human decision.
type ActionRequest struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// ReviewConfig describes which decisions are permitted for a pending action.
type ReviewConfig struct {
	Tool         string `json:"tool"`
	AllowApprove bool   `json:"allow_approve"`
	AllowEdit    bool   `json:"allow_edit"`
	AllowReject  bool   `json:"allow_reject"`
	Description  string `json:"description,omitempty"`
}

// Decision actions accepted on resume.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionEdit    = "edit"
)

// Decision resolves one pending ActionRequest. Decisions are supplied in
// the same order as the action requests they resolve.
type Decision struct {
	Action string                 `json:"action"` // approve, reject, edit
	Args   map[string]interface{} `json:"args,omitempty"`
}
