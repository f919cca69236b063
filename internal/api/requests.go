// Package api provides the HTTP handlers for the agentd session API.
package api

import (
	"time"

	v1 "github.com/agentd/agentd/pkg/api/v1"
)

// CreateSessionRequest for creating a session
type CreateSessionRequest struct {
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities"`
	HITL         bool     `json:"hitl"`
	Sandboxed    bool     `json:"sandboxed"`
}

// SendMessageRequest for submitting a user message
type SendMessageRequest struct {
	Content string `json:"message" binding:"required"`
}

// DecisionsRequest for resolving a pending interrupt
type DecisionsRequest struct {
	Decisions []v1.Decision `json:"decisions" binding:"required"`
}

// SessionResponse for a single session, with transcript and pending state
type SessionResponse struct {
	v1.Session
	Transcript []v1.TranscriptMessage `json:"transcript"`
	Pending    []v1.ActionRequest     `json:"pending,omitempty"`
	Reviews    []v1.ReviewConfig      `json:"reviews,omitempty"`
}

// SessionsListResponse for listing sessions
type SessionsListResponse struct {
	Sessions []v1.Session `json:"sessions"`
	Total    int          `json:"total"`
}

// ModelResponse for one catalog entry
type ModelResponse struct {
	Alias       string `json:"alias"`
	ProviderID  string `json:"provider_id"`
	DisplayName string `json:"display_name"`
	Default     bool   `json:"default"`
}

// ModelsListResponse for the model catalog
type ModelsListResponse struct {
	Models []ModelResponse `json:"models"`
	Total  int             `json:"total"`
}

// HealthResponse for health checks
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
