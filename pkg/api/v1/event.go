package v1

// EventType identifies one of the five normalized streaming event kinds.
type EventType string

const (
	EventTypeToken     EventType = "token"
	EventTypeToolStart EventType = "tool_start"
	EventTypeToolEnd   EventType = "tool_end"
	EventTypeInterrupt EventType = "interrupt"
	EventTypeError     EventType = "error"
	EventTypeDone      EventType = "done"
)

// Event is the closed set of normalized streaming events. Exactly one of
// interrupt, error, or done terminates a turn's event sequence.
type Event interface {
	EventType() EventType
}

// TokenEvent carries an incremental chunk of assistant text.
type TokenEvent struct {
	Content string `json:"content"`
}

func (TokenEvent) EventType() EventType { return EventTypeToken }

// ToolStartEvent announces the start of a tool call.
type ToolStartEvent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Capability string `json:"capability"`
	Icon       string `json:"icon"`
	Action     string `json:"action"`
	Input      string `json:"input"`
}

func (ToolStartEvent) EventType() EventType { return EventTypeToolStart }

// ToolEndEvent reports the completion of a tool call. DurationMS is wall
// clock time measured from the matching ToolStartEvent.
type ToolEndEvent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration"`
}

func (ToolEndEvent) EventType() EventType { return EventTypeToolEnd }

// InterruptEvent suspends the turn until a decision resolves every pending
// action request. No further events follow it within the same turn.
type InterruptEvent struct {
	Requests []ActionRequest `json:"requests"`
	Reviews  []ReviewConfig  `json:"reviews"`
}

func (InterruptEvent) EventType() EventType { return EventTypeInterrupt }

// ErrorEvent terminates a turn after an unrecoverable failure.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventType() EventType { return EventTypeError }

// DoneEvent terminates a turn that completed normally.
type DoneEvent struct{}

func (DoneEvent) EventType() EventType { return EventTypeDone }
