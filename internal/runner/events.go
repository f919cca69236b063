package runner

// EventKind identifies an internal runner event before translation into the
// external streaming vocabulary.
type EventKind string

const (
	EventToken     EventKind = "token"
	EventToolStart EventKind = "tool_start"
	EventToolEnd   EventKind = "tool_end"
)

// Event is an internal execution event emitted while a turn runs.
type Event struct {
	Kind   EventKind
	Token  string
	CallID string
	Tool   string
	Input  string
	Output string
}

// Sink receives runner events in emission order.
type Sink func(Event)
