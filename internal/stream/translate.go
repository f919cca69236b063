// Package stream normalizes internal runner events into the external
// streaming event vocabulary. One translator serves one turn; exactly one
// of interrupt, error, or done terminates its sequence.
package stream

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agentd/agentd/internal/runner"
	v1 "github.com/agentd/agentd/pkg/api/v1"
)

const (
	// InputCap bounds the rendered tool input in a tool_start event.
	InputCap = 200

	// OutputCap bounds the rendered tool output in a tool_end event.
	OutputCap = 300

	truncationSuffix = "..."
)

// capabilityByTool maps tool names to the capability tag shown to clients.
var capabilityByTool = map[string]string{
	"tavily_search": "websearch",
	"execute":       "codeinterpreter",
	"read_file":     "fileio",
	"write_file":    "fileio",
	"edit_file":     "fileio",
	"grep":          "fileio",
	"glob":          "fileio",
	"ls":            "fileio",
}

// iconByTool maps tool names to a display icon.
var iconByTool = map[string]string{
	"tavily_search": "🌐",
	"execute":       "💻",
	"read_file":     "📁",
	"write_file":    "📁",
	"edit_file":     "📁",
	"ls":            "📁",
	"grep":          "🔍",
	"glob":          "🔍",
}

// Translator converts runner events for one turn into external events and
// pushes them to send. It is single-threaded per turn.
type Translator struct {
	send       func(v1.Event)
	starts     map[string]time.Time
	terminated bool
	now        func() time.Time
}

// NewTranslator creates a translator that forwards to send.
func NewTranslator(send func(v1.Event)) *Translator {
	return &Translator{
		send:   send,
		starts: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Handle translates one internal event. Events after the terminal event
// are dropped.
func (t *Translator) Handle(e runner.Event) {
	if t.terminated {
		return
	}
	switch e.Kind {
	case runner.EventToken:
		t.send(v1.TokenEvent{Content: e.Token})
	case runner.EventToolStart:
		t.starts[e.CallID] = t.now()
		t.send(v1.ToolStartEvent{
			ID:         e.CallID,
			Name:       e.Tool,
			Capability: capabilityFor(e.Tool),
			Icon:       iconFor(e.Tool),
			Action:     strings.ReplaceAll(e.Tool, "_", " "),
			Input:      truncate(e.Input, InputCap),
		})
	case runner.EventToolEnd:
		started, ok := t.starts[e.CallID]
		if !ok {
			started = t.now()
		}
		delete(t.starts, e.CallID)
		t.send(v1.ToolEndEvent{
			ID:         e.CallID,
			Name:       e.Tool,
			Output:     truncate(e.Output, OutputCap),
			DurationMS: t.now().Sub(started).Milliseconds(),
		})
	}
}

// Interrupt emits the terminal interrupt event with the pending requests.
func (t *Translator) Interrupt(requests []v1.ActionRequest, reviews []v1.ReviewConfig) {
	if t.terminated {
		return
	}
	t.terminated = true
	t.send(v1.InterruptEvent{Requests: requests, Reviews: reviews})
}

// Error emits the terminal error event.
func (t *Translator) Error(message string) {
	if t.terminated {
		return
	}
	t.terminated = true
	t.send(v1.ErrorEvent{Message: message})
}

// Done emits the terminal done event.
func (t *Translator) Done() {
	if t.terminated {
		return
	}
	t.terminated = true
	t.send(v1.DoneEvent{})
}

// Terminated reports whether the turn's terminal event has been emitted.
func (t *Translator) Terminated() bool {
	return t.terminated
}

func capabilityFor(tool string) string {
	if c, ok := capabilityByTool[tool]; ok {
		return c
	}
	return "api"
}

func iconFor(tool string) string {
	if icon, ok := iconByTool[tool]; ok {
		return icon
	}
	return "🔧"
}

// truncate caps s at limit runes, never splitting a multi-byte character.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + truncationSuffix
}
