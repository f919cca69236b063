package tools

import (
	"context"
	"fmt"

	"github.com/agentd/agentd/internal/backend"
)

// RegisterExecTool adds the execute tool backed by e. Backends without
// command execution simply never register it.
func RegisterExecTool(r *Registry, e backend.Executor) {
	r.Register(&execTool{e: e})
}

type execTool struct{ e backend.Executor }

func (t *execTool) Name() string { return "execute" }
func (t *execTool) Description() string {
	return "Run a shell command in the session's execution environment."
}
func (t *execTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{"type": "string"},
		},
		"required": []string{"command"},
	}
}

func (t *execTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command := argString(args, "command", "")
	if command == "" {
		return "Error: missing command", nil
	}
	res, err := t.e.Execute(ctx, command)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("%s\n(exit code %d)", res.Output, res.ExitCode), nil
	}
	return res.Output, nil
}
