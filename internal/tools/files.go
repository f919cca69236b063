package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentd/agentd/internal/backend"
)

// RegisterFileTools adds the file-operation tools backed by b.
func RegisterFileTools(r *Registry, b backend.Backend) {
	r.Register(&lsTool{b: b})
	r.Register(&readTool{b: b})
	r.Register(&writeTool{b: b})
	r.Register(&editTool{b: b})
	r.Register(&globTool{b: b})
	r.Register(&grepTool{b: b})
}

func pathSchema(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path": map[string]interface{}{"type": "string"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
}

type lsTool struct{ b backend.Backend }

func (t *lsTool) Name() string        { return "ls" }
func (t *lsTool) Description() string { return "List the entries of a directory." }
func (t *lsTool) InputSchema() map[string]interface{} {
	return pathSchema(nil)
}

func (t *lsTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	infos, err := t.b.List(ctx, argString(args, "path", "/"))
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "(empty)", nil
	}
	var b strings.Builder
	for _, info := range infos {
		if info.IsDir {
			fmt.Fprintf(&b, "%s/\n", info.Path)
		} else {
			fmt.Fprintf(&b, "%s (%d bytes)\n", info.Path, info.Size)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type readTool struct{ b backend.Backend }

func (t *readTool) Name() string { return "read_file" }
func (t *readTool) Description() string {
	return "Read a file, optionally windowed by line offset and limit."
}
func (t *readTool) InputSchema() map[string]interface{} {
	return pathSchema(map[string]interface{}{
		"offset": map[string]interface{}{"type": "integer"},
		"limit":  map[string]interface{}{"type": "integer"},
	})
}

func (t *readTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	content, err := t.b.Read(ctx,
		argString(args, "path", ""),
		argInt(args, "offset", 0),
		argInt(args, "limit", 0),
	)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	return content, nil
}

type writeTool struct{ b backend.Backend }

func (t *writeTool) Name() string        { return "write_file" }
func (t *writeTool) Description() string { return "Write content to a file, creating it if needed." }
func (t *writeTool) InputSchema() map[string]interface{} {
	return pathSchema(map[string]interface{}{
		"content": map[string]interface{}{"type": "string"},
	})
}

func (t *writeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	res := t.b.Write(ctx, argString(args, "path", ""), argString(args, "content", ""))
	if res.Error != "" {
		return fmt.Sprintf("Error: %s", res.Error), nil
	}
	return fmt.Sprintf("Wrote %s", res.Path), nil
}

type editTool struct{ b backend.Backend }

func (t *editTool) Name() string { return "edit_file" }
func (t *editTool) Description() string {
	return "Replace a string in a file. Set replace_all to replace every occurrence."
}
func (t *editTool) InputSchema() map[string]interface{} {
	return pathSchema(map[string]interface{}{
		"old_string":  map[string]interface{}{"type": "string"},
		"new_string":  map[string]interface{}{"type": "string"},
		"replace_all": map[string]interface{}{"type": "boolean"},
	})
}

func (t *editTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	res := t.b.Edit(ctx,
		argString(args, "path", ""),
		argString(args, "old_string", ""),
		argString(args, "new_string", ""),
		argBool(args, "replace_all"),
	)
	if res.Error != "" {
		return fmt.Sprintf("Error: %s", res.Error), nil
	}
	return fmt.Sprintf("Edited %s (%d occurrences)", res.Path, res.Occurrences), nil
}

type globTool struct{ b backend.Backend }

func (t *globTool) Name() string        { return "glob" }
func (t *globTool) Description() string { return "Find files whose names match a glob pattern." }
func (t *globTool) InputSchema() map[string]interface{} {
	return pathSchema(map[string]interface{}{
		"pattern": map[string]interface{}{"type": "string"},
	})
}

func (t *globTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	infos, err := t.b.Glob(ctx, argString(args, "pattern", "*"), argString(args, "path", "/"))
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "(no matches)", nil
	}
	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.Path
	}
	return strings.Join(paths, "\n"), nil
}

type grepTool struct{ b backend.Backend }

func (t *grepTool) Name() string        { return "grep" }
func (t *grepTool) Description() string { return "Search file contents for a regular expression." }
func (t *grepTool) InputSchema() map[string]interface{} {
	return pathSchema(map[string]interface{}{
		"pattern": map[string]interface{}{"type": "string"},
		"glob":    map[string]interface{}{"type": "string"},
	})
}

func (t *grepTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	matches, err := t.b.Grep(ctx,
		argString(args, "pattern", ""),
		argString(args, "path", "/"),
		argString(args, "glob", ""),
	)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if len(matches) == 0 {
		return "(no matches)", nil
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d:%s\n", m.Path, m.LineNumber, m.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
