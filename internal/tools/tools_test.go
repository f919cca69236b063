package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentd/agentd/internal/backend"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	shell, err := backend.NewLocalShell(t.TempDir(), 0)
	require.NoError(t, err)
	r := NewRegistry()
	RegisterFileTools(r, shell)
	RegisterExecTool(r, shell)
	return r
}

func TestRegistry_Specs(t *testing.T) {
	r := newTestRegistry(t)

	specs := r.Specs()
	assert.Len(t, specs, 7)

	names := r.Names()
	assert.Contains(t, names, "execute")
	assert.Contains(t, names, "edit_file")

	_, err := r.Get("nope")
	assert.Error(t, err)
}

func TestFileTools_WriteReadEdit(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	write, err := r.Get("write_file")
	require.NoError(t, err)
	out, err := write.Execute(ctx, map[string]interface{}{
		"path":    "/hello.txt",
		"content": "hello world",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "/hello.txt")

	read, err := r.Get("read_file")
	require.NoError(t, err)
	out, err = read.Execute(ctx, map[string]interface{}{"path": "/hello.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	edit, err := r.Get("edit_file")
	require.NoError(t, err)
	out, err = edit.Execute(ctx, map[string]interface{}{
		"path":       "/hello.txt",
		"old_string": "world",
		"new_string": "there",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "1 occurrences")

	// Expected failures surface in the result text, not as errors
	out, err = edit.Execute(ctx, map[string]interface{}{
		"path":       "/hello.txt",
		"old_string": "absent",
		"new_string": "x",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Error")
}

func TestExecTool(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	exec, err := r.Get("execute")
	require.NoError(t, err)

	out, err := exec.Execute(ctx, map[string]interface{}{"command": "echo hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)

	out, err = exec.Execute(ctx, map[string]interface{}{"command": "exit 2"})
	require.NoError(t, err)
	assert.Contains(t, out, "exit code 2")

	out, err = exec.Execute(ctx, map[string]interface{}{})
	require.NoError(t, err)
	assert.Contains(t, out, "missing command")
}
