package backend

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultCommandTimeout is the wall-clock deadline for LocalShell commands.
const DefaultCommandTimeout = 60 * time.Second

// LocalShell extends the filesystem backend with bounded command execution
// on the host. Commands run with the backend root as working directory.
type LocalShell struct {
	*Filesystem
	timeout time.Duration
}

// NewLocalShell creates a local shell backend rooted at root. A timeout of
// zero selects DefaultCommandTimeout.
func NewLocalShell(root string, timeout time.Duration) (*LocalShell, error) {
	fsys, err := NewFilesystem(root)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &LocalShell{Filesystem: fsys, timeout: timeout}, nil
}

// Execute runs command through the shell with the configured deadline.
// A timeout yields a synthetic exit code and a marker in the output, not
// an error.
func (l *LocalShell) Execute(ctx context.Context, command string) (ExecuteResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = l.root
	out, err := cmd.CombinedOutput()

	output, truncated := CapOutput(string(out))

	if runCtx.Err() == context.DeadlineExceeded {
		output += fmt.Sprintf("\ncommand timed out after %s", l.timeout)
		return ExecuteResult{Output: output, ExitCode: TimeoutExitCode, Truncated: truncated}, nil
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return ExecuteResult{}, fmt.Errorf("run command: %w", err)
		}
	}
	return ExecuteResult{Output: output, ExitCode: exitCode, Truncated: truncated}, nil
}
