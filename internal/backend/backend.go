// Package backend defines the execution backend contract and its host-local
// implementations. A backend gives the agent a uniform view of file operations
// and, for variants that support it, shell command execution. Expected
// conditions (missing file, pattern not found) come back as result values,
// not errors.
package backend

import (
	"context"
	"unicode/utf8"
)

const (
	// MaxOutputBytes caps the combined stdout/stderr of a command.
	MaxOutputBytes = 50000

	// TruncationMarker is appended to command output that hit the cap.
	TruncationMarker = "\n... (truncated)"

	// DefaultReadLimit is the number of lines Read returns when no limit is given.
	DefaultReadLimit = 2000

	// TimeoutExitCode is the synthetic exit code reported when a command
	// exceeds its deadline.
	TimeoutExitCode = 124
)

// FileInfo describes a single file or directory entry.
type FileInfo struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// ExecuteResult is the outcome of a shell command. A deadline or an output
// cap produces a normal bounded result, never an error.
type ExecuteResult struct {
	Output    string `json:"output"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated"`
}

// WriteResult reports the outcome of a write. Error is set for expected
// failures; callers branch on it.
type WriteResult struct {
	Error string `json:"error,omitempty"`
	Path  string `json:"path,omitempty"`
}

// EditResult reports the outcome of an edit, including how many occurrences
// of the old string were replaced.
type EditResult struct {
	Error       string `json:"error,omitempty"`
	Path        string `json:"path,omitempty"`
	Occurrences int    `json:"occurrences"`
}

// GrepMatch is a single matching line from a grep.
type GrepMatch struct {
	Path       string `json:"path"`
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
}

// Backend is the capability set common to all variants. Paths are resolved
// against the backend's root; an implementation never resolves a path outside
// that root.
type Backend interface {
	// List returns the entries of a directory, excluding the directory itself.
	// A missing or empty directory yields an empty slice.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Read returns up to limit lines of a file starting at the zero-based
	// line offset. limit <= 0 means DefaultReadLimit.
	Read(ctx context.Context, path string, offset, limit int) (string, error)

	// Write stores content at path, creating parent directories as needed.
	Write(ctx context.Context, path, content string) WriteResult

	// Edit replaces old with new in the file at path. With replaceAll false
	// the old string must occur exactly once.
	Edit(ctx context.Context, path, old, new string, replaceAll bool) EditResult

	// Glob returns files under path whose names match pattern. No matches
	// yields an empty slice.
	Glob(ctx context.Context, pattern, path string) ([]FileInfo, error)

	// Grep searches file contents under path for the regular expression
	// pattern. include optionally restricts the files searched by base-name
	// glob. No matches yields an empty slice.
	Grep(ctx context.Context, pattern, path, include string) ([]GrepMatch, error)

	// Upload writes a batch of files, best effort. One result per file.
	Upload(ctx context.Context, files map[string][]byte) []WriteResult

	// Download reads a batch of paths, best effort. Unreadable paths are
	// omitted from the result.
	Download(ctx context.Context, paths []string) map[string][]byte
}

// Executor is a Backend that can also run shell commands.
type Executor interface {
	Backend

	// Execute runs command under the backend's deadline and output cap.
	Execute(ctx context.Context, command string) (ExecuteResult, error)
}

// CapOutput enforces MaxOutputBytes on command output. The cut backs up
// to a rune boundary so capped output stays valid UTF-8.
func CapOutput(s string) (string, bool) {
	if len(s) <= MaxOutputBytes {
		return s, false
	}
	cut := MaxOutputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationMarker, true
}
