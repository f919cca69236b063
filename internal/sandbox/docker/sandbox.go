package docker

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentd/agentd/internal/backend"
	"github.com/agentd/agentd/internal/common/config"
	"github.com/agentd/agentd/internal/common/logger"
)

const (
	// Workdir is the fixed working directory inside every sandbox container.
	Workdir = "/workspace"

	// cpuPeriod is the scheduler period used to express the CPU quota.
	cpuPeriod = 100000

	// Labels attached to every sandbox container, used to find strays.
	LabelManaged   = "agentd.managed"
	LabelSessionID = "agentd.session_id"
)

// Sandbox is the isolated execution backend. All file and command operations
// run inside a dedicated container with no host mounts and no network.
// File operations use argument-vector execs and tar copies; only the agent's
// own shell commands pass through a shell.
type Sandbox struct {
	cli         *Client
	containerID string
	timeout     time.Duration
	stopTimeout time.Duration
	logger      *logger.Logger
}

// Compile-time interface check.
var _ backend.Executor = (*Sandbox)(nil)

// NewSandbox creates and starts the container backing a sandboxed session.
// The container gets a fixed memory ceiling and CPU share, network disabled,
// and its working directory pre-created.
func NewSandbox(ctx context.Context, cli *Client, cfg config.SandboxConfig, sessionID string, commandTimeout time.Duration, log *logger.Logger) (*Sandbox, error) {
	if commandTimeout <= 0 {
		commandTimeout = backend.DefaultCommandTimeout
	}

	name := fmt.Sprintf("agentd-sandbox-%s", uuid.New().String()[:8])
	containerCfg := ContainerConfig{
		Name:        name,
		Image:       cfg.Image,
		Cmd:         []string{"sleep", "infinity"},
		WorkingDir:  Workdir,
		NetworkMode: "none",
		Memory:      cfg.MemoryMB * 1024 * 1024,
		CPUQuota:    cfg.CPUs * cpuPeriod,
		Labels: map[string]string{
			LabelManaged:   "true",
			LabelSessionID: sessionID,
		},
	}

	containerID, err := cli.CreateContainer(ctx, containerCfg)
	if err != nil {
		// The image may simply not be present yet
		if pullErr := cli.PullImage(ctx, cfg.Image); pullErr != nil {
			return nil, fmt.Errorf("create sandbox container: %w", err)
		}
		containerID, err = cli.CreateContainer(ctx, containerCfg)
		if err != nil {
			return nil, fmt.Errorf("create sandbox container after pull: %w", err)
		}
	}

	if err := cli.StartContainer(ctx, containerID); err != nil {
		_ = cli.RemoveContainer(context.Background(), containerID, true)
		return nil, fmt.Errorf("start sandbox container: %w", err)
	}

	s := &Sandbox{
		cli:         cli,
		containerID: containerID,
		timeout:     commandTimeout,
		stopTimeout: cfg.StopTimeoutDuration(),
		logger:      log.WithSessionID(sessionID),
	}

	if _, err := cli.Exec(ctx, containerID, []string{"mkdir", "-p", Workdir}, nil); err != nil {
		s.Close()
		return nil, fmt.Errorf("prepare sandbox workdir: %w", err)
	}

	s.logger.Info("Sandbox created",
		zap.String("container_id", containerID),
		zap.String("image", cfg.Image),
	)
	return s, nil
}

// ContainerID returns the backing container's identifier.
func (s *Sandbox) ContainerID() string {
	return s.containerID
}

// resolve maps a backend-visible path into the sandbox working directory.
// Paths already under the workdir pass through unchanged; anything else,
// absolute or relative, is rewritten beneath it.
func (s *Sandbox) resolve(p string) string {
	if p == "" || p == "/" {
		return Workdir
	}
	if p == Workdir || strings.HasPrefix(p, Workdir+"/") {
		p = strings.TrimPrefix(p, Workdir)
	}
	// Collapse any traversal before joining so nothing escapes the workdir
	rel := path.Clean("/" + p)
	return path.Join(Workdir, rel)
}

func (s *Sandbox) display(full string) string {
	rel := strings.TrimPrefix(full, Workdir)
	if rel == "" {
		return "/"
	}
	return rel
}

func (s *Sandbox) List(ctx context.Context, p string) ([]backend.FileInfo, error) {
	dir := s.resolve(p)
	out, err := s.cli.Exec(ctx, s.containerID, []string{
		"find", dir, "-mindepth", "1", "-maxdepth", "1", "-printf", "%y\\t%s\\t%p\\n",
	}, nil)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		// Missing directory is an empty listing, not an error
		return []backend.FileInfo{}, nil
	}
	return s.parseFindListing(out.Stdout), nil
}

// parseFindListing parses "type\tsize\tpath" lines emitted by find -printf.
func (s *Sandbox) parseFindListing(raw string) []backend.FileInfo {
	infos := []backend.FileInfo{}
	for _, line := range strings.Split(strings.TrimRight(raw, "\n"), "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		size, _ := strconv.ParseInt(parts[1], 10, 64)
		infos = append(infos, backend.FileInfo{
			Path:  s.display(parts[2]),
			IsDir: parts[0] == "d",
			Size:  size,
		})
	}
	return infos
}

func (s *Sandbox) Read(ctx context.Context, p string, offset, limit int) (string, error) {
	full := s.resolve(p)
	data, err := s.cli.CopyFromContainer(ctx, s.containerID, full)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", p)
	}
	if limit <= 0 {
		limit = backend.DefaultReadLimit
	}
	lines := strings.Split(string(data), "\n")
	if offset >= len(lines) {
		return "", nil
	}
	end := offset + limit
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[offset:end], "\n"), nil
}

func (s *Sandbox) Write(ctx context.Context, p, content string) backend.WriteResult {
	full := s.resolve(p)
	if _, err := s.cli.Exec(ctx, s.containerID, []string{"mkdir", "-p", path.Dir(full)}, nil); err != nil {
		return backend.WriteResult{Error: fmt.Sprintf("create parent directory: %v", err)}
	}
	if err := s.cli.CopyToContainer(ctx, s.containerID, full, []byte(content)); err != nil {
		return backend.WriteResult{Error: err.Error()}
	}
	return backend.WriteResult{Path: s.display(full)}
}

func (s *Sandbox) Edit(ctx context.Context, p, old, new string, replaceAll bool) backend.EditResult {
	full := s.resolve(p)
	data, err := s.cli.CopyFromContainer(ctx, s.containerID, full)
	if err != nil {
		return backend.EditResult{Error: fmt.Sprintf("read %s: %v", p, err)}
	}
	content := string(data)
	count := strings.Count(content, old)
	if count == 0 {
		return backend.EditResult{Error: fmt.Sprintf("string not found in %s", p)}
	}
	replaced := count
	if replaceAll {
		content = strings.ReplaceAll(content, old, new)
	} else {
		content = strings.Replace(content, old, new, 1)
		replaced = 1
	}
	if err := s.cli.CopyToContainer(ctx, s.containerID, full, []byte(content)); err != nil {
		return backend.EditResult{Error: err.Error()}
	}
	return backend.EditResult{Path: s.display(full), Occurrences: replaced}
}

func (s *Sandbox) Glob(ctx context.Context, pattern, p string) ([]backend.FileInfo, error) {
	dir := s.resolve(p)
	args := []string{"find", dir, "-type", "f"}
	if strings.Contains(pattern, "/") {
		args = append(args, "-path", path.Join(dir, pattern))
	} else {
		args = append(args, "-name", pattern)
	}
	args = append(args, "-printf", "%s\\t%p\\n")
	out, err := s.cli.Exec(ctx, s.containerID, args, nil)
	if err != nil {
		return nil, err
	}
	infos := []backend.FileInfo{}
	if out.ExitCode != 0 {
		return infos, nil
	}
	for _, line := range strings.Split(strings.TrimRight(out.Stdout, "\n"), "\n") {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		size, _ := strconv.ParseInt(parts[0], 10, 64)
		infos = append(infos, backend.FileInfo{Path: s.display(parts[1]), Size: size})
	}
	return infos, nil
}

func (s *Sandbox) Grep(ctx context.Context, pattern, p, include string) ([]backend.GrepMatch, error) {
	dir := s.resolve(p)
	args := []string{"grep", "-rn", "-E"}
	if include != "" {
		args = append(args, "--include", include)
	}
	args = append(args, "--", pattern, dir)
	out, err := s.cli.Exec(ctx, s.containerID, args, nil)
	if err != nil {
		return nil, err
	}
	// grep exits 1 on no matches, 2 on errors; both yield an empty result
	if out.ExitCode != 0 {
		return []backend.GrepMatch{}, nil
	}
	return s.parseGrepOutput(out.Stdout), nil
}

// parseGrepOutput parses "path:line:content" lines emitted by grep -rn.
func (s *Sandbox) parseGrepOutput(raw string) []backend.GrepMatch {
	matches := []backend.GrepMatch{}
	for _, line := range strings.Split(strings.TrimRight(raw, "\n"), "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		num, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		matches = append(matches, backend.GrepMatch{
			Path:       s.display(parts[0]),
			LineNumber: num,
			Content:    parts[2],
		})
	}
	return matches
}

// Execute runs the agent's shell command inside the container under the
// configured deadline. Deadline expiry yields a synthetic exit code, not
// an error.
func (s *Sandbox) Execute(ctx context.Context, command string) (backend.ExecuteResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.cli.Exec(runCtx, s.containerID, []string{"sh", "-c", command}, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			combined := combineStreams(out)
			if combined != "" {
				combined += "\n"
			}
			combined += fmt.Sprintf("command timed out after %s", s.timeout)
			output, truncated := backend.CapOutput(combined)
			return backend.ExecuteResult{
				Output:    output,
				ExitCode:  backend.TimeoutExitCode,
				Truncated: truncated,
			}, nil
		}
		return backend.ExecuteResult{}, fmt.Errorf("sandbox exec: %w", err)
	}

	output, truncated := backend.CapOutput(combineStreams(out))
	return backend.ExecuteResult{Output: output, ExitCode: out.ExitCode, Truncated: truncated}, nil
}

// combineStreams joins captured stdout and stderr, separated by a newline
// when both are present.
func combineStreams(out *ExecOutput) string {
	if out == nil {
		return ""
	}
	if out.Stdout != "" && out.Stderr != "" {
		return out.Stdout + "\n" + out.Stderr
	}
	return out.Stdout + out.Stderr
}

func (s *Sandbox) Upload(ctx context.Context, files map[string][]byte) []backend.WriteResult {
	results := make([]backend.WriteResult, 0, len(files))
	for p, content := range files {
		results = append(results, s.Write(ctx, p, string(content)))
	}
	return results
}

func (s *Sandbox) Download(ctx context.Context, paths []string) map[string][]byte {
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		full := s.resolve(p)
		data, err := s.cli.CopyFromContainer(ctx, s.containerID, full)
		if err != nil {
			continue
		}
		out[p] = data
	}
	return out
}

// Close stops and removes the backing container. Teardown errors are logged
// and swallowed so lifecycle cleanup never crashes the caller.
func (s *Sandbox) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopTimeout := s.stopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	if err := s.cli.StopContainer(ctx, s.containerID, stopTimeout); err != nil {
		s.logger.Warn("Failed to stop sandbox container", zap.Error(err))
	}
	if err := s.cli.RemoveContainer(ctx, s.containerID, true); err != nil {
		s.logger.Warn("Failed to remove sandbox container", zap.Error(err))
	}
	s.logger.Info("Sandbox released", zap.String("container_id", s.containerID))
}
