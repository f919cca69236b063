package backend

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Filesystem is the file-operations-only backend. It jails every path under
// a configured root directory.
type Filesystem struct {
	root string
}

// NewFilesystem creates a filesystem backend rooted at root. The directory
// is created if it does not exist.
func NewFilesystem(root string) (*Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create root %q: %w", abs, err)
	}
	return &Filesystem{root: abs}, nil
}

// Root returns the backend's root directory.
func (f *Filesystem) Root() string {
	return f.root
}

// resolve maps a backend-visible path onto the host filesystem. Absolute
// paths are reinterpreted relative to the root; a path that would escape
// the root is rejected.
func (f *Filesystem) resolve(path string) (string, error) {
	rel := filepath.Clean("/" + path)
	full := filepath.Join(f.root, rel)
	if full != f.root && !strings.HasPrefix(full, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes backend root", path)
	}
	return full, nil
}

// display converts a resolved host path back to the backend-visible form.
func (f *Filesystem) display(full string) string {
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

func (f *Filesystem) List(ctx context.Context, path string) ([]FileInfo, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileInfo{}, nil
		}
		return nil, err
	}
	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		infos = append(infos, FileInfo{
			Path:  f.display(filepath.Join(full, e.Name())),
			IsDir: e.IsDir(),
			Size:  size,
		})
	}
	return infos, nil
}

func (f *Filesystem) Read(ctx context.Context, path string, offset, limit int) (string, error) {
	full, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	if limit <= 0 {
		limit = DefaultReadLimit
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

func (f *Filesystem) Write(ctx context.Context, path, content string) WriteResult {
	full, err := f.resolve(path)
	if err != nil {
		return WriteResult{Error: err.Error()}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return WriteResult{Error: fmt.Sprintf("create parent directory: %v", err)}
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return WriteResult{Error: err.Error()}
	}
	return WriteResult{Path: f.display(full)}
}

func (f *Filesystem) Edit(ctx context.Context, path, old, new string, replaceAll bool) EditResult {
	full, err := f.resolve(path)
	if err != nil {
		return EditResult{Error: err.Error()}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return EditResult{Error: fmt.Sprintf("read %s: %v", path, err)}
	}
	content := string(data)
	count := strings.Count(content, old)
	if count == 0 {
		return EditResult{Error: fmt.Sprintf("string not found in %s", path)}
	}
	replaced := count
	if replaceAll {
		content = strings.ReplaceAll(content, old, new)
	} else {
		content = strings.Replace(content, old, new, 1)
		replaced = 1
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return EditResult{Error: err.Error()}
	}
	return EditResult{Path: f.display(full), Occurrences: replaced}
}

func (f *Filesystem) Glob(ctx context.Context, pattern, path string) ([]FileInfo, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	infos := []FileInfo{}
	walkErr := filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p == full || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(full, p)
		if err != nil {
			return nil
		}
		matched, _ := filepath.Match(pattern, filepath.ToSlash(rel))
		if !matched {
			matched, _ = filepath.Match(pattern, d.Name())
		}
		if matched {
			var size int64
			if fi, err := d.Info(); err == nil {
				size = fi.Size()
			}
			infos = append(infos, FileInfo{Path: f.display(p), Size: size})
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return nil, walkErr
	}
	return infos, nil
}

func (f *Filesystem) Grep(ctx context.Context, pattern, path, include string) ([]GrepMatch, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	matches := []GrepMatch{}
	walkErr := filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if include != "" {
			if ok, _ := filepath.Match(include, d.Name()); !ok {
				return nil
			}
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, GrepMatch{
					Path:       f.display(p),
					LineNumber: i + 1,
					Content:    line,
				})
			}
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return nil, walkErr
	}
	return matches, nil
}

func (f *Filesystem) Upload(ctx context.Context, files map[string][]byte) []WriteResult {
	results := make([]WriteResult, 0, len(files))
	for path, content := range files {
		results = append(results, f.Write(ctx, path, string(content)))
	}
	return results
}

func (f *Filesystem) Download(ctx context.Context, paths []string) map[string][]byte {
	out := make(map[string][]byte, len(paths))
	for _, path := range paths {
		full, err := f.resolve(path)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		out[path] = data
	}
	return out
}
