package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_Resolve(t *testing.T) {
	s := &Sandbox{}

	tests := []struct {
		in   string
		want string
	}{
		{"", Workdir},
		{"/", Workdir},
		{"notes.txt", Workdir + "/notes.txt"},
		{"/notes.txt", Workdir + "/notes.txt"},
		{"sub/dir/f.txt", Workdir + "/sub/dir/f.txt"},
		{Workdir, Workdir},
		{Workdir + "/already/inside.txt", Workdir + "/already/inside.txt"},
		{"/etc/passwd", Workdir + "/etc/passwd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.resolve(tt.in), "resolve(%q)", tt.in)
	}
}

func TestSandbox_ResolveTraversalStaysInside(t *testing.T) {
	s := &Sandbox{}

	// Traversal components collapse back inside the workdir
	assert.Equal(t, Workdir+"/etc/passwd", s.resolve("../../etc/passwd"))
	assert.Equal(t, Workdir+"/b.txt", s.resolve("a/../../b.txt"))
}

func TestSandbox_Display(t *testing.T) {
	s := &Sandbox{}

	assert.Equal(t, "/", s.display(Workdir))
	assert.Equal(t, "/a/b.txt", s.display(Workdir+"/a/b.txt"))
}

func TestSandbox_ParseFindListing(t *testing.T) {
	s := &Sandbox{}

	raw := "d\t4096\t/workspace/sub\nf\t12\t/workspace/a.txt\n"
	infos := s.parseFindListing(raw)
	require.Len(t, infos, 2)

	assert.Equal(t, "/sub", infos[0].Path)
	assert.True(t, infos[0].IsDir)
	assert.Equal(t, "/a.txt", infos[1].Path)
	assert.False(t, infos[1].IsDir)
	assert.Equal(t, int64(12), infos[1].Size)

	assert.Empty(t, s.parseFindListing(""))
}

func TestSandbox_ParseGrepOutput(t *testing.T) {
	s := &Sandbox{}

	raw := "/workspace/main.go:3:func main() {\n/workspace/sub/x.go:10:\tcase 1:2:3\n"
	matches := s.parseGrepOutput(raw)
	require.Len(t, matches, 2)

	assert.Equal(t, "/main.go", matches[0].Path)
	assert.Equal(t, 3, matches[0].LineNumber)
	assert.Equal(t, "func main() {", matches[0].Content)

	// Colons in the matched line survive the split
	assert.Equal(t, "\tcase 1:2:3", matches[1].Content)

	assert.Empty(t, s.parseGrepOutput(""))
}

func TestCombineStreams(t *testing.T) {
	assert.Equal(t, "", combineStreams(nil))
	assert.Equal(t, "out", combineStreams(&ExecOutput{Stdout: "out"}))
	assert.Equal(t, "err", combineStreams(&ExecOutput{Stderr: "err"}))

	// Both streams present are separated by a newline
	assert.Equal(t, "out\nerr", combineStreams(&ExecOutput{Stdout: "out", Stderr: "err"}))
}
