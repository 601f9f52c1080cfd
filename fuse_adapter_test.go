//go:build linux || darwin
// +build linux darwin

package uigen

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceFSRoot(t *testing.T) {
	ws := NewWorkspace(nil, nil, nil, nil)
	root := NewWorkspaceFSRoot(ws)
	require.NotNil(t, root)
	assert.Same(t, ws, root.ws)
}

func TestErrnoFor(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.CreateFile("/a.js", "x"))

	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{"nil", nil, 0},
		{"missing", tree.DeleteFile("/missing.js"), syscall.ENOENT},
		{"exists", tree.Rename("/a.js", "/a.js"), syscall.EEXIST},
		{"file ancestor", tree.CreateFile("/a.js/b.js", ""), syscall.ENOTDIR},
		{"escape", tree.CreateFile("/../x", ""), syscall.EINVAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errnoFor(tt.err))
		})
	}
}

func TestReplaceRename(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.CreateFile("/a.js", "a"))
	require.NoError(t, tree.CreateFile("/b.js", "b"))
	require.NoError(t, tree.CreateFile("/dir/x.js", "x"))
	require.NoError(t, tree.CreateDirectory("/empty"))
	ws := NewWorkspace(tree, nil, nil, nil)

	require.NoError(t, replaceRename(ws, "/a.js", "/c.js"))
	history := ws.History()
	require.Len(t, history, 1)
	assert.Equal(t, CmdRename, history[0].Operation)
	assert.Equal(t, "/a.js", history[0].Path)
	assert.Equal(t, "/c.js", history[0].NewPath)

	// an existing destination file is replaced
	require.NoError(t, replaceRename(ws, "/c.js", "/b.js"))
	snap := ws.Snapshot()
	assert.Equal(t, "a", *snap["/b.js"].Content)
	assert.NotContains(t, snap, "/c.js")

	assert.ErrorIs(t, replaceRename(ws, "/b.js", "/empty"), ErrTypeMismatch)
	assert.ErrorIs(t, replaceRename(ws, "/empty", "/dir"), ErrAlreadyExists)
	assert.Len(t, ws.History(), 2)
}

func TestResize(t *testing.T) {
	assert.Equal(t, []byte("ab"), resize([]byte("abc"), 2))
	assert.Equal(t, []byte{'a', 0, 0}, resize([]byte("a"), 3))
}

// TestMountWorkspace exercises a real mount. It needs /dev/fuse and
// permission to mount, so it is skipped in most environments.
func TestMountWorkspace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping FUSE mount in short mode")
	}
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("FUSE not available")
	}

	tree := NewTree()
	require.NoError(t, tree.CreateFile("/App.jsx", "export default function App() { return null }"))
	ws := NewWorkspace(tree, nil, nil, nil)

	mnt := t.TempDir()
	server, err := MountWorkspace(ws, mnt, nil)
	if err != nil {
		t.Skipf("mount failed: %v", err)
	}
	t.Cleanup(func() { _ = server.Unmount() })
	require.NoError(t, server.WaitMount())

	data, err := os.ReadFile(filepath.Join(mnt, "App.jsx"))
	require.NoError(t, err)
	assert.Equal(t, "export default function App() { return null }", string(data))

	require.NoError(t, os.MkdirAll(filepath.Join(mnt, "components"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mnt, "components", "Button.jsx"), []byte("export const Button = 1"), 0o644))
	require.NoError(t, os.Rename(filepath.Join(mnt, "components"), filepath.Join(mnt, "ui")))

	snap := ws.Snapshot()
	require.Contains(t, snap, "/ui/Button.jsx")
	assert.Equal(t, "export const Button = 1", *snap["/ui/Button.jsx"].Content)
	assert.NotContains(t, snap, "/components")
	history := ws.History()
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, "/components", last.Path)
	assert.Equal(t, "/ui", last.NewPath)

	require.NoError(t, os.Remove(filepath.Join(mnt, "ui", "Button.jsx")))
	require.NoError(t, os.Remove(filepath.Join(mnt, "ui")))
	assert.NotContains(t, ws.Snapshot(), "/ui")
	assert.NotEmpty(t, ws.History())
}
