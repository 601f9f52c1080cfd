package uigen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func createCall(p, content string) ToolCall {
	return editorCall(ToolArgs{Command: CmdCreate, Path: p, FileText: strPtr(content)})
}

func TestWorkspaceApplyTracksChanges(t *testing.T) {
	ws := NewWorkspace(nil, nil, NewSession("s1", nil), nil)

	res := ws.Apply(createCall("/App.jsx", "x"))
	require.True(t, res.Success)
	assert.Equal(t, uint64(1), ws.Revision())

	// reads and failures do not count as changes
	ws.Apply(editorCall(ToolArgs{Command: CmdView, Path: "/App.jsx"}))
	ws.Apply(fileManagerCall(ToolArgs{Command: CmdDelete, Path: "/missing"}))
	assert.Equal(t, uint64(1), ws.Revision())

	ws.Apply(fileManagerCall(ToolArgs{Command: CmdRename, Path: "/App.jsx", NewPath: strPtr("main.jsx")}))

	history := ws.History()
	require.Len(t, history, 2)
	assert.Equal(t, CmdCreate, history[0].Operation)
	assert.Equal(t, "/App.jsx", history[0].Path)
	assert.Equal(t, "s1", history[0].SessionID)
	assert.Equal(t, uint64(1), history[0].Revision)
	assert.Equal(t, CmdRename, history[1].Operation)
	assert.Equal(t, "/main.jsx", history[1].NewPath)
	assert.Equal(t, uint64(2), history[1].Revision)
}

func TestWorkspaceApplyAllContinuesAfterFailure(t *testing.T) {
	ws := NewWorkspace(nil, nil, nil, nil)
	results := ws.ApplyAll([]ToolCall{
		createCall("/a.js", "a"),
		editorCall(ToolArgs{Command: CmdStrReplace, Path: "/nope.js", OldStr: strPtr("x"), NewStr: strPtr("y")}),
		createCall("/b.js", "b"),
	})
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)

	snap := ws.Snapshot()
	assert.Contains(t, snap, "/a.js")
	assert.Contains(t, snap, "/b.js")
}

func TestWorkspaceInvoke(t *testing.T) {
	audit := NewMemoryAuditLogger(0)
	ws := NewWorkspace(nil, nil, NewSession("", audit), nil)

	inv := ws.Invoke(ToolCall{ID: "call-1", ToolName: ToolEditor, Args: ToolArgs{Command: CmdCreate, Path: "/App.jsx", FileText: strPtr("")}})
	assert.Equal(t, InvocationResult, inv.State)
	assert.Equal(t, "Creating /App.jsx", inv.Summary)
	assert.Equal(t, "call-1", ws.History()[0].ToolCallID)
	assert.Len(t, audit.Entries(), 1)
}

func TestWorkspaceUpdate(t *testing.T) {
	ws := NewWorkspace(nil, nil, nil, nil)

	require.NoError(t, ws.Update("write", "/a.js", func(tr *Tree) error {
		return tr.CreateFile("/a.js", "a")
	}))
	err := ws.Update("write", "/b.js", func(tr *Tree) error {
		return tr.UpdateFile("/b.js", "b")
	})
	assert.ErrorIs(t, err, ErrNotFound)

	history := ws.History()
	require.Len(t, history, 1)
	assert.Equal(t, "write", history[0].Operation)

	var content string
	require.NoError(t, ws.View(func(tr *Tree) error {
		var err error
		content, err = tr.ViewFile("/a.js")
		return err
	}))
	assert.Equal(t, "a", content)
}

func TestWorkspaceUpdateChange(t *testing.T) {
	ws := NewWorkspace(newTestTree(t, map[string]string{"/a.js": "a"}), nil, nil, nil)

	change := ChangeRecord{Path: "/a.js", NewPath: "/b.js", Operation: CmdRename}
	require.NoError(t, ws.UpdateChange(change, func(tr *Tree) error {
		return tr.Rename("/a.js", "/b.js")
	}))

	history := ws.History()
	require.Len(t, history, 1)
	assert.Equal(t, "/b.js", history[0].NewPath)
	assert.Equal(t, uint64(1), history[0].Revision)
	assert.Equal(t, uint64(1), ws.Revision())
}

func TestWorkspaceReplace(t *testing.T) {
	ws := NewWorkspace(nil, nil, nil, nil)
	ws.Apply(createCall("/old.js", "old"))

	require.NoError(t, ws.Replace(Snapshot{"/new.js": {Type: NodeFile, Content: strPtr("new")}}))
	snap := ws.Snapshot()
	assert.NotContains(t, snap, "/old.js")
	assert.Equal(t, "new", *snap["/new.js"].Content)
	assert.Equal(t, uint64(2), ws.Revision())

	err := ws.Replace(Snapshot{"/../x": {Type: NodeFile}})
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.Contains(t, ws.Snapshot(), "/new.js")
	assert.Equal(t, uint64(2), ws.Revision())
}

func TestWorkspaceCheckpoints(t *testing.T) {
	ws := NewWorkspace(nil, nil, nil, nil)
	ws.Apply(createCall("/App.jsx", "v1"))

	meta, err := ws.Checkpoint("first")
	require.NoError(t, err)
	assert.Equal(t, "first", meta.Name)
	assert.Equal(t, 1, meta.FileCount)
	assert.Equal(t, int64(2), meta.Size)
	assert.Equal(t, uint64(1), meta.Revision)

	ws.Apply(editorCall(ToolArgs{Command: CmdStrReplace, Path: "/App.jsx", OldStr: strPtr("v1"), NewStr: strPtr("v2")}))
	ws.Apply(createCall("/extra.js", ""))

	changes, err := ws.CheckpointChanges("first")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, CmdStrReplace, changes[0].Operation)

	require.NoError(t, ws.Rollback("first"))
	snap := ws.Snapshot()
	assert.Equal(t, "v1", *snap["/App.jsx"].Content)
	assert.NotContains(t, snap, "/extra.js")
	// rollback is a change of its own
	assert.Equal(t, uint64(4), ws.Revision())
	assert.Equal(t, "rollback", ws.History()[3].Operation)

	// the checkpoint survives rollback and is not aliased by later edits
	ws.Apply(createCall("/App.jsx", "v3"))
	require.NoError(t, ws.Rollback("first"))
	assert.Equal(t, "v1", *ws.Snapshot()["/App.jsx"].Content)

	_, err = ws.Checkpoint("second")
	require.NoError(t, err)
	list := ws.ListCheckpoints()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "second", list[1].Name)

	require.NoError(t, ws.DeleteCheckpoint("first"))
	assert.True(t, errors.Is(ws.Rollback("first"), ErrCheckpointNotFound))
	assert.True(t, errors.Is(ws.DeleteCheckpoint("first"), ErrCheckpointNotFound))
	_, err = ws.CheckpointChanges("first")
	assert.True(t, errors.Is(err, ErrCheckpointNotFound))

	_, err = ws.Checkpoint("")
	assert.Error(t, err)
}

func TestWorkspaceRebuildWithoutPipeline(t *testing.T) {
	ws := NewWorkspace(nil, nil, nil, nil)
	_, err := ws.Rebuild(context.Background())
	assert.Error(t, err)
	assert.Nil(t, ws.Preview())
}

func TestWorkspaceRebuild(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ws := NewWorkspace(newTestTree(t, sampleProject), newTestPipeline(t), nil, nil)
	defer ws.Close()
	ws.Apply(createCall("/extra.jsx", "export const x = 1;"))

	preview, err := ws.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ws.Revision(), preview.Generation)
	assert.Equal(t, "/App.jsx", preview.Entry)
	assert.Same(t, preview, ws.Preview())
}

func TestWorkspacePublishLastWriteWins(t *testing.T) {
	ws := NewWorkspace(nil, nil, nil, nil)
	updates, unsubscribe := ws.Subscribe()
	defer unsubscribe()

	newer := &Preview{Generation: 5}
	older := &Preview{Generation: 3}

	assert.True(t, ws.publish(newer))
	assert.False(t, ws.publish(older))
	assert.Same(t, newer, ws.Preview())

	select {
	case p := <-updates:
		assert.Same(t, newer, p)
	default:
		t.Fatal("subscriber was not notified")
	}
	select {
	case p := <-updates:
		t.Fatalf("unexpected preview %d", p.Generation)
	default:
	}
}

func TestWorkspaceSubscribeKeepsLatest(t *testing.T) {
	ws := NewWorkspace(nil, nil, nil, nil)
	updates, unsubscribe := ws.Subscribe()

	for gen := uint64(1); gen <= 3; gen++ {
		ws.publish(&Preview{Generation: gen})
	}
	p := <-updates
	assert.Equal(t, uint64(3), p.Generation)

	unsubscribe()
	unsubscribe()
	_, ok := <-updates
	assert.False(t, ok)

	// publishing after unsubscribe must not panic on the closed channel
	assert.NotPanics(t, func() { ws.publish(&Preview{Generation: 4}) })
}

func TestWorkspaceRebuildAsync(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ws := NewWorkspace(newTestTree(t, sampleProject), newTestPipeline(t), nil, nil)
	updates, unsubscribe := ws.Subscribe()
	defer unsubscribe()

	ws.Apply(createCall("/App.jsx", "export default function App() { return <p>changed</p>; }"))
	ws.RebuildAsync()

	select {
	case p := <-updates:
		assert.Equal(t, ws.Revision(), p.Generation)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}
	ws.Close()
}
