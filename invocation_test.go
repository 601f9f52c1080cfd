package uigen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolInvocationLifecycle(t *testing.T) {
	call := editorCall(ToolArgs{Command: CmdCreate, Path: "/App.jsx", FileText: strPtr("x")})
	inv := NewToolInvocation(call)

	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, InvocationPending, inv.State)
	assert.Equal(t, "Creating /App.jsx", inv.Summary)
	assert.False(t, inv.Done())
	_, ok := inv.Result()
	assert.False(t, ok)

	assert.True(t, inv.Complete(ToolResult{Success: true, Message: "File created: /App.jsx"}))
	assert.Equal(t, InvocationResult, inv.State)
	assert.True(t, inv.Done())

	// terminal states are final
	assert.False(t, inv.Complete(ToolResult{Success: false, Message: "Error: late"}))
	res, ok := inv.Result()
	require.True(t, ok)
	assert.Equal(t, ToolResult{Success: true, Message: "File created: /App.jsx"}, res)
}

func TestToolInvocationError(t *testing.T) {
	inv := NewToolInvocation(ToolCall{ID: "call-1", ToolName: ToolFileManager, Args: ToolArgs{Command: CmdDelete, Path: "/x"}})
	assert.Equal(t, "call-1", inv.ID)

	tree := NewTree()
	inv.Complete(Dispatch(tree, inv.Call()))
	assert.Equal(t, InvocationError, inv.State)
	assert.Contains(t, inv.Message, "not found")

	// the summary does not depend on the outcome
	assert.Equal(t, "Deleting /x", inv.Summary)
}
