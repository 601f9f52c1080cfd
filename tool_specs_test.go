package uigen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestToolSpecs(t *testing.T) {
	specs := ToolSpecs()
	require.Len(t, specs, 2)

	editor := specs[0]
	assert.Equal(t, ToolEditor, editor.Name)
	assert.Equal(t, "object", editor.InputSchema["type"])
	assert.Equal(t, []string{"command", "path"}, editor.InputSchema["required"])

	props := editor.InputSchema["properties"].(map[string]any)
	for _, name := range []string{"command", "path", "file_text", "old_str", "new_str", "insert_line", "view_range"} {
		assert.Contains(t, props, name)
	}
	command := props["command"].(map[string]any)
	assert.ElementsMatch(t, []string{CmdView, CmdCreate, CmdStrReplace, CmdInsert}, command["enum"])
	assert.Equal(t, "integer", props["insert_line"].(map[string]any)["type"])
	viewRange := props["view_range"].(map[string]any)
	assert.Equal(t, "array", viewRange["type"])
	assert.Equal(t, map[string]any{"type": "integer"}, viewRange["items"])

	manager := specs[1]
	assert.Equal(t, ToolFileManager, manager.Name)
	props = manager.InputSchema["properties"].(map[string]any)
	assert.ElementsMatch(t, []string{CmdRename, CmdDelete}, props["command"].(map[string]any)["enum"])
	assert.Contains(t, props, "new_path")
}

func TestGenAITools(t *testing.T) {
	tools := GenAITools()
	require.Len(t, tools, 1)
	decls := tools[0].FunctionDeclarations
	require.Len(t, decls, 2)

	assert.Equal(t, ToolEditor, decls[0].Name)
	params := decls[0].Parameters
	require.NotNil(t, params)
	assert.Equal(t, genai.TypeObject, params.Type)
	assert.Equal(t, []string{"command", "path"}, params.Required)
	assert.Equal(t, genai.TypeInteger, params.Properties["insert_line"].Type)
	require.NotNil(t, params.Properties["view_range"].Items)
	assert.Equal(t, genai.TypeInteger, params.Properties["view_range"].Items.Type)

	assert.Equal(t, ToolFileManager, decls[1].Name)
	assert.Equal(t, []string{CmdRename, CmdDelete}, decls[1].Parameters.Properties["command"].Enum)
}

func TestToolCallFromFunctionCall(t *testing.T) {
	// model arguments arrive as decoded JSON: numbers are float64
	fc := &genai.FunctionCall{
		ID:   "fc-1",
		Name: ToolEditor,
		Args: map[string]any{
			"command":     "insert",
			"path":        "/a.js",
			"insert_line": float64(2),
			"new_str":     "x",
		},
	}
	call, err := ToolCallFromFunctionCall(fc)
	require.NoError(t, err)
	assert.Equal(t, "fc-1", call.ID)
	assert.Equal(t, ToolEditor, call.ToolName)
	require.NotNil(t, call.Args.InsertLine)
	assert.Equal(t, 2, *call.Args.InsertLine)
	assert.Equal(t, "x", *call.Args.NewStr)

	_, err = ToolCallFromFunctionCall(&genai.FunctionCall{Name: ToolEditor, Args: map[string]any{"insert_line": 1.5}})
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = ToolCallFromFunctionCall(nil)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestHandleFunctionCall(t *testing.T) {
	tree := NewTree()
	audit := NewMemoryAuditLogger(0)
	session := NewSession("", audit)

	resp := HandleFunctionCall(tree, &genai.FunctionCall{
		ID:   "fc-1",
		Name: ToolEditor,
		Args: map[string]any{"command": "create", "path": "/App.jsx", "file_text": "<div/>"},
	}, session)
	assert.Equal(t, "fc-1", resp.ID)
	assert.Equal(t, ToolEditor, resp.Name)
	assert.Equal(t, true, resp.Response["success"])
	assert.Equal(t, "File created: /App.jsx", resp.Response["output"])

	resp = HandleFunctionCall(tree, &genai.FunctionCall{
		Name: ToolFileManager,
		Args: map[string]any{"command": "delete", "path": "/missing.jsx"},
	}, session)
	assert.Equal(t, false, resp.Response["success"])
	assert.Contains(t, resp.Response["error"], "Error: ")
	assert.NotContains(t, resp.Response, "output")

	assert.Len(t, audit.Entries(), 2)

	resp = HandleFunctionCall(tree, nil, session)
	assert.Equal(t, false, resp.Response["success"])
}
