package uigen

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// ToolSpec is the published contract of a tool: its name, a description
// for the model and a JSON schema of its arguments.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type param struct {
	name        string
	kind        genai.Type
	description string
	enum        []string
	required    bool
}

type toolDef struct {
	name        string
	description string
	params      []param
}

var toolDefs = []toolDef{
	{
		name: ToolEditor,
		description: "Create, view and edit files in the virtual file system. " +
			"All paths are absolute from the project root, e.g. /App.jsx. " +
			"str_replace requires old_str to match exactly one location in the file.",
		params: []param{
			{name: "command", kind: genai.TypeString, description: "The command to run.", enum: []string{CmdView, CmdCreate, CmdStrReplace, CmdInsert}, required: true},
			{name: "path", kind: genai.TypeString, description: "Absolute path to the file or directory.", required: true},
			{name: "file_text", kind: genai.TypeString, description: "Content of the file to create. Required by create."},
			{name: "old_str", kind: genai.TypeString, description: "Text to replace. Required by str_replace."},
			{name: "new_str", kind: genai.TypeString, description: "Replacement text for str_replace, or text to insert for insert."},
			{name: "insert_line", kind: genai.TypeInteger, description: "Line after which new_str is inserted; 0 inserts at the top. Required by insert."},
			{name: "view_range", kind: genai.TypeArray, description: "Optional [start, end] line range for view, 1-based and inclusive; end -1 reads to the end."},
		},
	},
	{
		name:        ToolFileManager,
		description: "Rename or delete files and directories in the virtual file system. Deleting a directory removes its contents.",
		params: []param{
			{name: "command", kind: genai.TypeString, description: "The command to run.", enum: []string{CmdRename, CmdDelete}, required: true},
			{name: "path", kind: genai.TypeString, description: "Absolute path of the file or directory.", required: true},
			{name: "new_path", kind: genai.TypeString, description: "Destination path. Required by rename."},
		},
	},
}

func jsonType(t genai.Type) string {
	switch t {
	case genai.TypeInteger:
		return "integer"
	case genai.TypeArray:
		return "array"
	case genai.TypeObject:
		return "object"
	default:
		return "string"
	}
}

// ToolSpecs returns the contracts of the editor and file-manager tools.
func ToolSpecs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(toolDefs))
	for _, def := range toolDefs {
		props := make(map[string]any, len(def.params))
		required := []string{}
		for _, p := range def.params {
			prop := map[string]any{
				"type":        jsonType(p.kind),
				"description": p.description,
			}
			if len(p.enum) > 0 {
				prop["enum"] = p.enum
			}
			if p.kind == genai.TypeArray {
				prop["items"] = map[string]any{"type": "integer"}
			}
			props[p.name] = prop
			if p.required {
				required = append(required, p.name)
			}
		}
		specs = append(specs, ToolSpec{
			Name:        def.name,
			Description: def.description,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		})
	}
	return specs
}

// GenAITools returns the tools as Gemini function declarations.
func GenAITools() []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(toolDefs))
	for _, def := range toolDefs {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(def.params)),
		}
		for _, p := range def.params {
			prop := &genai.Schema{Type: p.kind, Description: p.description, Enum: p.enum}
			if p.kind == genai.TypeArray {
				prop.Items = &genai.Schema{Type: genai.TypeInteger}
			}
			schema.Properties[p.name] = prop
			if p.required {
				schema.Required = append(schema.Required, p.name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.name,
			Description: def.description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// ToolCallFromFunctionCall converts a model function call into a ToolCall.
// Numbers arrive as float64 in Args; a JSON round trip restores the typed
// fields.
func ToolCallFromFunctionCall(fc *genai.FunctionCall) (ToolCall, error) {
	if fc == nil {
		return ToolCall{}, fmt.Errorf("%w: nil function call", ErrInvalidArguments)
	}
	raw, err := json.Marshal(fc.Args)
	if err != nil {
		return ToolCall{}, fmt.Errorf("%w: encode args: %v", ErrInvalidArguments, err)
	}
	var args ToolArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return ToolCall{}, fmt.Errorf("%w: decode args: %v", ErrInvalidArguments, err)
	}
	return ToolCall{ID: fc.ID, ToolName: fc.Name, Args: args}, nil
}

// HandleFunctionCall applies a model function call to tree and returns the
// response to send back to the model.
func HandleFunctionCall(tree *Tree, fc *genai.FunctionCall, session *Session) *genai.FunctionResponse {
	var res ToolResult
	call, err := ToolCallFromFunctionCall(fc)
	if err != nil {
		res = failed(err)
	} else {
		res = DispatchWithSession(tree, call, session)
	}
	resp := &genai.FunctionResponse{
		Response: map[string]any{"success": res.Success},
	}
	if fc != nil {
		resp.ID = fc.ID
		resp.Name = fc.Name
	}
	if res.Success {
		resp.Response["output"] = res.Message
	} else {
		resp.Response["error"] = res.Message
	}
	return resp
}
