package uigen

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tool names understood by Dispatch.
const (
	ToolEditor      = "str_replace_editor"
	ToolFileManager = "file_manager"
)

// Command names.
const (
	CmdCreate     = "create"
	CmdStrReplace = "str_replace"
	CmdInsert     = "insert"
	CmdView       = "view"
	CmdRename     = "rename"
	CmdDelete     = "delete"
)

// ToolArgs is the raw argument object of a tool call. Optional fields are
// pointers so that a missing field can be told apart from an empty one.
type ToolArgs struct {
	Command    string  `json:"command"`
	Path       string  `json:"path"`
	NewPath    *string `json:"new_path,omitempty"`
	OldStr     *string `json:"old_str,omitempty"`
	NewStr     *string `json:"new_str,omitempty"`
	InsertLine *int    `json:"insert_line,omitempty"`
	FileText   *string `json:"file_text,omitempty"`
	ViewRange  []int   `json:"view_range,omitempty"`
}

// ToolCall is a single structured request from the agent.
type ToolCall struct {
	ID       string   `json:"id,omitempty"`
	ToolName string   `json:"toolName"`
	Args     ToolArgs `json:"args"`
}

// ToolResult is the terminal outcome of a tool call.
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Command is a validated tool command. Values are only produced by the
// Parse functions, so the tree never sees an invalid shape.
type Command interface {
	// Name returns the command name, e.g. "str_replace".
	Name() string
	// Target returns the normalized path the command operates on.
	Target() string

	apply(t *Tree) (string, error)
}

// EditorCommand is one of CreateCommand, StrReplaceCommand, InsertCommand
// or ViewCommand.
type EditorCommand interface {
	Command
	editorCommand()
}

// FileManagerCommand is one of RenameCommand or DeleteCommand.
type FileManagerCommand interface {
	Command
	fileManagerCommand()
}

type CreateCommand struct {
	Path    string
	Content string
}

type StrReplaceCommand struct {
	Path string
	Old  string
	New  string
}

type InsertCommand struct {
	Path      string
	AfterLine int
	Text      string
}

// ViewCommand reads a file or lists a directory. Range, when set, is a
// 1-based inclusive line range; an end of -1 reads to the end of the file.
type ViewCommand struct {
	Path  string
	Range *[2]int
}

type RenameCommand struct {
	Path    string
	NewPath string
}

type DeleteCommand struct {
	Path string
}

func (CreateCommand) editorCommand() {}
func (StrReplaceCommand) editorCommand() {}
func (InsertCommand) editorCommand() {}
func (ViewCommand) editorCommand() {}
func (RenameCommand) fileManagerCommand() {}
func (DeleteCommand) fileManagerCommand() {}
func (CreateCommand) Name() string { return CmdCreate }
func (StrReplaceCommand) Name() string { return CmdStrReplace }
func (InsertCommand) Name() string { return CmdInsert }
func (ViewCommand) Name() string { return CmdView }
func (RenameCommand) Name() string { return CmdRename }
func (DeleteCommand) Name() string { return CmdDelete }
func (c CreateCommand) Target() string { return c.Path }
func (c StrReplaceCommand) Target() string { return c.Path }
func (c InsertCommand) Target() string { return c.Path }
func (c ViewCommand) Target() string { return c.Path }
func (c RenameCommand) Target() string { return c.Path }
func (c DeleteCommand) Target() string { return c.Path }

func (c CreateCommand) apply(t *Tree) (string, error) {
	if err := t.CreateFile(c.Path, c.Content); err != nil {
		return "", err
	}
	return "File created: " + c.Path, nil
}

func (c StrReplaceCommand) apply(t *Tree) (string, error) {
	if err := t.ReplaceInFile(c.Path, c.Old, c.New); err != nil {
		return "", err
	}
	return "Replaced text in " + c.Path, nil
}

func (c InsertCommand) apply(t *Tree) (string, error) {
	if err := t.InsertInFile(c.Path, c.AfterLine, c.Text); err != nil {
		return "", err
	}
	return fmt.Sprintf("Text inserted at line %d in %s", c.AfterLine, c.Path), nil
}

func (c ViewCommand) apply(t *Tree) (string, error) {
	info, err := t.Stat(c.Path)
	if err != nil {
		var pe *PathError
		if errors.As(err, &pe) {
			pe.Op = "view"
		}
		return "", err
	}
	if info.IsDir() {
		return viewDirectory(t, c.Path)
	}
	content, err := t.ViewFile(c.Path)
	if err != nil {
		return "", err
	}
	if c.Range == nil {
		return content, nil
	}
	return sliceLines(c.Path, content, c.Range[0], c.Range[1])
}

func (c RenameCommand) apply(t *Tree) (string, error) {
	if err := t.Rename(c.Path, c.NewPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("Renaming %s → %s", c.Path, c.NewPath), nil
}

func (c DeleteCommand) apply(t *Tree) (string, error) {
	if err := t.Delete(c.Path); err != nil {
		return "", err
	}
	return "Deleting " + c.Path, nil
}

func viewDirectory(t *Tree, dir string) (string, error) {
	names, err := t.ListDirectory(dir)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "Directory " + dir + " is empty", nil
	}
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		if info, err := t.Stat(joinPath(dir, name)); err == nil && info.IsDir() {
			b.WriteByte('/')
		}
	}
	return b.String(), nil
}

func sliceLines(p, content string, start, end int) (string, error) {
	lines := strings.Split(content, "\n")
	if end == -1 {
		end = len(lines)
	}
	if start < 1 || start > len(lines) || end < start || end > len(lines) {
		return "", pathErrf("view", p, ErrOutOfRange, "range [%d, %d], file has %d lines", start, end, len(lines))
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

func requirePath(field, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidArguments, field)
	}
	p, err := NormalizePath(value)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidArguments, field, err)
	}
	return p, nil
}

func missing(command, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrInvalidArguments, command, field)
}

// ParseEditorCommand validates str_replace_editor arguments.
func ParseEditorCommand(args ToolArgs) (EditorCommand, error) {
	p, err := requirePath("path", args.Path)
	if err != nil {
		return nil, err
	}
	switch args.Command {
	case CmdCreate:
		if args.FileText == nil {
			return nil, missing(CmdCreate, "file_text")
		}
		return CreateCommand{Path: p, Content: *args.FileText}, nil
	case CmdStrReplace:
		if args.OldStr == nil {
			return nil, missing(CmdStrReplace, "old_str")
		}
		if *args.OldStr == "" {
			return nil, fmt.Errorf("%w: old_str must not be empty", ErrInvalidArguments)
		}
		if args.NewStr == nil {
			return nil, missing(CmdStrReplace, "new_str")
		}
		return StrReplaceCommand{Path: p, Old: *args.OldStr, New: *args.NewStr}, nil
	case CmdInsert:
		if args.InsertLine == nil {
			return nil, missing(CmdInsert, "insert_line")
		}
		if *args.InsertLine < 0 {
			return nil, fmt.Errorf("%w: insert_line must not be negative", ErrInvalidArguments)
		}
		if args.NewStr == nil {
			return nil, missing(CmdInsert, "new_str")
		}
		return InsertCommand{Path: p, AfterLine: *args.InsertLine, Text: *args.NewStr}, nil
	case CmdView:
		cmd := ViewCommand{Path: p}
		if args.ViewRange != nil {
			if len(args.ViewRange) != 2 {
				return nil, fmt.Errorf("%w: view_range must have two elements", ErrInvalidArguments)
			}
			cmd.Range = &[2]int{args.ViewRange[0], args.ViewRange[1]}
		}
		return cmd, nil
	case "":
		return nil, fmt.Errorf("%w: missing command", ErrInvalidArguments)
	default:
		return nil, fmt.Errorf("%w: unknown %s command %q", ErrInvalidArguments, ToolEditor, args.Command)
	}
}

// ParseFileManagerCommand validates file_manager arguments.
func ParseFileManagerCommand(args ToolArgs) (FileManagerCommand, error) {
	p, err := requirePath("path", args.Path)
	if err != nil {
		return nil, err
	}
	switch args.Command {
	case CmdRename:
		if args.NewPath == nil {
			return nil, missing(CmdRename, "new_path")
		}
		np, err := requirePath("new_path", *args.NewPath)
		if err != nil {
			return nil, err
		}
		return RenameCommand{Path: p, NewPath: np}, nil
	case CmdDelete:
		return DeleteCommand{Path: p}, nil
	case "":
		return nil, fmt.Errorf("%w: missing command", ErrInvalidArguments)
	default:
		return nil, fmt.Errorf("%w: unknown %s command %q", ErrInvalidArguments, ToolFileManager, args.Command)
	}
}

// ParseCommand validates a tool call against its tool family.
func ParseCommand(call ToolCall) (Command, error) {
	switch call.ToolName {
	case ToolEditor:
		return ParseEditorCommand(call.Args)
	case ToolFileManager:
		return ParseFileManagerCommand(call.Args)
	default:
		return nil, fmt.Errorf("%w: unknown tool %q", ErrInvalidArguments, call.ToolName)
	}
}

// IsMutating reports whether the command can change the tree.
func IsMutating(cmd Command) bool {
	_, ok := cmd.(ViewCommand)
	return !ok
}

// Dispatch applies a tool call to tree. It never panics and never returns
// an error: every outcome is a ToolResult.
func Dispatch(tree *Tree, call ToolCall) ToolResult {
	return DispatchWithSession(tree, call, nil)
}

// DispatchWithSession is Dispatch with audit logging through the session.
func DispatchWithSession(tree *Tree, call ToolCall, session *Session) (result ToolResult) {
	start := time.Now()
	var written int64

	defer func() {
		if r := recover(); r != nil {
			result = failed(fmt.Errorf("%s %s panicked: %v", call.ToolName, call.Args.Command, r))
			written = 0
		}
		session.logAudit(call, result, written, time.Since(start))
	}()

	if tree == nil {
		return failed(errors.New("no file tree"))
	}
	cmd, err := ParseCommand(call)
	if err != nil {
		return failed(err)
	}
	msg, err := cmd.apply(tree)
	if err != nil {
		return failed(err)
	}
	written = bytesWritten(cmd)
	return ToolResult{Success: true, Message: msg}
}

func failed(err error) ToolResult {
	return ToolResult{Success: false, Message: "Error: " + err.Error()}
}

func bytesWritten(cmd Command) int64 {
	switch c := cmd.(type) {
	case CreateCommand:
		return int64(len(c.Content))
	case StrReplaceCommand:
		return int64(len(c.New))
	case InsertCommand:
		return int64(len(c.Text))
	}
	return 0
}

// Summarize returns the progress line shown for a tool call. It depends only
// on the tool name, command and paths, never on the outcome.
func Summarize(toolName string, args ToolArgs) string {
	p := displayPath(args.Path)
	switch toolName {
	case ToolEditor:
		switch args.Command {
		case CmdCreate:
			return "Creating " + p
		case CmdStrReplace, CmdInsert:
			return "Editing " + p
		case CmdView:
			return "Reading " + p
		}
	case ToolFileManager:
		switch args.Command {
		case CmdRename:
			np := ""
			if args.NewPath != nil {
				np = displayPath(*args.NewPath)
			}
			return fmt.Sprintf("Renaming %s → %s", p, np)
		case CmdDelete:
			return "Deleting " + p
		}
	}
	return toolName
}

func displayPath(p string) string {
	if norm, err := NormalizePath(p); err == nil {
		return norm
	}
	return p
}
