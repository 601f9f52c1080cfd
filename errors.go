package uigen

import (
	"errors"
	"fmt"
)

// Tree and tool layer errors. Tree operations wrap these in a *PathError so
// callers can match them with errors.Is.
var (
	ErrInvalidPath      = errors.New("invalid path")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrAmbiguousMatch   = errors.New("search string matches more than once")
	ErrNotFoundInFile   = errors.New("search string not found in file")
	ErrOutOfRange       = errors.New("line out of range")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// PathError records a failed tree operation and the path it was applied to.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

func pathErr(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

func pathErrf(op, path string, sentinel error, format string, args ...interface{}) error {
	return &PathError{Op: op, Path: path, Err: fmt.Errorf("%w: "+format, append([]interface{}{sentinel}, args...)...)}
}

// TransformError reports a file that could not be compiled for the preview.
// Line is 1-based and Column 0-based, as reported by the transpiler; both are
// zero when the location is unknown.
type TransformError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (e *TransformError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return e.Path + ": " + e.Message
}
