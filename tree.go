package uigen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NodeType distinguishes files from directories.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// NodeInfo describes a node without exposing it. Callers only ever hold paths.
type NodeInfo struct {
	Path     string   `json:"path"`
	Type     NodeType `json:"type"`
	Size     int      `json:"size"`
	Children int      `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (i NodeInfo) IsDir() bool { return i.Type == NodeDirectory }

type node struct {
	kind     NodeType
	content  string
	children map[string]struct{} // child paths, directories only
}

// Tree is an in-memory hierarchical file store keyed by normalized path.
// Containment is derived from paths: a node is inside a directory only
// because its path starts with the directory path plus "/".
//
// Tree is not safe for concurrent use; Workspace serializes access.
type Tree struct {
	nodes      map[string]*node
	generation uint64
}

// NewTree returns a tree containing only the root directory.
func NewTree() *Tree {
	return &Tree{
		nodes: map[string]*node{
			RootPath: {kind: NodeDirectory, children: make(map[string]struct{})},
		},
	}
}

// Generation increases on every successful mutation.
func (t *Tree) Generation() uint64 { return t.generation }

func (t *Tree) touch() { t.generation++ }

func normalizeOp(op, p string) (string, error) {
	norm, err := NormalizePath(p)
	if err != nil {
		var pe *PathError
		if errors.As(err, &pe) {
			return "", pathErr(op, p, pe.Err)
		}
		return "", pathErr(op, p, ErrInvalidPath)
	}
	return norm, nil
}

// checkAncestors fails when any proper ancestor of p exists as a file.
func (t *Tree) checkAncestors(op, p string) error {
	for _, anc := range ancestors(p) {
		if n, ok := t.nodes[anc]; ok && n.kind != NodeDirectory {
			return pathErrf(op, p, ErrTypeMismatch, "%s is a file", anc)
		}
	}
	return nil
}

// link materializes missing ancestors of p and adds p to its parent's
// children. checkAncestors must have passed.
func (t *Tree) link(p string) {
	for _, anc := range ancestors(p) {
		if _, ok := t.nodes[anc]; !ok {
			t.nodes[anc] = &node{kind: NodeDirectory, children: make(map[string]struct{})}
			t.nodes[parentPath(anc)].children[anc] = struct{}{}
		}
	}
	t.nodes[parentPath(p)].children[p] = struct{}{}
}

func (t *Tree) unlink(p string) {
	if parent, ok := t.nodes[parentPath(p)]; ok {
		delete(parent.children, p)
	}
}

// CreateFile creates the file at path, creating any missing ancestor
// directories. An existing file is overwritten; an existing directory is a
// conflict.
func (t *Tree) CreateFile(path, content string) error {
	p, err := normalizeOp("create", path)
	if err != nil {
		return err
	}
	if n, ok := t.nodes[p]; ok {
		if n.kind == NodeDirectory {
			return pathErrf("create", p, ErrAlreadyExists, "a directory exists at this path")
		}
		n.content = content
		t.touch()
		return nil
	}
	if err := t.checkAncestors("create", p); err != nil {
		return err
	}
	t.nodes[p] = &node{kind: NodeFile, content: content}
	t.link(p)
	t.touch()
	return nil
}

// CreateDirectory creates a directory and its missing ancestors. It is a
// no-op when the directory already exists.
func (t *Tree) CreateDirectory(path string) error {
	p, err := normalizeOp("mkdir", path)
	if err != nil {
		return err
	}
	if n, ok := t.nodes[p]; ok {
		if n.kind != NodeDirectory {
			return pathErrf("mkdir", p, ErrAlreadyExists, "a file exists at this path")
		}
		return nil
	}
	if err := t.checkAncestors("mkdir", p); err != nil {
		return err
	}
	t.nodes[p] = &node{kind: NodeDirectory, children: make(map[string]struct{})}
	t.link(p)
	t.touch()
	return nil
}

// lookupFile resolves path to an existing file node.
func (t *Tree) lookupFile(op, path string) (string, *node, error) {
	p, err := normalizeOp(op, path)
	if err != nil {
		return "", nil, err
	}
	n, ok := t.nodes[p]
	if !ok {
		return p, nil, pathErr(op, p, ErrNotFound)
	}
	if n.kind != NodeFile {
		return p, nil, pathErrf(op, p, ErrTypeMismatch, "is a directory")
	}
	return p, n, nil
}

// UpdateFile replaces the content of an existing file.
func (t *Tree) UpdateFile(path, content string) error {
	_, n, err := t.lookupFile("update", path)
	if err != nil {
		return err
	}
	n.content = content
	t.touch()
	return nil
}

// ViewFile returns the content of a file. Directories are reported as not
// found since they have no content.
func (t *Tree) ViewFile(path string) (string, error) {
	p, err := normalizeOp("view", path)
	if err != nil {
		return "", err
	}
	n, ok := t.nodes[p]
	if !ok {
		return "", pathErr("view", p, ErrNotFound)
	}
	if n.kind != NodeFile {
		return "", pathErrf("view", p, ErrNotFound, "is a directory")
	}
	return n.content, nil
}

// DeleteFile removes a single file.
func (t *Tree) DeleteFile(path string) error {
	p, _, err := t.lookupFile("delete", path)
	if err != nil {
		return err
	}
	t.unlink(p)
	delete(t.nodes, p)
	t.touch()
	return nil
}

// DeleteDirectory removes a directory and everything below it.
func (t *Tree) DeleteDirectory(path string) error {
	p, err := normalizeOp("rmdir", path)
	if err != nil {
		return err
	}
	if p == RootPath {
		return pathErrf("rmdir", p, ErrInvalidPath, "cannot delete the root directory")
	}
	n, ok := t.nodes[p]
	if !ok {
		return pathErr("rmdir", p, ErrNotFound)
	}
	if n.kind != NodeDirectory {
		return pathErrf("rmdir", p, ErrTypeMismatch, "is a file")
	}
	t.removeSubtree(p)
	t.touch()
	return nil
}

// Delete removes a file or, recursively, a directory.
func (t *Tree) Delete(path string) error {
	p, err := normalizeOp("delete", path)
	if err != nil {
		return err
	}
	n, ok := t.nodes[p]
	if !ok {
		return pathErr("delete", p, ErrNotFound)
	}
	if n.kind == NodeDirectory {
		return t.DeleteDirectory(p)
	}
	return t.DeleteFile(p)
}

func (t *Tree) removeSubtree(p string) {
	t.unlink(p)
	for key := range t.nodes {
		if isWithin(key, p) {
			delete(t.nodes, key)
		}
	}
}

// Rename moves a file or directory. Directory renames carry every
// descendant along under the new prefix. The destination must not exist.
func (t *Tree) Rename(oldPath, newPath string) error {
	from, err := normalizeOp("rename", oldPath)
	if err != nil {
		return err
	}
	to, err := normalizeOp("rename", newPath)
	if err != nil {
		return err
	}
	if from == RootPath || to == RootPath {
		return pathErrf("rename", from, ErrInvalidPath, "cannot rename the root directory")
	}
	if _, ok := t.nodes[from]; !ok {
		return pathErr("rename", from, ErrNotFound)
	}
	if _, ok := t.nodes[to]; ok {
		return pathErrf("rename", to, ErrAlreadyExists, "destination exists")
	}
	if isWithin(to, from) {
		return pathErrf("rename", from, ErrInvalidPath, "cannot move %s into itself", from)
	}
	if err := t.checkAncestors("rename", to); err != nil {
		return err
	}

	moved := make(map[string]*node)
	for key, n := range t.nodes {
		if isWithin(key, from) {
			moved[to+key[len(from):]] = n
		}
	}
	t.removeSubtree(from)
	for key, n := range moved {
		if n.kind == NodeDirectory {
			children := make(map[string]struct{}, len(n.children))
			for child := range n.children {
				children[to+child[len(from):]] = struct{}{}
			}
			n.children = children
		}
		t.nodes[key] = n
	}
	t.link(to)
	t.touch()
	return nil
}

// ReplaceInFile replaces the single occurrence of search with replacement.
// Zero or multiple occurrences leave the file untouched.
func (t *Tree) ReplaceInFile(path, search, replacement string) error {
	p, n, err := t.lookupFile("str_replace", path)
	if err != nil {
		return err
	}
	if search == "" {
		return pathErrf("str_replace", p, ErrInvalidArguments, "search string is empty")
	}
	switch count := strings.Count(n.content, search); {
	case count == 0:
		return pathErr("str_replace", p, ErrNotFoundInFile)
	case count > 1:
		return pathErrf("str_replace", p, ErrAmbiguousMatch, "found %d occurrences, provide more context to make it unique", count)
	}
	n.content = strings.Replace(n.content, search, replacement, 1)
	t.touch()
	return nil
}

// InsertInFile inserts text as new line(s) after line afterLine. Line 0
// inserts before the first line.
func (t *Tree) InsertInFile(path string, afterLine int, text string) error {
	p, n, err := t.lookupFile("insert", path)
	if err != nil {
		return err
	}
	// a trailing newline ends the last line, it does not start another
	body, trailing := strings.CutSuffix(n.content, "\n")
	var lines []string
	if n.content != "" {
		lines = strings.Split(body, "\n")
	}
	if afterLine < 0 || afterLine > len(lines) {
		return pathErrf("insert", p, ErrOutOfRange, "line %d, file has %d lines", afterLine, len(lines))
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:afterLine]...)
	out = append(out, text)
	out = append(out, lines[afterLine:]...)
	n.content = strings.Join(out, "\n")
	if trailing {
		n.content += "\n"
	}
	t.touch()
	return nil
}

// List returns every path in the tree, root included, sorted.
func (t *Tree) List() []string {
	paths := make([]string, 0, len(t.nodes))
	for p := range t.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Exists reports whether path names a node.
func (t *Tree) Exists(path string) bool {
	p, err := NormalizePath(path)
	if err != nil {
		return false
	}
	_, ok := t.nodes[p]
	return ok
}

// Stat describes the node at path.
func (t *Tree) Stat(path string) (NodeInfo, error) {
	p, err := normalizeOp("stat", path)
	if err != nil {
		return NodeInfo{}, err
	}
	n, ok := t.nodes[p]
	if !ok {
		return NodeInfo{}, pathErr("stat", p, ErrNotFound)
	}
	return NodeInfo{Path: p, Type: n.kind, Size: len(n.content), Children: len(n.children)}, nil
}

// ListDirectory returns the sorted names of the direct children of a
// directory.
func (t *Tree) ListDirectory(path string) ([]string, error) {
	p, err := normalizeOp("readdir", path)
	if err != nil {
		return nil, err
	}
	n, ok := t.nodes[p]
	if !ok {
		return nil, pathErr("readdir", p, ErrNotFound)
	}
	if n.kind != NodeDirectory {
		return nil, pathErrf("readdir", p, ErrTypeMismatch, "is a file")
	}
	names := make([]string, 0, len(n.children))
	for child := range n.children {
		names = append(names, baseName(child))
	}
	sort.Strings(names)
	return names, nil
}

// Files returns a copy of every file's content keyed by path.
func (t *Tree) Files() map[string]string {
	files := make(map[string]string)
	for p, n := range t.nodes {
		if n.kind == NodeFile {
			files[p] = n.content
		}
	}
	return files
}

// Clone returns an independent deep copy of the tree.
func (t *Tree) Clone() *Tree {
	out := &Tree{nodes: make(map[string]*node, len(t.nodes)), generation: t.generation}
	for p, n := range t.nodes {
		cp := &node{kind: n.kind, content: n.content}
		if n.children != nil {
			cp.children = make(map[string]struct{}, len(n.children))
			for c := range n.children {
				cp.children[c] = struct{}{}
			}
		}
		out.nodes[p] = cp
	}
	return out
}

// String renders the tree as an indented listing for debugging.
func (t *Tree) String() string {
	paths := t.List()
	// order by segments so "/a/x" stays next to "/a" rather than after "/a-b"
	sort.Slice(paths, func(i, j int) bool {
		return strings.ReplaceAll(paths[i], "/", "\x00") < strings.ReplaceAll(paths[j], "/", "\x00")
	})
	var b strings.Builder
	for _, p := range paths {
		if p == RootPath {
			b.WriteString("/\n")
			continue
		}
		depth := strings.Count(p, "/") - 1
		suffix := ""
		if t.nodes[p].kind == NodeDirectory {
			suffix = "/"
		}
		fmt.Fprintf(&b, "%s%s%s\n", strings.Repeat("  ", depth+1), baseName(p), suffix)
	}
	return b.String()
}
