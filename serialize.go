package uigen

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SerializedNode is the storage form of a single node.
type SerializedNode struct {
	Type    NodeType `json:"type"`
	Content *string  `json:"content,omitempty"`
}

// Snapshot is the flat, storage-friendly form of a tree: path -> node.
// It is what the external project store and chat API exchange.
type Snapshot map[string]SerializedNode

// Serialize flattens every node of the tree, root included.
func Serialize(t *Tree) Snapshot {
	snap := make(Snapshot, len(t.nodes))
	for p, n := range t.nodes {
		entry := SerializedNode{Type: n.kind}
		if n.kind == NodeFile {
			content := n.content
			entry.Content = &content
		}
		snap[p] = entry
	}
	return snap
}

// Deserialize rebuilds a tree from a snapshot. Entries may appear in any
// order: directories implied by path prefixes are created on demand. An empty
// or nil snapshot yields a tree containing only the root.
func Deserialize(snap Snapshot) (*Tree, error) {
	t := NewTree()
	// directories first, then files, each sorted: conflicts report the same
	// path whatever the map order was
	paths := make([]string, 0, len(snap))
	for p := range snap {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		di, dj := snap[paths[i]].Type == NodeDirectory, snap[paths[j]].Type == NodeDirectory
		if di != dj {
			return di
		}
		return paths[i] < paths[j]
	})

	for _, p := range paths {
		entry := snap[p]
		switch entry.Type {
		case NodeDirectory:
			if err := t.CreateDirectory(p); err != nil {
				return nil, fmt.Errorf("deserialize %s: %w", p, err)
			}
		case NodeFile:
			content := ""
			if entry.Content != nil {
				content = *entry.Content
			}
			norm, err := NormalizePath(p)
			if err != nil {
				return nil, fmt.Errorf("deserialize %s: %w", p, err)
			}
			if n, ok := t.nodes[norm]; ok && n.kind == NodeFile {
				return nil, fmt.Errorf("deserialize %s: %w", p, pathErrf("deserialize", norm, ErrAlreadyExists, "duplicate file entry"))
			}
			if err := t.CreateFile(norm, content); err != nil {
				return nil, fmt.Errorf("deserialize %s: %w", p, err)
			}
		default:
			return nil, fmt.Errorf("deserialize %s: %w: unknown node type %q", p, ErrInvalidArguments, entry.Type)
		}
	}
	t.generation = 0
	return t, nil
}

// MarshalSnapshot encodes a tree as snapshot JSON.
func MarshalSnapshot(t *Tree) ([]byte, error) {
	return json.Marshal(Serialize(t))
}

// UnmarshalSnapshot decodes snapshot JSON into a tree. Empty input yields an
// empty tree.
func UnmarshalSnapshot(data []byte) (*Tree, error) {
	if len(data) == 0 {
		return NewTree(), nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return Deserialize(snap)
}
