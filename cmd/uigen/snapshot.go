package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/IceWhaleTech/uigen"
)

// readSnapshot loads a tree from a snapshot file. An empty path or a missing
// file gives an empty tree.
func readSnapshot(path string) (*uigen.Tree, error) {
	if path == "" {
		return uigen.NewTree(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return uigen.NewTree(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return uigen.UnmarshalSnapshot(data)
}

func writeSnapshot(path string, tree *uigen.Tree) error {
	data, err := json.MarshalIndent(uigen.Serialize(tree), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	// write then rename so a watching server never sees a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// readToolCalls decodes a JSON array of tool calls, or a {"calls": [...]}
// object, from r.
func readToolCalls(r io.Reader) ([]uigen.ToolCall, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var calls []uigen.ToolCall
	if err := json.Unmarshal(data, &calls); err == nil {
		return calls, nil
	}
	var wrapped struct {
		Calls []uigen.ToolCall `json:"calls"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode tool calls: %w", err)
	}
	return wrapped.Calls, nil
}
