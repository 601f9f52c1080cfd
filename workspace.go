package uigen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ChangeRecord tracks a change applied to the workspace tree
type ChangeRecord struct {
	Path       string    `json:"path"`
	NewPath    string    `json:"new_path,omitempty"`
	Operation  string    `json:"operation"` // tool command, "replace", "rollback" or a filesystem op
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Revision   uint64    `json:"revision"`
}

// CheckpointMetadata represents metadata for a checkpoint
type CheckpointMetadata struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`       // Total size of file contents
	FileCount int       `json:"file_count"` // Number of files in checkpoint
	Revision  uint64    `json:"revision"`
}

type checkpoint struct {
	meta    CheckpointMetadata
	tree    *Tree
	changes []ChangeRecord // tracked after the checkpoint was taken
}

// ErrCheckpointNotFound is returned for unknown checkpoint names.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

const defaultHistoryLimit = 1000

// Workspace owns one tree and serializes every access to it. Tool calls
// are applied in arrival order; previews are published last-write-wins by
// revision, so a slow build of an older state never replaces a newer one.
type Workspace struct {
	mu          sync.Mutex
	tree        *Tree
	revision    uint64
	session     *Session
	pipeline    *Pipeline
	logger      *zap.Logger
	history     []ChangeRecord
	checkpoints map[string]*checkpoint
	current     string // most recent checkpoint

	previewMu sync.RWMutex
	preview   *Preview

	subMu       sync.Mutex
	subscribers map[int]chan *Preview
	nextSub     int

	builds sync.WaitGroup
}

// NewWorkspace wraps tree. A nil tree starts empty; a nil session gets a
// fresh one without audit logging.
func NewWorkspace(tree *Tree, pipeline *Pipeline, session *Session, logger *zap.Logger) *Workspace {
	if tree == nil {
		tree = NewTree()
	}
	if session == nil {
		session = NewSession("", nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		tree:        tree,
		session:     session,
		pipeline:    pipeline,
		logger:      logger.Named("workspace").With(zap.String("session_id", session.ID)),
		checkpoints: make(map[string]*checkpoint),
		subscribers: make(map[int]chan *Preview),
	}
}

// Session returns the workspace session.
func (w *Workspace) Session() *Session { return w.session }

// Revision increases on every change to the workspace tree, including
// replacements and rollbacks.
func (w *Workspace) Revision() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.revision
}

// Apply runs one tool call against the tree.
func (w *Workspace) Apply(call ToolCall) ToolResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applyLocked(call)
}

func (w *Workspace) applyLocked(call ToolCall) ToolResult {
	before := w.tree.Generation()
	result := DispatchWithSession(w.tree, call, w.session)
	if w.tree.Generation() != before {
		change := ChangeRecord{
			Path:       displayPath(call.Args.Path),
			Operation:  call.Args.Command,
			SessionID:  w.session.ID,
			ToolCallID: call.ID,
		}
		if call.Args.NewPath != nil {
			change.NewPath = displayPath(*call.Args.NewPath)
		}
		w.trackLocked(change)
	}
	return result
}

// ApplyAll runs tool calls in order and returns one result per call.
// Failed calls do not stop later ones.
func (w *Workspace) ApplyAll(calls []ToolCall) []ToolResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	results := make([]ToolResult, len(calls))
	for i, call := range calls {
		results[i] = w.applyLocked(call)
	}
	return results
}

// Invoke runs a tool call and returns its completed invocation record.
func (w *Workspace) Invoke(call ToolCall) *ToolInvocation {
	inv := NewToolInvocation(call)
	inv.Complete(w.Apply(inv.Call()))
	return inv
}

// trackLocked records a change and bumps the revision.
func (w *Workspace) trackLocked(change ChangeRecord) {
	w.revision++
	change.Revision = w.revision
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now()
	}
	if change.SessionID == "" {
		change.SessionID = w.session.ID
	}
	w.history = append(w.history, change)
	if len(w.history) > defaultHistoryLimit {
		w.history = w.history[len(w.history)-defaultHistoryLimit:]
	}
	if cp, ok := w.checkpoints[w.current]; ok {
		cp.changes = append(cp.changes, change)
	}
}

// History returns the recorded changes, oldest first.
func (w *Workspace) History() []ChangeRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ChangeRecord, len(w.history))
	copy(out, w.history)
	return out
}

// View runs fn with read access to the tree. fn must not retain the tree.
func (w *Workspace) View(fn func(t *Tree) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.tree)
}

// Update runs fn with write access to the tree and records a change when
// fn modified it.
func (w *Workspace) Update(op, path string, fn func(t *Tree) error) error {
	return w.UpdateChange(ChangeRecord{Path: path, Operation: op}, fn)
}

// UpdateChange is Update for changes that need more than an operation and a
// path, such as renames.
func (w *Workspace) UpdateChange(change ChangeRecord, fn func(t *Tree) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	before := w.tree.Generation()
	err := fn(w.tree)
	if w.tree.Generation() != before {
		w.trackLocked(change)
	}
	return err
}

// Snapshot serializes the current tree.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Serialize(w.tree)
}

// Replace swaps the tree for the one described by snap.
func (w *Workspace) Replace(snap Snapshot) error {
	tree, err := Deserialize(snap)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tree = tree
	w.trackLocked(ChangeRecord{Path: RootPath, Operation: "replace"})
	return nil
}

// Checkpoint saves the current tree under name, replacing any checkpoint
// with the same name.
func (w *Workspace) Checkpoint(name string) (CheckpointMetadata, error) {
	if name == "" {
		return CheckpointMetadata{}, errors.New("checkpoint name cannot be empty")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	files := w.tree.Files()
	var size int64
	for _, content := range files {
		size += int64(len(content))
	}
	cp := &checkpoint{
		meta: CheckpointMetadata{
			Name:      name,
			CreatedAt: time.Now(),
			Size:      size,
			FileCount: len(files),
			Revision:  w.revision,
		},
		tree: w.tree.Clone(),
	}
	w.checkpoints[name] = cp
	w.current = name
	w.logger.Info("checkpoint created", zap.String("name", name), zap.Int("files", len(files)))
	return cp.meta, nil
}

// Rollback restores the tree saved under name. The checkpoint itself is
// kept, so it can be restored again.
func (w *Workspace) Rollback(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp, ok := w.checkpoints[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCheckpointNotFound, name)
	}
	w.tree = cp.tree.Clone()
	w.current = name
	w.trackLocked(ChangeRecord{Path: RootPath, Operation: "rollback", NewPath: name})
	w.logger.Info("rolled back", zap.String("name", name))
	return nil
}

// DeleteCheckpoint removes a checkpoint.
func (w *Workspace) DeleteCheckpoint(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.checkpoints[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCheckpointNotFound, name)
	}
	delete(w.checkpoints, name)
	if w.current == name {
		w.current = ""
	}
	return nil
}

// ListCheckpoints returns checkpoint metadata ordered by creation time.
func (w *Workspace) ListCheckpoints() []CheckpointMetadata {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]CheckpointMetadata, 0, len(w.checkpoints))
	for _, cp := range w.checkpoints {
		out = append(out, cp.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CheckpointChanges returns the changes tracked since name was taken.
func (w *Workspace) CheckpointChanges(name string) ([]ChangeRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp, ok := w.checkpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, name)
	}
	out := make([]ChangeRecord, len(cp.changes))
	copy(out, cp.changes)
	return out, nil
}

// Rebuild compiles the current tree and publishes the preview unless a
// newer one was published meanwhile. The tree lock is only held while
// copying the files.
func (w *Workspace) Rebuild(ctx context.Context) (*Preview, error) {
	if w.pipeline == nil {
		return nil, errors.New("workspace has no pipeline")
	}
	w.mu.Lock()
	files := w.tree.Files()
	revision := w.revision
	w.mu.Unlock()

	preview, err := w.pipeline.BuildFiles(ctx, files, revision)
	if err != nil {
		return nil, err
	}
	if !w.publish(preview) {
		w.logger.Debug("discarded stale preview", zap.Uint64("revision", revision))
	}
	return w.Preview(), nil
}

// RebuildAsync starts a rebuild in the background. Close waits for it.
func (w *Workspace) RebuildAsync() {
	w.builds.Add(1)
	go func() {
		defer w.builds.Done()
		if _, err := w.Rebuild(context.Background()); err != nil {
			w.logger.Warn("rebuild failed", zap.Error(err))
		}
	}()
}

// publish stores p unless a preview of a newer revision is already
// published, then notifies subscribers.
func (w *Workspace) publish(p *Preview) bool {
	w.previewMu.Lock()
	defer w.previewMu.Unlock()
	if w.preview != nil && p.Generation < w.preview.Generation {
		return false
	}
	w.preview = p

	w.subMu.Lock()
	defer w.subMu.Unlock()
	for _, ch := range w.subscribers {
		// keep only the latest preview for slow subscribers
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
	return true
}

// Preview returns the latest published preview, or nil before the first
// build.
func (w *Workspace) Preview() *Preview {
	w.previewMu.RLock()
	defer w.previewMu.RUnlock()
	return w.preview
}

// Subscribe returns a channel receiving every newly published preview and
// a function that cancels the subscription.
func (w *Workspace) Subscribe() (<-chan *Preview, func()) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	id := w.nextSub
	w.nextSub++
	ch := make(chan *Preview, 1)
	w.subscribers[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.subMu.Lock()
			defer w.subMu.Unlock()
			delete(w.subscribers, id)
			close(ch)
		})
	}
}

// Close waits for background rebuilds to finish.
func (w *Workspace) Close() {
	w.builds.Wait()
}
