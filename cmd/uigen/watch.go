package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/IceWhaleTech/uigen"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 200 * time.Millisecond

// snapshotWatcher replaces the workspace tree whenever the snapshot file
// settles after a change.
type snapshotWatcher struct {
	path    string
	ws      *uigen.Workspace
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

func newSnapshotWatcher(path string, ws *uigen.Workspace, logger *zap.Logger) (*snapshotWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// watch the directory: editors and writeSnapshot replace the file by rename
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &snapshotWatcher{
		path:    abs,
		ws:      ws,
		logger:  logger.Named("watch"),
		watcher: watcher,
	}, nil
}

// Run processes events until ctx is done.
func (w *snapshotWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(watchDebounce / 2)
	defer ticker.Stop()
	var pending time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				pending = time.Now()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= watchDebounce {
				pending = time.Time{}
				w.reload()
			}
		}
	}
}

func (w *snapshotWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// a rename away from the path leaves nothing to load yet
		w.logger.Debug("snapshot not readable", zap.Error(err))
		return
	}
	var snap uigen.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		w.logger.Warn("invalid snapshot file", zap.String("path", w.path), zap.Error(err))
		return
	}
	if err := w.ws.Replace(snap); err != nil {
		w.logger.Warn("snapshot rejected", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("workspace reloaded", zap.String("path", w.path), zap.Uint64("revision", w.ws.Revision()))
	w.ws.RebuildAsync()
}
