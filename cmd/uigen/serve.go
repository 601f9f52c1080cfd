package main

import (
	"context"
	"errors"

	"github.com/IceWhaleTech/uigen"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr     string
	serveSnapshot string
	serveWatch    bool
	serveSave     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live preview of a workspace",
	Long: `Starts the preview server. The workspace starts from --snapshot (or empty)
and is changed through POST /api/tool-calls or PUT /api/snapshot; every change
rebuilds the preview and reloads connected browsers.

With --watch, edits to the snapshot file replace the workspace tree.
With --save, the final tree is written back to the snapshot file on exit.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVarP(&serveSnapshot, "snapshot", "s", "", "Snapshot file to load")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload the workspace when the snapshot file changes")
	serveCmd.Flags().BoolVar(&serveSave, "save", false, "Write the workspace back to the snapshot file on exit")
}

func runServe(cmd *cobra.Command, args []string) error {
	if (serveWatch || serveSave) && serveSnapshot == "" {
		return errors.New("--watch and --save need --snapshot")
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, cancel := signalContext()
	defer cancel()

	ws, pipeline, memory, err := openWorkspace(serveSnapshot)
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := ws.Rebuild(ctx); err != nil {
		return err
	}
	srv := uigen.NewPreviewServer(cfg.Server, ws, pipeline, logger, uigen.WithAuditLog(memory))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if serveWatch {
		w, err := newSnapshotWatcher(serveSnapshot, ws, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if serveSave {
		if err := saveWorkspace(ws, serveSnapshot); err != nil {
			return err
		}
		logger.Info("workspace saved", zap.String("path", serveSnapshot))
	}
	return nil
}

// openWorkspace loads a snapshot into a workspace with a pipeline and an
// in-memory audit log.
func openWorkspace(snapshot string) (*uigen.Workspace, *uigen.Pipeline, *uigen.MemoryAuditLogger, error) {
	tree, err := readSnapshot(snapshot)
	if err != nil {
		return nil, nil, nil, err
	}
	pipeline, err := uigen.NewPipeline(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	memory := uigen.NewMemoryAuditLogger(1000)
	ws := uigen.NewWorkspace(tree, pipeline, newSession(memory), logger)
	return ws, pipeline, memory, nil
}

func saveWorkspace(ws *uigen.Workspace, path string) error {
	return ws.View(func(t *uigen.Tree) error {
		return writeSnapshot(path, t)
	})
}
