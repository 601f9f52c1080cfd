//go:build linux || darwin
// +build linux darwin

package main

import (
	"fmt"
	"os"

	"github.com/IceWhaleTech/uigen"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	mountSnapshot string
	mountSave     bool
	mountServe    bool
	mountDebug    bool
)

var mountCmd = &cobra.Command{
	Use:   "mount [mountpoint]",
	Short: "Mount a workspace as a FUSE filesystem",
	Long: `Exposes the workspace tree as a directory. Editors and shell tools can read
and change the project; every change rebuilds the preview. With --serve the
preview server runs alongside the mount.

Unmount with Ctrl-C, or manually with: fusermount -u <mountpoint>`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func init() {
	mountCmd.Flags().StringVarP(&mountSnapshot, "snapshot", "s", "", "Snapshot file to load")
	mountCmd.Flags().BoolVar(&mountSave, "save", false, "Write the workspace back to the snapshot file on unmount")
	mountCmd.Flags().BoolVar(&mountServe, "serve", false, "Also serve the live preview")
	mountCmd.Flags().BoolVar(&mountDebug, "fuse-debug", false, "Log every FUSE request")
	rootCmd.AddCommand(mountCmd)
}

func runMount(cmd *cobra.Command, args []string) error {
	if mountSave && mountSnapshot == "" {
		return fmt.Errorf("--save needs --snapshot")
	}
	mountPoint := args[0]
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return fmt.Errorf("failed to create mount point: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	ws, pipeline, memory, err := openWorkspace(mountSnapshot)
	if err != nil {
		return err
	}
	defer ws.Close()

	server, err := uigen.MountWorkspace(ws, mountPoint, &fuse.MountOptions{
		FsName: "uigen",
		Name:   "uigen",
		Debug:  mountDebug,
	})
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	logger.Info("workspace mounted", zap.String("mountpoint", mountPoint))

	serveErr := make(chan error, 1)
	if mountServe {
		if _, err := ws.Rebuild(ctx); err != nil {
			logger.Warn("initial build failed", zap.Error(err))
		}
		srv := uigen.NewPreviewServer(cfg.Server, ws, pipeline, logger, uigen.WithAuditLog(memory))
		go func() { serveErr <- srv.ListenAndServe(ctx) }()
	} else {
		close(serveErr)
	}

	<-ctx.Done()
	logger.Info("unmounting", zap.String("mountpoint", mountPoint))
	if err := server.Unmount(); err != nil {
		logger.Warn("unmount failed", zap.Error(err))
	}
	server.Wait()
	if err := <-serveErr; err != nil {
		logger.Warn("preview server stopped", zap.Error(err))
	}

	if mountSave {
		return saveWorkspace(ws, mountSnapshot)
	}
	return nil
}
