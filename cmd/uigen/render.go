package main

import (
	"fmt"
	"os"

	"github.com/IceWhaleTech/uigen"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	renderSnapshot string
	renderOut      string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a snapshot into a standalone preview document",
	Long: `Compiles every component of a snapshot and writes a single HTML document.
Compiled modules are inlined as data: URLs, so the file can be opened directly
in a browser without a server. Third-party imports still load from the CDN.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderSnapshot, "snapshot", "s", "", "Snapshot file to render (required)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "-", "Output HTML file, - for stdout")
	_ = renderCmd.MarkFlagRequired("snapshot")
}

func runRender(cmd *cobra.Command, args []string) error {
	tree, err := readSnapshot(renderSnapshot)
	if err != nil {
		return err
	}

	standalone := *cfg
	standalone.Preview.ModulePrefix = ""
	standalone.Server.LiveReload = false
	pipeline, err := uigen.NewPipeline(&standalone, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	preview, err := pipeline.Build(ctx, tree)
	if err != nil {
		return err
	}
	for _, te := range preview.Errors {
		logger.Warn("transform error", zap.String("path", te.Path), zap.Int("line", te.Line), zap.String("message", te.Message))
	}
	if preview.Entry == "" {
		logger.Warn("no entry component found")
	}

	if renderOut == "-" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), preview.HTML)
		return err
	}
	if err := os.WriteFile(renderOut, []byte(preview.HTML), 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	logger.Info("preview written", zap.String("path", renderOut), zap.Int("modules", len(preview.Modules)))
	return nil
}
