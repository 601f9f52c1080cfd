package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IceWhaleTech/uigen"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	cfg    *uigen.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "uigen",
	Short: "uigen - virtual file tree, agent tools and live component preview",
	Long: `uigen keeps a generated React project in an in-memory file tree, applies
str_replace_editor and file_manager tool calls to it and renders the tree into
a self-contained preview document.

Projects are exchanged as snapshot JSON: a flat map of path to node.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = uigen.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = uigen.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "uigen.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(toolsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newSession returns a session auditing to the command logger and, when
// memory is set, to an in-memory log as well.
func newSession(memory *uigen.MemoryAuditLogger) *uigen.Session {
	audit := uigen.MultiAuditLogger{uigen.NewZapAuditLogger(logger)}
	if memory != nil {
		audit = append(audit, memory)
	}
	return uigen.NewSession("", audit)
}
