package main

import (
	"fmt"
	"io"
	"os"

	"github.com/IceWhaleTech/uigen"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	applySnapshot string
	applyCalls    string
	applyOut      string
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	summaryStyle = lipgloss.NewStyle().Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(4)
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply tool calls to a snapshot",
	Long: `Reads a snapshot and a JSON array of tool calls, applies the calls in order
and prints one line per call. Failed calls do not stop later ones.

Example:
  uigen apply --snapshot project.json --calls calls.json --out project.json
  echo '[{"toolName":"file_manager","args":{"command":"delete","path":"/old.jsx"}}]' | uigen apply -s project.json`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applySnapshot, "snapshot", "s", "", "Snapshot file to start from (default: empty tree)")
	applyCmd.Flags().StringVar(&applyCalls, "calls", "-", "Tool calls file, - for stdin")
	applyCmd.Flags().StringVarP(&applyOut, "out", "o", "", "Write the resulting snapshot here (- for stdout)")
}

func runApply(cmd *cobra.Command, args []string) error {
	tree, err := readSnapshot(applySnapshot)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if applyCalls != "-" {
		f, err := os.Open(applyCalls)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	calls, err := readToolCalls(in)
	if err != nil {
		return err
	}

	session := newSession(nil)
	out := cmd.OutOrStdout()
	if applyOut == "-" {
		// keep stdout clean for the snapshot
		out = cmd.ErrOrStderr()
	}
	failed := 0
	for _, call := range calls {
		inv := uigen.NewToolInvocation(call)
		res := uigen.DispatchWithSession(tree, inv.Call(), session)
		inv.Complete(res)
		printInvocation(out, inv)
		if !res.Success {
			failed++
		}
	}
	fmt.Fprintf(out, "%d calls, %d failed\n", len(calls), failed)

	if applyOut != "" {
		return writeSnapshot(applyOut, tree)
	}
	return nil
}

func printInvocation(w io.Writer, inv *uigen.ToolInvocation) {
	mark := okStyle.Render("✓")
	if inv.State == uigen.InvocationError {
		mark = failStyle.Render("✗")
	}
	fmt.Fprintf(w, "%s %s\n", mark, summaryStyle.Render(inv.Summary))
	// view output can be a whole file; show it only on failure
	if inv.State == uigen.InvocationError || inv.Args.Command != uigen.CmdView {
		fmt.Fprintln(w, detailStyle.Render(inv.Message))
	}
}
