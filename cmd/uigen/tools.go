package main

import (
	"encoding/json"
	"fmt"

	"github.com/IceWhaleTech/uigen"
	"github.com/spf13/cobra"
)

var toolsFormat string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool definitions offered to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		var v any
		switch toolsFormat {
		case "json-schema":
			v = uigen.ToolSpecs()
		case "genai":
			v = uigen.GenAITools()
		default:
			return fmt.Errorf("unknown format %q (valid: json-schema, genai)", toolsFormat)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

func init() {
	toolsCmd.Flags().StringVar(&toolsFormat, "format", "json-schema", "Output format: json-schema or genai")
}
