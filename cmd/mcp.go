/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the board as MCP tools over stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout so an AI assistant
can read the board and apply transcripts.

Tools:
  board_snapshot       the board grouped by status
  extract_operations   the operations a transcript would produce
  apply_transcript     interpret a transcript and apply it

Operations are applied without a confirmation prompt; policies still apply.

Example client configuration:
  {"command": "voiceboard", "args": ["mcp"]}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		ctx := contextOf(cmd)
		a, err := loadApp(ctx, cfg, config.Needs{Store: true, Engine: true}, nil)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return mcp.Serve(ctx, a.Pipeline, version)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
