/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/mcp"
	"github.com/josephgoksu/voiceboard/internal/ui"
)

var (
	boardFormat string
	boardStatus string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the tasks on the board",
	Long: `Read the board and print its tasks grouped by status.

Examples:
  voiceboard board
  voiceboard board --status "in progress"
  voiceboard board --format markdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(boardFormat, formatText, formatMarkdown, formatJSON); err != nil {
			return err
		}
		var only board.Status
		if boardStatus != "" {
			status, err := board.ParseStatus(boardStatus)
			if err != nil {
				return err
			}
			only = status
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		ctx := contextOf(cmd)
		a, err := loadApp(ctx, cfg, config.Needs{Store: true}, nil)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		snap, err := a.Pipeline.Snapshot(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch boardFormat {
		case formatJSON:
			return writeJSON(out, filterTasks(snap.Tasks(), only))
		case formatMarkdown:
			_, err = fmt.Fprintln(out, mcp.FormatBoard(snap, only))
		default:
			if only != "" {
				snap = board.NewSnapshot(filterTasks(snap.Tasks(), only), snap.FetchedAt())
			}
			_, err = fmt.Fprint(out, ui.RenderBoard(snap))
		}
		return err
	},
}

func filterTasks(tasks []board.Task, only board.Status) []board.Task {
	if only == "" {
		return tasks
	}
	out := make([]board.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == only {
			out = append(out, t)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.Flags().StringVar(&boardFormat, "format", formatText, "output format: text, markdown or json")
	boardCmd.Flags().StringVar(&boardStatus, "status", "", "only show one column (not started, in progress, done)")
}
