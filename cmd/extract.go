/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/config"
)

var (
	extractTranscript string
	extractFormat     string
)

var extractCmd = &cobra.Command{
	Use:   "extract [TRANSCRIPT]",
	Short: "Show the operations a transcript would produce",
	Long: `Interpret a transcript against the current board and print the validated
operations. The board is read but never changed.

Examples:
  voiceboard extract "move the vendor call to done"
  voiceboard extract --transcript - --format yaml < notes.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(extractFormat, formatText, formatJSON, formatYAML); err != nil {
			return err
		}
		transcript, err := readTranscript(extractTranscript, args, cmd.InOrStdin())
		if err != nil {
			return err
		}
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

		report, err := a.Pipeline.Plan(ctx, transcript)
		if err != nil {
			return err
		}
		return writeReport(cmd.OutOrStdout(), report, extractFormat)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractTranscript, "transcript", "", "transcript text (or - for stdin)")
	extractCmd.Flags().StringVar(&extractFormat, "format", formatText, "output format: text, json or yaml")
}
