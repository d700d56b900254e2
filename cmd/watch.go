/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/ui"
	"github.com/josephgoksu/voiceboard/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Apply recordings as they are dropped into a directory",
	Long: `Watch DIR for new recordings and run each one through the pipeline.

Recordings already in DIR are processed first. Handled files are moved to
DIR/processed, or to DIR/failed when transcription failed or none of their
operations could be applied. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(c *config.AppConfig) {
			if watchDebounce > 0 {
				c.Watch.Debounce = watchDebounce
			}
		})
		if err != nil {
			return err
		}

		ctx := contextOf(cmd)
		a, err := loadApp(ctx, cfg, config.Needs{Store: true, Engine: true, Transcription: true}, nil)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		out := cmd.OutOrStdout()
		fs := afero.NewOsFs()
		inbox, err := watch.New(watch.Config{
			Dir:      args[0],
			Debounce: cfg.Watch.Debounce,
			Logger:   slog.Default(),
			Handler: func(ctx context.Context, path string) error {
				fmt.Fprintln(out, ui.StyleTitle.Render("▶ "+filepath.Base(path)))
				report, err := a.ProcessRecording(ctx, fs, path)
				if report != nil {
					fmt.Fprintln(out, ui.RenderReport(report))
				}
				return err
			},
		})
		if err != nil {
			return err
		}

		go func() {
			for o := range inbox.Results() {
				if o.Err != nil {
					fmt.Fprintln(out, ui.RenderWarningPanel(filepath.Base(o.Path), fmt.Sprintf("%v\nmoved to %s", o.Err, o.MovedTo)))
					continue
				}
				fmt.Fprintln(out, ui.StyleSubtle.Render("moved to "+o.MovedTo))
			}
		}()

		fmt.Fprintf(out, "Watching %s for recordings (Ctrl+C to stop)\n", args[0])
		return inbox.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period after the last write (default from watch.debounce)")
}
