/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/audio"
	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/operation"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
	"github.com/josephgoksu/voiceboard/internal/speech"
	"github.com/josephgoksu/voiceboard/internal/ui"
)

type runFlags struct {
	audio      string
	transcript string
	confirm    bool
	yes        bool
	dryRun     bool
	refresh    string
	noDedupe   bool
	json       bool
	format     string
	strict     bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run [TRANSCRIPT]",
	Short: "Apply a spoken request to the board",
	Long: `Transcribe a recording (or take a transcript), turn it into board
operations and apply them.

Exactly one source is used: --audio FILE (or - for a WAV on stdin),
--transcript TEXT (or - for stdin), or the positional arguments.

A run in which some operations failed exits 0 after reporting; with
--strict it exits 2.

Examples:
  voiceboard run --audio standup.m4a
  voiceboard run "add book flights, due next friday"
  voiceboard run --transcript - --confirm < notes.txt
  voiceboard run --audio memo.wav --dry-run --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(contextOf(cmd), cmd, args, runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVar(&runOpts.audio, "audio", "", "recording to transcribe (FILE, or - for WAV on stdin)")
	f.StringVar(&runOpts.transcript, "transcript", "", "transcript text (or - for stdin)")
	f.BoolVar(&runOpts.confirm, "confirm", false, "review the operations before they are applied")
	f.BoolVarP(&runOpts.yes, "yes", "y", false, "skip the confirmation prompt")
	f.BoolVar(&runOpts.dryRun, "dry-run", false, "show the operations without applying them")
	f.StringVar(&runOpts.refresh, "refresh", "", "board refresh mode: operation or batch (default from reconcile.refresh)")
	f.BoolVar(&runOpts.noDedupe, "no-dedupe", false, "create tasks even when one with the same name exists")
	f.BoolVar(&runOpts.json, "json", false, "print the report as JSON (same as --format json)")
	f.StringVar(&runOpts.format, "format", formatText, "output format: text, json or yaml")
	f.BoolVar(&runOpts.strict, "strict", false, "exit 2 when any operation failed")
	runCmd.MarkFlagsMutuallyExclusive("audio", "transcript")
}

func runRun(ctx context.Context, cmd *cobra.Command, args []string, opts runFlags) error {
	format := opts.format
	if opts.json {
		format = formatJSON
	}
	if err := checkFormat(format, formatText, formatJSON, formatYAML); err != nil {
		return err
	}
	if opts.audio != "" && len(args) > 0 {
		return errors.New("pass either --audio or a transcript, not both")
	}

	cfg, err := loadConfig(func(c *config.AppConfig) {
		if opts.refresh != "" {
			c.Reconcile.Refresh = opts.refresh
		}
		if opts.noDedupe {
			c.Reconcile.Dedupe = false
		}
	})
	if err != nil {
		return err
	}
	if _, err := reconcile.ParseRefreshMode(cfg.Reconcile.Refresh); err != nil {
		return &config.ConfigurationError{Key: "reconcile.refresh", Reason: err.Error()}
	}

	var clip speech.Audio
	var transcript string
	if opts.audio != "" {
		clip, err = loadClip(opts.audio)
	} else {
		transcript, err = readTranscript(opts.transcript, args, cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	interactive := ui.IsInteractive()
	var spinner *ui.Spinner
	if interactive && format == formatText {
		spinner = ui.NewSpinner(cmd.ErrOrStderr(), " Working...")
	}

	var confirm pipeline.ConfirmFunc
	if opts.confirm && !opts.yes && !opts.dryRun {
		if !interactive {
			return ui.ErrNotInteractive
		}
		confirm = func(ctx context.Context, ops []operation.Operation) (bool, error) {
			if spinner != nil {
				spinner.Stop()
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderOperations(operation.TierNone, ops, nil))
			return ui.Confirm(ctx, ops, os.Stdin, cmd.ErrOrStderr())
		}
	}

	a, err := loadApp(ctx, cfg, config.Needs{Store: true, Engine: true, Transcription: opts.audio != ""}, confirm)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if spinner != nil {
		spinner.Start()
	}
	report, err := execute(ctx, a.Pipeline, clip, transcript, opts.dryRun)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), report, format); err != nil {
		return err
	}
	if opts.strict && report.Failed() > 0 {
		return &partialError{failed: report.Failed(), total: report.Attempted}
	}
	return nil
}

func execute(ctx context.Context, p *pipeline.Pipeline, clip speech.Audio, transcript string, dryRun bool) (*pipeline.Report, error) {
	switch {
	case transcript == "" && dryRun:
		return p.PlanAudio(ctx, clip)
	case transcript == "":
		return p.RunAudio(ctx, clip)
	case dryRun:
		return p.Plan(ctx, transcript)
	default:
		return p.RunTranscript(ctx, transcript)
	}
}

func loadClip(path string) (speech.Audio, error) {
	if path == "-" {
		return audio.FromReader(os.Stdin)
	}
	return audio.Load(afero.NewOsFs(), path)
}
