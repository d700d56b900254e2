/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/journal"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
	"github.com/josephgoksu/voiceboard/internal/ui"
)

var (
	historyLimit     int
	historyFailed    bool
	historySince     time.Duration
	historyFormat    string
	historyOlderThan time.Duration
)

// historyCmd lists recorded runs or shows one run
var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "Show recorded runs",
	Long: `List the runs recorded in the local journal, newest first. With a run
id (or a unique prefix of one) show that run's operations and results.

Examples:
  voiceboard history
  voiceboard history --failed --since 168h
  voiceboard history 3f2a9c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

// historyPruneCmd deletes old runs
var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		n, err := j.Prune(contextOf(cmd), historyOlderThan)
		if err != nil {
			return err
		}
		cmd.Printf("Deleted %d run(s) older than %s\n", n, historyOlderThan)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to list (0 = all)")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "only runs with failed operations")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only runs started within this duration (e.g. 24h)")
	historyCmd.Flags().StringVar(&historyFormat, "format", formatText, "output format: text or json")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "delete runs older than this duration")
}

func openJournal() (*journal.Journal, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	if !cfg.Journal.Enabled {
		return nil, &config.ConfigurationError{Key: "journal.enabled", Reason: "the journal is disabled"}
	}
	return journal.Open(cfg.Journal.Path)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := checkFormat(historyFormat, formatText, formatJSON); err != nil {
		return err
	}
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	ctx := contextOf(cmd)
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		run, err := j.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		entries, err := j.Results(ctx, run.ID)
		if err != nil {
			return err
		}
		if historyFormat == formatJSON {
			return writeJSON(out, struct {
				journal.Run
				Results []journal.Entry `json:"results"`
			}{run, entries})
		}
		renderRun(out, run, entries)
		return nil
	}

	opts := journal.ListRunsOptions{Limit: historyLimit, FailedOnly: historyFailed}
	if historySince > 0 {
		opts.Since = time.Now().Add(-historySince)
	}
	runs, err := j.ListRuns(ctx, opts)
	if err != nil {
		return err
	}
	if historyFormat == formatJSON {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, ui.StyleSubtle.Render("No runs recorded."))
		return nil
	}

	table := &ui.Table{Headers: []string{"Run", "Started", "Source", "Tier", "Result"}, MaxWidth: 40}
	for _, r := range runs {
		table.Rows = append(table.Rows, []string{
			ui.ShortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Source,
			r.Tier,
			runResult(r),
		})
	}
	fmt.Fprintln(out, table.Render())
	return nil
}

func runResult(r journal.Run) string {
	if r.Cancelled {
		return "cancelled"
	}
	return fmt.Sprintf("%d/%d ok", r.Succeeded, r.Attempted)
}

func renderRun(w io.Writer, r journal.Run, entries []journal.Entry) {
	fmt.Fprintln(w, ui.StyleHeader.Render("Run "+r.ID))
	fmt.Fprintf(w, "Started:  %s (%s)\n", r.StartedAt.Local().Format(time.RFC1123), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Source:   %s\n", r.Source)
	fmt.Fprintf(w, "Parse:    %s\n", r.Tier)
	if r.Refresh != "" {
		fmt.Fprintf(w, "Refresh:  %s\n", r.Refresh)
	}
	fmt.Fprintf(w, "Result:   %s\n\n", runResult(r))
	fmt.Fprintln(w, ui.StyleTranscript.Render(ui.WrapText(r.Transcript, 72)))

	for _, e := range entries {
		icon := ui.Icon(ui.IconOK, ui.StyleSuccess)
		detail := e.Note
		if e.Outcome != string(reconcile.OutcomeOK) {
			icon = ui.Icon(ui.IconFailed, ui.StyleError)
			detail = e.Reason
		}
		line := fmt.Sprintf("%s %d. %s %s", icon, e.Position+1, e.Kind, e.Target)
		if detail != "" {
			line += ui.StyleSubtle.Render("  " + detail)
		}
		fmt.Fprintln(w, line)
		for _, warning := range e.Warnings {
			fmt.Fprintln(w, "      "+ui.StyleWarning.Render(warning))
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.StyleWarning.Render(strings.Join(r.Warnings, "\n")))
	}
}
