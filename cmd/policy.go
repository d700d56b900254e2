/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/journal"
	"github.com/josephgoksu/voiceboard/internal/policy"
	"github.com/josephgoksu/voiceboard/internal/ui"
)

// defaultPolicyTemplate is written by "policy init". %s is the policy package.
const defaultPolicyTemplate = `# VoiceBoard default policy
# Rules run against every operation before it reaches the board.
# input.operation: kind, task, old_name, new_name, status, deadline, assignee,
#                  comment, position, reference_task, exists, current_status
# input.board:     task_count, by_status
# Learn more: https://www.openpolicyagent.org/docs/latest/policy-language/

package %s

import rego.v1

# Tasks that are being worked on cannot be deleted by voice.
deny contains msg if {
    input.operation.kind == "delete"
    input.operation.current_status == "InProgress"
    msg := sprintf("'%%s' is in progress and cannot be deleted", [input.operation.task])
}

# Reopening finished work is allowed but reported.
warn contains msg if {
    input.operation.kind == "update"
    input.operation.current_status == "Done"
    input.operation.status != ""
    input.operation.status != "Done"
    msg := sprintf("reopening '%%s'", [input.operation.task])
}
`

var (
	policyDecisionsRun    string
	policyDecisionsDenied bool
	policyDecisionsLimit  int
)

// policyCmd represents the policy parent command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage the Rego policies that gate board changes",
	Long: `Manage Open Policy Agent (OPA) policies that decide which operations may
reach the board.

Policies are written in Rego and stored in the policy.dir directory
(default: <dataDir>/policies). Each operation is evaluated before it is
applied; a deny rule stops it and a warn rule is reported with the result.

Examples:
  voiceboard policy init
  voiceboard policy list
  voiceboard policy check
  voiceboard policy decisions --denied`,
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default policy file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		return initPolicy(afero.NewOsFs(), cfg.Policy.Dir, cfg.Policy.Package, cmd.OutOrStdout())
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policy files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		files, err := policy.NewLoader(afero.NewOsFs(), cfg.Policy.Dir).ListFiles()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(files) == 0 {
			fmt.Fprintf(out, "No policies in %s. Create one with: voiceboard policy init\n", cfg.Policy.Dir)
			return nil
		}
		fmt.Fprintf(out, "Policies in %s (package %s):\n", cfg.Policy.Dir, cfg.Policy.Package)
		for _, f := range files {
			fmt.Fprintf(out, "  • %s\n", relativeTo(cfg.Policy.Dir, f))
		}
		return nil
	},
}

var policyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compile every policy file and report errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		return checkPolicies(afero.NewOsFs(), cfg.Policy.Dir, cmd.OutOrStdout())
	},
}

var policyDecisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show recorded policy decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		opts := journal.ListDecisionsOptions{RunID: policyDecisionsRun, Limit: policyDecisionsLimit}
		if policyDecisionsDenied {
			opts.Result = policy.ResultDeny
		}
		decisions, err := j.ListDecisions(contextOf(cmd), opts)
		if err != nil {
			return err
		}
		renderDecisions(cmd.OutOrStdout(), decisions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyInitCmd, policyListCmd, policyCheckCmd, policyDecisionsCmd)

	policyDecisionsCmd.Flags().StringVar(&policyDecisionsRun, "run", "", "only decisions made during this run")
	policyDecisionsCmd.Flags().BoolVar(&policyDecisionsDenied, "denied", false, "only denials")
	policyDecisionsCmd.Flags().IntVarP(&policyDecisionsLimit, "limit", "n", 50, "maximum number of decisions (0 = all)")
}

func initPolicy(fs afero.Fs, dir, pkg string, out io.Writer) error {
	path := filepath.Join(dir, "default.rego")
	if exists, err := afero.Exists(fs, path); err != nil {
		return err
	} else if exists {
		fmt.Fprintf(out, "Policy file already exists: %s\n", path)
		return nil
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create policies directory: %w", err)
	}
	content := fmt.Sprintf(defaultPolicyTemplate, pkg)
	if err := policy.ValidatePolicy(content); err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write policy file: %w", err)
	}
	fmt.Fprintf(out, "%s Created %s\n", ui.Icon(ui.IconOK, ui.StyleSuccess), path)
	return nil
}

func checkPolicies(fs afero.Fs, dir string, out io.Writer) error {
	checks, err := policy.NewLoader(fs, dir).CheckAll()
	if err != nil {
		return err
	}
	if len(checks) == 0 {
		fmt.Fprintf(out, "No policies in %s.\n", dir)
		return nil
	}
	failed := 0
	for _, c := range checks {
		if c.OK() {
			fmt.Fprintf(out, "%s %s\n", ui.Icon(ui.IconOK, ui.StyleSuccess), relativeTo(dir, c.Path))
			continue
		}
		failed++
		fmt.Fprintf(out, "%s %s\n    %v\n", ui.Icon(ui.IconFailed, ui.StyleError), relativeTo(dir, c.Path), c.Err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d policy file(s) failed to compile", failed, len(checks))
	}
	return nil
}

func renderDecisions(w io.Writer, decisions []*policy.Decision) {
	if len(decisions) == 0 {
		fmt.Fprintln(w, ui.StyleSubtle.Render("No policy decisions recorded."))
		return
	}
	table := &ui.Table{Headers: []string{"When", "Run", "Operation", "Result", "Detail"}, MaxWidth: 48}
	for _, d := range decisions {
		target := ""
		if d.Input != nil {
			target = strings.TrimSpace(d.Input.Operation.Kind + " " + d.Input.Operation.Task)
		}
		detail := strings.Join(d.Violations, "; ")
		if detail == "" {
			detail = strings.Join(d.Warnings, "; ")
		}
		table.Rows = append(table.Rows, []string{
			d.EvaluatedAt.Local().Format("2006-01-02 15:04"),
			ui.ShortID(d.RunID),
			target,
			d.Result,
			dashIfEmpty(detail),
		})
	}
	fmt.Fprintln(w, table.Render())
}

func relativeTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
