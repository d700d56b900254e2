/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/journal"
	"github.com/josephgoksu/voiceboard/internal/logger"
	"github.com/josephgoksu/voiceboard/internal/policy"
	"github.com/josephgoksu/voiceboard/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the VoiceBoard setup without calling any service",
	Long: `Validate the configuration and local state.

Checks:
  • Task store, interpretation engine and transcription settings
  • Policy files compile
  • The run journal opens
  • Crash reports from earlier runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		checks := runDoctorChecks(cfg, afero.NewOsFs())
		failed := renderChecks(cmd.OutOrStdout(), checks)
		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// DoctorCheck represents a single diagnostic check
type DoctorCheck struct {
	Name    string
	Status  string // "ok", "warn", "fail"
	Message string
	Hint    string
}

func runDoctorChecks(cfg *config.AppConfig, fs afero.Fs) []DoctorCheck {
	checks := []DoctorCheck{
		configCheck("Task store", cfg, config.Needs{Store: true}),
		configCheck("Interpretation engine ("+cfg.Engine.Provider+")", cfg, config.Needs{Engine: true}),
		configCheck("Transcription ("+cfg.Transcription.Provider+")", cfg, config.Needs{Transcription: true}),
		policyCheck(fs, cfg.Policy.Dir),
		journalCheck(cfg),
	}

	logs, err := logger.ListCrashLogs()
	switch {
	case err != nil:
		checks = append(checks, DoctorCheck{Name: "Crash reports", Status: "warn", Message: err.Error()})
	case len(logs) > 0:
		checks = append(checks, DoctorCheck{
			Name:    "Crash reports",
			Status:  "warn",
			Message: fmt.Sprintf("%d saved, latest %s", len(logs), logs[len(logs)-1]),
			Hint:    "attach the latest report when filing an issue",
		})
	default:
		checks = append(checks, DoctorCheck{Name: "Crash reports", Status: "ok", Message: "none"})
	}
	return checks
}

func configCheck(name string, cfg *config.AppConfig, needs config.Needs) DoctorCheck {
	err := cfg.Validate(needs)
	if err == nil {
		return DoctorCheck{Name: name, Status: "ok", Message: "configured"}
	}
	check := DoctorCheck{Name: name, Status: "fail", Message: err.Error()}
	var cerr *config.ConfigurationError
	if errors.As(err, &cerr) {
		check.Message = cerr.Key + " " + cerr.Reason
		check.Hint = "see: voiceboard --help"
	}
	return check
}

func policyCheck(fs afero.Fs, dir string) DoctorCheck {
	checks, err := policy.NewLoader(fs, dir).CheckAll()
	if err != nil {
		return DoctorCheck{Name: "Policies", Status: "fail", Message: err.Error()}
	}
	if len(checks) == 0 {
		return DoctorCheck{Name: "Policies", Status: "ok", Message: "none (every operation is allowed)", Hint: "voiceboard policy init"}
	}
	for _, c := range checks {
		if !c.OK() {
			return DoctorCheck{Name: "Policies", Status: "fail", Message: fmt.Sprintf("%s: %v", relativeTo(dir, c.Path), c.Err), Hint: "voiceboard policy check"}
		}
	}
	return DoctorCheck{Name: "Policies", Status: "ok", Message: fmt.Sprintf("%d file(s) compile", len(checks))}
}

func journalCheck(cfg *config.AppConfig) DoctorCheck {
	if !cfg.Journal.Enabled {
		return DoctorCheck{Name: "Journal", Status: "warn", Message: "disabled, runs are not recorded"}
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return DoctorCheck{Name: "Journal", Status: "fail", Message: err.Error()}
	}
	defer func() { _ = j.Close() }()
	return DoctorCheck{Name: "Journal", Status: "ok", Message: j.Path()}
}

// renderChecks prints the checks and returns how many failed.
func renderChecks(w io.Writer, checks []DoctorCheck) int {
	fmt.Fprintln(w, ui.StyleHeader.Render("VoiceBoard Doctor"))
	failed := 0
	for _, c := range checks {
		var icon string
		switch c.Status {
		case "ok":
			icon = ui.Icon(ui.IconOK, ui.StyleSuccess)
		case "warn":
			icon = ui.Icon(ui.IconWarning, ui.StyleWarning)
		default:
			icon = ui.Icon(ui.IconFailed, ui.StyleError)
			failed++
		}
		fmt.Fprintf(w, "%s %s: %s\n", icon, c.Name, c.Message)
		if c.Hint != "" {
			fmt.Fprintln(w, "    "+ui.StyleSubtle.Render(c.Hint))
		}
	}
	return failed
}
