/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/telemetry"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage telemetry settings",
	Long: `View and manage VoiceBoard's anonymous telemetry settings.

When enabled, VoiceBoard sends counts and durations of runs and commands.
Transcripts, task names and people are never sent.`,
}

var telemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current telemetry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := telemetry.NewConfigStore(afero.NewOsFs(), config.DataDir())
		state, err := store.Load()
		if err != nil {
			return fmt.Errorf("failed to read telemetry status: %w", err)
		}

		switch {
		case state.NeedsConsent():
			cmd.Println("📊 Telemetry: not configured (telemetry.enabled decides)")
		case state.IsEnabled():
			cmd.Println("📊 Telemetry: enabled")
			cmd.Printf("   Anonymous ID: %s\n", state.AnonymousID)
			cmd.Println()
			cmd.Println("   To disable: voiceboard telemetry disable")
		default:
			cmd.Println("📊 Telemetry: disabled")
			cmd.Println()
			cmd.Println("   To enable: voiceboard telemetry enable")
		}
		return nil
	},
}

var telemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setTelemetry(afero.NewOsFs(), config.DataDir(), true); err != nil {
			return fmt.Errorf("failed to enable telemetry: %w", err)
		}
		cmd.Println("✅ Telemetry enabled. Thank you for helping improve VoiceBoard!")
		return nil
	},
}

var telemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setTelemetry(afero.NewOsFs(), config.DataDir(), false); err != nil {
			return fmt.Errorf("failed to disable telemetry: %w", err)
		}
		cmd.Println("✅ Telemetry disabled.")
		return nil
	},
}

func setTelemetry(fs afero.Fs, dir string, enabled bool) error {
	store := telemetry.NewConfigStore(fs, dir)
	state, err := store.Load()
	if err != nil {
		return err
	}
	if enabled {
		state.Enable()
	} else {
		state.Disable()
	}
	return store.Save(state)
}

func init() {
	rootCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetryStatusCmd, telemetryEnableCmd, telemetryDisableCmd)
}
