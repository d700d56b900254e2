/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/logger"
	"github.com/josephgoksu/voiceboard/internal/telemetry"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables debug logging and technical error output.
	verbose bool
	// version is the application version, set at build time.
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voiceboard",
	Short: "Turn spoken requests into kanban board changes",
	Long: `voiceboard listens to what you said about your work and keeps a Notion
kanban board in step with it.

A recording (or a transcript) is interpreted into operations such as
"create", "update", "rename" or "delete", each operation is checked, and
the board is updated. Every run is recorded in a local journal.

Examples:
  voiceboard run --audio standup.m4a
  voiceboard run --transcript "mark the vendor call as done" --confirm
  voiceboard extract --transcript "add write report due friday" --format json
  voiceboard board
  voiceboard watch ~/VoiceMemos`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format := viper.GetString("log.format")
		if format == "" {
			format = config.DefaultLogFormat
		}
		if _, err := logger.Setup(os.Stderr, logger.Options{Verbose: viper.GetBool("verbose"), Format: format}); err != nil {
			return err
		}
		logger.SetVersion(version)
		logger.SetCommand(cmd.CommandPath())
		logger.SetDataDir(config.DataDir())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logger.HandlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start := time.Now()
	cmd, err := rootCmd.ExecuteContextC(ctx)
	stop()
	trackCommand(cmd, start, err)
	if err != nil {
		PrintError(err)
		os.Exit(ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.voiceboard.yaml or $HOME/.voiceboard.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// trackCommand sends the command_executed or command_error event when the
// user has opted in. Command arguments are never sent.
func trackCommand(cmd *cobra.Command, start time.Time, err error) {
	if cmd == nil || cmd == rootCmd || strings.HasPrefix(cmd.CommandPath(), "voiceboard telemetry") {
		return
	}
	cfg, cerr := config.Load()
	if cerr != nil || cfg.Telemetry.APIKey == "" {
		return
	}
	client := newTelemetryClient(cfg)
	defer func() { _ = client.Close() }()

	errorType := ""
	if err != nil {
		errorType = errorKind(err)
	}
	telemetry.TrackCommand(client, cmd.Name(), time.Since(start).Milliseconds(), errorType)
}
