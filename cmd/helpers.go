/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/josephgoksu/voiceboard/internal/app"
	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
	"github.com/josephgoksu/voiceboard/internal/telemetry"
	"github.com/josephgoksu/voiceboard/internal/ui"
)

// Output formats.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

// loadConfig resolves the configuration. tune adjusts it from command flags
// before validation.
func loadConfig(tune func(*config.AppConfig)) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if tune != nil {
		tune(cfg)
	}
	return cfg, nil
}

// loadApp wires the application for a command.
func loadApp(ctx context.Context, cfg *config.AppConfig, needs config.Needs, confirm pipeline.ConfirmFunc) (*app.App, error) {
	return app.New(ctx, cfg, app.Options{
		Needs:   needs,
		Confirm: confirm,
		Logger:  slog.Default(),
		Version: version,
	})
}

func newTelemetryClient(cfg *config.AppConfig) telemetry.Client {
	return app.NewTelemetryClient(cfg, afero.NewOsFs(), version, slog.Default())
}

// checkFormat rejects output formats a command does not support.
func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (use %s)", format, strings.Join(allowed, ", "))
}

// writeReport prints a run report in the requested format.
func writeReport(w io.Writer, r *pipeline.Report, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, r)
	case formatYAML:
		return writeYAML(w, r)
	default:
		_, err := fmt.Fprintln(w, ui.RenderReport(r))
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// readTranscript takes the transcript from the flag, else from the joined
// arguments. "-" reads it from in.
func readTranscript(flagValue string, args []string, in io.Reader) (string, error) {
	text := flagValue
	if text == "" {
		text = strings.Join(args, " ")
	}
	if text == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read transcript from stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no transcript given (pass --transcript TEXT, an argument, or - for stdin)")
	}
	return text, nil
}

// contextOf returns the command context, or Background outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
