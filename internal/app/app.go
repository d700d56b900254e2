// Package app assembles the pipeline and its collaborators from configuration.
// The CLI and the MCP server are thin adapters over the App it returns.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/config"
	"github.com/josephgoksu/voiceboard/internal/journal"
	"github.com/josephgoksu/voiceboard/internal/llm"
	"github.com/josephgoksu/voiceboard/internal/notion"
	"github.com/josephgoksu/voiceboard/internal/operation"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
	"github.com/josephgoksu/voiceboard/internal/policy"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
	"github.com/josephgoksu/voiceboard/internal/speech"
	"github.com/josephgoksu/voiceboard/internal/telemetry"
)

var errEngineNotConfigured = errors.New("interpretation engine not configured for this command")

// Options tunes New. Zero values build everything from the configuration.
type Options struct {
	Needs   config.Needs
	Confirm pipeline.ConfirmFunc
	Logger  *slog.Logger
	Fs      afero.Fs
	Version string

	// Collaborators supplied here are used instead of the configured ones.
	Store       board.Store
	Engine      llm.Engine
	Transcriber speech.Transcriber
	Telemetry   telemetry.Client
}

// App holds the wired components of one command invocation.
type App struct {
	Config    *config.AppConfig
	Pipeline  *pipeline.Pipeline
	Journal   *journal.Journal // nil when the journal is disabled or failed to open
	Policy    *policy.Engine
	Telemetry telemetry.Client

	logger *slog.Logger
}

// New validates cfg for opts.Needs and wires the pipeline.
func New(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	if err := cfg.Validate(opts.Needs); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	store := opts.Store
	if store == nil {
		client, err := notion.New(cfg.NotionConfig(logger))
		if err != nil {
			return nil, fmt.Errorf("create task store: %w", err)
		}
		store = client
	}

	engine := opts.Engine
	switch {
	case engine == nil && !opts.Needs.Engine:
		engine = llm.EngineFunc(func(context.Context, string, string) (string, error) {
			return "", errEngineNotConfigured
		})
	case engine == nil:
		chat, err := llm.NewEngine(ctx, cfg.LLMConfig())
		if err != nil {
			return nil, fmt.Errorf("create interpretation engine: %w", err)
		}
		engine = chat
	}

	transcriber := opts.Transcriber
	if transcriber == nil && opts.Needs.Transcription {
		tr, err := speech.New(ctx, cfg.SpeechConfig())
		if err != nil {
			return nil, fmt.Errorf("create transcriber: %w", err)
		}
		transcriber = tr
	}

	instruction, err := operation.LoadSystemInstruction(fs, cfg.Prompts.Dir, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, logger: logger}

	var decisions policy.DecisionRecorder
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Warn("journal unavailable, runs will not be recorded", "path", cfg.Journal.Path, "error", err)
		} else {
			a.Journal = j
			decisions = j
		}
	}

	a.Policy, err = policy.NewEngine(ctx, policy.EngineConfig{
		PoliciesDir:   cfg.Policy.Dir,
		PolicyPackage: cfg.Policy.Package,
		Fs:            fs,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if n := a.Policy.PolicyCount(); n > 0 {
		logger.Debug("policies loaded", "count", n, "dir", cfg.Policy.Dir)
	}
	gate := policy.NewGate(a.Policy, decisions, logger)

	a.Telemetry = opts.Telemetry
	if a.Telemetry == nil {
		a.Telemetry = NewTelemetryClient(cfg, fs, opts.Version, logger)
	}

	pcfg := pipeline.Config{
		Store:           store,
		Transcriber:     transcriber,
		Extractor:       operation.NewExtractor(engine, logger, operation.WithSystemInstruction(instruction)),
		Validator:       operation.NewValidator(logger),
		Applier:         reconcile.NewApplier(store, cfg.ApplierOptions(gate), logger),
		DirectoryPolicy: cfg.DirectoryPolicy(),
		Tracker:         telemetry.NewRunTracker(a.Telemetry),
		Confirm:         opts.Confirm,
		Logger:          logger,
	}
	if a.Journal != nil {
		pcfg.Recorder = a.Journal
	}
	a.Pipeline, err = pipeline.New(pcfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Close flushes telemetry and closes the journal.
func (a *App) Close() error {
	var errs []error
	if a.Telemetry != nil {
		errs = append(errs, a.Telemetry.Close())
	}
	if a.Journal != nil {
		errs = append(errs, a.Journal.Close())
	}
	return errors.Join(errs...)
}

// NewTelemetryClient honours the user's recorded choice first and falls back
// to telemetry.enabled. Failures disable telemetry silently.
func NewTelemetryClient(cfg *config.AppConfig, fs afero.Fs, version string, logger *slog.Logger) telemetry.Client {
	if cfg.Telemetry.APIKey == "" {
		return telemetry.NewNoopClient()
	}
	state, err := telemetry.NewConfigStore(fs, cfg.DataDir).Load()
	if err != nil {
		logger.Debug("telemetry state unreadable", "error", err)
		return telemetry.NewNoopClient()
	}
	if state.NeedsConsent() {
		state.Enabled = cfg.Telemetry.Enabled
	}
	if !state.IsEnabled() {
		return telemetry.NewNoopClient()
	}
	client, err := telemetry.NewPostHogClient(telemetry.ClientConfig{
		APIKey:   cfg.Telemetry.APIKey,
		Version:  version,
		Config:   state,
		Endpoint: cfg.Telemetry.Endpoint,
		Logger:   logger,
	})
	if err != nil {
		logger.Debug("telemetry disabled", "error", err)
		return telemetry.NewNoopClient()
	}
	return client
}
