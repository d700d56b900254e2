// Package pipeline runs a recording or transcript end to end: transcribe,
// read the board, extract, validate, confirm, apply and record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/logger"
	"github.com/josephgoksu/voiceboard/internal/operation"
	"github.com/josephgoksu/voiceboard/internal/policy"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
	"github.com/josephgoksu/voiceboard/internal/speech"
)

// ErrNoTranscriber is returned by RunAudio when no transcriber is configured.
var ErrNoTranscriber = errors.New("no transcriber configured")

// ConfirmFunc is asked before operations are applied. Returning false cancels the run.
type ConfirmFunc func(ctx context.Context, ops []operation.Operation) (bool, error)

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, r *Report) error
}

// Tracker receives finished runs for usage telemetry.
type Tracker interface {
	RunCompleted(ctx context.Context, r *Report)
}

// Config wires a Pipeline. Store, Extractor, Validator and Applier are required.
type Config struct {
	Store       board.Store
	Transcriber speech.Transcriber
	Extractor   *operation.Extractor
	Validator   *operation.Validator
	Applier     *reconcile.Applier
	// DirectoryPolicy defaults to board.FailSoftEmptyOnError.
	DirectoryPolicy board.FailSoft
	Recorder        Recorder
	Tracker         Tracker
	Confirm         ConfirmFunc
	Logger          *slog.Logger
	Now             func() time.Time
}

// Pipeline processes one utterance at a time.
type Pipeline struct {
	transcriber speech.Transcriber
	snapshots   *board.SnapshotReader
	directory   *board.DirectoryReader
	extractor   *operation.Extractor
	validator   *operation.Validator
	applier     *reconcile.Applier
	recorder    Recorder
	tracker     Tracker
	confirm     ConfirmFunc
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case cfg.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case cfg.Validator == nil:
		return nil, errors.New("pipeline: validator is required")
	case cfg.Applier == nil:
		return nil, errors.New("pipeline: applier is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	dir := board.NewDirectoryReader(cfg.Store, log)
	if cfg.DirectoryPolicy != "" {
		dir = dir.WithPolicy(cfg.DirectoryPolicy)
	}
	return &Pipeline{
		transcriber: cfg.Transcriber,
		snapshots:   board.NewSnapshotReader(cfg.Store, log),
		directory:   dir,
		extractor:   cfg.Extractor,
		validator:   cfg.Validator,
		applier:     cfg.Applier,
		recorder:    cfg.Recorder,
		tracker:     cfg.Tracker,
		confirm:     cfg.Confirm,
		logger:      log,
		now:         now,
	}, nil
}

// RunAudio transcribes audio and runs the transcript. A transcription failure
// ends the run before anything else is called.
func (p *Pipeline) RunAudio(ctx context.Context, audio speech.Audio) (*Report, error) {
	text, err := p.transcribe(ctx, audio)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, "audio:"+audio.Filename, text, false)
}

// PlanAudio transcribes audio and plans the transcript without applying it.
func (p *Pipeline) PlanAudio(ctx context.Context, audio speech.Audio) (*Report, error) {
	text, err := p.transcribe(ctx, audio)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, "audio:"+audio.Filename, text, true)
}

func (p *Pipeline) transcribe(ctx context.Context, audio speech.Audio) (string, error) {
	if p.transcriber == nil {
		return "", ErrNoTranscriber
	}
	p.logger.Info("transcribing recording", "file", audio.Filename, "bytes", len(audio.Data))
	text, err := p.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", err
	}
	p.logger.Info("transcription complete", "chars", len(text))
	return text, nil
}

// RunTranscript interprets and applies an already transcribed utterance.
func (p *Pipeline) RunTranscript(ctx context.Context, transcript string) (*Report, error) {
	return p.run(ctx, "transcript", transcript, false)
}

// Plan extracts and validates without touching the board.
func (p *Pipeline) Plan(ctx context.Context, transcript string) (*Report, error) {
	return p.run(ctx, "transcript", transcript, true)
}

// Snapshot reads the current board.
func (p *Pipeline) Snapshot(ctx context.Context) (board.Snapshot, error) {
	return p.snapshots.Fetch(ctx)
}

// Directory reads the user directory under the configured fail-soft policy.
func (p *Pipeline) Directory(ctx context.Context) (board.Directory, error) {
	return p.directory.Fetch(ctx)
}

func (p *Pipeline) run(ctx context.Context, source, transcript string, dryRun bool) (*Report, error) {
	start := p.now()
	report := &Report{
		RunID:      uuid.New().String(),
		Source:     source,
		Transcript: transcript,
		Refresh:    p.applier.Options().Refresh,
		DryRun:     dryRun,
		StartedAt:  start,
	}
	ctx = policy.WithRunID(ctx, report.RunID)
	logger.SetLastInput(transcript)

	snap, err := p.snapshots.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := p.directory.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("read user directory: %w", err)
	}

	extraction, err := p.extractor.Extract(ctx, transcript, snap, dir, start)
	if err != nil {
		return nil, fmt.Errorf("extract operations: %w", err)
	}
	report.Tier = extraction.Tier
	report.Warnings = append(report.Warnings, extraction.Warnings...)

	report.Operations, report.Rejections = p.validator.Validate(extraction.Candidates)
	for _, rej := range report.Rejections {
		report.Warnings = append(report.Warnings, fmt.Sprintf("dropped candidate %d: %s", rej.Index+1, rej.Reason))
	}
	p.logger.Info("operations extracted",
		"tier", extraction.Tier.String(),
		"candidates", len(extraction.Candidates),
		"valid", len(report.Operations),
		"rejected", len(report.Rejections))

	if dryRun {
		report.Duration = p.now().Sub(start)
		return report, nil
	}

	if p.confirm != nil && len(report.Operations) > 0 {
		proceed, err := p.confirm(ctx, report.Operations)
		if err != nil {
			return nil, fmt.Errorf("confirm operations: %w", err)
		}
		if !proceed {
			report.Cancelled = true
			return p.finish(ctx, report, start), nil
		}
	}

	report.Results = p.applier.Apply(ctx, report.Operations, dir)
	summary := reconcile.Summarize(report.Results)
	report.Attempted, report.Succeeded = summary.Attempted, summary.Succeeded
	for _, res := range report.Results {
		report.Warnings = append(report.Warnings, res.Warnings...)
	}
	return p.finish(ctx, report, start), nil
}

func (p *Pipeline) finish(ctx context.Context, report *Report, start time.Time) *Report {
	report.Duration = p.now().Sub(start)
	p.logger.Info("run finished", "run", report.RunID, "summary", report.Summary(), "duration", report.Duration)

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, report); err != nil {
			p.logger.Warn("failed to record run", "run", report.RunID, "error", err)
		}
	}
	if p.tracker != nil {
		p.tracker.RunCompleted(ctx, report)
	}
	return report
}
