package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
)

// Tool names.
const (
	ToolBoardSnapshot     = "board_snapshot"
	ToolExtractOperations = "extract_operations"
	ToolApplyTranscript   = "apply_transcript"
)

// Service is the part of the pipeline the tools drive.
type Service interface {
	Snapshot(ctx context.Context) (board.Snapshot, error)
	Plan(ctx context.Context, transcript string) (*pipeline.Report, error)
	RunTranscript(ctx context.Context, transcript string) (*pipeline.Report, error)
}

// BoardSnapshotParams are the board_snapshot arguments.
type BoardSnapshotParams struct {
	Status string `json:"status,omitempty"`
}

// ExtractOperationsParams are the extract_operations arguments.
type ExtractOperationsParams struct {
	Transcript string `json:"transcript"`
}

// ApplyTranscriptParams are the apply_transcript arguments.
type ApplyTranscriptParams struct {
	Transcript string `json:"transcript"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

// ToolError is a failure reported back to the client as tool output.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string { return fmt.Sprintf("%s: %s", e.Tool, e.Message) }

// HandleBoardSnapshot renders the current board.
func HandleBoardSnapshot(ctx context.Context, svc Service, params BoardSnapshotParams) (string, error) {
	var only board.Status
	if s := strings.TrimSpace(params.Status); s != "" {
		status, err := board.ParseStatus(s)
		if err != nil {
			return "", &ToolError{Tool: ToolBoardSnapshot, Message: err.Error()}
		}
		only = status
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		return "", storeError(ToolBoardSnapshot, err)
	}
	return FormatBoard(snap, only), nil
}

// HandleExtractOperations turns a transcript into validated operations without applying them.
func HandleExtractOperations(ctx context.Context, svc Service, params ExtractOperationsParams) (string, error) {
	transcript, err := requireTranscript(ToolExtractOperations, params.Transcript)
	if err != nil {
		return "", err
	}
	report, err := svc.Plan(ctx, transcript)
	if err != nil {
		return "", storeError(ToolExtractOperations, err)
	}
	return FormatReport(report), nil
}

// HandleApplyTranscript runs the full pipeline on a transcript.
func HandleApplyTranscript(ctx context.Context, svc Service, params ApplyTranscriptParams) (string, error) {
	transcript, err := requireTranscript(ToolApplyTranscript, params.Transcript)
	if err != nil {
		return "", err
	}

	run := svc.RunTranscript
	if params.DryRun {
		run = svc.Plan
	}
	report, err := run(ctx, transcript)
	if err != nil {
		return "", storeError(ToolApplyTranscript, err)
	}
	return FormatReport(report), nil
}

func requireTranscript(tool, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", &ToolError{Tool: tool, Message: "transcript is required"}
	}
	return transcript, nil
}

func storeError(tool string, err error) error {
	if errors.Is(err, board.ErrStoreUnavailable) {
		return &ToolError{Tool: tool, Message: "the task store is unavailable: " + err.Error()}
	}
	return &ToolError{Tool: tool, Message: err.Error()}
}
