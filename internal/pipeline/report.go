package pipeline

import (
	"fmt"
	"time"

	"github.com/josephgoksu/voiceboard/internal/operation"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
)

// Report describes one run from transcript to applied results.
type Report struct {
	RunID      string                `json:"run_id" yaml:"run_id"`
	Source     string                `json:"source" yaml:"source"`
	Transcript string                `json:"transcript" yaml:"transcript"`
	Tier       operation.Tier        `json:"tier" yaml:"tier"`
	Operations []operation.Operation `json:"operations" yaml:"operations"`
	Rejections []operation.Rejection `json:"rejections,omitempty" yaml:"rejections,omitempty"`
	Results    []reconcile.Result    `json:"results,omitempty" yaml:"results,omitempty"`
	Warnings   []string              `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Attempted  int                   `json:"attempted" yaml:"attempted"`
	Succeeded  int                   `json:"succeeded" yaml:"succeeded"`
	Refresh    reconcile.RefreshMode `json:"refresh" yaml:"refresh"`
	DryRun     bool                  `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Cancelled  bool                  `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	StartedAt  time.Time             `json:"started_at" yaml:"started_at"`
	Duration   time.Duration         `json:"duration" yaml:"duration"`
}

// Failed returns the number of operations that were attempted and failed.
func (r *Report) Failed() int {
	return r.Attempted - r.Succeeded
}

// Summary is the one-line outcome of the run.
func (r *Report) Summary() string {
	switch {
	case r.DryRun:
		return fmt.Sprintf("%d operation(s) planned, %d rejected (dry run)", len(r.Operations), len(r.Rejections))
	case r.Cancelled:
		return fmt.Sprintf("cancelled: %d operation(s) not applied", len(r.Operations))
	default:
		return fmt.Sprintf("%d of %d operations succeeded", r.Succeeded, r.Attempted)
	}
}
