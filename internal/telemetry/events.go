package telemetry

import (
	"context"
	"strings"

	"github.com/josephgoksu/voiceboard/internal/pipeline"
)

// Event names.
const (
	EventRunCompleted    = "run_completed"
	EventCommandExecuted = "command_executed"
	EventCommandError    = "command_error"
)

// RunTracker reports finished pipeline runs as run_completed events.
type RunTracker struct {
	client Client
}

// NewRunTracker wraps client. A nil client drops events.
func NewRunTracker(client Client) *RunTracker {
	if client == nil {
		client = NewNoopClient()
	}
	return &RunTracker{client: client}
}

// RunCompleted implements pipeline.Tracker. Only counts and modes are sent.
func (t *RunTracker) RunCompleted(_ context.Context, r *pipeline.Report) {
	t.client.Track(EventRunCompleted, RunProperties(r))
}

// RunProperties returns the anonymous properties of a run.
func RunProperties(r *pipeline.Report) Properties {
	source := r.Source
	if i := strings.IndexByte(source, ':'); i >= 0 {
		source = source[:i]
	}
	kinds := make(map[string]int)
	for _, op := range r.Operations {
		kinds[string(op.Kind)]++
	}
	return Properties{
		"source":      source,
		"tier":        r.Tier.String(),
		"operations":  len(r.Operations),
		"rejected":    len(r.Rejections),
		"attempted":   r.Attempted,
		"succeeded":   r.Succeeded,
		"cancelled":   r.Cancelled,
		"refresh":     string(r.Refresh),
		"kinds":       kinds,
		"duration_ms": r.Duration.Milliseconds(),
	}
}

// TrackCommand reports a CLI command outcome. errorType is a sentinel name,
// never an error message.
func TrackCommand(client Client, command string, durationMs int64, errorType string) {
	if client == nil {
		return
	}
	if errorType != "" {
		client.Track(EventCommandError, Properties{"command": command, "duration_ms": durationMs, "error_type": errorType})
		return
	}
	client.Track(EventCommandExecuted, Properties{"command": command, "duration_ms": durationMs, "success": true})
}
