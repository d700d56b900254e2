// Package reconcile applies validated operations to the task store, resolving
// task names against fresh board state.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/voiceboard/internal/board"
)

// RefreshMode controls how often the board is re-read while applying a batch.
type RefreshMode string

const (
	// RefreshPerOperation re-reads the board before every operation.
	RefreshPerOperation RefreshMode = "operation"
	// RefreshPerBatch reads the board once and folds the batch's own mutations
	// into that view. External edits made during the batch are not seen.
	RefreshPerBatch RefreshMode = "batch"
)

// ParseRefreshMode accepts "operation" (or empty) and "batch".
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch RefreshMode(s) {
	case "", RefreshPerOperation:
		return RefreshPerOperation, nil
	case RefreshPerBatch:
		return RefreshPerBatch, nil
	}
	return "", fmt.Errorf("unknown refresh mode %q (want operation or batch)", s)
}

// Resolver maps task names to tasks using a snapshot chosen by the refresh mode.
type Resolver struct {
	reader *board.SnapshotReader
	mode   RefreshMode
	cached *board.Snapshot
	logger *slog.Logger
}

// NewResolver creates a resolver. An empty mode means RefreshPerOperation.
func NewResolver(reader *board.SnapshotReader, mode RefreshMode, logger *slog.Logger) *Resolver {
	if mode == "" {
		mode = RefreshPerOperation
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{reader: reader, mode: mode, logger: logger}
}

// Mode returns the refresh mode.
func (r *Resolver) Mode() RefreshMode { return r.mode }

// Snapshot returns the board view for the next operation.
func (r *Resolver) Snapshot(ctx context.Context) (board.Snapshot, error) {
	if r.mode == RefreshPerBatch && r.cached != nil {
		return *r.cached, nil
	}
	snap, err := r.reader.Fetch(ctx)
	if err != nil {
		return board.Snapshot{}, err
	}
	if r.mode == RefreshPerBatch {
		r.cached = &snap
	}
	return snap, nil
}

// Track records a created or updated task in the batch view.
func (r *Resolver) Track(t board.Task) {
	if r.cached != nil {
		next := r.cached.With(t)
		r.cached = &next
	}
}

// Forget removes an archived task from the batch view.
func (r *Resolver) Forget(id string) {
	if r.cached != nil {
		next := r.cached.Without(id)
		r.cached = &next
	}
}

// Reset drops the batch view so the next Snapshot call re-reads the board.
func (r *Resolver) Reset() {
	r.cached = nil
}

// Find resolves name in snap. When several tasks share the name the first one is
// used and a warning is returned.
func (r *Resolver) Find(snap board.Snapshot, name string) (board.Task, []string, error) {
	task, ambiguous, ok := snap.Find(name)
	if !ok {
		return board.Task{}, nil, fmt.Errorf("%w: %q", board.ErrNotFound, name)
	}
	if ambiguous {
		r.logger.Warn("task name is ambiguous, using first match", "task", name, "id", task.ID)
		return task, []string{fmt.Sprintf("%v: %q matches several tasks, used the first", board.ErrAmbiguous, name)}, nil
	}
	return task, nil, nil
}
