package board

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// maxPages guards against a store that never stops returning cursors.
const maxPages = 1000

// SnapshotReader reads the whole board, following pagination cursors.
type SnapshotReader struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSnapshotReader creates a reader over store.
func NewSnapshotReader(store Store, logger *slog.Logger) *SnapshotReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotReader{store: store, logger: logger, now: time.Now}
}

// Fetch reads every live task. An empty board yields an empty snapshot, not an
// error. Any failed page read fails the whole fetch with ErrStoreUnavailable.
func (r *SnapshotReader) Fetch(ctx context.Context) (Snapshot, error) {
	var tasks []Task
	cursor := ""
	for page := 0; ; page++ {
		if page >= maxPages {
			return Snapshot{}, fmt.Errorf("%w: pagination did not terminate after %d pages", ErrStoreUnavailable, maxPages)
		}
		p, err := r.store.QueryTasks(ctx, cursor)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: query tasks: %w", ErrStoreUnavailable, err)
		}
		tasks = append(tasks, p.Tasks...)
		if p.NextCursor == "" || p.NextCursor == cursor {
			break
		}
		cursor = p.NextCursor
	}

	r.logger.Debug("board snapshot fetched", "tasks", len(tasks))
	return NewSnapshot(tasks, r.now()), nil
}

// DirectoryReader reads the assignable users.
type DirectoryReader struct {
	store  Store
	policy FailSoft
	logger *slog.Logger
}

// NewDirectoryReader creates a reader with the FailSoftEmptyOnError policy.
func NewDirectoryReader(store Store, logger *slog.Logger) *DirectoryReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryReader{store: store, policy: FailSoftEmptyOnError, logger: logger}
}

// WithPolicy returns a copy of the reader using policy.
func (r *DirectoryReader) WithPolicy(policy FailSoft) *DirectoryReader {
	cp := *r
	cp.policy = policy
	return &cp
}

// Policy returns the reader's failure policy.
func (r *DirectoryReader) Policy() FailSoft { return r.policy }

// Fetch reads the directory. Under FailSoftEmptyOnError a failed read returns an
// empty directory so that assignee resolution degrades to "not found".
func (r *DirectoryReader) Fetch(ctx context.Context) (Directory, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		if r.policy == FailSoftPropagate {
			return Directory{}, fmt.Errorf("list users: %w", err)
		}
		r.logger.Warn("user directory unavailable, continuing without assignees",
			"policy", string(r.policy), "error", err)
		return NewDirectory(nil), nil
	}
	return NewDirectory(users), nil
}
