package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/operation"
)

// RepositionPolicy decides what a reposition does on a store without ordering.
type RepositionPolicy string

const (
	// RepositionNoopWhenUnsupported succeeds with a warning.
	RepositionNoopWhenUnsupported RepositionPolicy = "noop-when-unsupported"
	// RepositionFailWhenUnsupported fails with ErrRepositionUnsupported.
	RepositionFailWhenUnsupported RepositionPolicy = "fail-when-unsupported"
)

// AssigneePolicy decides what happens when an assignee name is not in the directory.
type AssigneePolicy string

const (
	// AssigneeSkipUnknown leaves the assignee untouched and records a warning.
	AssigneeSkipUnknown AssigneePolicy = "skip-unknown"
	// AssigneeFailUnknown fails the operation.
	AssigneeFailUnknown AssigneePolicy = "fail-unknown"
)

// Gate is consulted before each operation. A denial is returned as an error;
// warnings are attached to the result.
type Gate interface {
	Check(ctx context.Context, op operation.Operation, snap board.Snapshot) ([]string, error)
}

// Options configure an Applier. The zero value re-reads per operation,
// deduplicates creates, skips unknown assignees and no-ops unsupported repositions.
type Options struct {
	Refresh         RefreshMode
	AllowDuplicates bool
	Reposition      RepositionPolicy
	Assignee        AssigneePolicy
	Gate            Gate
}

func (o Options) withDefaults() Options {
	if o.Refresh == "" {
		o.Refresh = RefreshPerOperation
	}
	if o.Reposition == "" {
		o.Reposition = RepositionNoopWhenUnsupported
	}
	if o.Assignee == "" {
		o.Assignee = AssigneeSkipUnknown
	}
	return o
}

// Applier applies operations one at a time, in order.
type Applier struct {
	store  board.Store
	reader *board.SnapshotReader
	opts   Options
	logger *slog.Logger
}

// NewApplier creates an applier writing to store.
func NewApplier(store board.Store, opts Options, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		store:  store,
		reader: board.NewSnapshotReader(store, logger),
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Options returns the effective options.
func (a *Applier) Options() Options { return a.opts }

// Apply runs every operation and returns exactly one result per operation, in
// the same order. A failed operation never stops the batch.
func (a *Applier) Apply(ctx context.Context, ops []operation.Operation, dir board.Directory) []Result {
	resolver := NewResolver(a.reader, a.opts.Refresh, a.logger)
	results := make([]Result, 0, len(ops))

	for i, op := range ops {
		res := a.applyOne(ctx, resolver, op, dir)
		if res.OK() {
			a.logger.Info("operation applied", "index", i, "kind", op.Kind, "task", op.Target(), "note", res.Note)
		} else {
			a.logger.Warn("operation failed", "index", i, "kind", op.Kind, "task", op.Target(), "reason", res.Reason)
		}
		results = append(results, res)
	}
	return results
}

func (a *Applier) applyOne(ctx context.Context, r *Resolver, op operation.Operation, dir board.Directory) Result {
	warnings := append([]string(nil), op.Warnings...)

	if err := ctx.Err(); err != nil {
		return failed(op, err, warnings)
	}

	if op.Kind == operation.KindReposition {
		if _, supported := a.store.(board.Repositioner); !supported {
			return a.repositionUnsupported(op, warnings)
		}
	}

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return failed(op, err, warnings)
	}

	if a.opts.Gate != nil {
		gateWarnings, err := a.opts.Gate.Check(ctx, op, snap)
		warnings = append(warnings, gateWarnings...)
		if err != nil {
			return failed(op, err, warnings)
		}
	}

	switch op.Kind {
	case operation.KindCreate:
		return a.create(ctx, r, snap, op, dir, warnings)
	case operation.KindUpdate:
		return a.update(ctx, r, snap, op, dir, warnings)
	case operation.KindDelete:
		return a.delete(ctx, r, snap, op, warnings)
	case operation.KindRename:
		return a.rename(ctx, r, snap, op, warnings)
	case operation.KindComment:
		return a.comment(ctx, r, snap, op, warnings)
	case operation.KindReposition:
		return a.reposition(ctx, r, snap, op, warnings)
	default:
		return failed(op, fmt.Errorf("unsupported operation kind %q", op.Kind), warnings)
	}
}

func (a *Applier) create(ctx context.Context, r *Resolver, snap board.Snapshot, op operation.Operation, dir board.Directory, warnings []string) Result {
	assigneeID, warn, err := a.assignee(dir, op.Assignee)
	if err != nil {
		return failed(op, err, warnings)
	}
	warnings = appendWarning(warnings, warn)

	if !a.opts.AllowDuplicates {
		if existing, ambiguous, found := snap.Find(op.Task); found {
			if ambiguous {
				warnings = append(warnings, fmt.Sprintf("%v: %q matches several tasks, used the first", board.ErrAmbiguous, op.Task))
			}
			return a.mergeExisting(ctx, r, existing, op, assigneeID, warnings)
		}
	}

	status := board.StatusNotStarted
	if op.Status != nil {
		status = *op.Status
	}
	task, err := a.store.CreateTask(ctx, board.TaskFields{
		Name:       op.Task,
		Status:     status,
		Deadline:   op.Deadline,
		AssigneeID: assigneeID,
	})
	if err != nil {
		return failed(op, err, warnings)
	}
	r.Track(task)
	return ok(op, task.ID, "created", warnings)
}

// mergeExisting turns a duplicate create into a patch of the fields the speaker
// gave explicitly.
func (a *Applier) mergeExisting(ctx context.Context, r *Resolver, existing board.Task, op operation.Operation, assigneeID string, warnings []string) Result {
	var patch board.TaskPatch
	if op.Status != nil && !op.StatusDefaulted && *op.Status != existing.Status {
		patch.Status = op.Status
	}
	if op.Deadline != nil && (existing.Deadline == nil || *existing.Deadline != *op.Deadline) {
		patch.Deadline = op.Deadline
	}
	if assigneeID != "" && assigneeID != existing.AssigneeID {
		patch.AssigneeID = &assigneeID
	}
	if patch.IsEmpty() {
		return ok(op, existing.ID, "already exists", warnings)
	}
	updated, err := a.store.PatchTask(ctx, existing.ID, patch)
	if err != nil {
		return failed(op, err, warnings)
	}
	r.Track(updated)
	return ok(op, existing.ID, "already exists, updated", warnings)
}

func (a *Applier) update(ctx context.Context, r *Resolver, snap board.Snapshot, op operation.Operation, dir board.Directory, warnings []string) Result {
	task, findWarnings, err := r.Find(snap, op.Task)
	warnings = append(warnings, findWarnings...)
	if err != nil {
		return failed(op, err, warnings)
	}

	patch := board.TaskPatch{Status: op.Status, Deadline: op.Deadline}
	if op.Assignee != "" {
		id, warn, err := a.assignee(dir, op.Assignee)
		if err != nil {
			return failed(op, err, warnings)
		}
		warnings = appendWarning(warnings, warn)
		if id != "" {
			patch.AssigneeID = &id
		}
	}
	if patch.IsEmpty() {
		return ok(op, task.ID, "nothing to change", warnings)
	}

	updated, err := a.store.PatchTask(ctx, task.ID, patch)
	if err != nil {
		return failed(op, err, warnings)
	}
	r.Track(updated)
	return ok(op, task.ID, "updated", warnings)
}

func (a *Applier) delete(ctx context.Context, r *Resolver, snap board.Snapshot, op operation.Operation, warnings []string) Result {
	task, findWarnings, err := r.Find(snap, op.Task)
	warnings = append(warnings, findWarnings...)
	if err != nil {
		return failed(op, err, warnings)
	}
	if err := a.store.ArchiveTask(ctx, task.ID); err != nil {
		return failed(op, err, warnings)
	}
	r.Forget(task.ID)
	return ok(op, task.ID, "archived", warnings)
}

func (a *Applier) rename(ctx context.Context, r *Resolver, snap board.Snapshot, op operation.Operation, warnings []string) Result {
	task, findWarnings, err := r.Find(snap, op.OldName)
	warnings = append(warnings, findWarnings...)
	if err != nil {
		return failed(op, err, warnings)
	}
	if other, _, found := snap.Find(op.NewName); found && other.ID != task.ID {
		return failed(op, fmt.Errorf("%w: %q", ErrConflict, op.NewName), warnings)
	}
	if task.Name == op.NewName {
		return ok(op, task.ID, "nothing to change", warnings)
	}

	name := op.NewName
	updated, err := a.store.PatchTask(ctx, task.ID, board.TaskPatch{Name: &name})
	if err != nil {
		return failed(op, err, warnings)
	}
	if updated.ID == "" {
		updated = task
		updated.Name = name
	}
	r.Track(updated)
	return ok(op, task.ID, "renamed", warnings)
}

func (a *Applier) comment(ctx context.Context, r *Resolver, snap board.Snapshot, op operation.Operation, warnings []string) Result {
	task, findWarnings, err := r.Find(snap, op.Task)
	warnings = append(warnings, findWarnings...)
	if err != nil {
		return failed(op, err, warnings)
	}
	if err := a.store.AppendComment(ctx, task.ID, op.Comment); err != nil {
		return failed(op, err, warnings)
	}
	return ok(op, task.ID, "commented", warnings)
}

// repositionUnsupported needs no board read, so a store outage cannot turn the
// no-op into a failure.
func (a *Applier) repositionUnsupported(op operation.Operation, warnings []string) Result {
	if a.opts.Reposition == RepositionFailWhenUnsupported {
		return failed(op, ErrRepositionUnsupported, warnings)
	}
	warnings = append(warnings, "store does not support ordering; reposition skipped")
	return ok(op, "", "skipped", warnings)
}

func (a *Applier) reposition(ctx context.Context, r *Resolver, snap board.Snapshot, op operation.Operation, warnings []string) Result {
	ordered, supported := a.store.(board.Repositioner)
	if !supported {
		return a.repositionUnsupported(op, warnings)
	}

	task, findWarnings, err := r.Find(snap, op.Task)
	warnings = append(warnings, findWarnings...)
	if err != nil {
		return failed(op, err, warnings)
	}
	placement := board.Placement{Position: string(op.Position)}
	if op.Position.NeedsReference() {
		ref, refWarnings, err := r.Find(snap, op.ReferenceTask)
		warnings = append(warnings, refWarnings...)
		if err != nil {
			return failed(op, fmt.Errorf("reference task: %w", err), warnings)
		}
		placement.ReferenceID = ref.ID
	}
	if err := ordered.Reposition(ctx, task.ID, placement); err != nil {
		return failed(op, err, warnings)
	}
	// Order changed, so a cached view is stale.
	r.Reset()
	return ok(op, task.ID, "moved "+string(op.Position), warnings)
}

// assignee resolves a display name to a user ID under the assignee policy. An
// empty ID with a nil error means the field is skipped.
func (a *Applier) assignee(dir board.Directory, name string) (string, string, error) {
	if name == "" {
		return "", "", nil
	}
	if u, found := dir.Lookup(name); found {
		return u.ID, "", nil
	}
	if a.opts.Assignee == AssigneeFailUnknown {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownAssignee, name)
	}
	a.logger.Warn("unknown assignee, skipping field", "assignee", name, "policy", string(a.opts.Assignee))
	return "", fmt.Sprintf("assignee %q not found; assignee left unchanged", name), nil
}

func appendWarning(warnings []string, w string) []string {
	if w == "" {
		return warnings
	}
	return append(warnings, w)
}
