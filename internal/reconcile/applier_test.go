package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/board/boardtest"
	"github.com/josephgoksu/voiceboard/internal/operation"
)

var (
	ana = board.User{ID: "u1", Name: "Ana"}
	ben = board.User{ID: "u2", Name: "Ben"}
)

func statusPtr(s board.Status) *board.Status { return &s }

func datePtr(y int, m time.Month, d int) *board.Date {
	return &board.Date{Year: y, Month: m, Day: d}
}

func directory() board.Directory { return board.NewDirectory([]board.User{ana, ben}) }

func TestApply_OneResultPerOperation(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Existing"}}, nil)
	ops := []operation.Operation{
		{Kind: operation.KindCreate, Task: "New"},
		{Kind: operation.KindDelete, Task: "Missing"},
		{Kind: operation.KindComment, Task: "Existing", Comment: "hi"},
		{Kind: "teleport", Task: "Existing"},
	}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), ops, directory())

	require.Len(t, results, len(ops))
	for i := range ops {
		assert.Equal(t, ops[i], results[i].Operation)
	}
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
	assert.False(t, results[3].OK())

	sum := Summarize(results)
	assert.Equal(t, Summary{Attempted: 4, Succeeded: 2, Failed: 2}, sum)
	assert.Equal(t, "2 of 4 operations succeeded", sum.String())
}

func TestApply_CreateOmitsDeadlineAndDefaultsStatus(t *testing.T) {
	store := boardtest.NewStore(nil, nil)
	ops := []operation.Operation{{
		Kind: operation.KindCreate, Task: "Buy milk",
		Status: statusPtr(board.StatusNotStarted), StatusDefaulted: true,
	}}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), ops, directory())

	require.True(t, results[0].OK())
	created := store.Named("Buy milk")
	require.Len(t, created, 1)
	assert.Equal(t, board.StatusNotStarted, created[0].Status)
	assert.Nil(t, created[0].Deadline)
	assert.Equal(t, created[0].ID, results[0].TaskID)
}

func TestApply_CreateIsIdempotent(t *testing.T) {
	store := boardtest.NewStore(nil, nil)
	applier := NewApplier(store, Options{}, nil)
	op := operation.Operation{Kind: operation.KindCreate, Task: "Buy milk", Status: statusPtr(board.StatusNotStarted), StatusDefaulted: true}

	first := applier.Apply(context.Background(), []operation.Operation{op}, directory())
	second := applier.Apply(context.Background(), []operation.Operation{op}, directory())

	require.True(t, first[0].OK())
	require.True(t, second[0].OK())
	assert.Equal(t, "already exists", second[0].Note)
	assert.Len(t, store.Named("buy milk"), 1)
	assert.Equal(t, 1, store.CallCount("create:"))
}

func TestApply_DuplicateCreateKeepsExistingStatus(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Buy milk", Status: board.StatusInProgress}}, nil)
	op := operation.Operation{
		Kind: operation.KindCreate, Task: "buy milk",
		Status: statusPtr(board.StatusNotStarted), StatusDefaulted: true,
		Deadline: datePtr(2025, time.April, 1),
	}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), []operation.Operation{op}, directory())

	require.True(t, results[0].OK())
	assert.Equal(t, "already exists, updated", results[0].Note)
	task := store.Named("Buy milk")[0]
	assert.Equal(t, board.StatusInProgress, task.Status)
	assert.Equal(t, "2025-04-01", task.DeadlineString())
}

func TestApply_AllowDuplicates(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Buy milk"}}, nil)
	op := operation.Operation{Kind: operation.KindCreate, Task: "Buy milk"}
	results := NewApplier(store, Options{AllowDuplicates: true}, nil).Apply(context.Background(), []operation.Operation{op}, directory())
	require.True(t, results[0].OK())
	assert.Len(t, store.Named("Buy milk"), 2)
}

func TestApply_UpdatePatchesOnlyPresentFields(t *testing.T) {
	due := datePtr(2025, time.March, 1)
	store := boardtest.NewStore([]board.Task{{Name: "Write report", Status: board.StatusNotStarted, Deadline: due, AssigneeID: ana.ID}}, []board.User{ana, ben})

	op := operation.Operation{Kind: operation.KindUpdate, Task: "WRITE REPORT", Status: statusPtr(board.StatusDone)}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), []operation.Operation{op}, directory())

	require.True(t, results[0].OK(), results[0].Reason)
	task := store.Named("Write report")[0]
	assert.Equal(t, board.StatusDone, task.Status)
	assert.Equal(t, "2025-03-01", task.DeadlineString())
	assert.Equal(t, ana.ID, task.AssigneeID)
}

func TestApply_UpdateUnknownAssigneeSkipsField(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Write report", AssigneeID: ana.ID}}, []board.User{ana})
	ops := []operation.Operation{
		{Kind: operation.KindUpdate, Task: "Write report", Assignee: "Zed", Status: statusPtr(board.StatusInProgress)},
		{Kind: operation.KindUpdate, Task: "Write report", Assignee: "Zed"},
	}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), ops, directory())

	require.True(t, results[0].OK())
	require.Len(t, results[0].Warnings, 1)
	assert.Contains(t, results[0].Warnings[0], "Zed")

	require.True(t, results[1].OK())
	assert.Equal(t, "nothing to change", results[1].Note)

	task := store.Named("Write report")[0]
	assert.Equal(t, ana.ID, task.AssigneeID)
	assert.Equal(t, board.StatusInProgress, task.Status)
}

func TestApply_UnknownAssigneeFailPolicy(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Write report"}}, nil)
	op := operation.Operation{Kind: operation.KindUpdate, Task: "Write report", Assignee: "Zed"}
	results := NewApplier(store, Options{Assignee: AssigneeFailUnknown}, nil).Apply(context.Background(), []operation.Operation{op}, directory())
	assert.ErrorIs(t, results[0].Err, ErrUnknownAssignee)
}

func TestApply_UpdateAssignsKnownUser(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Write report"}}, []board.User{ana, ben})
	op := operation.Operation{Kind: operation.KindUpdate, Task: "Write report", Assignee: "ben"}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), []operation.Operation{op}, directory())
	require.True(t, results[0].OK())
	assert.Equal(t, ben.ID, store.Named("Write report")[0].AssigneeID)
}

func TestApply_NotFound(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Write report"}}, nil)
	ops := []operation.Operation{
		{Kind: operation.KindUpdate, Task: "Nope", Status: statusPtr(board.StatusDone)},
		{Kind: operation.KindDelete, Task: "Nope"},
		{Kind: operation.KindRename, OldName: "Nope", NewName: "Yes"},
		{Kind: operation.KindComment, Task: "Write report extra", Comment: "x"},
	}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), ops, directory())
	for _, r := range results {
		assert.ErrorIs(t, r.Err, board.ErrNotFound, r.Operation.String())
	}
	assert.Zero(t, store.CallCount("patch:"))
	assert.Zero(t, store.CallCount("archive:"))
}

func TestApply_DeleteArchives(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Old thing"}}, nil)
	id := store.Live()[0].ID
	results := NewApplier(store, Options{}, nil).Apply(context.Background(),
		[]operation.Operation{{Kind: operation.KindDelete, Task: "old thing"}}, directory())

	require.True(t, results[0].OK())
	assert.True(t, store.Archived(id))
	assert.Empty(t, store.Live())
}

func TestApply_CommentAppends(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Write report"}}, nil)
	id := store.Live()[0].ID
	results := NewApplier(store, Options{}, nil).Apply(context.Background(),
		[]operation.Operation{{Kind: operation.KindComment, Task: "Write report", Comment: "waiting on legal"}}, directory())
	require.True(t, results[0].OK())
	assert.Equal(t, []string{"waiting on legal"}, store.Comments(id))
}

func TestApply_RenameThenUpdateInSameBatch(t *testing.T) {
	for _, mode := range []RefreshMode{RefreshPerOperation, RefreshPerBatch} {
		t.Run(string(mode), func(t *testing.T) {
			store := boardtest.NewStore([]board.Task{{Name: "Draft"}}, nil)
			ops := []operation.Operation{
				{Kind: operation.KindRename, OldName: "Draft", NewName: "Final report"},
				{Kind: operation.KindUpdate, Task: "Final report", Status: statusPtr(board.StatusDone)},
			}
			results := NewApplier(store, Options{Refresh: mode}, nil).Apply(context.Background(), ops, directory())

			require.True(t, results[0].OK(), results[0].Reason)
			require.True(t, results[1].OK(), results[1].Reason)
			assert.Equal(t, results[0].TaskID, results[1].TaskID)
			task := store.Named("Final report")
			require.Len(t, task, 1)
			assert.Equal(t, board.StatusDone, task[0].Status)
		})
	}
}

func TestApply_RefreshModesQueryCounts(t *testing.T) {
	ops := []operation.Operation{
		{Kind: operation.KindComment, Task: "A", Comment: "1"},
		{Kind: operation.KindComment, Task: "A", Comment: "2"},
		{Kind: operation.KindComment, Task: "A", Comment: "3"},
	}

	perOp := boardtest.NewStore([]board.Task{{Name: "A"}}, nil)
	NewApplier(perOp, Options{}, nil).Apply(context.Background(), ops, directory())
	assert.Equal(t, 3, perOp.CallCount("query:"))

	perBatch := boardtest.NewStore([]board.Task{{Name: "A"}}, nil)
	NewApplier(perBatch, Options{Refresh: RefreshPerBatch}, nil).Apply(context.Background(), ops, directory())
	assert.Equal(t, 1, perBatch.CallCount("query:"))
}

func TestApply_BatchModeSeesCreatesAndDeletes(t *testing.T) {
	store := boardtest.NewStore(nil, nil)
	ops := []operation.Operation{
		{Kind: operation.KindCreate, Task: "Temp"},
		{Kind: operation.KindComment, Task: "Temp", Comment: "made it"},
		{Kind: operation.KindDelete, Task: "Temp"},
		{Kind: operation.KindDelete, Task: "Temp"},
	}
	results := NewApplier(store, Options{Refresh: RefreshPerBatch}, nil).Apply(context.Background(), ops, directory())

	assert.True(t, results[0].OK())
	assert.True(t, results[1].OK())
	assert.True(t, results[2].OK())
	assert.ErrorIs(t, results[3].Err, board.ErrNotFound)
}

func TestApply_RenameConflict(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "A"}, {Name: "B"}}, nil)
	results := NewApplier(store, Options{}, nil).Apply(context.Background(),
		[]operation.Operation{{Kind: operation.KindRename, OldName: "A", NewName: "b"}}, directory())
	assert.ErrorIs(t, results[0].Err, ErrConflict)
	assert.Zero(t, store.CallCount("patch:"))
}

func TestApply_RenameOntoNameFreedInSameBatch(t *testing.T) {
	tests := []struct {
		name  string
		first operation.Operation
	}{
		{"freed by rename", operation.Operation{Kind: operation.KindRename, OldName: "B", NewName: "C"}},
		{"freed by delete", operation.Operation{Kind: operation.KindDelete, Task: "B"}},
	}
	for _, tt := range tests {
		for _, mode := range []RefreshMode{RefreshPerOperation, RefreshPerBatch} {
			t.Run(tt.name+"/"+string(mode), func(t *testing.T) {
				store := boardtest.NewStore([]board.Task{{Name: "A"}, {Name: "B"}}, nil)
				ops := []operation.Operation{
					tt.first,
					{Kind: operation.KindRename, OldName: "A", NewName: "B"},
				}
				results := NewApplier(store, Options{Refresh: mode}, nil).Apply(context.Background(), ops, directory())

				require.True(t, results[0].OK(), results[0].Reason)
				require.True(t, results[1].OK(), results[1].Reason)
				assert.Len(t, store.Named("B"), 1)
				assert.Empty(t, store.Named("A"))
			})
		}
	}
}

func TestApply_RenameChangesOnlyName(t *testing.T) {
	due := datePtr(2025, time.May, 5)
	store := boardtest.NewStore([]board.Task{{Name: "a", Status: board.StatusInProgress, Deadline: due}}, nil)
	results := NewApplier(store, Options{}, nil).Apply(context.Background(),
		[]operation.Operation{{Kind: operation.KindRename, OldName: "a", NewName: "A"}}, directory())
	require.True(t, results[0].OK(), results[0].Reason)
	task := store.Live()[0]
	assert.Equal(t, "A", task.Name)
	assert.Equal(t, board.StatusInProgress, task.Status)
	assert.Equal(t, "2025-05-05", task.DeadlineString())
}

func TestApply_RepositionUnsupported(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "A"}}, nil)
	op := operation.Operation{Kind: operation.KindReposition, Task: "A", Position: operation.PositionTop}

	results := NewApplier(store, Options{}, nil).Apply(context.Background(), []operation.Operation{op}, directory())
	require.True(t, results[0].OK())
	require.Len(t, results[0].Warnings, 1)
	assert.Equal(t, RepositionNoopWhenUnsupported, NewApplier(store, Options{}, nil).Options().Reposition)

	results = NewApplier(store, Options{Reposition: RepositionFailWhenUnsupported}, nil).Apply(context.Background(), []operation.Operation{op}, directory())
	assert.ErrorIs(t, results[0].Err, ErrRepositionUnsupported)
}

func TestApply_RepositionUnsupportedSurvivesStoreOutage(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "A"}}, nil)
	store.QueryErr = errors.New("503")
	op := operation.Operation{Kind: operation.KindReposition, Task: "A", Position: operation.PositionTop}

	results := NewApplier(store, Options{}, nil).Apply(context.Background(), []operation.Operation{op}, directory())
	require.Len(t, results, 1)
	assert.True(t, results[0].OK(), results[0].Reason)
	assert.Equal(t, "skipped", results[0].Note)
	assert.NotEmpty(t, results[0].Warnings)
	assert.Zero(t, store.CallCount("query:"))
}

func TestApply_RepositionSupported(t *testing.T) {
	store := &boardtest.OrderedStore{Store: boardtest.NewStore([]board.Task{{Name: "A"}, {Name: "B"}, {Name: "C"}}, nil)}
	ops := []operation.Operation{
		{Kind: operation.KindReposition, Task: "C", Position: operation.PositionTop},
		{Kind: operation.KindReposition, Task: "B", Position: operation.PositionBefore, ReferenceTask: "C"},
		{Kind: operation.KindReposition, Task: "A", Position: operation.PositionAfter, ReferenceTask: "Nope"},
	}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), ops, directory())

	require.True(t, results[0].OK())
	require.True(t, results[1].OK())
	assert.ErrorIs(t, results[2].Err, board.ErrNotFound)

	var names []string
	for _, task := range store.Live() {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"B", "C", "A"}, names)
}

func TestApply_StoreUnavailableFailsOperationNotBatch(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "A"}}, nil)
	store.QueryErr = errors.New("503")
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), []operation.Operation{
		{Kind: operation.KindDelete, Task: "A"},
		{Kind: operation.KindDelete, Task: "A"},
	}, directory())
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, board.ErrStoreUnavailable)
	}
}

func TestApply_AmbiguousNameUsesFirstWithWarning(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "Dup"}, {Name: "dup"}}, nil)
	first := store.Live()[0].ID
	results := NewApplier(store, Options{}, nil).Apply(context.Background(),
		[]operation.Operation{{Kind: operation.KindDelete, Task: "DUP"}}, directory())
	require.True(t, results[0].OK())
	assert.Equal(t, first, results[0].TaskID)
	require.Len(t, results[0].Warnings, 1)
	assert.Contains(t, results[0].Warnings[0], board.ErrAmbiguous.Error())
}

type denyDeletes struct{}

func (denyDeletes) Check(_ context.Context, op operation.Operation, _ board.Snapshot) ([]string, error) {
	if op.Kind == operation.KindDelete {
		return nil, errors.New("denied: deletes are disabled")
	}
	return []string{"checked"}, nil
}

func TestApply_GateDenial(t *testing.T) {
	store := boardtest.NewStore([]board.Task{{Name: "A"}}, nil)
	results := NewApplier(store, Options{Gate: denyDeletes{}}, nil).Apply(context.Background(), []operation.Operation{
		{Kind: operation.KindDelete, Task: "A"},
		{Kind: operation.KindComment, Task: "A", Comment: "still here"},
	}, directory())

	assert.False(t, results[0].OK())
	assert.Contains(t, results[0].Reason, "deletes are disabled")
	assert.Zero(t, store.CallCount("archive:"))

	require.True(t, results[1].OK())
	assert.Equal(t, []string{"checked"}, results[1].Warnings)
}

func TestApply_OperationWarningsCarried(t *testing.T) {
	store := boardtest.NewStore(nil, nil)
	op := operation.Operation{Kind: operation.KindCreate, Task: "A", Warnings: []string{"ignored deadline"}}
	results := NewApplier(store, Options{}, nil).Apply(context.Background(), []operation.Operation{op}, directory())
	assert.Equal(t, []string{"ignored deadline"}, results[0].Warnings)
}

func TestParseRefreshMode(t *testing.T) {
	m, err := ParseRefreshMode("")
	require.NoError(t, err)
	assert.Equal(t, RefreshPerOperation, m)
	m, err = ParseRefreshMode("batch")
	require.NoError(t, err)
	assert.Equal(t, RefreshPerBatch, m)
	_, err = ParseRefreshMode("never")
	assert.Error(t, err)
}
