package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/operation"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
	"github.com/josephgoksu/voiceboard/internal/policy"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
)

func openMem(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func sampleReport(id string, started time.Time) *pipeline.Report {
	status := board.StatusDone
	deadline := board.Date{Year: 2025, Month: time.March, Day: 14}
	create := operation.Operation{Kind: operation.KindCreate, Task: "Write report", Deadline: &deadline}
	update := operation.Operation{Kind: operation.KindUpdate, Task: "Ghost", Status: &status}
	return &pipeline.Report{
		RunID:      id,
		Source:     "transcript",
		Transcript: "write the report by friday and finish ghost",
		Tier:       operation.TierStrict,
		Operations: []operation.Operation{create, update},
		Results: []reconcile.Result{
			{Operation: create, Outcome: reconcile.OutcomeOK, TaskID: "t1", Note: "created"},
			{Operation: update, Outcome: reconcile.OutcomeFailed, Reason: "task not found: \"Ghost\"", Warnings: []string{"w"}},
		},
		Warnings:  []string{"w"},
		Attempted: 2,
		Succeeded: 1,
		Refresh:   reconcile.RefreshPerOperation,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
}

func TestRecordAndRead(t *testing.T) {
	j := openMem(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, sampleReport("run-aaa", started)))

	runs, err := j.ListRuns(ctx, ListRunsOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "run-aaa", run.ID)
	assert.Equal(t, "strict", run.Tier)
	assert.Equal(t, 2, run.Operations)
	assert.Equal(t, 1, run.Failed())
	assert.Equal(t, "operation", run.Refresh)
	assert.Equal(t, []string{"w"}, run.Warnings)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, run.Duration)

	entries, err := j.Results(ctx, "run-aaa")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "create", entries[0].Kind)
	assert.Equal(t, "Write report", entries[0].Target)
	assert.Equal(t, "t1", entries[0].TaskID)
	require.NotNil(t, entries[0].Operation.Deadline)
	assert.Equal(t, "2025-03-14", entries[0].Operation.Deadline.String())
	assert.Equal(t, "failed", entries[1].Outcome)
	assert.Equal(t, board.StatusDone, *entries[1].Operation.Status)
	assert.Equal(t, []string{"w"}, entries[1].Warnings)
}

func TestRecord_SkipsDryRun(t *testing.T) {
	j := openMem(t)
	r := sampleReport("dry", time.Now())
	r.DryRun = true
	require.NoError(t, j.Record(context.Background(), r))

	runs, err := j.ListRuns(context.Background(), ListRunsOptions{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestListRuns_Filters(t *testing.T) {
	j := openMem(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, sampleReport("old", base.Add(-48*time.Hour))))
	clean := sampleReport("clean", base)
	clean.Succeeded = 2
	require.NoError(t, j.Record(ctx, clean))
	require.NoError(t, j.Record(ctx, sampleReport("newest", base.Add(time.Hour))))

	runs, err := j.ListRuns(ctx, ListRunsOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newest", runs[0].ID)
	assert.Equal(t, "clean", runs[1].ID)

	runs, err = j.ListRuns(ctx, ListRunsOptions{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, runs, 2)

	runs, err = j.ListRuns(ctx, ListRunsOptions{Since: base})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestGetRun_Prefix(t *testing.T) {
	j := openMem(t)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, sampleReport("abc-1", time.Now())))
	require.NoError(t, j.Record(ctx, sampleReport("abc-2", time.Now())))
	require.NoError(t, j.Record(ctx, sampleReport("xyz", time.Now())))

	run, err := j.GetRun(ctx, "xy")
	require.NoError(t, err)
	assert.Equal(t, "xyz", run.ID)

	run, err = j.GetRun(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "abc-2", run.ID)

	_, err = j.GetRun(ctx, "abc")
	assert.ErrorIs(t, err, ErrAmbiguousRun)

	_, err = j.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPrune(t *testing.T) {
	j := openMem(t)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, sampleReport("ancient", time.Now().Add(-90*24*time.Hour))))
	require.NoError(t, j.Record(ctx, sampleReport("recent", time.Now())))

	n, err := j.Prune(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := j.Results(ctx, "ancient")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecisions(t *testing.T) {
	j := openMem(t)
	ctx := context.Background()

	var _ policy.DecisionRecorder = j

	deny := &policy.Decision{
		RunID:      "run-1",
		PolicyPath: "data.voiceboard.policy",
		Result:     policy.ResultDeny,
		Violations: []string{"cannot delete finished task"},
		Input:      &policy.Input{Operation: policy.OperationInput{Kind: "delete", Task: "Shipped"}},
	}
	require.NoError(t, j.SaveDecision(ctx, deny))
	assert.NotEmpty(t, deny.DecisionID)
	require.NoError(t, j.SaveDecision(ctx, &policy.Decision{PolicyPath: "data.voiceboard.policy", Result: policy.ResultAllow}))

	all, err := j.ListDecisions(ctx, ListDecisionsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	denied, err := j.ListDecisions(ctx, ListDecisionsOptions{Result: policy.ResultDeny})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, "run-1", denied[0].RunID)
	assert.Equal(t, []string{"cannot delete finished task"}, denied[0].Violations)
	require.NotNil(t, denied[0].Input)
	assert.Equal(t, "Shipped", denied[0].Input.Operation.Task)

	byRun, err := j.ListDecisions(ctx, ListDecisionsOptions{RunID: "run-1"})
	require.NoError(t, err)
	assert.Len(t, byRun, 1)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/journal"
	j, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	assert.FileExists(t, j.Path())
}
