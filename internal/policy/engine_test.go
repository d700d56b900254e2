package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/operation"
)

const protectDone = `package voiceboard.policy

import rego.v1

deny contains msg if {
	input.operation.kind == "delete"
	input.operation.current_status == "Done"
	msg := sprintf("cannot delete finished task %q", [input.operation.task])
}

warn contains msg if {
	input.operation.kind == "create"
	input.board.task_count >= 2
	msg := "board is getting crowded"
}
`

func board2() board.Snapshot {
	return board.NewSnapshot([]board.Task{
		{ID: "1", Name: "Shipped", Status: board.StatusDone},
		{ID: "2", Name: "Draft", Status: board.StatusNotStarted},
	}, time.Time{})
}

func newEngine(t *testing.T, content string) *Engine {
	t.Helper()
	e, err := NewEngineWithPolicies(context.Background(), "", []*PolicyFile{{Name: "p", Path: "p.rego", Content: content}})
	require.NoError(t, err)
	return e
}

func TestEngine_NoPoliciesAllows(t *testing.T) {
	e, err := NewEngine(context.Background(), EngineConfig{Fs: afero.NewMemMapFs(), PoliciesDir: "/missing"})
	require.NoError(t, err)
	assert.Zero(t, e.PolicyCount())

	d, err := e.Evaluate(context.Background(), NewInput(operation.Operation{Kind: operation.KindDelete, Task: "x"}, board.Snapshot{}))
	require.NoError(t, err)
	assert.True(t, d.IsAllowed())
	assert.NotEmpty(t, d.DecisionID)
}

func TestEngine_DenyAndWarn(t *testing.T) {
	e := newEngine(t, protectDone)
	ctx := context.Background()

	d, err := e.Evaluate(ctx, NewInput(operation.Operation{Kind: operation.KindDelete, Task: "shipped"}, board2()))
	require.NoError(t, err)
	assert.False(t, d.IsAllowed())
	assert.Equal(t, []string{`cannot delete finished task "shipped"`}, d.Violations)

	d, err = e.Evaluate(ctx, NewInput(operation.Operation{Kind: operation.KindDelete, Task: "Draft"}, board2()))
	require.NoError(t, err)
	assert.True(t, d.IsAllowed())

	d, err = e.Evaluate(ctx, NewInput(operation.Operation{Kind: operation.KindCreate, Task: "New"}, board2()))
	require.NoError(t, err)
	assert.True(t, d.IsAllowed())
	assert.Equal(t, []string{"board is getting crowded"}, d.Warnings)
}

func TestEngine_CompileError(t *testing.T) {
	_, err := NewEngineWithPolicies(context.Background(), "", []*PolicyFile{{Name: "bad", Path: "bad.rego", Content: "package voiceboard.policy\n\ndeny contains msg if {"}})
	assert.Error(t, err)
}

type memRecorder struct {
	decisions []*Decision
	err       error
}

func (m *memRecorder) SaveDecision(_ context.Context, d *Decision) error {
	m.decisions = append(m.decisions, d)
	return m.err
}

func TestGate_Check(t *testing.T) {
	rec := &memRecorder{}
	gate := NewGate(newEngine(t, protectDone), rec, nil)
	ctx := WithRunID(context.Background(), "run-1")

	_, err := gate.Check(ctx, operation.Operation{Kind: operation.KindDelete, Task: "Shipped"}, board2())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, err.Error(), "cannot delete finished task")

	warnings, err := gate.Check(ctx, operation.Operation{Kind: operation.KindCreate, Task: "New"}, board2())
	require.NoError(t, err)
	assert.Equal(t, []string{"policy: board is getting crowded"}, warnings)

	require.Len(t, rec.decisions, 2)
	assert.Equal(t, "run-1", rec.decisions[0].RunID)
	assert.Equal(t, ResultDeny, rec.decisions[0].Result)
}

func TestGate_RecorderFailureDoesNotBlock(t *testing.T) {
	gate := NewGate(newEngine(t, protectDone), &memRecorder{err: errors.New("disk full")}, nil)
	_, err := gate.Check(context.Background(), operation.Operation{Kind: operation.KindComment, Task: "Draft", Comment: "x"}, board2())
	assert.NoError(t, err)
}

func TestGate_NilEngineAllows(t *testing.T) {
	var gate *Gate
	warnings, err := gate.Check(context.Background(), operation.Operation{Kind: operation.KindDelete, Task: "x"}, board.Snapshot{})
	assert.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestNewInput(t *testing.T) {
	status := board.StatusInProgress
	in := NewInput(operation.Operation{Kind: operation.KindUpdate, Task: "Draft", Status: &status}, board2())
	assert.Equal(t, "update", in.Operation.Kind)
	assert.Equal(t, "InProgress", in.Operation.Status)
	assert.True(t, in.Operation.Exists)
	assert.Equal(t, "NotStarted", in.Operation.CurrentStatus)
	assert.Equal(t, 2, in.Board.TaskCount)
	assert.Equal(t, map[string]int{"NotStarted": 1, "InProgress": 0, "Done": 1}, in.Board.ByStatus)
}

func TestLoader(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/policies/b.rego", []byte(protectDone), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/policies/nested/a.rego", []byte("package voiceboard.policy\n\ndeny contains msg if {"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/policies/README.md", []byte("docs"), 0o644))

	loader := NewLoader(fs, "/policies")
	policies, err := loader.LoadAll()
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "b", policies[0].Name)

	checks, err := loader.CheckAll()
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.True(t, checks[0].OK())
	assert.False(t, checks[1].OK())

	none, err := NewLoader(fs, "/nowhere").LoadAll()
	require.NoError(t, err)
	assert.Empty(t, none)
}
