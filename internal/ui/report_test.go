package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/operation"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
)

func done() *board.Status {
	s := board.StatusDone
	return &s
}

func TestRenderReport_Applied(t *testing.T) {
	create := operation.Operation{Kind: operation.KindCreate, Task: "Write report"}
	update := operation.Operation{Kind: operation.KindUpdate, Task: "Call vendor", Status: done()}
	r := &pipeline.Report{
		Transcript: "add write report and mark call vendor as done",
		Tier:       operation.TierBracketed,
		Operations: []operation.Operation{create, update},
		Rejections: []operation.Rejection{{Index: 2, Reason: "rename: missing new_name"}},
		Results: []reconcile.Result{
			{Operation: create, Outcome: reconcile.OutcomeOK, Note: "created", Warnings: []string{"assignee \"Bo\" not in directory"}},
			{Operation: update, Outcome: reconcile.OutcomeFailed, Reason: "task not found"},
		},
		Attempted: 2,
		Succeeded: 1,
	}

	out := RenderReport(r)

	assert.Contains(t, out, "add write report")
	assert.Contains(t, out, IconOK+" create \"Write report\"")
	assert.Contains(t, out, "(created)")
	assert.Contains(t, out, "not in directory")
	assert.Contains(t, out, IconFailed+" update \"Call vendor\" status=Done: task not found")
	assert.Contains(t, out, "#2 rename: missing new_name")
	assert.Contains(t, out, "1 of 2 operations succeeded")
}

func TestRenderReport_DryRunAndEmpty(t *testing.T) {
	op := operation.Operation{Kind: operation.KindDelete, Task: "Old task"}
	out := RenderOperations(operation.TierStrict, []operation.Operation{op}, nil)
	assert.Contains(t, out, IconPlanned+" delete \"Old task\"")
	assert.Contains(t, out, "(dry run)")

	out = RenderReport(&pipeline.Report{})
	assert.Contains(t, out, "nothing to do")
	assert.Contains(t, out, "0 of 0 operations succeeded")
	assert.Empty(t, RenderReport(nil))
}

func TestRenderBoard(t *testing.T) {
	deadline := board.Date{Year: 2025, Month: time.March, Day: 14}
	snap := board.NewSnapshot([]board.Task{
		{ID: "1", Name: "Write report", Status: board.StatusInProgress, Deadline: &deadline, AssigneeName: "Ana"},
		{ID: "2", Name: "Call vendor", Status: board.StatusDone},
	}, time.Now())

	out := RenderBoard(snap)
	assert.Contains(t, out, "Not started (0)")
	assert.Contains(t, out, "In progress (1)")
	assert.Contains(t, out, "Done (1)")
	assert.Contains(t, out, "2025-03-14")
	assert.Contains(t, out, "Ana")

	assert.Contains(t, RenderBoard(board.NewSnapshot(nil, time.Now())), "empty")
}

func TestConfirmModel(t *testing.T) {
	ops := []operation.Operation{{Kind: operation.KindCreate, Task: "Write report"}}

	tests := []struct {
		name     string
		msg      tea.KeyMsg
		accepted bool
	}{
		{"y applies", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}, true},
		{"enter applies", tea.KeyMsg{Type: tea.KeyEnter}, true},
		{"n cancels", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, false},
		{"esc cancels", tea.KeyMsg{Type: tea.KeyEsc}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newConfirmModel(ops)
			assert.Contains(t, m.View(), "Apply 1 operation(s)?")

			next, cmd := m.Update(tt.msg)
			got := next.(confirmModel)
			assert.True(t, got.done)
			assert.Equal(t, tt.accepted, got.accepted)
			assert.NotNil(t, cmd)
			assert.Empty(t, got.View())
		})
	}

	m := newConfirmModel(ops)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.False(t, next.(confirmModel).done)
	assert.Nil(t, cmd)
}

func TestErrNotInteractive(t *testing.T) {
	assert.True(t, errors.Is(ErrNotInteractive, ErrNotInteractive))
	assert.Contains(t, ErrNotInteractive.Error(), "--yes")
}
