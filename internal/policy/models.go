// Package policy gates board operations with policy-as-code rules written in
// Rego and evaluated locally by OPA.
package policy

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/operation"
)

// ErrDenied is wrapped by every denial returned from Gate.Check.
var ErrDenied = errors.New("denied by policy")

// Decision is the outcome of evaluating the policies against one operation.
type Decision struct {
	DecisionID  string    `json:"decisionId"`
	RunID       string    `json:"runId,omitempty"`
	PolicyPath  string    `json:"policyPath"`
	Result      string    `json:"result"`
	Violations  []string  `json:"violations,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	Input       *Input    `json:"input"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// IsAllowed reports whether no deny rule fired.
func (d *Decision) IsAllowed() bool {
	return d.Result == ResultAllow
}

// ViolationsJSON returns the violations as a JSON array for storage.
func (d *Decision) ViolationsJSON() string {
	return marshalList(d.Violations)
}

// WarningsJSON returns the warnings as a JSON array for storage.
func (d *Decision) WarningsJSON() string {
	return marshalList(d.Warnings)
}

// InputJSON returns the input as JSON for storage.
func (d *Decision) InputJSON() string {
	if d.Input == nil {
		return "{}"
	}
	b, err := json.Marshal(d.Input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ParseList decodes a JSON string array written by ViolationsJSON or WarningsJSON.
func ParseList(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}

// Input is what policies receive as `input`.
type Input struct {
	Operation OperationInput `json:"operation"`
	Board     BoardInput     `json:"board"`
}

// OperationInput mirrors operation.Operation with plain values.
type OperationInput struct {
	Kind          string `json:"kind"`
	Task          string `json:"task,omitempty"`
	OldName       string `json:"old_name,omitempty"`
	NewName       string `json:"new_name,omitempty"`
	Status        string `json:"status,omitempty"`
	Deadline      string `json:"deadline,omitempty"`
	Assignee      string `json:"assignee,omitempty"`
	Comment       string `json:"comment,omitempty"`
	Position      string `json:"position,omitempty"`
	ReferenceTask string `json:"reference_task,omitempty"`
	// Exists is true when the target task is on the board.
	Exists bool `json:"exists"`
	// CurrentStatus is the target's status when it exists.
	CurrentStatus string `json:"current_status,omitempty"`
}

// BoardInput summarises the board at evaluation time.
type BoardInput struct {
	TaskCount int            `json:"task_count"`
	ByStatus  map[string]int `json:"by_status"`
}

// NewInput builds the policy input for op against snap.
func NewInput(op operation.Operation, snap board.Snapshot) *Input {
	in := &Input{
		Operation: OperationInput{
			Kind:          string(op.Kind),
			Task:          op.Task,
			OldName:       op.OldName,
			NewName:       op.NewName,
			Assignee:      op.Assignee,
			Comment:       op.Comment,
			Position:      string(op.Position),
			ReferenceTask: op.ReferenceTask,
		},
		Board: BoardInput{TaskCount: snap.Len(), ByStatus: make(map[string]int, len(board.Statuses))},
	}
	if op.Status != nil {
		in.Operation.Status = string(*op.Status)
	}
	if op.Deadline != nil {
		in.Operation.Deadline = op.Deadline.String()
	}
	if t, _, ok := snap.Find(op.Target()); ok {
		in.Operation.Exists = true
		in.Operation.CurrentStatus = string(t.Status)
	}
	for _, s := range board.Statuses {
		in.Board.ByStatus[string(s)] = 0
	}
	for status, tasks := range snap.GroupByStatus() {
		in.Board.ByStatus[string(status)] = len(tasks)
	}
	return in
}
