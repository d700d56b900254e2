package reconcile

import (
	"errors"
	"fmt"

	"github.com/josephgoksu/voiceboard/internal/operation"
)

var (
	// ErrConflict is returned when a rename targets a name another task already uses.
	ErrConflict = errors.New("name already used by another task")
	// ErrRepositionUnsupported is returned under RepositionFailWhenUnsupported.
	ErrRepositionUnsupported = errors.New("store does not support ordering tasks")
	// ErrUnknownAssignee is returned under AssigneeFailUnknown.
	ErrUnknownAssignee = errors.New("assignee not in directory")
)

// Outcome is the per-operation verdict.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeFailed Outcome = "failed"
)

// Result reports what happened to one operation.
type Result struct {
	Operation operation.Operation `json:"operation" yaml:"operation"`
	Outcome   Outcome             `json:"outcome" yaml:"outcome"`
	Reason    string              `json:"reason,omitempty" yaml:"reason,omitempty"`
	TaskID    string              `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Note      string              `json:"note,omitempty" yaml:"note,omitempty"`
	Warnings  []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Err       error               `json:"-" yaml:"-"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

func (r Result) String() string {
	switch {
	case !r.OK():
		return fmt.Sprintf("%s: failed: %s", r.Operation, r.Reason)
	case r.Note != "":
		return fmt.Sprintf("%s: %s", r.Operation, r.Note)
	default:
		return fmt.Sprintf("%s: ok", r.Operation)
	}
}

func ok(op operation.Operation, taskID, note string, warnings []string) Result {
	return Result{Operation: op, Outcome: OutcomeOK, TaskID: taskID, Note: note, Warnings: warnings}
}

func failed(op operation.Operation, err error, warnings []string) Result {
	return Result{Operation: op, Outcome: OutcomeFailed, Err: err, Reason: err.Error(), Warnings: warnings}
}

// Summary aggregates a batch.
type Summary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summarize counts results.
func Summarize(results []Result) Summary {
	s := Summary{Attempted: len(results)}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d of %d operations succeeded", s.Succeeded, s.Attempted)
}
