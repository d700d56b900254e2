// Package operation turns a transcript into validated board operations: it builds
// the interpretation prompt, recovers a candidate list from free-form engine output
// and enforces each kind's required fields.
package operation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/josephgoksu/voiceboard/internal/board"
)

// ErrMalformedResponse is reported when no tier recovers a candidate list.
var ErrMalformedResponse = errors.New("malformed engine response")

// Kind tags an operation.
type Kind string

const (
	KindCreate     Kind = "create"
	KindUpdate     Kind = "update"
	KindDelete     Kind = "delete"
	KindRename     Kind = "rename"
	KindComment    Kind = "comment"
	KindReposition Kind = "reposition"
)

// Kinds lists every operation kind.
var Kinds = []Kind{KindCreate, KindUpdate, KindDelete, KindRename, KindComment, KindReposition}

// Position is where a reposition places its task.
type Position string

const (
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// NeedsReference reports whether the position is relative to another task.
func (p Position) NeedsReference() bool {
	return p == PositionBefore || p == PositionAfter
}

// RawCandidate is one object decoded from the engine's output, before validation.
type RawCandidate = map[string]any

// Operation is a validated board mutation. Which fields are set depends on Kind.
type Operation struct {
	Kind          Kind          `json:"kind" yaml:"kind"`
	Task          string        `json:"task,omitempty" yaml:"task,omitempty" validate:"required"`
	OldName       string        `json:"old_name,omitempty" yaml:"old_name,omitempty" validate:"required"`
	NewName       string        `json:"new_name,omitempty" yaml:"new_name,omitempty" validate:"required"`
	Status        *board.Status `json:"status,omitempty" yaml:"status,omitempty"`
	Deadline      *board.Date   `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Assignee      string        `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	Comment       string        `json:"comment,omitempty" yaml:"comment,omitempty" validate:"required"`
	Position      Position      `json:"position,omitempty" yaml:"position,omitempty" validate:"required,oneof=top bottom before after"`
	ReferenceTask string        `json:"reference_task,omitempty" yaml:"reference_task,omitempty" validate:"required"`

	// StatusDefaulted marks a create whose status was not spoken.
	StatusDefaulted bool `json:"-" yaml:"-"`
	// Warnings are non-fatal notes from validation (e.g. a dropped deadline).
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Target is the task name the operation resolves against.
func (o Operation) Target() string {
	if o.Kind == KindRename {
		return o.OldName
	}
	return o.Task
}

// String renders a one-line description.
func (o Operation) String() string {
	var b strings.Builder
	b.WriteString(string(o.Kind))
	switch o.Kind {
	case KindRename:
		fmt.Fprintf(&b, " %q -> %q", o.OldName, o.NewName)
	case KindComment:
		fmt.Fprintf(&b, " %q: %q", o.Task, o.Comment)
	case KindReposition:
		fmt.Fprintf(&b, " %q %s", o.Task, o.Position)
		if o.ReferenceTask != "" {
			fmt.Fprintf(&b, " %q", o.ReferenceTask)
		}
	default:
		fmt.Fprintf(&b, " %q", o.Task)
	}
	if o.Status != nil && !o.StatusDefaulted {
		fmt.Fprintf(&b, " status=%s", o.Status.Label())
	}
	if o.Deadline != nil {
		fmt.Fprintf(&b, " deadline=%s", o.Deadline)
	}
	if o.Assignee != "" {
		fmt.Fprintf(&b, " assignee=%s", o.Assignee)
	}
	return b.String()
}

// ValidationError explains why a candidate was dropped.
type ValidationError struct {
	Kind    Kind
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "operation"
	}
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing required field(s) %s", kind, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", kind, e.Reason)
}

// Rejection is a candidate the validator dropped.
type Rejection struct {
	Index     int          `json:"index" yaml:"index"`
	Candidate RawCandidate `json:"candidate" yaml:"candidate"`
	Reason    string       `json:"reason" yaml:"reason"`
	Err       error        `json:"-" yaml:"-"`
}

func reject(index int, c RawCandidate, err error) Rejection {
	return Rejection{Index: index, Candidate: c, Reason: err.Error(), Err: err}
}
