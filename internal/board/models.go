// Package board holds the task-board domain: tasks, users, point-in-time snapshots
// and the Store contract that remote task stores implement.
package board

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Status is the closed set of board columns a task can sit in.
type Status string

const (
	StatusNotStarted Status = "NotStarted"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusDone}

// Label returns the human-facing column label.
func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not started"
	case StatusInProgress:
		return "In progress"
	case StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// ParseStatus maps a status label to its canonical value. It accepts the canonical
// names and the usual spelling variants ("not started", "In-Progress", "done").
func ParseStatus(label string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)
	switch normalized {
	case "notstarted", "todo", "backlog":
		return StatusNotStarted, nil
	case "inprogress", "doing", "started":
		return StatusInProgress, nil
	case "done", "complete", "completed", "finished":
		return StatusDone, nil
	default:
		return "", fmt.Errorf("unknown status %q (want NotStarted, InProgress or Done)", label)
	}
}

// DateLayout is the wire and display layout for deadlines.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO 8601 date. A full RFC 3339 timestamp is accepted and
// truncated to its date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Task is one card on the board.
type Task struct {
	ID           string
	Name         string
	Status       Status
	Deadline     *Date
	AssigneeID   string
	AssigneeName string
}

// DeadlineString renders the deadline or "none".
func (t Task) DeadlineString() string {
	if t.Deadline == nil {
		return "none"
	}
	return t.Deadline.String()
}

// User is an assignable identity from the store's directory.
type User struct {
	ID   string
	Name string
}

// TaskFields is the payload for creating a task.
type TaskFields struct {
	Name       string
	Status     Status
	Deadline   *Date // nil omits the deadline entirely
	AssigneeID string
}

// TaskPatch is a partial update. Nil fields are left untouched by the store.
type TaskPatch struct {
	Name       *string
	Status     *Status
	Deadline   *Date
	AssigneeID *string
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.Status == nil && p.Deadline == nil && p.AssigneeID == nil
}

// Page is one page of a task query.
type Page struct {
	Tasks      []Task
	NextCursor string // empty when there are no more pages
}

// NameKey is the matching key for task and user names: surrounding whitespace is
// trimmed and case is folded, so matching is case-insensitive but otherwise exact.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
