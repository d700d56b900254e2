// Package boardtest provides an in-memory board.Store for tests.
package boardtest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/josephgoksu/voiceboard/internal/board"
)

// Store is an in-memory board.Store. It keeps insertion order, paginates queries
// when PageSize is set and records every call it receives.
type Store struct {
	mu       sync.Mutex
	tasks    []board.Task
	archived map[string]bool
	comments map[string][]string
	users    []board.User
	nextID   int

	// PageSize splits query results into pages when > 0.
	PageSize int

	// Error injection.
	QueryErr  error
	CreateErr error
	PatchErr  error
	UsersErr  error

	Calls []string
}

// NewStore returns a store seeded with tasks and users. Tasks without an ID get one.
func NewStore(tasks []board.Task, users []board.User) *Store {
	s := &Store{
		archived: make(map[string]bool),
		comments: make(map[string][]string),
		users:    users,
	}
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = s.newID()
		}
		if t.Status == "" {
			t.Status = board.StatusNotStarted
		}
		s.tasks = append(s.tasks, t)
	}
	return s
}

func (s *Store) newID() string {
	s.nextID++
	return "task-" + strconv.Itoa(s.nextID)
}

func (s *Store) record(call string) {
	s.Calls = append(s.Calls, call)
}

// QueryTasks implements board.Store.
func (s *Store) QueryTasks(_ context.Context, cursor string) (board.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("query:" + cursor)
	if s.QueryErr != nil {
		return board.Page{}, s.QueryErr
	}

	live := s.liveLocked()
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return board.Page{}, fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}
	if s.PageSize <= 0 {
		return board.Page{Tasks: live[start:]}, nil
	}
	end := start + s.PageSize
	if end >= len(live) {
		return board.Page{Tasks: live[start:]}, nil
	}
	return board.Page{Tasks: live[start:end], NextCursor: strconv.Itoa(end)}, nil
}

func (s *Store) liveLocked() []board.Task {
	var live []board.Task
	for _, t := range s.tasks {
		if !s.archived[t.ID] {
			live = append(live, s.withAssigneeName(t))
		}
	}
	return live
}

func (s *Store) withAssigneeName(t board.Task) board.Task {
	for _, u := range s.users {
		if u.ID == t.AssigneeID {
			t.AssigneeName = u.Name
		}
	}
	return t
}

// CreateTask implements board.Store.
func (s *Store) CreateTask(_ context.Context, fields board.TaskFields) (board.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create:" + fields.Name)
	if s.CreateErr != nil {
		return board.Task{}, s.CreateErr
	}
	t := board.Task{
		ID:         s.newID(),
		Name:       fields.Name,
		Status:     fields.Status,
		Deadline:   fields.Deadline,
		AssigneeID: fields.AssigneeID,
	}
	s.tasks = append(s.tasks, t)
	return s.withAssigneeName(t), nil
}

// PatchTask implements board.Store.
func (s *Store) PatchTask(_ context.Context, id string, patch board.TaskPatch) (board.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("patch:" + id)
	if s.PatchErr != nil {
		return board.Task{}, s.PatchErr
	}
	i := s.indexLocked(id)
	if i < 0 {
		return board.Task{}, board.ErrNotFound
	}
	t := &s.tasks[i]
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Deadline != nil {
		d := *patch.Deadline
		t.Deadline = &d
	}
	if patch.AssigneeID != nil {
		t.AssigneeID = *patch.AssigneeID
	}
	return s.withAssigneeName(*t), nil
}

// ArchiveTask implements board.Store.
func (s *Store) ArchiveTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("archive:" + id)
	if s.indexLocked(id) < 0 {
		return board.ErrNotFound
	}
	s.archived[id] = true
	return nil
}

// AppendComment implements board.Store.
func (s *Store) AppendComment(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("comment:" + id)
	if s.indexLocked(id) < 0 {
		return board.ErrNotFound
	}
	s.comments[id] = append(s.comments[id], text)
	return nil
}

// ListUsers implements board.Store.
func (s *Store) ListUsers(_ context.Context) ([]board.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("users")
	if s.UsersErr != nil {
		return nil, s.UsersErr
	}
	return append([]board.User(nil), s.users...), nil
}

func (s *Store) indexLocked(id string) int {
	for i, t := range s.tasks {
		if t.ID == id && !s.archived[id] {
			return i
		}
	}
	return -1
}

// Live returns the non-archived tasks.
func (s *Store) Live() []board.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked()
}

// Named returns the live tasks whose name matches case-insensitively.
func (s *Store) Named(name string) []board.Task {
	var out []board.Task
	for _, t := range s.Live() {
		if board.NameKey(t.Name) == board.NameKey(name) {
			out = append(out, t)
		}
	}
	return out
}

// Archived reports whether the task was archived.
func (s *Store) Archived(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archived[id]
}

// Comments returns the comments appended to a task.
func (s *Store) Comments(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.comments[id]...)
}

// CallCount returns how many calls started with prefix.
func (s *Store) CallCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// OrderedStore is a Store that also supports repositioning.
type OrderedStore struct {
	*Store
}

// Reposition implements board.Repositioner.
func (s *OrderedStore) Reposition(_ context.Context, id string, placement board.Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("reposition:" + id + ":" + placement.Position)
	i := s.indexLocked(id)
	if i < 0 {
		return board.ErrNotFound
	}
	t := s.tasks[i]
	rest := append(append([]board.Task(nil), s.tasks[:i]...), s.tasks[i+1:]...)

	switch placement.Position {
	case "top":
		s.tasks = append([]board.Task{t}, rest...)
	case "bottom":
		s.tasks = append(rest, t)
	case "before", "after":
		at := -1
		for j, r := range rest {
			if r.ID == placement.ReferenceID {
				at = j
			}
		}
		if at < 0 {
			return board.ErrNotFound
		}
		if placement.Position == "after" {
			at++
		}
		out := append([]board.Task(nil), rest[:at]...)
		out = append(out, t)
		s.tasks = append(out, rest[at:]...)
	default:
		return fmt.Errorf("unsupported position %q", placement.Position)
	}
	return nil
}
