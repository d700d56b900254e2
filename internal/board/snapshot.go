package board

import (
	"sort"
	"time"
)

// Snapshot is a point-in-time read of the board. It is never mutated in place.
type Snapshot struct {
	tasks     []Task
	fetchedAt time.Time
}

// NewSnapshot copies tasks into an immutable snapshot.
func NewSnapshot(tasks []Task, fetchedAt time.Time) Snapshot {
	cp := make([]Task, len(tasks))
	copy(cp, tasks)
	return Snapshot{tasks: cp, fetchedAt: fetchedAt}
}

// Tasks returns a copy of the tasks in board order.
func (s Snapshot) Tasks() []Task {
	cp := make([]Task, len(s.tasks))
	copy(cp, s.tasks)
	return cp
}

// Len returns the number of tasks.
func (s Snapshot) Len() int { return len(s.tasks) }

// FetchedAt returns when the snapshot was read.
func (s Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Find resolves a task by case-insensitive exact name. When several tasks share the
// name, the first in board order wins and ambiguous is true.
func (s Snapshot) Find(name string) (task Task, ambiguous bool, ok bool) {
	key := NameKey(name)
	if key == "" {
		return Task{}, false, false
	}
	for _, t := range s.tasks {
		if NameKey(t.Name) != key {
			continue
		}
		if ok {
			return task, true, true
		}
		task, ok = t, true
	}
	return task, false, ok
}

// GroupByStatus returns tasks bucketed by status, each bucket in board order.
func (s Snapshot) GroupByStatus() map[Status][]Task {
	groups := make(map[Status][]Task, len(Statuses))
	for _, t := range s.tasks {
		groups[t.Status] = append(groups[t.Status], t)
	}
	return groups
}

// With returns a new snapshot with t added, or replaced when its ID is already present.
func (s Snapshot) With(t Task) Snapshot {
	tasks := s.Tasks()
	for i := range tasks {
		if t.ID != "" && tasks[i].ID == t.ID {
			tasks[i] = t
			return Snapshot{tasks: tasks, fetchedAt: s.fetchedAt}
		}
	}
	return Snapshot{tasks: append(tasks, t), fetchedAt: s.fetchedAt}
}

// Without returns a new snapshot with the task of the given ID removed.
func (s Snapshot) Without(id string) Snapshot {
	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.ID != id {
			tasks = append(tasks, t)
		}
	}
	return Snapshot{tasks: tasks, fetchedAt: s.fetchedAt}
}

// Directory maps display names to user IDs. Lookups are case-insensitive.
type Directory struct {
	byKey map[string]User
}

// NewDirectory builds a directory. Later duplicates of a name are ignored.
func NewDirectory(users []User) Directory {
	d := Directory{byKey: make(map[string]User, len(users))}
	for _, u := range users {
		key := NameKey(u.Name)
		if key == "" {
			continue
		}
		if _, exists := d.byKey[key]; !exists {
			d.byKey[key] = u
		}
	}
	return d
}

// Lookup returns the user with the given display name.
func (d Directory) Lookup(name string) (User, bool) {
	u, ok := d.byKey[NameKey(name)]
	return u, ok
}

// NameByID returns the display name for a user ID.
func (d Directory) NameByID(id string) (string, bool) {
	for _, u := range d.byKey {
		if u.ID == id {
			return u.Name, true
		}
	}
	return "", false
}

// Names returns the sorted display names.
func (d Directory) Names() []string {
	names := make([]string, 0, len(d.byKey))
	for _, u := range d.byKey {
		names = append(names, u.Name)
	}
	sort.Strings(names)
	return names
}

// Map returns the directory as display name -> user ID.
func (d Directory) Map() map[string]string {
	m := make(map[string]string, len(d.byKey))
	for _, u := range d.byKey {
		m[u.Name] = u.ID
	}
	return m
}

// Len returns the number of users.
func (d Directory) Len() int { return len(d.byKey) }
