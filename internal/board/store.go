package board

import "context"

// Store is the remote task store. Implementations address tasks by their
// store-assigned ID; name resolution happens above this layer.
type Store interface {
	// QueryTasks returns one page of live (non-archived) tasks starting at cursor.
	// An empty cursor requests the first page.
	QueryTasks(ctx context.Context, cursor string) (Page, error)

	// CreateTask persists a new task and returns it with its assigned ID.
	CreateTask(ctx context.Context, fields TaskFields) (Task, error)

	// PatchTask applies a partial update and returns the updated task.
	PatchTask(ctx context.Context, id string, patch TaskPatch) (Task, error)

	// ArchiveTask soft-deletes a task. Archived tasks stop appearing in queries.
	ArchiveTask(ctx context.Context, id string) error

	// AppendComment adds a comment entry to a task.
	AppendComment(ctx context.Context, id, text string) error

	// ListUsers returns every assignable user.
	ListUsers(ctx context.Context) ([]User, error)
}

// Placement is where a repositioned task lands.
type Placement struct {
	Position    string // top, bottom, before, after
	ReferenceID string // set for before/after
}

// Repositioner is implemented by stores that keep an explicit task order.
type Repositioner interface {
	Reposition(ctx context.Context, id string, placement Placement) error
}
