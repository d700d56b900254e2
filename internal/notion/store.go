package notion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/josephgoksu/voiceboard/internal/board"
)

// QueryTasks returns one page of live tasks.
func (c *Client) QueryTasks(ctx context.Context, cursor string) (board.Page, error) {
	var resp *notionapi.DatabaseQueryResponse
	err := c.call(ctx, "query tasks", func() (err error) {
		resp, err = c.api.Database.Query(ctx, c.databaseID, &notionapi.DatabaseQueryRequest{
			PageSize:    pageSize,
			StartCursor: notionapi.Cursor(cursor),
		})
		return err
	})
	if err != nil {
		return board.Page{}, err
	}

	out := board.Page{Tasks: make([]board.Task, 0, len(resp.Results))}
	for _, p := range resp.Results {
		if p.Archived {
			continue
		}
		out.Tasks = append(out.Tasks, c.toTask(p))
	}
	if resp.HasMore {
		out.NextCursor = string(resp.NextCursor)
	}
	return out, nil
}

// CreateTask creates a page in the database.
func (c *Client) CreateTask(ctx context.Context, fields board.TaskFields) (board.Task, error) {
	if strings.TrimSpace(fields.Name) == "" {
		return board.Task{}, errors.New("create task: name is required")
	}
	req := &notionapi.PageCreateRequest{
		Parent:     notionapi.Parent{DatabaseID: c.databaseID},
		Properties: c.createProperties(fields),
	}
	var created *notionapi.Page
	err := c.call(ctx, "create task", func() (err error) {
		created, err = c.api.Page.Create(ctx, req)
		return err
	})
	if err != nil {
		return board.Task{}, fmt.Errorf("create task %q: %w", fields.Name, err)
	}
	return c.resolved(created, board.Task{
		Name:       fields.Name,
		Status:     fields.Status,
		Deadline:   fields.Deadline,
		AssigneeID: fields.AssigneeID,
	}), nil
}

// PatchTask updates only the fields present in patch.
func (c *Client) PatchTask(ctx context.Context, id string, patch board.TaskPatch) (board.Task, error) {
	if patch.IsEmpty() {
		return board.Task{}, errors.New("patch task: empty patch")
	}
	req := &notionapi.PageUpdateRequest{Properties: c.patchProperties(patch)}
	var updated *notionapi.Page
	err := c.call(ctx, "patch task", func() (err error) {
		updated, err = c.api.Page.Update(ctx, notionapi.PageID(id), req)
		return err
	})
	if err != nil {
		return board.Task{}, fmt.Errorf("patch task %s: %w", id, err)
	}
	if updated == nil {
		return board.Task{}, nil
	}
	return c.toTask(*updated), nil
}

// ArchiveTask archives the page. Archived pages drop out of queries.
func (c *Client) ArchiveTask(ctx context.Context, id string) error {
	req := &notionapi.PageUpdateRequest{Archived: true, Properties: notionapi.Properties{}}
	err := c.call(ctx, "archive task", func() error {
		_, err := c.api.Page.Update(ctx, notionapi.PageID(id), req)
		return err
	})
	if err != nil {
		return fmt.Errorf("archive task %s: %w", id, err)
	}
	return nil
}

// AppendComment adds a comment to the page's discussion.
func (c *Client) AppendComment(ctx context.Context, id, body string) error {
	req := &notionapi.CommentCreateRequest{
		Parent:   notionapi.Parent{PageID: notionapi.PageID(id)},
		RichText: text(body),
	}
	err := c.call(ctx, "comment", func() error {
		_, err := c.api.Comment.Create(ctx, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("comment on task %s: %w", id, err)
	}
	return nil
}

// ListUsers returns every person in the workspace. Bots are excluded.
func (c *Client) ListUsers(ctx context.Context) ([]board.User, error) {
	var users []board.User
	cursor := notionapi.Cursor("")
	for {
		var resp *notionapi.UsersListResponse
		err := c.call(ctx, "list users", func() (err error) {
			resp, err = c.api.User.List(ctx, &notionapi.Pagination{StartCursor: cursor, PageSize: pageSize})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, u := range resp.Results {
			if u.Type == "bot" || strings.TrimSpace(u.Name) == "" {
				continue
			}
			users = append(users, board.User{ID: string(u.ID), Name: strings.TrimSpace(u.Name)})
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return users, nil
		}
		cursor = resp.NextCursor
	}
}

// resolved prefers the server's view of the page and falls back to what was sent.
func (c *Client) resolved(p *notionapi.Page, sent board.Task) board.Task {
	t := board.Task{Status: board.StatusNotStarted}
	if p != nil {
		t = c.toTask(*p)
	}
	if t.Name == "" {
		t.Name = sent.Name
		if sent.Status != "" {
			t.Status = sent.Status
		}
		t.Deadline = sent.Deadline
		t.AssigneeID = sent.AssigneeID
	}
	return t
}
