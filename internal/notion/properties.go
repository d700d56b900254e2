package notion

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/josephgoksu/voiceboard/internal/board"
)

// PropertyNames maps task fields to database property names.
type PropertyNames struct {
	Name     string `mapstructure:"name"`
	Status   string `mapstructure:"status"`
	Deadline string `mapstructure:"deadline"`
	Assignee string `mapstructure:"assignee"`
}

func (p PropertyNames) withDefaults() PropertyNames {
	if p.Name == "" {
		p.Name = "Name"
	}
	if p.Status == "" {
		p.Status = "Status"
	}
	if p.Deadline == "" {
		p.Deadline = "Deadline"
	}
	if p.Assignee == "" {
		p.Assignee = "Assignee"
	}
	return p
}

// StatusLabels maps statuses to the option names of the status property.
type StatusLabels struct {
	NotStarted string `mapstructure:"notStarted"`
	InProgress string `mapstructure:"inProgress"`
	Done       string `mapstructure:"done"`
}

func (l StatusLabels) withDefaults() StatusLabels {
	if l.NotStarted == "" {
		l.NotStarted = board.StatusNotStarted.Label()
	}
	if l.InProgress == "" {
		l.InProgress = board.StatusInProgress.Label()
	}
	if l.Done == "" {
		l.Done = board.StatusDone.Label()
	}
	return l
}

func (l StatusLabels) label(s board.Status) string {
	switch s {
	case board.StatusInProgress:
		return l.InProgress
	case board.StatusDone:
		return l.Done
	default:
		return l.NotStarted
	}
}

// status maps an option name back to a status. Unknown options fall back to
// ParseStatus and then to NotStarted.
func (l StatusLabels) status(label string) board.Status {
	switch {
	case strings.EqualFold(label, l.NotStarted):
		return board.StatusNotStarted
	case strings.EqualFold(label, l.InProgress):
		return board.StatusInProgress
	case strings.EqualFold(label, l.Done):
		return board.StatusDone
	}
	if s, err := board.ParseStatus(label); err == nil {
		return s
	}
	return board.StatusNotStarted
}

func plain(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, p := range parts {
		if p.PlainText != "" {
			b.WriteString(p.PlainText)
		} else if p.Text != nil {
			b.WriteString(p.Text.Content)
		}
	}
	return b.String()
}

func text(content string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: content}}}
}

func toDate(d board.Date) *notionapi.DateObject {
	start := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return &notionapi.DateObject{Start: &start}
}

func fromDate(d *notionapi.Date) board.Date {
	t := time.Time(*d)
	return board.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func people(id string) []notionapi.User {
	return []notionapi.User{{ID: notionapi.UserID(id)}}
}

// Decoded pages carry pointer properties; the value forms cover hand-built pages.

func titleOf(p notionapi.Property) ([]notionapi.RichText, bool) {
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		return v.Title, true
	case notionapi.TitleProperty:
		return v.Title, true
	}
	return nil, false
}

func statusOf(p notionapi.Property) (string, bool) {
	switch v := p.(type) {
	case *notionapi.StatusProperty:
		return v.Status.Name, v.Status.Name != ""
	case notionapi.StatusProperty:
		return v.Status.Name, v.Status.Name != ""
	}
	return "", false
}

func dateOf(p notionapi.Property) (*notionapi.Date, bool) {
	var obj *notionapi.DateObject
	switch v := p.(type) {
	case *notionapi.DateProperty:
		obj = v.Date
	case notionapi.DateProperty:
		obj = v.Date
	}
	if obj == nil || obj.Start == nil {
		return nil, false
	}
	return obj.Start, true
}

func peopleOf(p notionapi.Property) ([]notionapi.User, bool) {
	switch v := p.(type) {
	case *notionapi.PeopleProperty:
		return v.People, len(v.People) > 0
	case notionapi.PeopleProperty:
		return v.People, len(v.People) > 0
	}
	return nil, false
}

func (c *Client) toTask(p notionapi.Page) board.Task {
	t := board.Task{ID: string(p.ID), Status: board.StatusNotStarted}
	if title, ok := titleOf(p.Properties[c.props.Name]); ok {
		t.Name = strings.TrimSpace(plain(title))
	}
	if label, ok := statusOf(p.Properties[c.props.Status]); ok {
		t.Status = c.labels.status(label)
	}
	if start, ok := dateOf(p.Properties[c.props.Deadline]); ok {
		d := fromDate(start)
		t.Deadline = &d
	}
	if users, ok := peopleOf(p.Properties[c.props.Assignee]); ok {
		t.AssigneeID = string(users[0].ID)
		t.AssigneeName = users[0].Name
	}
	return t
}

func (c *Client) createProperties(f board.TaskFields) notionapi.Properties {
	status := f.Status
	if status == "" {
		status = board.StatusNotStarted
	}
	props := notionapi.Properties{
		c.props.Name:   notionapi.TitleProperty{Title: text(f.Name)},
		c.props.Status: notionapi.StatusProperty{Status: notionapi.Status{Name: c.labels.label(status)}},
	}
	if f.Deadline != nil {
		props[c.props.Deadline] = notionapi.DateProperty{Date: toDate(*f.Deadline)}
	}
	if f.AssigneeID != "" {
		props[c.props.Assignee] = notionapi.PeopleProperty{People: people(f.AssigneeID)}
	}
	return props
}

func (c *Client) patchProperties(p board.TaskPatch) notionapi.Properties {
	props := notionapi.Properties{}
	if p.Name != nil {
		props[c.props.Name] = notionapi.TitleProperty{Title: text(*p.Name)}
	}
	if p.Status != nil {
		props[c.props.Status] = notionapi.StatusProperty{Status: notionapi.Status{Name: c.labels.label(*p.Status)}}
	}
	if p.Deadline != nil {
		props[c.props.Deadline] = notionapi.DateProperty{Date: toDate(*p.Deadline)}
	}
	if p.AssigneeID != nil {
		props[c.props.Assignee] = notionapi.PeopleProperty{People: people(*p.AssigneeID)}
	}
	return props
}
