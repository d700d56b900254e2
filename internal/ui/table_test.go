package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_ColumnWidths(t *testing.T) {
	table := &Table{
		Headers: []string{"Task", "Deadline"},
		Rows: [][]string{
			{"Write report", "2025-03-14"},
			{"Füße waschen", "none"},
		},
	}

	widths := table.ColumnWidths()

	assert.Equal(t, 12, widths[0])
	assert.Equal(t, 10, widths[1])
}

func TestTable_ColumnWidths_MaxWidth(t *testing.T) {
	table := &Table{
		Headers:  []string{"ID", "Task"},
		Rows:     [][]string{{"a", "Prepare the quarterly planning deck for the board"}},
		MaxWidth: 20,
	}

	widths := table.ColumnWidths()

	assert.Equal(t, 2, widths[0])
	assert.Equal(t, 20, widths[1])
}

func TestTable_Render(t *testing.T) {
	table := &Table{
		Headers: []string{"Task", "Assignee"},
		Rows: [][]string{
			{"Write report", "Ana"},
			{"Call vendor"}, // missing column
		},
		MaxWidth: 8,
	}

	output := table.Render()

	assert.Contains(t, output, "Task")
	assert.Contains(t, output, "Ana")
	assert.Contains(t, output, "Write r…")
	assert.Contains(t, output, "─")
	lines := strings.Split(strings.TrimSpace(output), "\n")
	assert.Len(t, lines, 4)
}

func TestTable_Render_Empty(t *testing.T) {
	assert.Empty(t, (&Table{}).Render())
}

func TestFit(t *testing.T) {
	assert.Equal(t, "short", fit("short", 10))
	assert.Equal(t, "abcd…", fit("abcdefgh", 5))
	assert.Equal(t, "…", fit("abc", 1))
	assert.Equal(t, "Füß…", fit("Füße waschen", 4))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "abc  ", padRight("abc", 5))
	assert.Equal(t, "hello", padRight("hello", 3))
	assert.Equal(t, "   ", padRight("", 3))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0f3a9c2e", ShortID("0f3a9c2e-7d41-4b8a-9d9e-1234567890ab"))
	assert.Equal(t, "abc", ShortID("abc"))
}
