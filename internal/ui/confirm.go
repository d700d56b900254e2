package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/josephgoksu/voiceboard/internal/operation"
)

// ErrNotInteractive is returned when confirmation is requested without a terminal.
var ErrNotInteractive = errors.New("confirmation requires an interactive terminal (use --yes to skip it)")

type confirmKeys struct {
	Apply  key.Binding
	Cancel key.Binding
}

var defaultConfirmKeys = confirmKeys{
	Apply: key.NewBinding(
		key.WithKeys("y", "Y", "enter"),
		key.WithHelp("y/enter", "apply"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "N", "esc", "q", "ctrl+c"),
		key.WithHelp("n/esc", "cancel"),
	),
}

type confirmModel struct {
	ops      []operation.Operation
	keys     confirmKeys
	accepted bool
	done     bool
}

func newConfirmModel(ops []operation.Operation) confirmModel {
	return confirmModel{ops: ops, keys: defaultConfirmKeys}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Apply):
			m.accepted, m.done = true, true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Cancel):
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(StyleTitle.Render(fmt.Sprintf("Apply %d operation(s)?", len(m.ops))) + "\n\n")
	for _, op := range m.ops {
		b.WriteString(fmt.Sprintf("%s %s\n", Icon(IconPlanned, StylePrimary), op.String()))
	}
	b.WriteString("\n" + StyleSubtle.Render(
		fmt.Sprintf("%s %s • %s %s",
			m.keys.Apply.Help().Key, m.keys.Apply.Help().Desc,
			m.keys.Cancel.Help().Key, m.keys.Cancel.Help().Desc)))
	return StyleConfirmBox.Render(b.String()) + "\n"
}

// Confirm asks the user to approve ops before they are applied.
func Confirm(ctx context.Context, ops []operation.Operation, in io.Reader, out io.Writer) (bool, error) {
	if len(ops) == 0 {
		return true, nil
	}
	p := tea.NewProgram(newConfirmModel(ops),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return final.(confirmModel).accepted, nil
}
