package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/operation"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
)

// RenderReport formats a run for the terminal.
func RenderReport(r *pipeline.Report) string {
	if r == nil {
		return ""
	}
	var sb strings.Builder

	if r.Transcript != "" {
		sb.WriteString(StyleSectionTitle.Render("Transcript") + "\n")
		sb.WriteString(StyleTranscript.Render(WrapText(r.Transcript, 76)) + "\n\n")
	}

	sb.WriteString(StyleSectionTitle.Render("Operations"))
	sb.WriteString(StyleSubtle.Render(fmt.Sprintf("  (%s)", r.Tier)) + "\n")

	switch {
	case r.DryRun || r.Cancelled:
		if len(r.Operations) == 0 {
			sb.WriteString(StyleSubtle.Render("  nothing to do") + "\n")
		}
		for _, op := range r.Operations {
			sb.WriteString(fmt.Sprintf("  %s %s\n", Icon(IconPlanned, StylePrimary), op.String()))
			writeWarnings(&sb, op.Warnings)
		}
	default:
		if len(r.Results) == 0 {
			sb.WriteString(StyleSubtle.Render("  nothing to do") + "\n")
		}
		for _, res := range r.Results {
			if res.OK() {
				line := res.Operation.String()
				if res.Note != "" {
					line += StyleSubtle.Render(" (" + res.Note + ")")
				}
				sb.WriteString(fmt.Sprintf("  %s %s\n", Icon(IconOK, StyleSuccess), line))
			} else {
				sb.WriteString(fmt.Sprintf("  %s %s: %s\n", Icon(IconFailed, StyleError), res.Operation.String(), StyleError.Render(res.Reason)))
			}
			writeWarnings(&sb, res.Warnings)
		}
	}

	if len(r.Rejections) > 0 {
		sb.WriteString("\n" + StyleSectionTitle.Render("Dropped") + "\n")
		for _, rej := range r.Rejections {
			sb.WriteString(fmt.Sprintf("  %s #%d %s\n", Icon(IconWarning, StyleWarning), rej.Index, rej.Reason))
		}
	}

	sb.WriteString("\n" + summaryStyle(r).Render(r.Summary()) + "\n")
	return sb.String()
}

// RenderOperations lists extracted operations without applying them.
func RenderOperations(tier operation.Tier, ops []operation.Operation, rejections []operation.Rejection) string {
	return RenderReport(&pipeline.Report{Tier: tier, Operations: ops, Rejections: rejections, DryRun: true})
}

// RenderBoard groups the snapshot into status columns.
func RenderBoard(snap board.Snapshot) string {
	if snap.Len() == 0 {
		return StyleSubtle.Render("The board is empty.") + "\n"
	}
	groups := snap.GroupByStatus()

	var sb strings.Builder
	for _, status := range board.Statuses {
		tasks := groups[status]
		header := fmt.Sprintf("%s (%d)", status.Label(), len(tasks))
		sb.WriteString(StatusStyle(status).Bold(true).Render(header) + "\n")
		if len(tasks) == 0 {
			sb.WriteString(StyleSubtle.Render("  none") + "\n\n")
			continue
		}
		table := &Table{Headers: []string{"Task", "Deadline", "Assignee"}, MaxWidth: 48}
		for _, t := range tasks {
			table.Rows = append(table.Rows, []string{t.Name, dash(t.DeadlineString()), dash(t.AssigneeName)})
		}
		sb.WriteString(table.Render() + "\n")
	}
	return sb.String()
}

func summaryStyle(r *pipeline.Report) lipgloss.Style {
	switch {
	case r.DryRun:
		return StylePrimary
	case r.Cancelled:
		return StyleWarning
	case r.Failed() > 0:
		return StyleError
	default:
		return StyleSuccess
	}
}

func writeWarnings(sb *strings.Builder, warnings []string) {
	for _, w := range warnings {
		sb.WriteString("      " + StyleWarning.Render(w) + "\n")
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
