// Package mcp exposes the board and the transcript pipeline as MCP tools.
// Responses are compact Markdown meant for an assistant to read.
package mcp

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
)

// FormatBoard renders the board grouped by status. An empty filter shows every column.
func FormatBoard(snap board.Snapshot, only board.Status) string {
	if snap.Len() == 0 {
		return "The board is empty."
	}

	var sb strings.Builder
	groups := snap.GroupByStatus()
	for _, status := range board.Statuses {
		if only != "" && status != only {
			continue
		}
		tasks := groups[status]
		sb.WriteString(fmt.Sprintf("## %s %s (%d)\n", statusIcon(status), status.Label(), len(tasks)))
		for _, t := range tasks {
			sb.WriteString(fmt.Sprintf("- **%s**", t.Name))
			var meta []string
			if t.Deadline != nil {
				meta = append(meta, "due "+t.Deadline.String())
			}
			if t.AssigneeName != "" {
				meta = append(meta, "@"+t.AssigneeName)
			}
			if len(meta) > 0 {
				sb.WriteString(" (" + strings.Join(meta, ", ") + ")")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// FormatReport renders a pipeline run: operations, per-operation outcomes,
// dropped candidates and warnings.
func FormatReport(r *pipeline.Report) string {
	if r == nil {
		return "No run information."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n", cases.Title(language.English).String(runState(r))))
	sb.WriteString(r.Summary() + "\n")
	sb.WriteString(fmt.Sprintf("**Parse**: %s", r.Tier))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf(" | **Run**: `%s`", r.RunID))
	}
	sb.WriteString("\n\n")

	if r.DryRun || r.Cancelled {
		if len(r.Operations) > 0 {
			sb.WriteString("### Operations\n")
			for i, op := range r.Operations {
				sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, op.String()))
			}
			sb.WriteString("\n")
		}
	} else if len(r.Results) > 0 {
		sb.WriteString("### Results\n")
		for _, res := range r.Results {
			if res.OK() {
				line := fmt.Sprintf("- ✅ %s", res.Operation.String())
				if res.Note != "" {
					line += " (" + res.Note + ")"
				}
				sb.WriteString(line + "\n")
			} else {
				sb.WriteString(fmt.Sprintf("- ❌ %s: %s\n", res.Operation.String(), res.Reason))
			}
		}
		sb.WriteString("\n")
	}

	if len(r.Rejections) > 0 {
		sb.WriteString("### Dropped\n")
		for _, rej := range r.Rejections {
			sb.WriteString(fmt.Sprintf("- #%d: %s\n", rej.Index, rej.Reason))
		}
		sb.WriteString("\n")
	}

	var warnings []string
	warnings = append(warnings, r.Warnings...)
	for _, res := range r.Results {
		warnings = append(warnings, res.Warnings...)
	}
	if len(warnings) > 0 {
		sb.WriteString("### Warnings\n")
		for _, w := range warnings {
			sb.WriteString("- " + w + "\n")
		}
	}
	return strings.TrimSpace(sb.String())
}

func runState(r *pipeline.Report) string {
	switch {
	case r.DryRun:
		return "dry run"
	case r.Cancelled:
		return "cancelled"
	case r.Failed() > 0:
		return "partially applied"
	default:
		return "applied"
	}
}

func statusIcon(s board.Status) string {
	switch s {
	case board.StatusNotStarted:
		return "⏳"
	case board.StatusInProgress:
		return "🔄"
	case board.StatusDone:
		return "✅"
	default:
		return "•"
	}
}
