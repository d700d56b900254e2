package operation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/josephgoksu/voiceboard/internal/board"
)

// SystemInstruction is the default persona for the extraction call.
const SystemInstruction = `<instructions>
You turn spoken instructions about a kanban board into a JSON list of board operations.
You never chat, explain or wrap the output in markdown. You reply with a JSON array only.
</instructions>`

// ReformatInstruction is the system instruction for the tier-three reformat call.
const ReformatInstruction = `You convert text into a JSON array of objects. Reply with the JSON array only: no prose, no markdown fences. If the text contains no operations, reply with [].`

const outputContract = `<output_format>
Reply with ONLY a JSON array. Each element is one object with a "kind" field and the fields of that kind:

- {"kind": "create", "task": "<title>", "status": "NotStarted|InProgress|Done", "deadline": "YYYY-MM-DD", "assignee": "<name>"}
  status, deadline and assignee are optional. status defaults to NotStarted.
- {"kind": "update", "task": "<existing title>", "status": "...", "deadline": "YYYY-MM-DD", "assignee": "<name>"}
  include only the fields that change.
- {"kind": "delete", "task": "<existing title>"}
- {"kind": "rename", "old_name": "<existing title>", "new_name": "<new title>"}
- {"kind": "comment", "task": "<existing title>", "comment": "<text>"}
- {"kind": "reposition", "task": "<existing title>", "position": "top|bottom|before|after", "reference_task": "<existing title>"}
  reference_task is required for before and after.

Omit a field rather than writing null, "none" or "unknown". If nothing in the input changes the board, reply with [].
</output_format>`

const guidelines = `<rules>
- Refer to existing tasks by their exact title as listed on the board.
- Convert natural speech into clear, actionable task titles that start with an imperative verb ("Create", "Update", "Research").
- Keep the speaker's intent but make each new task specific and trackable.
- Combine related items into a single task where that is logical.
- Remove filler words and conversational elements.
- Resolve relative dates ("tomorrow", "next Friday") against today's date.
- Only use assignee names from the team list.
</rules>`

// PromptInput is everything the extraction prompt embeds.
type PromptInput struct {
	Transcript string
	Snapshot   board.Snapshot
	Directory  board.Directory
	Today      time.Time
}

// BuildPrompt renders the extraction prompt.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder

	sb.WriteString("<board>\n")
	groups := in.Snapshot.GroupByStatus()
	for _, status := range board.Statuses {
		fmt.Fprintf(&sb, "%s:\n", status.Label())
		tasks := groups[status]
		if len(tasks) == 0 {
			sb.WriteString("- (no tasks)\n")
			continue
		}
		for _, t := range tasks {
			assignee := t.AssigneeName
			if assignee == "" {
				if name, ok := in.Directory.NameByID(t.AssigneeID); ok {
					assignee = name
				} else {
					assignee = "none"
				}
			}
			fmt.Fprintf(&sb, "- %s (assignee: %s, deadline: %s)\n", t.Name, assignee, t.DeadlineString())
		}
	}
	sb.WriteString("</board>\n\n")

	sb.WriteString("<team>\n")
	names := in.Directory.Names()
	if len(names) == 0 {
		sb.WriteString("(no known team members)\n")
	}
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s\n", name)
	}
	sb.WriteString("</team>\n\n")

	today := in.Today
	if today.IsZero() {
		today = time.Now()
	}
	fmt.Fprintf(&sb, "<today>%s (%s)</today>\n\n", today.Format(board.DateLayout), today.Weekday())

	sb.WriteString(guidelines)
	sb.WriteString("\n\n")
	sb.WriteString(outputContract)
	sb.WriteString("\n\n<transcript>\n")
	sb.WriteString(in.Transcript)
	sb.WriteString("\n</transcript>\n")

	return sb.String()
}

// BuildReformatPrompt asks the engine to reshape its own earlier reply.
func BuildReformatPrompt(raw string) string {
	var sb strings.Builder
	sb.WriteString("Reformat the following text into a JSON array of board operation objects.\n\n")
	sb.WriteString(outputContract)
	sb.WriteString("\n\n<text>\n")
	sb.WriteString(raw)
	sb.WriteString("\n</text>\n")
	return sb.String()
}

// SystemInstructionFile is the override file looked up in the prompts directory.
const SystemInstructionFile = "system_instruction.txt"

// LoadSystemInstruction returns the override from dir when one exists, otherwise
// the built-in SystemInstruction.
func LoadSystemInstruction(fsys afero.Fs, dir string, logger *slog.Logger) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return SystemInstruction, nil
	}
	path := filepath.Join(dir, SystemInstructionFile)
	content, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return SystemInstruction, nil
	}
	if err != nil {
		return "", fmt.Errorf("read system instruction %s: %w", path, err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return SystemInstruction, nil
	}
	if logger != nil {
		logger.Debug("using custom system instruction", "path", path)
	}
	return string(content), nil
}
