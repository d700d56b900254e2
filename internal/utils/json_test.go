package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type candidates = []map[string]any

func TestParseStrict(t *testing.T) {
	got, err := ParseStrict[candidates]("  [{\"task\": \"Buy milk\"}]\n")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Buy milk", got[0]["task"])

	_, err = ParseStrict[candidates]("Sure! [{\"task\": \"Buy milk\"}]")
	assert.Error(t, err, "leading prose is not tolerated")

	_, err = ParseStrict[candidates]("")
	assert.Error(t, err)
}

func TestFindBracketed_IsGreedy(t *testing.T) {
	in := "Here you go:\n```json\n[{\"task\": \"A\"}, {\"task\": \"B [draft]\"}]\n```\nLet me know!"
	got, ok := FindBracketed(in)
	require.True(t, ok)
	assert.Equal(t, `[{"task": "A"}, {"task": "B [draft]"}]`, got)

	_, ok = FindBracketed("no structure at all")
	assert.False(t, ok)
}

func TestParseBracketed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{
			name:  "markdown fenced",
			input: "```json\n[{\"operation\": \"create\", \"task\": \"Buy milk\"}]\n```",
			want:  1,
		},
		{
			name:  "prose around array",
			input: "I found two operations:\n[{\"task\": \"A\"}, {\"task\": \"B\"}]\nHope this helps.",
			want:  2,
		},
		{
			name:  "trailing comma repaired",
			input: `[{"task": "A",}, {"task": "B"},]`,
			want:  2,
		},
		{
			name:  "single quotes repaired",
			input: `[{'task': 'A', 'status': 'Done'}]`,
			want:  1,
		},
		{
			name:  "missing comma between objects repaired",
			input: "[{\"task\": \"A\"}\n{\"task\": \"B\"}]",
			want:  2,
		},
		{
			name:  "python literals repaired",
			input: `[{"task": "A", "deadline": None}]`,
			want:  1,
		},
		{
			name:    "no brackets",
			input:   "I could not understand the request.",
			wantErr: true,
		},
		{
			name:    "brackets without JSON",
			input:   "[citation needed]",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBracketed[candidates](tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseBracketed_NoArraySentinel(t *testing.T) {
	_, err := ParseBracketed[candidates]("nothing here")
	assert.ErrorIs(t, err, ErrNoArray)
}

func TestRepairJSON_InvalidEscapesAndNewlines(t *testing.T) {
	in := "[{\"comment\": \"path C:\\code and\nnew line\"}]"
	repaired := RepairJSON(in)

	var out candidates
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, "path C:\\code and\nnew line", out[0]["comment"])
}

func TestRepairJSON_ValidInputUnchanged(t *testing.T) {
	in := `[{"task": "A \"quoted\"", "comment": "line\nbreak"}]`
	assert.Equal(t, in, RepairJSON(in))
}
