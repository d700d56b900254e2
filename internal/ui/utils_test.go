package ui

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"empty", "", 10, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"very short max", "hello", 3, "hel"},
		{"zero max", "hello", 0, "hello"},
		{"multibyte", "Überprüfung", 6, "Übe..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Truncate(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		contains []string
	}{
		{"short text", "hello world", 20, []string{"hello world"}},
		{"needs wrap", "hello world foo bar", 10, []string{"hello", "world", "foo bar"}},
		{"zero width", "hello", 0, []string{"hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapText(tt.input, tt.width)
			for _, substr := range tt.contains {
				if !strings.Contains(result, substr) {
					t.Errorf("WrapText(%q, %d) = %q, expected to contain %q", tt.input, tt.width, result, substr)
				}
			}
		})
	}
}

func TestPanel(t *testing.T) {
	result := NewPanel("Title", "Content").Render()
	if !strings.Contains(result, "Title") || !strings.Contains(result, "Content") {
		t.Errorf("panel missing title or content: %q", result)
	}

	if got := RenderErrorPanel("Store unavailable", "check NOTION_API_KEY"); !strings.Contains(got, "NOTION_API_KEY") {
		t.Errorf("error panel missing content: %q", got)
	}
	if got := RenderWarningPanel("Dropped", "1 candidate"); !strings.Contains(got, "Dropped") {
		t.Errorf("warning panel missing title: %q", got)
	}
}
