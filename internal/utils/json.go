package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoArray is returned when a response contains no bracket-delimited list.
var ErrNoArray = errors.New("no JSON array found in response")

// Pre-compiled regexes for LLM output recovery (compiled once, used many times)
var (
	// Greedy: first '[' through last ']' across lines.
	bracketedRegex = regexp.MustCompile(`(?s)\[.*\]`)

	// Fix trailing commas before closing brace/bracket
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)

	// Fix missing comma between objects: } { -> }, {
	missingCommaBetweenObjectsRegex = regexp.MustCompile(`}\s*{`)

	// Fix missing comma after value before new key: "value"\n"key": -> "value", "key":
	missingCommaBeforeKeyRegex = regexp.MustCompile(`(")\s*\n\s*("[\w][^"]*"\s*:)`)

	// Fix single quotes for object keys: {'key': -> {"key":
	singleQuoteKeyRegex = regexp.MustCompile(`([{,]\s*)'(\w+)'(\s*:)`)

	// Fix single quotes for string values: : 'value' -> : "value"
	singleQuoteValueRegex = regexp.MustCompile(`(:\s*)'((?:[^'\\]|\\.)*)'(\s*[,}\]])`)

	// Fix bare Python literals emitted by some models
	pythonLiteralRegex = regexp.MustCompile(`(:\s*)(None|True|False)(\s*[,}\]])`)
)

// ParseStrict decodes the whole response as T. Only surrounding whitespace is tolerated.
func ParseStrict[T any](response string) (T, error) {
	var result T
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return result, fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return result, fmt.Errorf("parse JSON: %w", err)
	}
	return result, nil
}

// FindBracketed returns the greedy bracket-delimited substring of response: from
// the first '[' to the last ']'.
func FindBracketed(response string) (string, bool) {
	match := bracketedRegex.FindString(response)
	return match, match != ""
}

// ParseBracketed finds the greedy bracket-delimited substring and decodes it as T.
// If the substring does not decode as-is, common LLM syntax slips are repaired
// and decoding is retried once.
func ParseBracketed[T any](response string) (T, error) {
	var result T
	candidate, ok := FindBracketed(response)
	if !ok {
		return result, ErrNoArray
	}

	err := json.Unmarshal([]byte(candidate), &result)
	if err == nil {
		return result, nil
	}

	repaired := RepairJSON(candidate)
	if repaired != candidate {
		var second T
		if err2 := json.Unmarshal([]byte(repaired), &second); err2 == nil {
			return second, nil
		}
	}
	return result, fmt.Errorf("parse bracketed JSON: %w", err)
}

// RepairJSON attempts to fix common JSON syntax errors from LLMs.
// Handles: control characters and invalid escapes inside strings, missing commas,
// trailing commas, single quotes, Python literals.
func RepairJSON(input string) string {
	result := sanitizeStrings(input)

	result = missingCommaBetweenObjectsRegex.ReplaceAllString(result, `}, {`)
	result = missingCommaBeforeKeyRegex.ReplaceAllString(result, `$1, $2`)
	result = trailingCommaRegex.ReplaceAllString(result, `$1`)
	result = singleQuoteKeyRegex.ReplaceAllString(result, `$1"$2"$3`)

	result = singleQuoteValueRegex.ReplaceAllStringFunc(result, func(match string) string {
		parts := singleQuoteValueRegex.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		value := strings.ReplaceAll(parts[2], `\'`, `'`)
		value = strings.ReplaceAll(value, `"`, `\"`)
		return parts[1] + `"` + value + `"` + parts[3]
	})

	result = pythonLiteralRegex.ReplaceAllStringFunc(result, func(match string) string {
		parts := pythonLiteralRegex.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		lit := map[string]string{"None": "null", "True": "true", "False": "false"}[parts[2]]
		return parts[1] + lit + parts[3]
	})

	return result
}

// sanitizeStrings escapes literal control characters and invalid escape sequences
// inside JSON strings. Bytes outside strings are left alone.
func sanitizeStrings(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	inString := false
	for i := 0; i < len(input); i++ {
		c := input[i]

		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case c == '\\':
			if i+1 < len(input) && strings.IndexByte(`"\/bfnrtu`, input[i+1]) >= 0 {
				b.WriteByte(c)
				b.WriteByte(input[i+1])
				i++
			} else {
				b.WriteString(`\\`)
			}
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			b.WriteString(fmt.Sprintf(`\u%04x`, c))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
