package extract

import (
	"encoding/json"
	"strings"
)

// StripFences removes a markdown code fence around s, if there is one.
// Backtick and tilde fences are handled, tagged (```json) or bare; text
// outside the fence is dropped since models often wrap the payload in prose.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	fence := "```"
	start := strings.Index(trimmed, fence)
	if start < 0 {
		fence = "~~~"
		start = strings.Index(trimmed, fence)
	}
	if start < 0 {
		return trimmed
	}
	rest := trimmed[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line (```json etc).
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || isFenceTag(firstLine) {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// ExtractBalanced returns the first balanced {...} or [...] region of s,
// found by depth counting. The scan is string-aware: braces inside JSON
// string literals (and escaped quotes inside those) do not move the depth.
// Returns "" when no balanced region exists.
func ExtractBalanced(s string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// StripTrailingCommas removes commas that directly precede a closing brace
// or bracket, a tolerance for the most common malformation in model output.
// Commas inside string literals are left alone.
func StripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// parseObject decodes s as JSON and coerces the result to an object. A
// top-level array is wrapped as the actions list of an otherwise empty plan.
func parseObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return nil, false
	}
	switch typed := v.(type) {
	case map[string]any:
		return typed, true
	case []any:
		return map[string]any{"actions": typed, "summary": ""}, true
	default:
		return nil, false
	}
}

// Parse runs the local (non-backend) part of the ladder on text: direct
// parse, then fence stripping plus balanced extraction plus trailing-comma
// cleanup. Returns the parsed object and whether any stage succeeded.
func Parse(text string) (map[string]any, bool) {
	if obj, ok := parseObject(text); ok {
		return obj, true
	}
	candidate := ExtractBalanced(StripFences(text))
	if candidate == "" {
		return nil, false
	}
	if obj, ok := parseObject(candidate); ok {
		return obj, true
	}
	if obj, ok := parseObject(StripTrailingCommas(candidate)); ok {
		return obj, true
	}
	return nil, false
}
