package llm

import (
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches a JSON object inside a markdown code block.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern matches the outermost JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// cleanJSONResponse strips the markdown fences models wrap JSON in even when
// told not to.
func cleanJSONResponse(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// ExtractJSON pulls a JSON object out of a completion, tolerating code fences,
// surrounding prose, // comments and trailing commas. It returns "" when no
// object is present.
func ExtractJSON(content string) string {
	cleaned := cleanJSONResponse(content)
	if strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}") {
		return tidyJSON(cleaned)
	}
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		return tidyJSON(m[1])
	}
	if m := jsonObjectPattern.FindString(content); m != "" {
		return tidyJSON(m)
	}
	return ""
}

func tidyJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a // comment outside of JSON strings.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
