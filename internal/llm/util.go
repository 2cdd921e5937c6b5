package llm

import "strings"

// CleanJSONBlock strips markdown fences and any prose around the first JSON
// object in an LLM response.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language identifier on the first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "{") {
		if obj := extractJSONObject(text); obj != "" {
			return obj
		}
		return text
	}

	if idx := strings.Index(text, "{"); idx >= 0 {
		if obj := extractJSONObject(text[idx:]); obj != "" {
			return obj
		}
	}
	return text
}

// extractJSONObject returns the balanced object at the start of s, honouring
// string literals and escapes. It returns "" when s does not start with one.
func extractJSONObject(s string) string {
	if !strings.HasPrefix(s, "{") {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
