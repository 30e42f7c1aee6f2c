package schema

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// CleanJSONResponse removes markdown code blocks and surrounding prose from
// a model response. It never adds attributes; a response that cannot be
// recovered is returned unchanged and fails decoding.
func CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") && strings.HasSuffix(response, "```") && len(response) >= 6 {
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimPrefix(response, "json")
		response = strings.TrimSpace(response)
	}

	return extractJSON(response)
}

// extractJSON finds the outermost JSON object in a response that may contain
// other text.
func extractJSON(response string) string {
	if json.Valid([]byte(response)) {
		return response
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return response
	}

	end := matchBrace(response, start)
	if end == -1 {
		return response
	}

	candidate := response[start : end+1]
	if json.Valid([]byte(candidate)) {
		return candidate
	}

	fixed := trailingComma.ReplaceAllString(candidate, "$1")
	if json.Valid([]byte(fixed)) {
		return fixed
	}

	return response
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside string literals.
func matchBrace(s string, start int) int {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
