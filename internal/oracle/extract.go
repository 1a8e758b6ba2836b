package oracle

import (
	"fmt"
	"strings"
)

// ExtractJSON pulls the JSON object or array out of model output that may
// wrap it in markdown fences or prose. Returns *ParseError when no JSON body
// can be located.
func ExtractJSON(text string) ([]byte, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, &ParseError{Err: fmt.Errorf("empty response")}
	}

	// Prefer a fenced block when present.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			// Drop the language tag line ("json", "JSON", or empty).
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, &ParseError{Err: fmt.Errorf("no json body in response")}
	}
	open := s[start]
	var closing byte = '}'
	if open == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(s, closing)
	if end <= start {
		return nil, &ParseError{Err: fmt.Errorf("unterminated json body in response")}
	}
	return []byte(s[start : end+1]), nil
}
