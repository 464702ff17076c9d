package util

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ExtractJSON strips a surrounding markdown code fence (```json ... ``` or
// ``` ... ```) from model output, returning the fenced body. Input without a
// fence is returned trimmed.
func ExtractJSON(s string) string {
	if idx := strings.Index(s, "```json"); idx >= 0 {
		body := s[idx+len("```json"):]
		if end := strings.Index(body, "```"); end >= 0 {
			return strings.TrimSpace(body[:end])
		}
		return strings.TrimSpace(body)
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		body := s[idx+3:]
		// Skip an optional language tag on the opening fence line.
		if nl := strings.Index(body, "\n"); nl >= 0 && nl < 20 && !strings.ContainsAny(body[:nl], "{[") {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			return strings.TrimSpace(body[:end])
		}
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(s)
}

// Stringify renders an arbitrary tool result as text for conversation
// transcripts and task results. Maps and slices are JSON encoded.
func Stringify(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case error:
		return r.Error()
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

// NewID generates a unique identifier for turns and tool calls.
func NewID() string { return uuid.NewString() }

// ShortID generates a compact identifier used for planner-generated task ids.
func ShortID() string { return uuid.NewString()[:8] }
