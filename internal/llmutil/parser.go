// internal/llmutil/parser.go
package llmutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Tier records which extraction step produced a JSON payload.
type Tier int

const (
	TierNone Tier = iota
	// TierWhole means the entire trimmed response was JSON.
	TierWhole
	// TierSpan means the payload was the greedy span from the first '{' to the last '}'.
	TierSpan
)

func (t Tier) String() string {
	switch t {
	case TierWhole:
		return "whole"
	case TierSpan:
		return "span"
	default:
		return "none"
	}
}

// ErrNoJSON is returned when neither extraction tier yields a JSON object.
var ErrNoJSON = errors.New("no JSON object found in model response")

// fenceRegex matches a response that is wrapped, start to end, in a single
// markdown fence. \x60 is a backtick; raw strings cannot contain one.
var fenceRegex = regexp.MustCompile("(?s)^\x60\x60\x60[a-zA-Z]*[ \t]*\r?\n(.*)\r?\n?\x60\x60\x60$")

// ExtractJSONObject pulls a JSON object out of a model response. The whole
// response is tried first, then the greedy brace span. Anything else is
// ErrNoJSON, wrapped with a snippet of the response.
func ExtractJSONObject(response string) ([]byte, Tier, error) {
	trimmed := strings.TrimSpace(response)

	if isJSONObject(trimmed) {
		return []byte(trimmed), TierWhole, nil
	}

	first := strings.Index(trimmed, "{")
	last := strings.LastIndex(trimmed, "}")
	if first != -1 && last > first {
		span := trimmed[first : last+1]
		if isJSONObject(span) {
			return []byte(span), TierSpan, nil
		}
	}

	return nil, TierNone, fmt.Errorf("%w (response prefix: %q)", ErrNoJSON, Truncate(trimmed, 200))
}

func isJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

// ParseJSONResponse extracts a JSON object from an LLM response and decodes it
// into T.
func ParseJSONResponse[T any](response string) (*T, Tier, error) {
	payload, tier, err := ExtractJSONObject(response)
	if err != nil {
		return nil, TierNone, err
	}

	var result T
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, tier, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(string(payload), 500))
	}
	return &result, tier, nil
}

// CleanCodeOutput removes a markdown fence that wraps the entire response
// (```markdown ... ```). Fences inside the text are left alone.
func CleanCodeOutput(content string) string {
	content = strings.TrimSpace(content)
	if matches := fenceRegex.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return content
}

// Truncate keeps at most maxChars runes from the head of s. A multi-byte
// character is never split.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	count := 0
	for i := range s {
		if count == maxChars {
			return s[:i]
		}
		count++
	}
	return s
}
