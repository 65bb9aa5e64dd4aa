package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

const maxCandidates = 64

var (
	fencedBlock = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\\n?(.*?)```")

	// ErrNoPayload means no parseable structure was found in the response.
	ErrNoPayload = errors.New("no structured payload in model response")
)

// Extract pulls the first machine-parseable object or array out of a model
// response. Fenced blocks win over bare spans. Surrounding prose is
// ignored; the payload itself must parse as JSON, or as YAML that
// re-encodes to a JSON object or array.
func Extract(raw string) ([]byte, error) {
	for _, m := range fencedBlock.FindAllStringSubmatch(raw, -1) {
		if payload, ok := parseCandidate(m[1], true); ok {
			return payload, nil
		}
	}
	for _, span := range spans(fencedBlock.ReplaceAllString(raw, "")) {
		if payload, ok := parseCandidate(span, false); ok {
			return payload, nil
		}
	}
	return nil, ErrNoPayload
}

func spans(text string) []string {
	var out []string
	for i := 0; i < len(text) && len(out) < maxCandidates; i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if end, ok := balancedEnd(text, i); ok {
			out = append(out, text[i:end])
		}
	}
	return out
}

// balancedEnd returns the index just past the bracket that closes the one
// at start, skipping brackets inside double-quoted strings.
func balancedEnd(s string, start int) (int, bool) {
	var stack []byte
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// parseCandidate accepts strict JSON first. The YAML fallback is lenient
// enough to read prose like "{this}" as a mapping, so outside a fence it
// only accepts a mapping with at least one non-null value.
func parseCandidate(candidate string, fenced bool) ([]byte, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	if json.Valid([]byte(candidate)) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(candidate)); err == nil && isContainer(buf.Bytes()) {
			return buf.Bytes(), true
		}
		return nil, false
	}

	var decoded any
	if err := yaml.Unmarshal([]byte(candidate), &decoded); err != nil {
		return nil, false
	}
	switch v := decoded.(type) {
	case map[string]any:
		if !fenced && !hasValue(v) {
			return nil, false
		}
	case []any:
		if !fenced {
			return nil, false
		}
	default:
		return nil, false
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		return nil, false
	}
	return encoded, true
}

func hasValue(m map[string]any) bool {
	for _, v := range m {
		if v != nil {
			return true
		}
	}
	return false
}

func isContainer(payload []byte) bool {
	return len(payload) > 0 && (payload[0] == '{' || payload[0] == '[')
}

// wrapArray places a top-level array under key so object schemas can
// accept models that answer with a bare list.
func wrapArray(payload []byte, key string) ([]byte, error) {
	if key == "" || len(payload) == 0 || payload[0] != '[' {
		return payload, nil
	}
	wrapped, err := json.Marshal(map[string]json.RawMessage{key: payload})
	if err != nil {
		return nil, fmt.Errorf("wrap array payload: %w", err)
	}
	return wrapped, nil
}
