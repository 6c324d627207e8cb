package resolver

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

var ErrNoJSON = errors.New("no json found in response")

// extractJSON returns the span from the first open to the last close
// bracket. Comments and trailing commas are stripped before returning.
func extractJSON(text string, open, close byte) ([]byte, error) {
	text = unquoteOnce(strings.TrimSpace(text))
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	return jsonc.ToJSON([]byte(text[start : end+1])), nil
}

// unquoteOnce handles a whole response that arrives as a JSON string literal.
func unquoteOnce(text string) string {
	if len(text) < 2 || text[0] != '"' {
		return text
	}
	var inner string
	if err := json.Unmarshal([]byte(text), &inner); err != nil {
		return text
	}
	return strings.TrimSpace(inner)
}

func parseObject(text string) (map[string]any, error) {
	raw, err := extractJSON(text, '{', '}')
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return unwrapObject(m), nil
}

func parseArray(text string) ([]any, error) {
	raw, err := extractJSON(text, '[', ']')
	if err != nil {
		return nil, err
	}
	var arr []any
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, err
	}
	return arr, nil
}

// unwrapObject merges any string field that itself holds a JSON object into
// m. Exactly one level is unwrapped; nested encodings are left alone.
func unwrapObject(m map[string]any) map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		inner, ok := decodeEmbeddedObject(m[k])
		if !ok {
			continue
		}
		delete(out, k)
		for ik, iv := range inner {
			out[ik] = iv
		}
	}
	return out
}

func decodeEmbeddedObject(v any) (map[string]any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, false
	}
	var inner map[string]any
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return nil, false
	}
	return inner, true
}
