package intake

import (
	"strings"
)

// Keys the upstream platform has used to wrap collected fields.
var containerKeys = []string{"data", "fields", "collected_data"}

const resultsKey = "results"

// Extract walks v and returns every schema field it can find.
//
// Precedence, most to least authoritative:
//  1. fields found under results[0].items[0].collected_data
//  2. fields set directly on the node
//  3. fields from the first container (data, fields, collected_data, then
//     any other object-valued key in document order) that has them
//
// Extract never fails. Non-object input yields an empty result.
func (s *Schema) Extract(v Value) Fields {
	return s.extract(v, 0)
}

// ExtractBytes parses body and extracts from it.
func (s *Schema) ExtractBytes(body []byte) (Fields, error) {
	v, err := Parse(body)
	if err != nil {
		return nil, err
	}
	return s.Extract(v), nil
}

func (s *Schema) extract(node Value, depth int) Fields {
	out := Fields{}
	if !node.IsObject() || depth > s.maxDepth {
		return out
	}

	for _, f := range s.fields {
		raw, ok := node.Get(f.Key)
		if !ok {
			continue
		}
		if str, ok := coerce(f.Key, raw); ok {
			out[f.Key] = str
		}
	}

	if collected, ok := node.Path(resultsKey, 0, "items", 0, "collected_data"); ok && isPresent(collected) {
		for k, v := range s.extract(collected, depth+1) {
			out[k] = v
		}
	}

	visited := map[string]bool{resultsKey: true}
	descend := func(key string, child Value) {
		if visited[key] {
			return
		}
		visited[key] = true
		if !child.IsObject() {
			return
		}
		for k, v := range s.extract(child, depth+1) {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}

	for _, key := range containerKeys {
		if child, ok := node.Get(key); ok {
			descend(key, child)
		}
	}
	for _, m := range node.Members() {
		descend(m.Key, m.Value)
	}

	return out
}

// isPresent mirrors a truthiness check on the nested collected_data slot.
func isPresent(v Value) bool {
	if v.IsNull() {
		return false
	}
	switch v.Kind() {
	case KindString:
		return v.text != ""
	case KindBool:
		return v.boolean
	default:
		return true
	}
}

// coerce turns a raw field value into its string form. Values wrapped as
// {"value": X} are unwrapped first. Null is absent.
func coerce(key string, raw Value) (string, bool) {
	if raw.IsObject() {
		if inner, ok := raw.Get("value"); ok {
			raw = inner
		}
	}

	if raw.IsNull() {
		return "", false
	}
	if raw.IsArray() && key == FieldTranscript {
		if text, ok := formatTurns(raw); ok {
			return text, true
		}
	}

	switch raw.Kind() {
	case KindString, KindNumber:
		return raw.text, true
	case KindBool:
		if raw.boolean {
			return "true", true
		}
		return "false", true
	}

	b, err := raw.MarshalJSON()
	if err != nil {
		return "", false
	}
	return string(b), true
}

// formatTurns renders a conversation transcript given as
// [{"role": "agent", "message": "..."}, ...] as "role: message" lines.
// Turns without a message (tool calls, for instance) are skipped.
func formatTurns(turns Value) (string, bool) {
	var lines []string
	for _, turn := range turns.Items() {
		if !turn.IsObject() {
			return "", false
		}
		msg, ok := turn.Get("message")
		if !ok || msg.Kind() != KindString {
			continue
		}
		role := "unknown"
		if r, ok := turn.Get("role"); ok && r.Kind() == KindString && r.text != "" {
			role = r.text
		}
		lines = append(lines, role+": "+msg.text)
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}
