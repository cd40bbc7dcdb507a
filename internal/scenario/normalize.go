package scenario

import (
	"encoding/json"
	"time"
)

// Raw is a loosely-typed scenario payload as received from the seed pool or
// the generator. Several legacy shapes are accepted; see Normalize.
type Raw = map[string]any

// Normalize coerces a raw payload into a canonical Scenario.
//
// Question is extracted with the precedence: "question" as a plain string,
// "question.text", "question.answer", then "prompt". Perspective:
// "perspective", "answer", "advice", then "rendered". Missing id, tags,
// created_at and hash fall back to defaults. A payload whose extracted
// question or perspective fails its minimum-length check yields a
// *ValidationError; callers drop the item and keep processing the batch.
func Normalize(raw any) (Scenario, error) {
	switch v := raw.(type) {
	case Scenario:
		return New(v.ID, v.Question, v.Perspective, v.Tags, v.CreatedAt, v.Hash)
	case *Scenario:
		if v == nil {
			return Scenario{}, &ValidationError{Field: "question"}
		}
		return New(v.ID, v.Question, v.Perspective, v.Tags, v.CreatedAt, v.Hash)
	case map[string]any:
		return normalizeMap(v)
	default:
		// Unknown concrete types (e.g. decoded API structs) go through a
		// JSON round-trip so the field fallbacks above still apply.
		b, err := json.Marshal(raw)
		if err != nil {
			return Scenario{}, &ValidationError{Field: "question"}
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return Scenario{}, &ValidationError{Field: "question"}
		}
		return normalizeMap(m)
	}
}

func normalizeMap(raw map[string]any) (Scenario, error) {
	question := extractFirst(raw,
		fieldString("question"),
		fieldNested("question", "text"),
		fieldNested("question", "answer"),
		fieldString("prompt"),
	)
	perspective := extractFirst(raw,
		fieldString("perspective"),
		fieldString("answer"),
		fieldString("advice"),
		fieldString("rendered"),
	)
	return New(
		stringField(raw, "id"),
		question,
		perspective,
		tagsField(raw),
		timeField(raw),
		stringField(raw, "hash"),
	)
}

// Raw renders the scenario in the canonical raw shape, the form snapshots
// persist and Normalize round-trips.
func (s Scenario) Raw() Raw {
	tags := make([]any, 0, len(s.Tags))
	for _, tag := range s.Tags {
		tags = append(tags, tag)
	}
	return Raw{
		"id":          s.ID,
		"question":    s.Question,
		"perspective": s.Perspective,
		"tags":        tags,
		"created_at":  s.CreatedAt.Format(time.RFC3339Nano),
		"hash":        s.Hash,
	}
}

type extractor func(map[string]any) (string, bool)

// extractFirst applies extractors in precedence order and returns the first
// non-empty hit.
func extractFirst(raw map[string]any, candidates ...extractor) string {
	for _, candidate := range candidates {
		if s, ok := candidate(raw); ok {
			return s
		}
	}
	return ""
}

func fieldString(key string) extractor {
	return func(raw map[string]any) (string, bool) {
		s, ok := raw[key].(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	}
}

func fieldNested(key, sub string) extractor {
	return func(raw map[string]any) (string, bool) {
		m, ok := raw[key].(map[string]any)
		if !ok {
			return "", false
		}
		s, ok := m[sub].(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	}
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func tagsField(raw map[string]any) []string {
	switch v := raw["tags"].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func timeField(raw map[string]any) time.Time {
	for _, key := range []string{"created_at", "createdAt"} {
		s, ok := raw[key].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
