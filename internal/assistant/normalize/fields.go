package normalize

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
)

// object returns doc[key] when it is a JSON object.
func object(doc map[string]any, key string) (map[string]any, bool) {
	m, ok := doc[key].(map[string]any)
	return m, ok
}

// nestedOr returns doc[key] when it is an object, and doc itself otherwise.
func nestedOr(doc map[string]any, key string) map[string]any {
	if m, ok := object(doc, key); ok {
		return m
	}
	return doc
}

// firstString returns the first key holding a non-blank string.
func firstString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// score reads the first present key as a 0..100 integer. Strings such as
// "85" or "85/100" are accepted; anything else is 0.
func score(doc map[string]any, keys ...string) int {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr {
			if i := strings.IndexByte(s, '/'); i > 0 {
				v = strings.TrimSpace(s[:i])
			}
		}
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		return int(math.Round(math.Max(0, math.Min(100, f))))
	}
	return 0
}

func subScores(doc map[string]any) model.SubScores {
	src := doc
	for _, k := range []string{"scores", "categoryScores", "categories"} {
		if m, ok := object(doc, k); ok {
			src = m
			break
		}
	}
	return model.SubScores{
		Meaning:   score(src, "meaning", "meaningScore"),
		Rhythm:    score(src, "rhythm", "rhythmScore", "flow"),
		Rhymes:    score(src, "rhymes", "rhyme", "rhymesScore"),
		Structure: score(src, "structure", "structureScore"),
	}
}

// stringList collects the first present key as a list of non-blank strings.
// Object elements contribute their text/label/tag/name field.
func stringList(doc map[string]any, keys ...string) []string {
	for _, k := range keys {
		raw, ok := doc[k]
		if !ok || raw == nil {
			continue
		}
		if s, isStr := raw.(string); isStr {
			if strings.TrimSpace(s) == "" {
				continue
			}
			return splitTags(s)
		}
		arr, isArr := raw.([]any)
		if !isArr {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, el := range arr {
			var s string
			switch v := el.(type) {
			case string:
				s = v
			case map[string]any:
				s = firstString(v, "text", "label", "tag", "name", "value", "title")
			default:
				s = cast.ToString(v)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// splitTags splits a comma separated tag string such as "pop, upbeat".
func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mergeUnique(dst []string, src ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, s := range dst {
		seen[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range src {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

func quickActions(doc map[string]any) []model.QuickAction {
	arr, ok := doc["quickActions"].([]any)
	if !ok {
		return nil
	}
	out := make([]model.QuickAction, 0, len(arr))
	for _, el := range arr {
		switch v := el.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, model.QuickAction{Label: s})
			}
		case map[string]any:
			qa := model.QuickAction{
				Label:  firstString(v, "label", "title", "text"),
				ToolID: firstString(v, "toolId", "tool", "action"),
				Prompt: firstString(v, "prompt", "instruction"),
			}
			if qa.Label == "" {
				qa.Label = qa.Prompt
			}
			if qa.Label != "" {
				out = append(out, qa)
			}
		}
	}
	return out
}
