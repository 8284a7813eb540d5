package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Texter is implemented by raw responses that materialize their text lazily
// (SDK response wrappers). Failures are swallowed by the extractor and the
// next strategy is tried.
type Texter interface {
	Text() (string, error)
}

// textStrategy probes one known response shape. The extractor walks the
// list in priority order until a strategy succeeds, so new provider shapes
// get a new entry here rather than new control flow.
type textStrategy struct {
	name string
	fn   func(raw any) (string, bool)
}

var textStrategies = []textStrategy{
	{"raw-string", textFromString},
	{"text-accessor", textFromAccessor},
	{"text-field", func(raw any) (string, bool) { return stringField(raw, "text") }},
	{"output-text-field", func(raw any) (string, bool) { return stringField(raw, "outputText", "output_text") }},
	{"output-array", textFromOutputArray},
	{"serialize", textFromSerialization},
}

// ExtractText recovers a single text string from an untrusted model
// response. It never fails: when no strategy applies the result is the
// empty string and downstream code treats that as "no JSON found".
func ExtractText(raw any) string {
	for _, strategy := range textStrategies {
		if text, ok := strategy.fn(raw); ok {
			return text
		}
	}
	return ""
}

// textFromString passes a bare string response through untouched. Without
// it the serialization fallback would JSON-quote the text and escape any
// marker payload inside it.
func textFromString(raw any) (string, bool) {
	text, is := raw.(string)
	return text, is && text != ""
}

func textFromAccessor(raw any) (text string, ok bool) {
	accessor, is := raw.(Texter)
	if !is {
		return "", false
	}
	// A misbehaving accessor must not take the pipeline down.
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()
	value, err := accessor.Text()
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

func stringField(raw any, keys ...string) (string, bool) {
	object, is := raw.(map[string]any)
	if !is {
		return "", false
	}
	for _, key := range keys {
		if value, found := object[key].(string); found && value != "" {
			return value, true
		}
	}
	return "", false
}

// textFromOutputArray scans responses shaped like the OpenAI responses API:
// an "output" array whose entries carry either a string "text" field or a
// nested "content" array of text blocks, JSON blocks, or bare strings.
func textFromOutputArray(raw any) (string, bool) {
	object, is := raw.(map[string]any)
	if !is {
		return "", false
	}
	entries, is := object["output"].([]any)
	if !is {
		return "", false
	}
	for _, entry := range entries {
		item, is := entry.(map[string]any)
		if !is {
			continue
		}
		if text, found := item["text"].(string); found && text != "" {
			return text, true
		}
		content, is := item["content"].([]any)
		if !is {
			continue
		}
		for _, block := range content {
			switch typed := block.(type) {
			case string:
				if typed != "" {
					return typed, true
				}
			case map[string]any:
				if text, found := typed["text"].(string); found && text != "" {
					return text, true
				}
				if payload, found := typed["json"]; found {
					if serialized, err := json.Marshal(payload); err == nil {
						return string(serialized), true
					}
				}
			}
		}
	}
	return "", false
}

func textFromSerialization(raw any) (string, bool) {
	if raw == nil {
		return "", false
	}
	if serialized, err := json.Marshal(raw); err == nil {
		return string(serialized), true
	}
	return fmt.Sprintf("%v", raw), true
}

// braceBlockPattern isolates the first brace-delimited block, greedily, so
// the marker fallback and the parser's last leniency tier share one notion
// of "the first JSON object in this text".
var braceBlockPattern = regexp.MustCompile(`(?s)\{.*\}`)

func firstBraceBlock(text string) string {
	return strings.TrimSpace(braceBlockPattern.FindString(text))
}

// ExtractResultJSON isolates the JSON payload from extracted response text.
// When the sentinel marker is present the payload is everything after it,
// minus surrounding code fences; otherwise the first brace block in the
// whole text is used. Neither yielding a candidate is a NoJSONFoundError.
func ExtractResultJSON(text string) (string, error) {
	if idx := strings.Index(text, ResultMarker); idx >= 0 {
		candidate := stripCodeFences(text[idx+len(ResultMarker):])
		if candidate != "" {
			return candidate, nil
		}
	}
	if candidate := firstBraceBlock(text); candidate != "" {
		return candidate, nil
	}
	return "", &NoJSONFoundError{Preview: preview(text)}
}

// stripCodeFences removes a leading ```lang fence and a trailing ``` fence.
func stripCodeFences(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		} else {
			trimmed = strings.TrimLeft(trimmed, "`")
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	if strings.HasSuffix(trimmed, "```") {
		trimmed = trimmed[:len(trimmed)-3]
	}
	return strings.TrimSpace(trimmed)
}
