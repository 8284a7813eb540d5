package ai

import (
	"errors"
	"reflect"
	"testing"
)

type stubTexter struct {
	text string
	err  error
}

func (s stubTexter) Text() (string, error) {
	return s.text, s.err
}

type panicTexter struct{}

func (panicTexter) Text() (string, error) {
	panic("boom")
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		expected string
	}{
		{"bare string", "###RESULT_JSON###\n{\"verdict\":\"v\"}", "###RESULT_JSON###\n{\"verdict\":\"v\"}"},
		{"texter accessor", stubTexter{text: "from accessor"}, "from accessor"},
		{"text field", map[string]any{"text": "plain field"}, "plain field"},
		{"output text field", map[string]any{"outputText": "alt field"}, "alt field"},
		{"snake output text", map[string]any{"output_text": "snake field"}, "snake field"},
		{
			"output array with text entry",
			map[string]any{"output": []any{map[string]any{"text": "entry text"}}},
			"entry text",
		},
		{
			"output array with content blocks",
			map[string]any{"output": []any{map[string]any{"content": []any{map[string]any{"type": "output_text", "text": "block text"}}}}},
			"block text",
		},
		{
			"output array with json block",
			map[string]any{"output": []any{map[string]any{"content": []any{map[string]any{"json": map[string]any{"verdict": "v"}}}}}},
			`{"verdict":"v"}`,
		},
		{
			"output array with bare string",
			map[string]any{"output": []any{map[string]any{"content": []any{"bare"}}}},
			"bare",
		},
		{"serialization fallback", map[string]any{"unexpected": true}, `{"unexpected":true}`},
		{"nil response", nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractText(tc.raw); got != tc.expected {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
		})
	}
}

func TestExtractTextSwallowsAccessorFailures(t *testing.T) {
	// A failing accessor must not surface; extraction falls through to the
	// serialization strategy without raising.
	if got := ExtractText(stubTexter{err: errors.New("unavailable")}); got != "{}" {
		t.Fatalf("expected serialized fallback got %q", got)
	}
	_ = ExtractText(panicTexter{})
}

func TestExtractTextBareStringKeepsMarkerIntact(t *testing.T) {
	// A raw string must pass through verbatim; JSON-quoting it would escape
	// the newline and bury the marker payload.
	raw := "###RESULT_JSON###\n{\"verdict\":\"v\"}"
	text := ExtractText(raw)
	if text != raw {
		t.Fatalf("bare string mangled: %q", text)
	}
	candidate, err := ExtractResultJSON(text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if candidate != `{"verdict":"v"}` {
		t.Fatalf("unexpected candidate %q", candidate)
	}
}

func TestExtractResultJSON(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			"marker with plain payload",
			"###RESULT_JSON###\n{\"verdict\":\"v\"}",
			`{"verdict":"v"}`,
		},
		{
			"marker with fenced payload",
			"###RESULT_JSON###\n```json\n{\"verdict\":\"v\"}\n```",
			`{"verdict":"v"}`,
		},
		{
			"marker with untagged fence",
			"###RESULT_JSON###\n```\n{\"verdict\":\"v\"}\n```",
			`{"verdict":"v"}`,
		},
		{
			"no marker falls back to brace block",
			"Here is my analysis: {\"verdict\":\"v\"} hope it helps",
			`{"verdict":"v"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractResultJSON(tc.text)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if got != tc.expected {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
		})
	}
}

func TestExtractResultJSONFencedMatchesUnfenced(t *testing.T) {
	fenced := "###RESULT_JSON###\n```json\n{\"verdict\":\"v\",\"analysis\":[]}\n```"
	unfenced := "###RESULT_JSON###\n{\"verdict\":\"v\",\"analysis\":[]}"

	fromFenced, err := ExtractResultJSON(fenced)
	if err != nil {
		t.Fatalf("fenced extract: %v", err)
	}
	fromUnfenced, err := ExtractResultJSON(unfenced)
	if err != nil {
		t.Fatalf("unfenced extract: %v", err)
	}

	parsedFenced, err := ParseLenientJSON(fromFenced)
	if err != nil {
		t.Fatalf("fenced parse: %v", err)
	}
	parsedUnfenced, err := ParseLenientJSON(fromUnfenced)
	if err != nil {
		t.Fatalf("unfenced parse: %v", err)
	}
	if !reflect.DeepEqual(parsedFenced, parsedUnfenced) {
		t.Fatalf("fenced and unfenced payloads diverge: %v vs %v", parsedFenced, parsedUnfenced)
	}
}

func TestExtractResultJSONNoCandidate(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty text", ""},
		{"prose only", "the model refused to answer"},
		{"bare marker", "###RESULT_JSON###"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractResultJSON(tc.text)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsNoJSONFound(err) {
				t.Fatalf("expected NoJSONFoundError got %v", err)
			}
		})
	}
}
