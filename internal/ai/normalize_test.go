package ai

import (
	"testing"
)

func TestNormalizeResultRoundTrip(t *testing.T) {
	parsed, err := ParseLenientJSON(`{
		"analysis": [
			{"optionId": "o1", "criteriaAnalysis": [{"criteriaId": "c1", "score": 80, "reasoning": "solid", "confidence": 90}], "pros": ["fast"], "cons": ["pricey"]},
			{"optionId": "o2", "criteriaAnalysis": [{"criteriaId": "c1", "score": 60, "reasoning": "ok"}], "pros": [], "cons": []}
		],
		"verdict": "o1 leads",
		"winnerId": "o1",
		"recommendation": "pick o1"
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result := NormalizeResult(parsed)
	if len(result.Analysis) != 2 {
		t.Fatalf("expected 2 analyses got %d", len(result.Analysis))
	}
	if result.Analysis[0].OptionID != "o1" || result.Analysis[1].OptionID != "o2" {
		t.Fatalf("option ids not preserved: %+v", result.Analysis)
	}
	if result.Analysis[0].Criteria[0].Score != 80 {
		t.Fatalf("expected score 80 got %d", result.Analysis[0].Criteria[0].Score)
	}
	if result.Analysis[0].Criteria[0].Confidence == nil || *result.Analysis[0].Criteria[0].Confidence != 90 {
		t.Fatalf("confidence not preserved: %+v", result.Analysis[0].Criteria[0])
	}
	if result.Analysis[1].Criteria[0].Confidence != nil {
		t.Fatal("confidence fabricated for entry without one")
	}
	if result.Verdict != "o1 leads" || result.WinnerID != "o1" || result.Recommendation != "pick o1" {
		t.Fatalf("top-level fields not preserved: %+v", result)
	}
}

func TestNormalizeResultScoreClamping(t *testing.T) {
	tests := []struct {
		name     string
		score    any
		expected int
	}{
		{"negative", -5, 0},
		{"above range", float64(150), 100},
		{"non numeric", "abc", 0},
		{"missing", nil, 0},
		{"rounds to nearest", 87.6, 88},
		{"rounds down", 42.4, 42},
		{"in range integer", float64(70), 70},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entry := map[string]any{"criteriaId": "c1"}
			if tc.score != nil {
				entry["score"] = tc.score
			}
			parsed := map[string]any{
				"analysis": []any{
					map[string]any{"optionId": "o1", "criteriaAnalysis": []any{entry}},
				},
			}
			result := NormalizeResult(parsed)
			if got := result.Analysis[0].Criteria[0].Score; got != tc.expected {
				t.Fatalf("expected %d got %d", tc.expected, got)
			}
		})
	}
}

func TestNormalizeResultAnalysisShapes(t *testing.T) {
	tests := []struct {
		name     string
		parsed   any
		expected int
	}{
		{
			"top level array",
			[]any{map[string]any{"optionId": "o1", "criteriaAnalysis": []any{}}},
			1,
		},
		{
			"analysis field array",
			map[string]any{"analysis": []any{map[string]any{"optionId": "o1", "criteriaAnalysis": []any{}}}},
			1,
		},
		{
			"analysis field single record wrapped",
			map[string]any{"analysis": map[string]any{"optionId": "o1", "criteriaAnalysis": []any{}}},
			1,
		},
		{
			"object itself is a record",
			map[string]any{"optionId": "o1", "criteriaAnalysis": []any{}},
			1,
		},
		{"analysis missing", map[string]any{"verdict": "v"}, 0},
		{"analysis null", map[string]any{"analysis": nil}, 0},
		{"scalar input", "nonsense", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := NormalizeResult(tc.parsed)
			if result.Analysis == nil {
				t.Fatal("analysis must never be nil")
			}
			if len(result.Analysis) != tc.expected {
				t.Fatalf("expected %d analyses got %d", tc.expected, len(result.Analysis))
			}
		})
	}
}

func TestNormalizeResultFieldFallbacks(t *testing.T) {
	parsed := map[string]any{
		"analysis": []any{
			map[string]any{
				"option_id": "o1",
				"criteria": []any{
					map[string]any{"criterionId": "c1", "value": float64(55), "explanation": "because"},
				},
				"strengths":  []any{"cheap", 7},
				"weaknesses": []any{"slow"},
			},
		},
		"summary": "close call",
		"winner":  "o1",
		"advice":  "take o1",
	}

	result := NormalizeResult(parsed)
	analysis := result.Analysis[0]
	if analysis.OptionID != "o1" {
		t.Fatalf("option_id alias not resolved: %q", analysis.OptionID)
	}
	if analysis.Criteria[0].CriterionID != "c1" || analysis.Criteria[0].Score != 55 {
		t.Fatalf("criterion aliases not resolved: %+v", analysis.Criteria[0])
	}
	if analysis.Criteria[0].Reasoning != "because" {
		t.Fatalf("reasoning alias not resolved: %q", analysis.Criteria[0].Reasoning)
	}
	if len(analysis.Pros) != 2 || analysis.Pros[1] != "7" {
		t.Fatalf("pros not coerced to strings: %v", analysis.Pros)
	}
	if len(analysis.Cons) != 1 {
		t.Fatalf("cons alias not resolved: %v", analysis.Cons)
	}
	if result.Verdict != "close call" || result.WinnerID != "o1" || result.Recommendation != "take o1" {
		t.Fatalf("top-level aliases not resolved: %+v", result)
	}
}

func TestNormalizeResultUnknownOptionID(t *testing.T) {
	parsed := map[string]any{
		"analysis": []any{map[string]any{"criteriaAnalysis": []any{}}},
	}
	result := NormalizeResult(parsed)
	if result.Analysis[0].OptionID != unknownOptionID {
		t.Fatalf("expected sentinel id got %q", result.Analysis[0].OptionID)
	}
}

func TestNormalizeResultWinnerValidation(t *testing.T) {
	parsed := map[string]any{
		"analysis": []any{
			map[string]any{"optionId": "o1", "criteriaAnalysis": []any{map[string]any{"criteriaId": "c1", "score": float64(90)}}},
			map[string]any{"optionId": "o2", "criteriaAnalysis": []any{map[string]any{"criteriaId": "c1", "score": float64(72)}}},
		},
		"winnerId": "ghost",
	}
	result := NormalizeResult(parsed)
	// A winner that references no analysis entry is discarded and inference
	// picks the highest mean instead.
	if result.WinnerID != "o1" {
		t.Fatalf("expected inferred winner o1 got %q", result.WinnerID)
	}
}

func TestWinnerInference(t *testing.T) {
	tests := []struct {
		name     string
		parsed   map[string]any
		expected string
	}{
		{
			"higher mean wins",
			map[string]any{"analysis": []any{
				map[string]any{"optionId": "o1", "criteriaAnalysis": []any{
					map[string]any{"criteriaId": "c1", "score": float64(90)},
					map[string]any{"criteriaId": "c2", "score": float64(90)},
				}},
				map[string]any{"optionId": "o2", "criteriaAnalysis": []any{
					map[string]any{"criteriaId": "c1", "score": float64(72)},
					map[string]any{"criteriaId": "c2", "score": float64(72)},
				}},
			}},
			"o1",
		},
		{
			"tie breaks by first occurrence",
			map[string]any{"analysis": []any{
				map[string]any{"optionId": "first", "criteriaAnalysis": []any{map[string]any{"criteriaId": "c1", "score": float64(50)}}},
				map[string]any{"optionId": "second", "criteriaAnalysis": []any{map[string]any{"criteriaId": "c1", "score": float64(50)}}},
			}},
			"first",
		},
		{
			"no analyses no inference",
			map[string]any{"analysis": []any{}},
			"",
		},
		{
			"single analysis no inference",
			map[string]any{"analysis": []any{
				map[string]any{"optionId": "only", "criteriaAnalysis": []any{map[string]any{"criteriaId": "c1", "score": float64(99)}}},
			}},
			"",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := NormalizeResult(tc.parsed)
			if result.WinnerID != tc.expected {
				t.Fatalf("expected winner %q got %q", tc.expected, result.WinnerID)
			}
		})
	}
}

type markedResponse struct {
	text string
}

func (m markedResponse) Text() (string, error) {
	return m.text, nil
}

func TestResultFromResponseSentinelScenario(t *testing.T) {
	raw := markedResponse{text: "###RESULT_JSON###\n{\"analysis\":[{\"optionId\":\"o1\",\"criteriaAnalysis\":[{\"criteriaId\":\"c1\",\"score\":150,\"reasoning\":\"x\"}],\"pros\":[],\"cons\":[]}],\"verdict\":\"v\",\"winnerId\":\"o1\",\"recommendation\":\"r\"}"}

	result, err := ResultFromResponse(raw)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if len(result.Analysis) != 1 || len(result.Analysis[0].Criteria) != 1 {
		t.Fatalf("unexpected shape: %+v", result)
	}
	if got := result.Analysis[0].Criteria[0].Score; got != 100 {
		t.Fatalf("expected clamped score 100 got %d", got)
	}
	if result.Verdict != "v" || result.WinnerID != "o1" || result.Recommendation != "r" {
		t.Fatalf("top-level fields mangled: %+v", result)
	}
}

func TestResultFromResponseNoJSON(t *testing.T) {
	_, err := ResultFromResponse(markedResponse{text: "I cannot help with that."})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNoJSONFound(err) {
		t.Fatalf("expected NoJSONFoundError got %v", err)
	}
}
