package ai

import (
	"fmt"
	"strings"

	"decision-matrix/backend/internal/scoring"
)

// Field-name fallback tables. Each logical field resolves through an
// ordered list of accepted spellings before defaulting; unknown shapes are
// absorbed here instead of becoming errors.
var (
	analysisFields       = []string{"analysis", "analyses", "options", "results"}
	optionIDFields       = []string{"optionId", "option_id", "optionID", "id", "option"}
	criteriaFields       = []string{"criteriaAnalysis", "criteria_analysis", "criteria", "criterionScores", "scores"}
	criterionIDFields    = []string{"criteriaId", "criteria_id", "criterionId", "criterion_id", "id"}
	scoreFields          = []string{"score", "value", "rating"}
	reasoningFields      = []string{"reasoning", "reason", "explanation", "rationale"}
	confidenceFields     = []string{"confidence", "certainty"}
	prosFields           = []string{"pros", "strengths", "advantages"}
	consFields           = []string{"cons", "weaknesses", "disadvantages", "risks"}
	verdictFields        = []string{"verdict", "summary", "conclusion"}
	winnerFields         = []string{"winnerId", "winner_id", "winnerID", "winner", "winnerOptionId"}
	recommendationFields = []string{"recommendation", "recommendations", "advice"}
)

const unknownOptionID = "unknown"

// NormalizeResult projects an arbitrary parsed JSON tree onto the fixed
// AnalysisResult shape. The projection is total: structurally-plausible
// input of any shape produces a result, with missing or malformed values
// replaced by defaults rather than surfaced as errors. Analysis is always
// non-nil and WinnerID always references one of its entries or is empty.
func NormalizeResult(parsed any) AnalysisResult {
	result := AnalysisResult{Analysis: []OptionAnalysis{}}

	for _, record := range locateAnalysisRecords(parsed) {
		result.Analysis = append(result.Analysis, normalizeOptionAnalysis(record))
	}

	if object, ok := parsed.(map[string]any); ok {
		result.Verdict = resolveString(object, verdictFields)
		result.WinnerID = resolveString(object, winnerFields)
		result.Recommendation = resolveString(object, recommendationFields)
	}

	if result.WinnerID != "" && !hasOption(result.Analysis, result.WinnerID) {
		result.WinnerID = ""
	}
	if result.WinnerID == "" {
		result.WinnerID = inferWinner(result.Analysis)
	}
	return result
}

// locateAnalysisRecords finds the per-option collection: the value itself
// may be the array, an analysis-like field may hold it, or the object may
// be a single option-analysis record that gets wrapped.
func locateAnalysisRecords(parsed any) []any {
	if records, ok := parsed.([]any); ok {
		return records
	}
	object, ok := parsed.(map[string]any)
	if !ok {
		return nil
	}
	for _, field := range analysisFields {
		value, found := object[field]
		if !found {
			continue
		}
		if records, ok := value.([]any); ok {
			return records
		}
		if record, ok := value.(map[string]any); ok && looksLikeOptionAnalysis(record) {
			return []any{record}
		}
	}
	if looksLikeOptionAnalysis(object) {
		return []any{object}
	}
	return nil
}

func looksLikeOptionAnalysis(object map[string]any) bool {
	return hasAnyField(object, optionIDFields) && hasAnyField(object, criteriaFields)
}

func normalizeOptionAnalysis(record any) OptionAnalysis {
	analysis := OptionAnalysis{
		OptionID: unknownOptionID,
		Criteria: []CriterionScore{},
		Pros:     []string{},
		Cons:     []string{},
	}
	object, ok := record.(map[string]any)
	if !ok {
		return analysis
	}

	if id := resolveString(object, optionIDFields); id != "" {
		analysis.OptionID = id
	}
	for _, entry := range resolveArray(object, criteriaFields) {
		analysis.Criteria = append(analysis.Criteria, normalizeCriterionScore(entry))
	}
	analysis.Pros = resolveStringList(object, prosFields)
	analysis.Cons = resolveStringList(object, consFields)
	return analysis
}

func normalizeCriterionScore(entry any) CriterionScore {
	score := CriterionScore{}
	object, ok := entry.(map[string]any)
	if !ok {
		return score
	}
	score.CriterionID = resolveString(object, criterionIDFields)
	score.Score = scoring.CoerceScore(resolveValue(object, scoreFields))
	score.Reasoning = resolveString(object, reasoningFields)
	if value := resolveValue(object, confidenceFields); scoring.HasNumber(value) {
		confidence := scoring.CoerceScore(value)
		score.Confidence = &confidence
	}
	return score
}

func resolveValue(object map[string]any, fields []string) any {
	for _, field := range fields {
		if value, found := object[field]; found {
			return value
		}
	}
	return nil
}

func resolveString(object map[string]any, fields []string) string {
	for _, field := range fields {
		value, found := object[field]
		if !found {
			continue
		}
		switch typed := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(typed); trimmed != "" {
				return trimmed
			}
		case float64, int, bool:
			return strings.TrimSpace(fmt.Sprintf("%v", typed))
		}
	}
	return ""
}

func resolveArray(object map[string]any, fields []string) []any {
	for _, field := range fields {
		if value, found := object[field]; found {
			if entries, ok := value.([]any); ok {
				return entries
			}
		}
	}
	return nil
}

func resolveStringList(object map[string]any, fields []string) []string {
	out := []string{}
	for _, entry := range resolveArray(object, fields) {
		switch typed := entry.(type) {
		case string:
			out = append(out, typed)
		default:
			out = append(out, fmt.Sprintf("%v", typed))
		}
	}
	return out
}

func hasAnyField(object map[string]any, fields []string) bool {
	for _, field := range fields {
		if _, found := object[field]; found {
			return true
		}
	}
	return false
}

func hasOption(analyses []OptionAnalysis, optionID string) bool {
	for _, analysis := range analyses {
		if analysis.OptionID == optionID {
			return true
		}
	}
	return false
}

// inferWinner derives a winner from unweighted mean scores when the model
// omitted one. Criterion weights are intentionally not consulted here; the
// winner contract advertises the plain mean.
func inferWinner(analyses []OptionAnalysis) string {
	options := make([]scoring.OptionScores, 0, len(analyses))
	for _, analysis := range analyses {
		scores := make([]int, 0, len(analysis.Criteria))
		for _, criterion := range analysis.Criteria {
			scores = append(scores, criterion.Score)
		}
		options = append(options, scoring.OptionScores{ID: analysis.OptionID, Scores: scores})
	}
	return scoring.InferWinner(options)
}

// ResultFromResponse runs the full post-processing pipeline on an untrusted
// model response: text extraction, marker-delimited JSON isolation, lenient
// parsing, and normalization. The only failure modes are NoJSONFoundError
// and InvalidJSONError; every shape mismatch past parsing is absorbed.
func ResultFromResponse(raw any) (AnalysisResult, error) {
	text := ExtractText(raw)
	candidate, err := ExtractResultJSON(text)
	if err != nil {
		return AnalysisResult{}, err
	}
	parsed, err := ParseLenientJSON(candidate)
	if err != nil {
		return AnalysisResult{}, err
	}
	return NormalizeResult(parsed), nil
}
