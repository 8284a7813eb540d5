package ai

import (
	"encoding/json"
	"regexp"
)

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// ParseLenientJSON decodes a JSON candidate produced by a generative model.
// Three tiers, each more permissive than the last: a strict parse, a parse
// with trailing commas removed, and a parse of the first brace block found
// by regex. Model output is reliably near-valid JSON (trailing commas,
// stray fences), so this graduated fallback is a cheap approximation, not
// a general repair engine. Failing all tiers is an InvalidJSONError.
func ParseLenientJSON(candidate string) (any, error) {
	var parsed any
	strictErr := json.Unmarshal([]byte(candidate), &parsed)
	if strictErr == nil {
		return parsed, nil
	}

	cleaned := trailingCommaPattern.ReplaceAllString(candidate, "$1")
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		return parsed, nil
	}

	if block := firstBraceBlock(candidate); block != "" && block != candidate {
		if err := json.Unmarshal([]byte(trailingCommaPattern.ReplaceAllString(block, "$1")), &parsed); err == nil {
			return parsed, nil
		}
	}

	return nil, &InvalidJSONError{Preview: preview(candidate), Cause: strictErr}
}
