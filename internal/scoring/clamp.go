package scoring

import (
	"encoding/json"
	"math"
)

// ClampScore applies the clamp-and-round rule for model-produced scores:
// NaN and infinities map to 0, values outside [0,100] are clamped, and
// in-range values round to the nearest integer.
func ClampScore(value float64) int {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return int(math.Round(value))
}

// CoerceScore resolves an untyped JSON value to a clamped score. Anything
// that is not numeric maps to 0.
func CoerceScore(value any) int {
	number, ok := asNumber(value)
	if !ok {
		return 0
	}
	return ClampScore(number)
}

// HasNumber reports whether the untyped value carries a usable number.
func HasNumber(value any) bool {
	_, ok := asNumber(value)
	return ok
}

func asNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
