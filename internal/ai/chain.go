package ai

import (
	"context"
)

type analyzerChain struct {
	primary  Analyzer
	fallback Analyzer
}

// WithFallback returns an analyzer that first tries the primary provider
// and falls back to the secondary one when the primary is unavailable or
// produces an unusable response.
func WithFallback(primary, fallback Analyzer) Analyzer {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &analyzerChain{primary: primary, fallback: fallback}
}

func (c *analyzerChain) Enabled() bool {
	if c == nil {
		return false
	}
	if c.primary != nil && c.primary.Enabled() {
		return true
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return true
	}
	return false
}

func (c *analyzerChain) Analyze(ctx context.Context, spec DecisionSpec) (AnalysisResult, error) {
	if c == nil {
		return AnalysisResult{}, ErrDisabled
	}
	var primaryErr error
	if c.primary != nil && c.primary.Enabled() {
		result, err := c.primary.Analyze(ctx, spec)
		if err == nil && len(result.Analysis) > 0 {
			return result, nil
		}
		primaryErr = err
		if err == nil {
			primaryErr = &NoJSONFoundError{}
		}
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Analyze(ctx, spec)
	}
	if primaryErr != nil {
		return AnalysisResult{}, primaryErr
	}
	return AnalysisResult{}, ErrDisabled
}
