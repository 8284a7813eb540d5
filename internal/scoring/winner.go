package scoring

// OptionScores pairs an option identifier with its clamped criterion scores.
type OptionScores struct {
	ID     string
	Scores []int
}

// Mean returns the arithmetic mean of the scores, 0 for an empty slice.
func Mean(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0
	for _, score := range scores {
		total += score
	}
	return float64(total) / float64(len(scores))
}

// WeightedMean returns the weight-adjusted mean of the scores. Entries
// without a positive weight count with weight 1. Used for reporting only;
// winner inference deliberately stays unweighted to match the advertised
// contract.
func WeightedMean(scores []int, weights []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	totalWeight := 0
	weighted := 0
	for i, score := range scores {
		weight := 1
		if i < len(weights) && weights[i] > 0 {
			weight = weights[i]
		}
		weighted += score * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return float64(weighted) / float64(totalWeight)
}

// InferWinner picks the option with the strictly highest mean score,
// breaking ties by first occurrence. With zero or one options there is
// nothing to infer and the result is empty.
func InferWinner(options []OptionScores) string {
	if len(options) < 2 {
		return ""
	}
	winner := ""
	best := -1.0
	for _, option := range options {
		mean := Mean(option.Scores)
		if mean > best {
			best = mean
			winner = option.ID
		}
	}
	return winner
}
