package scoring

import "testing"

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		scores   []int
		expected float64
	}{
		{"empty", nil, 0},
		{"single", []int{80}, 80},
		{"multiple", []int{90, 70}, 80},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Mean(tc.scores); got != tc.expected {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}

func TestWeightedMean(t *testing.T) {
	tests := []struct {
		name     string
		scores   []int
		weights  []int
		expected float64
	}{
		{"empty", nil, nil, 0},
		{"uniform weights match mean", []int{90, 70}, []int{1, 1}, 80},
		{"heavier criterion dominates", []int{100, 0}, []int{3, 1}, 75},
		{"missing weights count as one", []int{100, 0}, []int{3}, 75},
		{"zero weight counts as one", []int{60, 80}, []int{0, 0}, 70},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := WeightedMean(tc.scores, tc.weights); got != tc.expected {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}

func TestInferWinner(t *testing.T) {
	tests := []struct {
		name     string
		options  []OptionScores
		expected string
	}{
		{"empty", nil, ""},
		{"single option no inference", []OptionScores{{ID: "only", Scores: []int{99}}}, ""},
		{
			"highest mean wins",
			[]OptionScores{
				{ID: "o1", Scores: []int{90, 90}},
				{ID: "o2", Scores: []int{72, 72}},
			},
			"o1",
		},
		{
			"tie breaks by first occurrence",
			[]OptionScores{
				{ID: "first", Scores: []int{50}},
				{ID: "second", Scores: []int{50}},
			},
			"first",
		},
		{
			"scoreless option means zero",
			[]OptionScores{
				{ID: "empty", Scores: nil},
				{ID: "scored", Scores: []int{1}},
			},
			"scored",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferWinner(tc.options); got != tc.expected {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
		})
	}
}
