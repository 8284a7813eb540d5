package ai

// Criterion is a weighted dimension the options are judged against.
type Criterion struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// Attachment carries supporting material for an option. Data holds the
// base64-encoded payload; the binary itself travels to the model as an
// inline request part, never inlined into prompt text.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Option is one of the competing choices in a decision.
type Option struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// DecisionSpec is the full decision problem submitted for analysis.
// Criterion and option IDs are expected to be unique within their slices;
// the spec is immutable for the duration of a single analysis call.
type DecisionSpec struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Criteria    []Criterion `json:"criteria"`
	Options     []Option    `json:"options"`
}

// CriterionScore is the model's judgement of one option against one
// criterion. Score and Confidence are clamped to [0,100] during
// normalization.
type CriterionScore struct {
	CriterionID string `json:"criteriaId"`
	Score       int    `json:"score"`
	Reasoning   string `json:"reasoning"`
	Confidence  *int   `json:"confidence,omitempty"`
}

// OptionAnalysis groups the per-criterion scores and qualitative notes for
// a single option.
type OptionAnalysis struct {
	OptionID string           `json:"optionId"`
	Criteria []CriterionScore `json:"criteriaAnalysis"`
	Pros     []string         `json:"pros"`
	Cons     []string         `json:"cons"`
}

// AnalysisResult is the normalized verdict returned to callers. Analysis is
// always non-nil after normalization, and WinnerID either references one of
// the analysis entries or is empty.
type AnalysisResult struct {
	Analysis       []OptionAnalysis `json:"analysis"`
	Verdict        string           `json:"verdict"`
	WinnerID       string           `json:"winnerId"`
	Recommendation string           `json:"recommendation"`
}
