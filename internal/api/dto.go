package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/scoring"
	"decision-matrix/backend/internal/store"
)

// CreateDecisionRequest is the inbound decision spec. Attachments may be
// inlined base64 or uploaded later through the multipart endpoint.
type CreateDecisionRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Criteria    []ai.Criterion `json:"criteria"`
	Options     []ai.Option    `json:"options"`
}

// Validate enforces the spec invariants the pipeline relies on: a title,
// at least one criterion and option, and identifiers unique within their
// sequences.
func (r CreateDecisionRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if len(r.Criteria) == 0 {
		return errors.New("at least one criterion is required")
	}
	if len(r.Options) == 0 {
		return errors.New("at least one option is required")
	}
	seenCriteria := make(map[string]struct{}, len(r.Criteria))
	for _, criterion := range r.Criteria {
		id := strings.TrimSpace(criterion.ID)
		if id == "" {
			return errors.New("criterion id is required")
		}
		if _, ok := seenCriteria[id]; ok {
			return fmt.Errorf("duplicate criterion id %q", id)
		}
		seenCriteria[id] = struct{}{}
	}
	seenOptions := make(map[string]struct{}, len(r.Options))
	for _, option := range r.Options {
		id := strings.TrimSpace(option.ID)
		if id == "" {
			return errors.New("option id is required")
		}
		if _, ok := seenOptions[id]; ok {
			return fmt.Errorf("duplicate option id %q", id)
		}
		seenOptions[id] = struct{}{}
	}
	return nil
}

// AttachmentDTO exposes attachment metadata; the payload itself is not
// echoed back to clients.
type AttachmentDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mime_type"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// OptionDTO is the API representation of a stored option.
type OptionDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Attachments []AttachmentDTO `json:"attachments"`
}

// CriterionDTO is the API representation of a stored criterion.
type CriterionDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// DecisionDTO is the API representation of a stored decision.
type DecisionDTO struct {
	ID          uint           `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Criteria    []CriterionDTO `json:"criteria"`
	Options     []OptionDTO    `json:"options"`
	CreatedAt   time.Time      `json:"created_at"`
}

// DecisionSummaryDTO is the list representation of a decision.
type DecisionSummaryDTO struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// DecisionsResponse is the paginated response for decisions.
type DecisionsResponse struct {
	Items []DecisionSummaryDTO `json:"items"`
	Total int64                `json:"total"`
}

// OptionSummaryDTO reports aggregate scores per option; the weighted mean
// is informational and never feeds winner selection.
type OptionSummaryDTO struct {
	OptionID     string  `json:"option_id"`
	MeanScore    float64 `json:"mean_score"`
	WeightedMean float64 `json:"weighted_mean"`
}

// AnalysisDTO is the API representation of a persisted analysis.
type AnalysisDTO struct {
	ID               uint               `json:"id"`
	DecisionID       uint               `json:"decision_id"`
	Result           ai.AnalysisResult  `json:"result"`
	Summaries        []OptionSummaryDTO `json:"summaries"`
	Provider         string             `json:"provider"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	CreatedAt        time.Time          `json:"created_at"`
}

// StartAnalysisResponse describes the asynchronous analysis kickoff payload.
type StartAnalysisResponse struct {
	JobID      string    `json:"job_id"`
	DecisionID uint      `json:"decision_id"`
	RequestID  uint      `json:"request_id"`
	StartedAt  time.Time `json:"started_at"`
}

// AnalyzeStatusResponse describes the state of the active analysis job.
type AnalyzeStatusResponse struct {
	Running    bool         `json:"running"`
	JobID      string       `json:"job_id"`
	DecisionID uint         `json:"decision_id"`
	RequestID  uint         `json:"request_id"`
	State      string       `json:"state"`
	Message    string       `json:"message"`
	LastResult *AnalysisDTO `json:"last_result,omitempty"`
}

// UploadAttachmentResponse reports metadata of a stored upload.
type UploadAttachmentResponse struct {
	DecisionID uint          `json:"decision_id"`
	OptionID   string        `json:"option_id"`
	Attachment AttachmentDTO `json:"attachment"`
}

// DecisionFromBundle converts a store bundle into the DTO representation.
func DecisionFromBundle(bundle store.DecisionBundle) DecisionDTO {
	dto := DecisionDTO{
		ID:          bundle.Decision.ID,
		Title:       bundle.Decision.Title,
		Description: bundle.Decision.Description,
		Criteria:    make([]CriterionDTO, 0, len(bundle.Criteria)),
		Options:     make([]OptionDTO, 0, len(bundle.Options)),
		CreatedAt:   bundle.Decision.CreatedAt,
	}
	for _, criterion := range bundle.Criteria {
		dto.Criteria = append(dto.Criteria, CriterionDTO{
			ID:     criterion.CriterionID,
			Name:   criterion.Name,
			Weight: criterion.Weight,
		})
	}
	attachmentsByRef := make(map[uint][]AttachmentDTO)
	for _, attachment := range bundle.Attachments {
		attachmentsByRef[attachment.OptionRef] = append(attachmentsByRef[attachment.OptionRef], AttachmentDTO{
			ID:        attachment.AttachmentID,
			Name:      attachment.Name,
			MIMEType:  attachment.MIMEType,
			SizeBytes: attachment.SizeBytes,
			CreatedAt: attachment.CreatedAt,
		})
	}
	for _, option := range bundle.Options {
		attachments := attachmentsByRef[option.ID]
		if attachments == nil {
			attachments = []AttachmentDTO{}
		}
		dto.Options = append(dto.Options, OptionDTO{
			ID:          option.OptionID,
			Name:        option.Name,
			Description: option.Description,
			Attachments: attachments,
		})
	}
	return dto
}

// SpecFromBundle assembles the analysis input from stored rows.
func SpecFromBundle(bundle store.DecisionBundle) ai.DecisionSpec {
	spec := ai.DecisionSpec{
		Title:       bundle.Decision.Title,
		Description: bundle.Decision.Description,
		Criteria:    make([]ai.Criterion, 0, len(bundle.Criteria)),
		Options:     make([]ai.Option, 0, len(bundle.Options)),
	}
	for _, criterion := range bundle.Criteria {
		spec.Criteria = append(spec.Criteria, ai.Criterion{
			ID:     criterion.CriterionID,
			Name:   criterion.Name,
			Weight: criterion.Weight,
		})
	}
	attachmentsByRef := make(map[uint][]ai.Attachment)
	for _, attachment := range bundle.Attachments {
		attachmentsByRef[attachment.OptionRef] = append(attachmentsByRef[attachment.OptionRef], ai.Attachment{
			ID:       attachment.AttachmentID,
			Name:     attachment.Name,
			MIMEType: attachment.MIMEType,
			Data:     attachment.Data,
		})
	}
	for _, option := range bundle.Options {
		spec.Options = append(spec.Options, ai.Option{
			ID:          option.OptionID,
			Name:        option.Name,
			Description: option.Description,
			Attachments: attachmentsByRef[option.ID],
		})
	}
	return spec
}

// BundleFromRequest maps an inbound decision spec onto store rows.
func BundleFromRequest(req CreateDecisionRequest) *store.DecisionBundle {
	bundle := &store.DecisionBundle{
		Decision: store.Decision{
			Title:       strings.TrimSpace(req.Title),
			Description: strings.TrimSpace(req.Description),
		},
	}
	for _, criterion := range req.Criteria {
		bundle.Criteria = append(bundle.Criteria, store.Criterion{
			CriterionID: strings.TrimSpace(criterion.ID),
			Name:        criterion.Name,
			Weight:      criterion.Weight,
		})
	}
	for _, option := range req.Options {
		bundle.Options = append(bundle.Options, store.Option{
			OptionID:    strings.TrimSpace(option.ID),
			Name:        option.Name,
			Description: option.Description,
		})
		for _, attachment := range option.Attachments {
			bundle.Attachments = append(bundle.Attachments, store.Attachment{
				AttachmentID: attachment.ID,
				OptionID:     strings.TrimSpace(option.ID),
				Name:         attachment.Name,
				MIMEType:     attachment.MIMEType,
				Data:         attachment.Data,
				SizeBytes:    len(attachment.Data),
			})
		}
	}
	return bundle
}

// SummarizeResult computes per-option aggregates for an analysis result.
// Weights come from the decision's criteria; a score whose criterion is
// unknown counts with weight 1.
func SummarizeResult(result ai.AnalysisResult, criteria []ai.Criterion) []OptionSummaryDTO {
	weightsByID := make(map[string]int, len(criteria))
	for _, criterion := range criteria {
		weightsByID[criterion.ID] = criterion.Weight
	}
	summaries := make([]OptionSummaryDTO, 0, len(result.Analysis))
	for _, analysis := range result.Analysis {
		scores := make([]int, 0, len(analysis.Criteria))
		weights := make([]int, 0, len(analysis.Criteria))
		for _, criterion := range analysis.Criteria {
			scores = append(scores, criterion.Score)
			weights = append(weights, weightsByID[criterion.CriterionID])
		}
		summaries = append(summaries, OptionSummaryDTO{
			OptionID:     analysis.OptionID,
			MeanScore:    round2(scoring.Mean(scores)),
			WeightedMean: round2(scoring.WeightedMean(scores, weights)),
		})
	}
	return summaries
}

// AnalysisFromRecord converts a persisted analysis into its DTO.
func AnalysisFromRecord(record store.AnalysisRecord, criteria []ai.Criterion) (AnalysisDTO, error) {
	var result ai.AnalysisResult
	if err := record.Result(&result); err != nil {
		return AnalysisDTO{}, err
	}
	if result.Analysis == nil {
		result.Analysis = []ai.OptionAnalysis{}
	}
	return AnalysisDTO{
		ID:               record.ID,
		DecisionID:       record.DecisionID,
		Result:           result,
		Summaries:        SummarizeResult(result, criteria),
		Provider:         record.Provider,
		ProcessingTimeMs: record.ProcessingTimeMs,
		CreatedAt:        record.CreatedAt,
	}, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
