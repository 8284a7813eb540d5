package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Decision is a persisted decision problem.
type Decision struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"size:255;index"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Criterion is one weighted dimension of a decision.
type Criterion struct {
	ID          uint   `gorm:"primaryKey"`
	DecisionID  uint   `gorm:"index"`
	CriterionID string `gorm:"size:64;index"`
	Name        string `gorm:"size:255"`
	Weight      int
	Position    int
	CreatedAt   time.Time
}

// Option is one competing choice of a decision.
type Option struct {
	ID          uint   `gorm:"primaryKey"`
	DecisionID  uint   `gorm:"index"`
	OptionID    string `gorm:"size:64;index"`
	Name        string `gorm:"size:255"`
	Description string `gorm:"type:text"`
	Position    int
	CreatedAt   time.Time
}

// Attachment holds supporting material for an option. Data is the
// base64-encoded payload as received from the client.
type Attachment struct {
	ID           uint   `gorm:"primaryKey"`
	OptionRef    uint   `gorm:"index"`
	DecisionID   uint   `gorm:"index"`
	AttachmentID string `gorm:"size:64"`
	// OptionID keys the attachment to its option before row ids exist;
	// persisted linkage goes through OptionRef.
	OptionID  string `gorm:"-"`
	Name      string `gorm:"size:255"`
	MIMEType  string `gorm:"size:128"`
	Data      string `gorm:"type:text"`
	SizeBytes int
	CreatedAt time.Time
}

// AnalysisRecord is a normalized verdict persisted for querying and export.
// ResultJSON carries the full AnalysisResult; the scalar columns are
// denormalized for filtering.
type AnalysisRecord struct {
	ID               uint   `gorm:"primaryKey"`
	DecisionID       uint   `gorm:"index"`
	ResultJSON       string `gorm:"type:text"`
	Verdict          string `gorm:"type:text"`
	WinnerID         string `gorm:"size:64;index"`
	Recommendation   string `gorm:"type:text"`
	Provider         string `gorm:"size:32"`
	ProcessingTimeMs int64
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

// AnalysisRequest tracks one analysis job for a decision.
type AnalysisRequest struct {
	ID         uint   `gorm:"primaryKey"`
	DecisionID uint   `gorm:"index"`
	Status     string `gorm:"size:32;index"`
	JobID      string `gorm:"size:64;index"`
	Error      string `gorm:"size:512"`
	StartedAt  time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
}

// TableName pins the plural gorm would otherwise have to guess.
func (Criterion) TableName() string {
	return "criteria"
}

// SetResult stores the marshalled analysis result payload.
func (r *AnalysisRecord) SetResult(result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	r.ResultJSON = string(payload)
	return nil
}

// Result unmarshals the stored analysis payload into out.
func (r *AnalysisRecord) Result(out any) error {
	if strings.TrimSpace(r.ResultJSON) == "" {
		return nil
	}
	return json.Unmarshal([]byte(r.ResultJSON), out)
}
