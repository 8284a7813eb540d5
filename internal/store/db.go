package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// DecisionBundle is a decision with all of its dependent rows loaded.
type DecisionBundle struct {
	Decision    Decision
	Criteria    []Criterion
	Options     []Option
	Attachments []Attachment
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Decision{}, &Criterion{}, &Option{}, &Attachment{}, &AnalysisRecord{}, &AnalysisRequest{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_criteria_decision_position ON criteria(decision_id, position)",
		"CREATE INDEX IF NOT EXISTS idx_options_decision_position ON options(decision_id, position)",
		"CREATE INDEX IF NOT EXISTS idx_attachments_option_ref ON attachments(option_ref)",
		"CREATE INDEX IF NOT EXISTS idx_analysis_records_decision_created ON analysis_records(decision_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_analysis_requests_status ON analysis_requests(status, created_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateDecision persists a decision with its criteria, options, and
// attachments in one transaction.
func (d *Database) CreateDecision(bundle *DecisionBundle) error {
	if bundle == nil {
		return errors.New("bundle is nil")
	}
	bundle.Decision.Title = strings.TrimSpace(bundle.Decision.Title)
	if bundle.Decision.Title == "" {
		return errors.New("decision title is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bundle.Decision).Error; err != nil {
			return err
		}
		for i := range bundle.Criteria {
			bundle.Criteria[i].DecisionID = bundle.Decision.ID
			bundle.Criteria[i].Position = i
		}
		if len(bundle.Criteria) > 0 {
			if err := tx.Create(&bundle.Criteria).Error; err != nil {
				return err
			}
		}
		optionRefs := make(map[string]uint, len(bundle.Options))
		for i := range bundle.Options {
			bundle.Options[i].DecisionID = bundle.Decision.ID
			bundle.Options[i].Position = i
			if err := tx.Create(&bundle.Options[i]).Error; err != nil {
				return err
			}
			optionRefs[bundle.Options[i].OptionID] = bundle.Options[i].ID
		}
		for i := range bundle.Attachments {
			bundle.Attachments[i].DecisionID = bundle.Decision.ID
			if bundle.Attachments[i].OptionRef == 0 {
				if ref, ok := optionRefs[bundle.Attachments[i].OptionID]; ok {
					bundle.Attachments[i].OptionRef = ref
				}
			}
		}
		if len(bundle.Attachments) > 0 {
			if err := tx.Create(&bundle.Attachments).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDecision loads a decision and all dependent rows.
func (d *Database) GetDecision(decisionID uint) (*DecisionBundle, error) {
	var bundle DecisionBundle
	if err := d.gorm.First(&bundle.Decision, decisionID).Error; err != nil {
		return nil, err
	}
	if err := d.gorm.Where("decision_id = ?", decisionID).Order("position ASC").Find(&bundle.Criteria).Error; err != nil {
		return nil, err
	}
	if err := d.gorm.Where("decision_id = ?", decisionID).Order("position ASC").Find(&bundle.Options).Error; err != nil {
		return nil, err
	}
	if err := d.gorm.Where("decision_id = ?", decisionID).Order("id ASC").Find(&bundle.Attachments).Error; err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ListDecisions returns a paged set of decisions ordered by creation time.
func (d *Database) ListDecisions(offset, limit int) ([]Decision, int64, error) {
	var total int64
	if err := d.gorm.Model(&Decision{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := d.gorm.Model(&Decision{}).Order("created_at DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	var decisions []Decision
	if err := query.Find(&decisions).Error; err != nil {
		return nil, 0, err
	}
	return decisions, total, nil
}

// DeleteDecision removes a decision and every dependent row.
func (d *Database) DeleteDecision(decisionID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&Attachment{}, &Criterion{}, &Option{}, &AnalysisRecord{}, &AnalysisRequest{}} {
			if err := tx.Where("decision_id = ?", decisionID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Decision{}, decisionID).Error
	})
}

// AddAttachment stores an uploaded attachment for an option of a decision.
func (d *Database) AddAttachment(attachment *Attachment) error {
	if attachment == nil {
		return errors.New("attachment is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(attachment).Error
}

// FindOption resolves an option row by decision id and option identifier.
func (d *Database) FindOption(decisionID uint, optionID string) (*Option, error) {
	var option Option
	err := d.gorm.Where("decision_id = ? AND option_id = ?", decisionID, strings.TrimSpace(optionID)).First(&option).Error
	if err != nil {
		return nil, err
	}
	return &option, nil
}

// SaveAnalysis persists a normalized analysis result for a decision.
func (d *Database) SaveAnalysis(record *AnalysisRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(record).Error
}

// LatestAnalysis returns the most recent analysis record for a decision.
func (d *Database) LatestAnalysis(decisionID uint) (*AnalysisRecord, error) {
	var record AnalysisRecord
	err := d.gorm.Where("decision_id = ?", decisionID).Order("created_at DESC, id DESC").First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AnalysisQuery encapsulates filters and pagination for listing analyses.
type AnalysisQuery struct {
	Query    string
	WinnerID string
	Offset   int
	Limit    int
}

// ListAnalyses returns paginated analysis records applying optional filters.
func (d *Database) ListAnalyses(opts AnalysisQuery) ([]AnalysisRecord, int64, error) {
	var total int64
	base := d.gorm.Model(&AnalysisRecord{})
	if opts.Query != "" {
		like := fmt.Sprintf("%%%s%%", opts.Query)
		base = base.Where("verdict LIKE ? OR recommendation LIKE ?", like, like)
	}
	if winner := strings.TrimSpace(opts.WinnerID); winner != "" {
		base = base.Where("winner_id = ?", winner)
	}
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := base.Order("created_at DESC, id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []AnalysisRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CreateAnalysisRequest records a new analysis job for a decision.
func (d *Database) CreateAnalysisRequest(decisionID uint, status, jobID string) (*AnalysisRequest, error) {
	request := &AnalysisRequest{
		DecisionID: decisionID,
		Status:     status,
		JobID:      jobID,
		StartedAt:  time.Now(),
	}
	if err := d.gorm.Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// UpdateAnalysisRequest updates status, error text, and timestamps of a job.
func (d *Database) UpdateAnalysisRequest(requestID uint, status, errText string) error {
	updates := map[string]any{"status": status, "error": strings.TrimSpace(errText)}
	if status == "completed" || status == "failed" || status == "cancelled" {
		now := time.Now()
		updates["finished_at"] = &now
	}
	return d.gorm.Model(&AnalysisRequest{}).Where("id = ?", requestID).Updates(updates).Error
}

// GetAnalysisRequest fetches an analysis request record by ID.
func (d *Database) GetAnalysisRequest(requestID uint) (*AnalysisRequest, error) {
	var request AnalysisRequest
	if err := d.gorm.First(&request, requestID).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// CountAttachments returns the number of attachments stored for a decision.
func (d *Database) CountAttachments(decisionID uint) (int64, error) {
	var count int64
	if err := d.gorm.Model(&Attachment{}).Where("decision_id = ?", decisionID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
