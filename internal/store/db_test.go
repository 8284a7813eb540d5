package store

import (
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), true)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	return db
}

func seedBundle() *DecisionBundle {
	return &DecisionBundle{
		Decision: Decision{Title: "Pick a queue", Description: "broker selection"},
		Criteria: []Criterion{
			{CriterionID: "c1", Name: "Throughput", Weight: 5},
			{CriterionID: "c2", Name: "Operability", Weight: 3},
		},
		Options: []Option{
			{OptionID: "o1", Name: "Kafka"},
			{OptionID: "o2", Name: "NATS"},
		},
		Attachments: []Attachment{
			{AttachmentID: "a1", OptionID: "o1", Name: "bench.csv", MIMEType: "text/csv", Data: "aGVsbG8=", SizeBytes: 8},
		},
	}
}

func TestCreateAndGetDecision(t *testing.T) {
	db := openTestDB(t)

	bundle := seedBundle()
	if err := db.CreateDecision(bundle); err != nil {
		t.Fatalf("create decision: %v", err)
	}
	if bundle.Decision.ID == 0 {
		t.Fatal("decision id not assigned")
	}

	loaded, err := db.GetDecision(bundle.Decision.ID)
	if err != nil {
		t.Fatalf("get decision: %v", err)
	}
	if loaded.Decision.Title != "Pick a queue" {
		t.Fatalf("title lost: %q", loaded.Decision.Title)
	}
	if len(loaded.Criteria) != 2 || len(loaded.Options) != 2 {
		t.Fatalf("dependent rows missing: %d criteria, %d options", len(loaded.Criteria), len(loaded.Options))
	}
	// Insertion order survives via positions.
	if loaded.Criteria[0].CriterionID != "c1" || loaded.Criteria[1].CriterionID != "c2" {
		t.Fatalf("criteria order lost: %+v", loaded.Criteria)
	}
	if loaded.Options[0].OptionID != "o1" || loaded.Options[1].OptionID != "o2" {
		t.Fatalf("option order lost: %+v", loaded.Options)
	}

	if len(loaded.Attachments) != 1 {
		t.Fatalf("expected 1 attachment got %d", len(loaded.Attachments))
	}
	var o1Row uint
	for _, option := range loaded.Options {
		if option.OptionID == "o1" {
			o1Row = option.ID
		}
	}
	if o1Row == 0 || loaded.Attachments[0].OptionRef != o1Row {
		t.Fatalf("attachment not linked to o1: ref %d want %d", loaded.Attachments[0].OptionRef, o1Row)
	}
	if loaded.Attachments[0].Data != "aGVsbG8=" {
		t.Fatalf("payload lost: %q", loaded.Attachments[0].Data)
	}
}

func TestCreateDecisionRequiresTitle(t *testing.T) {
	db := openTestDB(t)

	bundle := seedBundle()
	bundle.Decision.Title = "   "
	if err := db.CreateDecision(bundle); err == nil {
		t.Fatal("expected error for blank title")
	}
}

func TestFindOption(t *testing.T) {
	db := openTestDB(t)

	bundle := seedBundle()
	if err := db.CreateDecision(bundle); err != nil {
		t.Fatalf("create decision: %v", err)
	}

	option, err := db.FindOption(bundle.Decision.ID, "o2")
	if err != nil {
		t.Fatalf("find option: %v", err)
	}
	if option.Name != "NATS" {
		t.Fatalf("wrong option resolved: %+v", option)
	}

	if _, err := db.FindOption(bundle.Decision.ID, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found got %v", err)
	}
}

func TestDeleteDecisionCascade(t *testing.T) {
	db := openTestDB(t)

	bundle := seedBundle()
	if err := db.CreateDecision(bundle); err != nil {
		t.Fatalf("create decision: %v", err)
	}

	record := &AnalysisRecord{DecisionID: bundle.Decision.ID, WinnerID: "o1", Provider: "stub"}
	if err := record.SetResult(map[string]any{"winnerId": "o1"}); err != nil {
		t.Fatalf("set result: %v", err)
	}
	if err := db.SaveAnalysis(record); err != nil {
		t.Fatalf("save analysis: %v", err)
	}
	if _, err := db.CreateAnalysisRequest(bundle.Decision.ID, "completed", "job-1"); err != nil {
		t.Fatalf("create request: %v", err)
	}

	if err := db.DeleteDecision(bundle.Decision.ID); err != nil {
		t.Fatalf("delete decision: %v", err)
	}

	if _, err := db.GetDecision(bundle.Decision.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("decision survived delete: %v", err)
	}
	count, err := db.CountAttachments(bundle.Decision.ID)
	if err != nil {
		t.Fatalf("count attachments: %v", err)
	}
	if count != 0 {
		t.Fatalf("attachments survived delete: %d", count)
	}
	if _, err := db.LatestAnalysis(bundle.Decision.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("analysis survived delete: %v", err)
	}
}

func TestLatestAnalysisPicksNewest(t *testing.T) {
	db := openTestDB(t)

	bundle := seedBundle()
	if err := db.CreateDecision(bundle); err != nil {
		t.Fatalf("create decision: %v", err)
	}

	for _, winner := range []string{"o1", "o2"} {
		record := &AnalysisRecord{DecisionID: bundle.Decision.ID, WinnerID: winner, Provider: "stub"}
		if err := record.SetResult(map[string]any{"winnerId": winner}); err != nil {
			t.Fatalf("set result: %v", err)
		}
		if err := db.SaveAnalysis(record); err != nil {
			t.Fatalf("save analysis: %v", err)
		}
	}

	latest, err := db.LatestAnalysis(bundle.Decision.ID)
	if err != nil {
		t.Fatalf("latest analysis: %v", err)
	}
	// Timestamps can collide; the id tiebreak keeps the newest insert.
	if latest.WinnerID != "o2" {
		t.Fatalf("expected newest record got winner %q", latest.WinnerID)
	}
}

func TestListAnalysesFilters(t *testing.T) {
	db := openTestDB(t)

	bundle := seedBundle()
	if err := db.CreateDecision(bundle); err != nil {
		t.Fatalf("create decision: %v", err)
	}
	rows := []*AnalysisRecord{
		{DecisionID: bundle.Decision.ID, WinnerID: "o1", Verdict: "Kafka wins on throughput"},
		{DecisionID: bundle.Decision.ID, WinnerID: "o2", Verdict: "NATS wins on simplicity"},
	}
	for _, row := range rows {
		if err := db.SaveAnalysis(row); err != nil {
			t.Fatalf("save analysis: %v", err)
		}
	}

	matched, total, err := db.ListAnalyses(AnalysisQuery{WinnerID: "o2", Limit: -1})
	if err != nil {
		t.Fatalf("list analyses: %v", err)
	}
	if total != 1 || len(matched) != 1 || matched[0].WinnerID != "o2" {
		t.Fatalf("winner filter wrong: total %d rows %+v", total, matched)
	}

	matched, total, err = db.ListAnalyses(AnalysisQuery{Query: "throughput", Limit: -1})
	if err != nil {
		t.Fatalf("list analyses: %v", err)
	}
	if total != 1 || len(matched) != 1 || matched[0].WinnerID != "o1" {
		t.Fatalf("text filter wrong: total %d rows %+v", total, matched)
	}
}
