package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/store"
	"decision-matrix/backend/internal/util"
)

// analysisJob tracks the state of a running analysis.
type analysisJob struct {
	id         string
	cancel     context.CancelFunc
	startedAt  time.Time
	decisionID uint
	requestID  uint
}

// startAnalysis launches a new asynchronous analysis job. The caller must
// hold s.jobMu prior to invoking this function.
func (s *Server) startAnalysis(bundle *store.DecisionBundle) (*analysisJob, error) {
	if s.activeJob != nil {
		return nil, errors.New("analysis already running")
	}
	if s.analyzer == nil || !s.analyzer.Enabled() {
		return nil, errors.New("no analysis provider configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &analysisJob{
		id:         uuid.NewString(),
		cancel:     cancel,
		startedAt:  time.Now().UTC(),
		decisionID: bundle.Decision.ID,
	}

	request, err := s.db.CreateAnalysisRequest(bundle.Decision.ID, "running", job.id)
	if err != nil {
		job.cancel()
		return nil, fmt.Errorf("create analysis request: %w", err)
	}
	job.requestID = request.ID

	s.activeJob = job
	go s.runAnalysis(ctx, job, bundle)
	return job, nil
}

// runAnalysis performs one full pipeline pass: a single outbound model
// call followed by synchronous post-processing. There are no internal
// retries; a failed attempt surfaces one terminal error and the client may
// re-run the whole pipeline.
func (s *Server) runAnalysis(ctx context.Context, job *analysisJob, bundle *store.DecisionBundle) {
	finishStatus := "completed"
	finishErr := ""

	defer func() {
		if err := s.db.UpdateAnalysisRequest(job.requestID, finishStatus, finishErr); err != nil {
			logrus.WithError(err).WithField("decision_id", job.decisionID).Warn("update analysis request")
		}
		s.jobMu.Lock()
		s.activeJob = nil
		s.jobMu.Unlock()
	}()

	spec := SpecFromBundle(*bundle)
	logrus.WithFields(logrus.Fields{
		"job":         job.id,
		"decision_id": job.decisionID,
		"criteria":    len(spec.Criteria),
		"options":     len(spec.Options),
	}).Info("analysis job started")

	s.notifier.Broadcast(AnalysisEvent{
		Type:       "started",
		JobID:      job.id,
		DecisionID: job.decisionID,
		Message:    "analysis started",
	})

	timer := util.StartTimer()
	result, err := s.analyzer.Analyze(ctx, spec)
	elapsed := timer.ElapsedMs()

	if err != nil {
		finishStatus = "failed"
		if errors.Is(ctx.Err(), context.Canceled) {
			finishStatus = "cancelled"
		}
		finishErr = err.Error()
		logrus.WithError(err).WithFields(logrus.Fields{
			"job":         job.id,
			"decision_id": job.decisionID,
			"duration_ms": elapsed,
		}).Error("analysis failed")
		s.notifier.Broadcast(AnalysisEvent{
			Type:       "error",
			JobID:      job.id,
			DecisionID: job.decisionID,
			Message:    userFacingMessage(err),
		})
		return
	}

	record := &store.AnalysisRecord{
		DecisionID:       job.decisionID,
		Verdict:          result.Verdict,
		WinnerID:         result.WinnerID,
		Recommendation:   result.Recommendation,
		Provider:         s.providerName,
		ProcessingTimeMs: elapsed,
	}
	if err := record.SetResult(result); err != nil {
		finishStatus = "failed"
		finishErr = err.Error()
		logrus.WithError(err).Error("marshal analysis result")
		s.notifier.Broadcast(AnalysisEvent{
			Type:       "error",
			JobID:      job.id,
			DecisionID: job.decisionID,
			Message:    "analysis produced an unstorable result",
		})
		return
	}
	if err := s.db.SaveAnalysis(record); err != nil {
		finishStatus = "failed"
		finishErr = err.Error()
		logrus.WithError(err).Error("save analysis")
		s.notifier.Broadcast(AnalysisEvent{
			Type:       "error",
			JobID:      job.id,
			DecisionID: job.decisionID,
			Message:    "analysis could not be persisted",
		})
		return
	}

	dto, err := AnalysisFromRecord(*record, spec.Criteria)
	if err != nil {
		logrus.WithError(err).Warn("decode stored analysis")
	}
	logrus.WithFields(logrus.Fields{
		"job":         job.id,
		"decision_id": job.decisionID,
		"winner":      result.WinnerID,
		"duration_ms": elapsed,
	}).Info("analysis completed")
	s.notifier.Broadcast(AnalysisEvent{
		Type:       "completed",
		JobID:      job.id,
		DecisionID: job.decisionID,
		Message:    "analysis completed",
		Result:     &dto,
	})
}

// userFacingMessage collapses the error taxonomy into a single
// human-readable failure line; diagnostics stay in the logs.
func userFacingMessage(err error) string {
	switch {
	case ai.IsNoJSONFound(err):
		return "the model response contained no result; please retry the analysis"
	case ai.IsInvalidJSON(err):
		return "the model response could not be parsed; please retry the analysis"
	case errors.Is(err, ai.ErrDisabled):
		return "no analysis provider is configured"
	case errors.Is(err, context.Canceled):
		return "analysis cancelled"
	default:
		return "the analysis request failed; please retry"
	}
}
