package api

import (
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/store"
)

// maxAttachmentBytes caps a single uploaded attachment payload.
const maxAttachmentBytes = 8 << 20

// Config defines server dependencies.
type Config struct {
	DBPath         string
	AllowedOrigins []string
	SilentDB       bool
	Analyzer       ai.Analyzer
	ProviderName   string
	DisableAI      bool
}

// Server wires HTTP handlers with persistence and the analysis pipeline.
type Server struct {
	db             *store.Database
	analyzer       ai.Analyzer
	providerName   string
	allowedOrigins []string
	notifier       *AnalysisNotifier
	jobMu          sync.Mutex
	activeJob      *analysisJob
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	analyzer := cfg.Analyzer
	if cfg.DisableAI {
		analyzer = nil
		logrus.Info("analysis provider disabled via configuration")
	} else if analyzer == nil || !analyzer.Enabled() {
		analyzer = nil
		logrus.Info("no analysis provider configured - analyze endpoints will refuse")
	}

	return &Server{
		db:             db,
		analyzer:       analyzer,
		providerName:   cfg.ProviderName,
		allowedOrigins: cfg.AllowedOrigins,
		notifier:       NewAnalysisNotifier(),
	}, nil
}

// Close releases the underlying database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/decisions", s.handleCreateDecision)
		api.GET("/decisions", s.handleListDecisions)
		api.GET("/decisions/:id", s.handleGetDecision)
		api.DELETE("/decisions/:id", s.handleDeleteDecision)
		api.POST("/decisions/:id/options/:optionID/attachments", s.handleUploadAttachment)
		api.POST("/decisions/:id/analyze", s.handleAnalyze)
		api.GET("/decisions/:id/result", s.handleDecisionResult)
		api.GET("/analyze/status", s.handleAnalyzeStatus)
		api.DELETE("/analyze/:jobID", s.handleCancelAnalyze)
		api.GET("/analyze/stream", s.handleAnalyzeStream)
		api.GET("/export.csv", s.handleExportCSV)
		api.GET("/export.json", s.handleExportJSON)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ai_enabled":           s.analyzer != nil,
		"provider":             s.providerName,
		"max_attachment_bytes": maxAttachmentBytes,
	})
}

func (s *Server) handleCreateDecision(c *gin.Context) {
	var req CreateDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	bundle := BundleFromRequest(req)
	if err := s.db.CreateDecision(bundle); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"decision_id": bundle.Decision.ID,
		"criteria":    len(bundle.Criteria),
		"options":     len(bundle.Options),
		"attachments": len(bundle.Attachments),
	}).Info("decision created")

	c.JSON(http.StatusCreated, DecisionFromBundle(*bundle))
}

func (s *Server) handleListDecisions(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}
	offset := page * pageSize

	rows, total, err := s.db.ListDecisions(offset, pageSize)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]DecisionSummaryDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, DecisionSummaryDTO{
			ID:        row.ID,
			Title:     row.Title,
			CreatedAt: row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, DecisionsResponse{Items: items, Total: total})
}

func (s *Server) handleGetDecision(c *gin.Context) {
	decisionID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	bundle, err := s.db.GetDecision(decisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("decision %d not found", decisionID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, DecisionFromBundle(*bundle))
}

func (s *Server) handleDeleteDecision(c *gin.Context) {
	decisionID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if _, err := s.db.GetDecision(decisionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("decision %d not found", decisionID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	if err := s.db.DeleteDecision(decisionID); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithField("decision_id", decisionID).Info("decision deleted")
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleUploadAttachment(c *gin.Context) {
	decisionID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	optionID := strings.TrimSpace(c.Param("optionID"))
	if optionID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("option id required"))
		return
	}

	option, err := s.db.FindOption(decisionID, optionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("option %s not found in decision %d", optionID, decisionID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.renderError(c, http.StatusBadRequest, errors.New("attachment file is required"))
		} else {
			s.renderError(c, http.StatusBadRequest, err)
		}
		return
	}
	if fileHeader.Size > maxAttachmentBytes {
		s.renderError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("attachment exceeds %d bytes", maxAttachmentBytes))
		return
	}

	payload, err := readFormFile(fileHeader)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	mimeType := strings.TrimSpace(c.PostForm("mime_type"))
	if mimeType == "" {
		mimeType = fileHeader.Header.Get("Content-Type")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	attachment := &store.Attachment{
		DecisionID:   decisionID,
		OptionRef:    option.ID,
		AttachmentID: uuid.NewString(),
		Name:         fileHeader.Filename,
		MIMEType:     mimeType,
		Data:         base64.StdEncoding.EncodeToString(payload),
		SizeBytes:    len(payload),
	}
	if err := s.db.AddAttachment(attachment); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"decision_id": decisionID,
		"option_id":   optionID,
		"name":        attachment.Name,
		"size":        attachment.SizeBytes,
	}).Info("attachment stored")

	c.JSON(http.StatusCreated, UploadAttachmentResponse{
		DecisionID: decisionID,
		OptionID:   optionID,
		Attachment: AttachmentDTO{
			ID:        attachment.AttachmentID,
			Name:      attachment.Name,
			MIMEType:  attachment.MIMEType,
			SizeBytes: attachment.SizeBytes,
			CreatedAt: attachment.CreatedAt,
		},
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	decisionID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	bundle, err := s.db.GetDecision(decisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("decision %d not found", decisionID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	if len(bundle.Criteria) == 0 || len(bundle.Options) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("decision needs criteria and options before analysis"))
		return
	}
	if s.analyzer == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("no analysis provider configured"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob != nil {
		s.renderError(c, http.StatusConflict, errors.New("analysis already running"))
		return
	}

	job, err := s.startAnalysis(bundle)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, StartAnalysisResponse{
		JobID:      job.id,
		DecisionID: bundle.Decision.ID,
		RequestID:  job.requestID,
		StartedAt:  job.startedAt,
	})
}

func (s *Server) handleCancelAnalyze(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobID"))
	if jobID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no analysis running"))
		return
	}
	if s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}

	s.activeJob.cancel()
	logrus.WithField("job", jobID).Info("analysis cancellation requested")
	s.notifier.Broadcast(AnalysisEvent{
		Type:       "progress",
		JobID:      s.activeJob.id,
		DecisionID: s.activeJob.decisionID,
		Message:    "cancellation requested",
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleAnalyzeStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	status := s.notifier.LastStatus()

	resp := AnalyzeStatusResponse{Running: job != nil}
	if job != nil {
		resp.JobID = job.id
		resp.DecisionID = job.decisionID
		resp.RequestID = job.requestID
	}
	if status != nil {
		resp.State = status.Type
		resp.Message = status.Message
		if status.DecisionID != 0 {
			resp.DecisionID = status.DecisionID
		}
		if resp.JobID == "" {
			resp.JobID = status.JobID
		}
		if status.Type == "completed" && resp.DecisionID != 0 {
			if record, err := s.db.LatestAnalysis(resp.DecisionID); err == nil {
				if dto, err := AnalysisFromRecord(*record, s.criteriaForDecision(resp.DecisionID)); err == nil {
					resp.LastResult = &dto
				}
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAnalyzeStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket closed")
			} else {
				logrus.WithError(err).Warn("analysis websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) handleDecisionResult(c *gin.Context) {
	decisionID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	bundle, err := s.db.GetDecision(decisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("decision %d not found", decisionID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	record, err := s.db.LatestAnalysis(decisionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("no analysis for decision %d", decisionID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	spec := SpecFromBundle(*bundle)
	dto, err := AnalysisFromRecord(*record, spec.Criteria)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (s *Server) handleExportCSV(c *gin.Context) {
	rows, _, err := s.db.ListAnalyses(s.exportQuery(c))
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=decision-matrix-export.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	headers := []string{"analysis_id", "decision_id", "winner_id", "verdict", "recommendation", "provider", "processing_time_ms", "created_at"}
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, row := range rows {
		line := []string{
			strconv.FormatUint(uint64(row.ID), 10),
			strconv.FormatUint(uint64(row.DecisionID), 10),
			row.WinnerID,
			row.Verdict,
			row.Recommendation,
			row.Provider,
			strconv.FormatInt(row.ProcessingTimeMs, 10),
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	rows, _, err := s.db.ListAnalyses(s.exportQuery(c))
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]AnalysisDTO, 0, len(rows))
	for _, row := range rows {
		criteria := s.criteriaForDecision(row.DecisionID)
		dto, err := AnalysisFromRecord(row, criteria)
		if err != nil {
			logrus.WithError(err).WithField("analysis_id", row.ID).Warn("decode stored analysis")
			continue
		}
		dtos = append(dtos, dto)
	}
	c.Header("Content-Disposition", "attachment; filename=decision-matrix-export.json")
	c.JSON(http.StatusOK, dtos)
}

func (s *Server) exportQuery(c *gin.Context) store.AnalysisQuery {
	return store.AnalysisQuery{
		Query:    strings.TrimSpace(c.Query("q")),
		WinnerID: strings.TrimSpace(c.Query("winner")),
		Limit:    -1,
	}
}

func (s *Server) criteriaForDecision(decisionID uint) []ai.Criterion {
	bundle, err := s.db.GetDecision(decisionID)
	if err != nil {
		return nil
	}
	return SpecFromBundle(*bundle).Criteria
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	if header == nil {
		return nil, errors.New("file header is nil")
	}
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	payload, err := io.ReadAll(io.LimitReader(src, maxAttachmentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(payload) > maxAttachmentBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", maxAttachmentBytes)
	}
	return payload, nil
}

func parseUintParam(value string) (uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("identifier is required")
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier: %w", err)
	}
	if parsed == 0 {
		return 0, errors.New("identifier must be greater than zero")
	}
	return uint(parsed), nil
}
