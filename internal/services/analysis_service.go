package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"integralq/internal/cleaner"
	"integralq/internal/exporter"
	"integralq/internal/infrastructure"
	"integralq/internal/narrative"
	"integralq/internal/pipeline"
	"integralq/internal/session"
	"integralq/internal/storage"
	"integralq/internal/validation"
	"integralq/pkg/contracts/domain"
	"integralq/pkg/contracts/events"
)

// DefaultMaxConcurrent bounds simultaneous analyses when no limit is given.
const DefaultMaxConcurrent = 4

// ProgressHub receives pipeline snapshots and completion notices.
// *websocket.Hub satisfies it.
type ProgressHub interface {
	ReportProgress(events.AnalysisSnapshot)
	PublishRun(ctx context.Context, runID string, t events.MessageType, data any)
}

// AnalysisDeps are the collaborators of AnalysisService. Pipeline and
// Sessions are required; the rest may be nil.
type AnalysisDeps struct {
	Pipeline      *pipeline.Pipeline
	Sessions      *session.Store
	Validator     *validation.FileValidator
	Exporter      *exporter.Exporter
	Narrator      *narrative.Narrator
	Audit         storage.AuditRepository
	Hub           ProgressHub
	Metrics       *infrastructure.Metrics
	MaxConcurrent int64
}

// AnalyzeRequest is one upload batch.
type AnalyzeRequest struct {
	Files      []cleaner.File
	DomainHint domain.Domain
	RemoteAddr string
}

// CompletionNotice is broadcast when a report has been stored.
type CompletionNotice struct {
	SessionID string        `json:"session_id"`
	Domain    domain.Domain `json:"domain"`
	Rows      int           `json:"rows"`
	Charts    int           `json:"charts"`
}

// AnalysisService runs analyses and serves their stored results.
type AnalysisService struct {
	deps   AnalysisDeps
	sem    *semaphore.Weighted
	tracer trace.Tracer
	logger *slog.Logger
}

// NewAnalysisService wires the service.
func NewAnalysisService(deps AnalysisDeps, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MaxConcurrent <= 0 {
		deps.MaxConcurrent = DefaultMaxConcurrent
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewFileValidator(logger, validation.Limits{})
	}
	if deps.Exporter == nil {
		deps.Exporter = exporter.New(logger)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(session.DefaultTTL)
	}
	if deps.Pipeline == nil {
		deps.Pipeline = pipeline.New(logger, pipeline.Components{Narrator: deps.Narrator, Metrics: deps.Metrics})
	}

	logger = logger.With(slog.String("component", "analysis_service"))
	logger.Info("AnalysisService initialized",
		slog.Int64("max_concurrent", deps.MaxConcurrent),
		slog.Bool("audit", deps.Audit != nil),
		slog.Bool("narrator", deps.Narrator != nil && deps.Narrator.Enabled()))

	return &AnalysisService{
		deps:   deps,
		sem:    semaphore.NewWeighted(deps.MaxConcurrent),
		tracer: otel.Tracer(infrastructure.InstrumentationName),
		logger: logger,
	}
}

// Analyze validates the batch, runs the pipeline and stores the result as a
// session. It fails fast with ErrServiceBusy when all slots are taken.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*domain.AnalysisReport, error) {
	uploads := make([]validation.Upload, len(req.Files))
	names := make([]string, len(req.Files))
	for i, f := range req.Files {
		uploads[i] = validation.Upload{Name: f.Name, Size: int64(len(f.Data))}
		names[i] = filepath.Base(f.Name)
	}
	if err := s.deps.Validator.ValidateUploads(uploads); err != nil {
		s.audit(ctx, &storage.AuditEntry{
			Action:       storage.ActionUpload,
			ResourceType: "upload",
			Details:      storage.Details(map[string]any{"files": names, "error": err.Error()}),
			RemoteAddr:   req.RemoteAddr,
		})
		return nil, err
	}

	if !s.sem.TryAcquire(1) {
		s.logger.WarnContext(ctx, "analysis rejected, all slots busy",
			slog.Int64("max_concurrent", s.deps.MaxConcurrent))
		return nil, ErrServiceBusy
	}
	defer s.sem.Release(1)

	ctx, span := s.tracer.Start(ctx, "analysis.analyze",
		trace.WithAttributes(
			attribute.Int("analysis.files", len(req.Files)),
			attribute.String("analysis.domain_hint", string(req.DomainHint)),
		))
	defer span.End()

	start := time.Now()
	s.addActive(ctx, 1)
	defer s.addActive(ctx, -1)

	s.audit(ctx, &storage.AuditEntry{
		Action:       storage.ActionUpload,
		ResourceType: "upload",
		Details:      storage.Details(map[string]any{"files": names}),
		RemoteAddr:   req.RemoteAddr,
		Success:      true,
	})

	var reporter pipeline.ProgressReporter
	if s.deps.Hub != nil {
		reporter = s.deps.Hub
	}
	run, err := s.deps.Pipeline.Run(ctx, pipeline.Input{Files: req.Files, DomainHint: req.DomainHint}, reporter)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordOutcome(ctx, "failed", "", elapsed)
		runID := ""
		if run != nil {
			runID = run.ID
		}
		s.audit(ctx, &storage.AuditEntry{
			Action:       storage.ActionAnalyze,
			ResourceType: "session",
			ResourceID:   runID,
			Details:      storage.Details(map[string]any{"files": names, "error": err.Error()}),
			RemoteAddr:   req.RemoteAddr,
		})
		s.logger.WarnContext(ctx, "analysis failed",
			slog.String("run_id", runID),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
		return nil, err
	}

	report := run.Report
	sess := s.deps.Sessions.Put(run.Dataset, report)
	s.recordOutcome(ctx, "completed", report.Domain, elapsed)
	s.recordReport(ctx, req.Files, report)

	span.SetAttributes(
		attribute.String("analysis.session_id", sess.ID),
		attribute.String("analysis.domain", string(report.Domain)))

	s.audit(ctx, &storage.AuditEntry{
		Action:       storage.ActionAnalyze,
		ResourceType: "session",
		ResourceID:   sess.ID,
		Details: storage.Details(map[string]any{
			"files":  names,
			"domain": report.Domain,
			"rows":   report.Dataset.RowCount,
			"charts": len(report.Charts),
		}),
		RemoteAddr: req.RemoteAddr,
		Success:    true,
	})

	if s.deps.Hub != nil {
		s.deps.Hub.PublishRun(ctx, sess.ID, events.MessageTypeAnalysisComplete, CompletionNotice{
			SessionID: sess.ID,
			Domain:    report.Domain,
			Rows:      report.Dataset.RowCount,
			Charts:    len(report.Charts),
		})
	}

	s.logger.InfoContext(ctx, "analysis completed",
		slog.String("session_id", sess.ID),
		slog.String("domain", string(report.Domain)),
		slog.Int("rows", report.Dataset.RowCount),
		slog.Duration("duration", elapsed))
	return report, nil
}

// Report returns a stored report.
func (s *AnalysisService) Report(_ context.Context, id string) (*domain.AnalysisReport, error) {
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Report, nil
}

// Page returns one page of a stored dataset.
func (s *AnalysisService) Page(_ context.Context, id string, page, limit int) (*session.Page, error) {
	return s.deps.Sessions.Page(id, page, limit)
}

// Chat answers a question about a stored session.
func (s *AnalysisService) Chat(ctx context.Context, id, question, remoteAddr string) (narrative.Answer, error) {
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		return narrative.Answer{}, err
	}
	cc := narrative.ChatContext{Report: sess.Report, Dataset: sess.Dataset}

	var answer narrative.Answer
	if s.deps.Narrator != nil {
		answer = s.deps.Narrator.Answer(ctx, cc, question)
	} else {
		answer = narrative.Answer{Text: narrative.FallbackAnswer(cc, question), Source: domain.NarrativeFallback}
	}
	if answer.Source == domain.NarrativeFallback && s.deps.Metrics != nil {
		s.deps.Metrics.NarrativeFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "chat")))
	}

	s.audit(ctx, &storage.AuditEntry{
		Action:       storage.ActionChat,
		ResourceType: "session",
		ResourceID:   id,
		Details:      storage.Details(map[string]any{"question_length": len(question), "source": answer.Source}),
		RemoteAddr:   remoteAddr,
		Success:      true,
	})
	return answer, nil
}

// Export writes a stored dataset to w.
func (s *AnalysisService) Export(ctx context.Context, id string, f exporter.Format, w io.Writer, remoteAddr string) error {
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		return err
	}
	err = s.deps.Exporter.Write(w, sess.Dataset, f)
	s.audit(ctx, &storage.AuditEntry{
		Action:       storage.ActionExport,
		ResourceType: "session",
		ResourceID:   id,
		Details:      storage.Details(map[string]any{"format": f, "rows": sess.Dataset.RowCount()}),
		RemoteAddr:   remoteAddr,
		Success:      err == nil,
	})
	if err != nil {
		return fmt.Errorf("export session %s: %w", id, err)
	}
	return nil
}

// ExportName returns the download file name for a session export.
func (s *AnalysisService) ExportName(id string, f exporter.Format) (string, error) {
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		return "", err
	}
	return exporter.FileName(sess.Dataset, f), nil
}

// ActiveSessions counts stored sessions.
func (s *AnalysisService) ActiveSessions() int {
	return s.deps.Sessions.Len()
}

func (s *AnalysisService) audit(ctx context.Context, entry *storage.AuditEntry) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Record(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "failed to write audit entry",
			slog.String("action", entry.Action),
			slog.String("error", err.Error()))
	}
}

func (s *AnalysisService) addActive(ctx context.Context, n int64) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ActiveAnalyses.Add(ctx, n)
	}
}

func (s *AnalysisService) recordOutcome(ctx context.Context, status string, d domain.Domain, elapsed time.Duration) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("domain", string(d)))
	m.AnalysesTotal.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (s *AnalysisService) recordReport(ctx context.Context, files []cleaner.File, r *domain.AnalysisReport) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	for _, f := range files {
		format := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
		m.FilesCleaned.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
	}
	m.RowsIngested.Add(ctx, int64(r.Dataset.RowCount))
	for _, c := range r.Charts {
		m.ChartsGenerated.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(c.Type))))
	}
	if r.Narrative != nil && r.Narrative.Source == domain.NarrativeFallback {
		m.NarrativeFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "summary")))
	}
}
