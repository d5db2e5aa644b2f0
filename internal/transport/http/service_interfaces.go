package http

import (
	"context"
	"io"

	"integralq/internal/exporter"
	"integralq/internal/narrative"
	"integralq/internal/services"
	"integralq/internal/session"
	"integralq/internal/storage"
	"integralq/pkg/contracts/domain"
)

// AnalysisServiceInterface is what the analysis handler needs from
// services.AnalysisService.
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, req services.AnalyzeRequest) (*domain.AnalysisReport, error)
	Report(ctx context.Context, id string) (*domain.AnalysisReport, error)
	Page(ctx context.Context, id string, page, limit int) (*session.Page, error)
	Chat(ctx context.Context, id, question, remoteAddr string) (narrative.Answer, error)
	Export(ctx context.Context, id string, f exporter.Format, w io.Writer, remoteAddr string) error
	ExportName(id string, f exporter.Format) (string, error)
}

// PreferenceServiceInterface defines chart preference operations.
type PreferenceServiceInterface interface {
	Preferences(ctx context.Context, d domain.Domain) (*services.PreferenceView, error)
	Record(ctx context.Context, d domain.Domain, in services.Interaction, remoteAddr string) error
}

// AuditServiceInterface defines audit trail reads.
type AuditServiceInterface interface {
	List(ctx context.Context, filter storage.AuditFilter) ([]storage.AuditEntry, error)
}

// BodyValidator checks `validate` tags on decoded request bodies.
// *validation.FileValidator implements it.
type BodyValidator interface {
	Struct(s any) error
}
