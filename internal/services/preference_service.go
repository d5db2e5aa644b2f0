package services

import (
	"context"
	"fmt"
	"log/slog"

	"integralq/internal/charts"
	apperrors "integralq/internal/errors"
	"integralq/internal/storage"
	"integralq/pkg/contracts/domain"
)

// WeightedPreferenceStore is a preference store that can also report raw
// weights. Both the in-memory store and the database repository qualify.
type WeightedPreferenceStore interface {
	charts.PreferenceStore
	Weights(ctx context.Context, d domain.Domain) (map[domain.VisualizationType]float64, error)
}

// Interaction is one piece of chart feedback from a user.
type Interaction struct {
	Selected domain.VisualizationType   `json:"selected" validate:"required"`
	Rejected []domain.VisualizationType `json:"rejected,omitempty" validate:"max=9"`
}

// PreferenceView is the learned state for one domain.
type PreferenceView struct {
	Domain    domain.Domain                        `json:"domain"`
	Weights   map[domain.VisualizationType]float64 `json:"weights"`
	Preferred []domain.VisualizationType           `json:"preferred"`
}

// PreferenceService exposes chart preference learning.
type PreferenceService struct {
	store  WeightedPreferenceStore
	audit  storage.AuditRepository
	logger *slog.Logger
}

// NewPreferenceService returns a service; a nil store disables it.
func NewPreferenceService(store WeightedPreferenceStore, audit storage.AuditRepository, logger *slog.Logger) *PreferenceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceService{
		store:  store,
		audit:  audit,
		logger: logger.With(slog.String("component", "preference_service")),
	}
}

// Enabled reports whether a store is configured.
func (s *PreferenceService) Enabled() bool { return s.store != nil }

// Preferences returns the weights and ranking for d.
func (s *PreferenceService) Preferences(ctx context.Context, d domain.Domain) (*PreferenceView, error) {
	if s.store == nil {
		return nil, ErrPreferencesDisabled
	}
	weights, err := s.store.Weights(ctx, d)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load chart preferences", err)
	}
	return &PreferenceView{
		Domain:    d,
		Weights:   weights,
		Preferred: charts.RankWeights(weights),
	}, nil
}

// Record stores one interaction. Every chart type must be known, and the
// selected type may not also appear as rejected.
func (s *PreferenceService) Record(ctx context.Context, d domain.Domain, in Interaction, remoteAddr string) error {
	if s.store == nil {
		return ErrPreferencesDisabled
	}
	if !in.Selected.Valid() {
		return apperrors.NewAppValidationError(fmt.Sprintf("unknown chart type %q", in.Selected))
	}
	for _, t := range in.Rejected {
		if !t.Valid() {
			return apperrors.NewAppValidationError(fmt.Sprintf("unknown chart type %q", t))
		}
		if t == in.Selected {
			return apperrors.NewAppValidationError(fmt.Sprintf("chart type %q is both selected and rejected", t))
		}
	}

	err := s.store.RecordInteraction(ctx, d, in.Selected, in.Rejected)
	if s.audit != nil {
		entry := &storage.AuditEntry{
			Action:       storage.ActionFeedback,
			ResourceType: "domain",
			ResourceID:   string(d),
			Details:      storage.Details(in),
			RemoteAddr:   remoteAddr,
			Success:      err == nil,
		}
		if aerr := s.audit.Record(ctx, entry); aerr != nil {
			s.logger.WarnContext(ctx, "failed to write audit entry", slog.String("error", aerr.Error()))
		}
	}
	if err != nil {
		return apperrors.NewStorageError("failed to record chart preference", err)
	}

	s.logger.DebugContext(ctx, "chart interaction recorded",
		slog.String("domain", string(d)),
		slog.String("selected", string(in.Selected)),
		slog.Int("rejected", len(in.Rejected)))
	return nil
}
