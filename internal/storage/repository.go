package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"integralq/internal/charts"
	"integralq/pkg/contracts/domain"
)

// Audit list bounds.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	Action     string
	ResourceID string
	Limit      int
}

// AuditRepository stores the audit trail.
type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a GORM-backed AuditRepository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, entry *AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	q := r.db.WithContext(ctx).Model(&AuditEntry{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.ResourceID != "" {
		q = q.Where("resource_id = ?", filter.ResourceID)
	}

	entries := []AuditEntry{}
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// Details marshals v for AuditEntry.Details, ignoring values that cannot be encoded.
func Details(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// PreferenceRepository persists chart preference weights. It implements
// charts.PreferenceStore.
type PreferenceRepository struct {
	db *gorm.DB
}

var _ charts.PreferenceStore = (*PreferenceRepository)(nil)

// NewPreferenceRepository creates a GORM-backed preference store.
func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// RecordInteraction applies one selection and its rejections in a single transaction.
func (r *PreferenceRepository) RecordInteraction(ctx context.Context, d domain.Domain, selected domain.VisualizationType, rejected []domain.VisualizationType) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if selected != "" {
			if err := bump(tx, d, selected, charts.SelectedWeight, true); err != nil {
				return err
			}
		}
		for _, t := range rejected {
			if t == selected {
				continue
			}
			if err := bump(tx, d, t, charts.RejectedWeight, false); err != nil {
				return err
			}
		}
		return nil
	})
}

func bump(tx *gorm.DB, d domain.Domain, t domain.VisualizationType, delta float64, selected bool) error {
	var pref ChartPreference
	err := tx.Where(ChartPreference{Domain: string(d), ChartType: string(t)}).
		FirstOrCreate(&pref).Error
	if err != nil {
		return fmt.Errorf("failed to load preference %s/%s: %w", d, t, err)
	}
	pref.Weight += delta
	if selected {
		pref.Selections++
	} else {
		pref.Rejections++
	}
	if err := tx.Save(&pref).Error; err != nil {
		return fmt.Errorf("failed to save preference %s/%s: %w", d, t, err)
	}
	return nil
}

// Weights returns the stored weight per chart type for a domain.
func (r *PreferenceRepository) Weights(ctx context.Context, d domain.Domain) (map[domain.VisualizationType]float64, error) {
	var prefs []ChartPreference
	if err := r.db.WithContext(ctx).Where("domain = ?", string(d)).Find(&prefs).Error; err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	out := make(map[domain.VisualizationType]float64, len(prefs))
	for _, p := range prefs {
		out[domain.VisualizationType(p.ChartType)] = p.Weight
	}
	return out, nil
}

// PreferredCharts returns types with positive weight, heaviest first.
func (r *PreferenceRepository) PreferredCharts(ctx context.Context, d domain.Domain) ([]domain.VisualizationType, error) {
	w, err := r.Weights(ctx, d)
	if err != nil {
		return nil, err
	}
	return charts.RankWeights(w), nil
}
