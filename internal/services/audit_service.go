package services

import (
	"context"

	apperrors "integralq/internal/errors"
	"integralq/internal/storage"
)

// AuditService reads the audit trail.
type AuditService struct {
	repo storage.AuditRepository
}

// NewAuditService returns a service; a nil repository disables it.
func NewAuditService(repo storage.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// List returns entries newest first.
func (s *AuditService) List(ctx context.Context, filter storage.AuditFilter) ([]storage.AuditEntry, error) {
	if s.repo == nil {
		return nil, ErrAuditDisabled
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read audit log", err)
	}
	return entries, nil
}
