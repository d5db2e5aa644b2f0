package services

import (
	"net/http"

	apperrors "integralq/internal/errors"
)

var (
	// ErrServiceBusy is returned when every analysis slot is taken.
	ErrServiceBusy = apperrors.ErrServiceBusy

	// ErrPreferencesDisabled is returned when preference learning is off.
	ErrPreferencesDisabled = apperrors.New(http.StatusNotImplemented, "PREFERENCES_DISABLED",
		"Chart preference learning is disabled")

	// ErrAuditDisabled is returned when no database is configured.
	ErrAuditDisabled = apperrors.New(http.StatusNotImplemented, "AUDIT_DISABLED",
		"Audit log requires a database")
)
