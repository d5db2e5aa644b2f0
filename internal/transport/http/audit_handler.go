package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	apierrors "integralq/internal/errors"
	"integralq/internal/middleware"
	"integralq/internal/storage"
)

// AuditResponse wraps an audit listing.
type AuditResponse struct {
	Entries []storage.AuditEntry `json:"entries"`
	Count   int                  `json:"count"`
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	service      AuditServiceInterface
	query        *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(service AuditServiceInterface, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		service:      service,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler: errorHandler,
	}
}

// List handles GET /audit?action=&resource_id=&limit=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, storage.MaxAuditLimit, storage.DefaultAuditLimit)
	if !ok {
		return
	}
	action, ok := h.query.ValidateEnum(w, r, "action", []string{
		storage.ActionUpload, storage.ActionAnalyze, storage.ActionExport, storage.ActionChat, storage.ActionFeedback,
	}, "")
	if !ok {
		return
	}

	entries, err := h.service.List(r.Context(), storage.AuditFilter{
		Action:     action,
		ResourceID: strings.TrimSpace(r.URL.Query().Get("resource_id")),
		Limit:      limit,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	render.JSON(w, r, AuditResponse{Entries: entries, Count: len(entries)})
}
