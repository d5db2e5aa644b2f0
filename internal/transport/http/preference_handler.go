package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "integralq/internal/errors"
	"integralq/internal/middleware"
	"integralq/internal/services"
	"integralq/pkg/contracts/domain"
)

const maxFeedbackBody = 16 << 10

// PreferenceHandler exposes chart preference learning.
type PreferenceHandler struct {
	service      PreferenceServiceInterface
	validator    BodyValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(service PreferenceServiceInterface, validator BodyValidator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *PreferenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "preference_handler")),
	}
}

// Routes returns the routes mounted under /preferences.
func (h *PreferenceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/{domain}", func(r chi.Router) {
		r.Use(h.DomainCtx)
		r.Get("/", h.Get)
		r.With(middleware.ContentTypeValidator(h.errorHandler, "application/json")).
			Post("/interactions", h.RecordInteraction)
	})
	return r
}

type domainKey struct{}

// DomainCtx resolves the {domain} parameter. "auto" and empty are rejected,
// preferences belong to a concrete domain.
func (h *PreferenceHandler) DomainCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := domain.ParseDomain(chi.URLParam(r, "domain"))
		if err != nil || d == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidationField("domain", "unknown domain"))
			return
		}
		next.ServeHTTP(w, r.WithContext(withDomain(r.Context(), d)))
	})
}

// Get handles GET /preferences/{domain}
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Preferences(r.Context(), domainFrom(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// RecordInteraction handles POST /preferences/{domain}/interactions
func (h *PreferenceHandler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFeedbackBody)

	var in services.Interaction
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.Struct(in); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	d := domainFrom(r)
	if err := h.service.Record(r.Context(), d, in, r.RemoteAddr); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "chart feedback recorded",
		slog.String("domain", string(d)),
		slog.String("selected", string(in.Selected)),
		slog.Int("rejected", len(in.Rejected)))
	w.WriteHeader(http.StatusNoContent)
}
