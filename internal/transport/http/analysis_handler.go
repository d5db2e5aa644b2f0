package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"integralq/internal/cleaner"
	apierrors "integralq/internal/errors"
	"integralq/internal/exporter"
	"integralq/internal/middleware"
	"integralq/internal/services"
	"integralq/internal/session"
	"integralq/pkg/contracts/domain"
)

const (
	// multipartMemory is how much of an upload ParseMultipartForm keeps in
	// memory before spilling to temp files.
	multipartMemory = 32 << 20
	// multipartOverhead covers boundaries and part headers on top of the
	// file bytes themselves.
	multipartOverhead = 1 << 20
	maxChatBody       = 64 << 10
	maxPage           = 1_000_000
)

// AnalyzeResponse is returned by POST /analyze.
type AnalyzeResponse struct {
	SessionID string                 `json:"session_id"`
	Report    *domain.AnalysisReport `json:"report"`
}

// ChatRequest is the body of POST /sessions/{id}/chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// AnalysisHandler serves uploads and everything that hangs off a session.
type AnalysisHandler struct {
	service        AnalysisServiceInterface
	validator      BodyValidator
	query          *middleware.QueryParamValidator
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewAnalysisHandler creates the handler. maxUploadBytes bounds the whole
// multipart body; zero means no transport-level limit.
func NewAnalysisHandler(service AnalysisServiceInterface, validator BodyValidator, errorHandler *apierrors.ErrorHandler, maxUploadBytes int64, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:        service,
		validator:      validator,
		query:          middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "analysis_handler")),
	}
}

// SessionRoutes returns the routes mounted under /sessions.
func (h *AnalysisHandler) SessionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetReport)
		r.Get("/data", h.GetData)
		r.With(middleware.ContentTypeValidator(h.errorHandler, "application/json")).
			Post("/chat", h.Chat)
		r.Get("/export", h.Export)
	})
	return r
}

// Analyze handles POST /analyze
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	hint, err := domain.ParseDomain(r.FormValue("domain"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidationField("domain", err.Error()))
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	files, err := readUploads(headers)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	h.logger.InfoContext(ctx, "analysis requested",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.Int("files", len(files)),
		slog.String("domain_hint", string(hint)))

	report, err := h.service.Analyze(ctx, services.AnalyzeRequest{
		Files:      files,
		DomainHint: hint,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, AnalyzeResponse{SessionID: report.ID, Report: report})
}

func readUploads(headers []*multipart.FileHeader) ([]cleaner.File, error) {
	files := make([]cleaner.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, cleaner.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

// GetReport handles GET /sessions/{id}
func (h *AnalysisHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// GetData handles GET /sessions/{id}/data?page=&limit=
func (h *AnalysisHandler) GetData(w http.ResponseWriter, r *http.Request) {
	page, ok := h.query.ValidateInt(w, r, "page", 1, maxPage, 1)
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, session.MaxPageLimit, session.DefaultPageLimit)
	if !ok {
		return
	}

	p, err := h.service.Page(r.Context(), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

// Chat handles POST /sessions/{id}/chat
func (h *AnalysisHandler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req ChatRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	answer, err := h.service.Chat(r.Context(), chi.URLParam(r, "id"), req.Message, r.RemoteAddr)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, answer)
}

// Export handles GET /sessions/{id}/export?format=csv|xlsx
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	value, ok := h.query.ValidateEnum(w, r, "format",
		[]string{string(exporter.FormatCSV), string(exporter.FormatXLSX)}, string(exporter.FormatCSV))
	if !ok {
		return
	}
	format, err := exporter.ParseFormat(value)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidationField("format", err.Error()))
		return
	}

	id := chi.URLParam(r, "id")
	name, err := h.service.ExportName(id, format)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// Buffered so a failed export can still become a problem response.
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), id, format, &buf, r.RemoteAddr); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write interrupted",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
	}
}
