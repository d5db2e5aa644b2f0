package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is an error that already knows its HTTP status and the stable
// code clients switch on. The handler turns it into a problem document.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Is matches any APIError carrying the same code, so errors.Is works for
// copies produced by WithDetails.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.ErrorCode == e.ErrorCode
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// WithDetails returns a copy of e carrying details.
func (e *APIError) WithDetails(details any) *APIError {
	c := *e
	c.Details = details
	return &c
}

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload for multi-field failures.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// New creates an APIError.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewWithDetails creates an APIError with a details payload.
func NewWithDetails(statusCode int, errorCode, message string, details any) *APIError {
	return New(statusCode, errorCode, message).WithDetails(details)
}

var (
	ErrInvalidRequest    = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrRequestValidation = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrSessionNotFound   = New(http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found or expired")
	ErrPayloadTooLarge   = New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload exceeds the maximum allowed size")
	ErrServiceBusy       = New(http.StatusServiceUnavailable, "SERVICE_BUSY", "Too many analyses in progress")
)

// InvalidRequestWithError wraps a decoding or form-parsing failure.
func InvalidRequestWithError(err error) *APIError {
	return ErrInvalidRequest.WithDetails(err.Error())
}

// ErrValidationField reports a single bad field or query parameter.
func ErrValidationField(field, message string) *APIError {
	return ErrRequestValidation.WithDetails(ValidationError{Field: field, Message: message})
}

// NewValidationErrors reports several bad fields at once.
func NewValidationErrors(errs []ValidationError) *APIError {
	return ErrRequestValidation.WithDetails(ValidationErrors{Errors: errs})
}
