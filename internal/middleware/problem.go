package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Problem is the RFC 7807 body the middleware writes itself. Handlers
// go through the errors package instead.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Trace  string `json:"trace_id,omitempty"`
}

// Render implements the chi render.Renderer interface
func (p Problem) Render(w http.ResponseWriter, _ *http.Request) error {
	return p.Write(w)
}

// Write sends the problem with its status code.
func (p Problem) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	return json.NewEncoder(w).Encode(p)
}

// ProblemFromStatus builds a problem whose type and title derive from status.
func ProblemFromStatus(status int, detail, traceID string) Problem {
	title := http.StatusText(status)
	slug := strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	if slug == "" {
		slug = "unknown"
	}
	return Problem{
		Type:   "/errors/" + slug,
		Title:  title,
		Status: status,
		Detail: detail,
		Trace:  traceID,
	}
}
