package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apierrors "integralq/internal/errors"
	"integralq/internal/infrastructure"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestRequestID(t *testing.T) {
	var seen, chiSeen, traceSeen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetReqID(r.Context())
		chiSeen = chimw.GetReqID(r.Context())
		traceSeen = infrastructure.GetTraceID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
		assert.Equal(t, seen, chiSeen)
		assert.Equal(t, seen, traceSeen)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})
}

func TestRecoverer(t *testing.T) {
	h := RequestID(Recoverer(quietLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "/errors/internal-server-error", p.Type)
	assert.Equal(t, "req-1", p.Trace)
}

func TestRateLimiter(t *testing.T) {
	h := NewRateLimiter(0.001, 2, quietLogger()).Handler(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})(okHandler)

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantCode   int
		wantOrigin string
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "http://localhost:3000", wantCode: 200, wantOrigin: "http://localhost:3000"},
		{name: "other origin", method: http.MethodGet, origin: "http://evil.example", wantCode: 200},
		{name: "no origin", method: http.MethodGet, wantCode: 200},
		{name: "preflight allowed", method: http.MethodOptions, origin: "http://localhost:3000", preflight: true, wantCode: 204, wantOrigin: "http://localhost:3000"},
		{name: "preflight rejected", method: http.MethodOptions, origin: "http://evil.example", preflight: true, wantCode: 403},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/analyze", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	t.Run("wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://anything.example")
		w := httptest.NewRecorder()
		CORS(CORSConfig{AllowedOrigins: []string{"*"}})(okHandler).ServeHTTP(w, req)
		assert.Equal(t, "http://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "plain HTTP")
}

func TestStructuredLogger(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(StructuredLogger(logger)(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "log-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request completed"`)
	assert.Contains(t, out, `"trace_id":"log-1"`)
	assert.Contains(t, out, `"status":200`)
}

func TestTelemetry(t *testing.T) {
	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))
	defer tp.Shutdown(context.Background())

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := infrastructure.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(Telemetry(tp.Tracer("test"), metrics))
	r.Get("/api/sessions/{id}", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "GET /api/sessions/{id}", got[0].Name)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			route, _ := sum.DataPoints[0].Attributes.Value("route")
			assert.Equal(t, "/api/sessions/{id}", route.AsString())
			found = true
		}
	}
	assert.True(t, found, "request counter recorded")
}

func TestTelemetryWithoutProviders(t *testing.T) {
	w := httptest.NewRecorder()
	Telemetry(nil, nil)(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContentTypeValidator(t *testing.T) {
	eh := apierrors.NewErrorHandler(quietLogger(), false)
	h := ContentTypeValidator(eh, "application/json", "multipart/form-data")(okHandler)

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"get passes", http.MethodGet, "", 200},
		{"json", http.MethodPost, "application/json; charset=utf-8", 200},
		{"multipart", http.MethodPost, "multipart/form-data; boundary=xyz", 200},
		{"missing", http.MethodPost, "", 400},
		{"unsupported", http.MethodPost, "text/plain", 415},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	v := NewQueryParamValidator(quietLogger(), apierrors.NewErrorHandler(quietLogger(), false))

	t.Run("int", func(t *testing.T) {
		tests := []struct {
			query  string
			want   int
			wantOK bool
		}{
			{"", 50, true},
			{"page=3", 3, true},
			{"page=0", 0, false},
			{"page=abc", 0, false},
		}
		for _, tt := range tests {
			w := httptest.NewRecorder()
			got, ok := v.ValidateInt(w, httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil), "page", 1, 100, 50)
			assert.Equal(t, tt.wantOK, ok, tt.query)
			assert.Equal(t, tt.want, got, tt.query)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		}
	})

	t.Run("enum", func(t *testing.T) {
		w := httptest.NewRecorder()
		got, ok := v.ValidateEnum(w, httptest.NewRequest(http.MethodGet, "/?format=XLSX", nil), "format", []string{"csv", "xlsx"}, "csv")
		assert.True(t, ok)
		assert.Equal(t, "xlsx", got)

		w = httptest.NewRecorder()
		_, ok = v.ValidateEnum(w, httptest.NewRequest(http.MethodGet, "/?format=pdf", nil), "format", []string{"csv", "xlsx"}, "csv")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "format must be one of: csv, xlsx")
	})
}

func TestProblemFromStatus(t *testing.T) {
	p := ProblemFromStatus(http.StatusTooManyRequests, "slow down", "t1")
	assert.Equal(t, "/errors/too-many-requests", p.Type)
	assert.Equal(t, "Too Many Requests", p.Title)
	assert.Equal(t, 429, p.Status)
}
