package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"integralq/internal/infrastructure"
)

// Telemetry wraps each request in a server span and records the HTTP
// request counter and duration histogram. Either dependency may be nil.
func Telemetry(tracer trace.Tracer, metrics *infrastructure.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			var span trace.Span
			if tracer != nil {
				ctx, span = tracer.Start(ctx, r.Method+" "+r.URL.Path,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						semconv.HTTPRequestMethodKey.String(r.Method),
						semconv.URLPath(r.URL.Path),
						semconv.ServerAddressKey.String(r.Host),
						semconv.UserAgentOriginalKey.String(r.UserAgent()),
						semconv.ClientAddressKey.String(r.RemoteAddr),
					),
				)
				defer span.End()
				if sc := span.SpanContext(); sc.IsValid() {
					ctx = infrastructure.WithTraceID(ctx, sc.TraceID().String())
				}
			}
			r = r.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			if metrics != nil {
				attrs := metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", route),
					attribute.String("status_code", strconv.Itoa(status)),
				)
				metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
				metrics.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			}

			if span != nil {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(
					semconv.HTTPRoute(route),
					semconv.HTTPResponseStatusCode(status),
					semconv.HTTPResponseBodySize(ww.BytesWritten()),
				)
				if status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(status))
				}
			}
		})
	}
}

// routePattern reports the matched chi pattern so metrics stay low-cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
