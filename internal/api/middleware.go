package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/healthtech/filemanager/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const requestTraceKey contextKey = "request_trace"

// CorrelationIDHeader carries the request trace id in both directions
const CorrelationIDHeader = "X-Correlation-ID"

type requestTrace struct {
	id     string
	logger *zap.SugaredLogger
}

// Correlation assigns every request a trace id and a logger tagged with it.
// The id comes from X-Correlation-ID, then chi's request id, then a new UUID,
// and is echoed on the response.
func Correlation(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationIDHeader)
			if id == "" {
				id = middleware.GetReqID(r.Context())
			}
			if id == "" {
				id = uuid.NewString()
			}

			trace := &requestTrace{id: id, logger: logger.With("correlation_id", id)}
			w.Header().Set(CorrelationIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestTraceKey, trace)))
		})
	}
}

// CorrelationIDFrom returns the request's trace id, or "" outside Correlation
func CorrelationIDFrom(ctx context.Context) string {
	if trace, ok := ctx.Value(requestTraceKey).(*requestTrace); ok {
		return trace.id
	}
	return ""
}

// LoggerFrom returns the request-scoped logger, falling back to fallback
func LoggerFrom(ctx context.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if trace, ok := ctx.Value(requestTraceKey).(*requestTrace); ok {
		return trace.logger
	}
	return fallback
}

// RequestLogger emits a structured log line for every completed request
func RequestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			LoggerFrom(r.Context(), logger).Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", statusOf(ww),
				"latency", time.Since(start),
				"bytes", ww.BytesWritten(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// Metrics records request latency labelled by chi route pattern
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, strconv.Itoa(statusOf(ww)), time.Since(start))
		})
	}
}

// RateLimit rejects requests beyond a shared token bucket with 429
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"detail":"Too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Preflight answers CORS preflight requests before routing
func Preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
