package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/healthtech/filemanager/internal/auth"
	"github.com/healthtech/filemanager/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RouteOptions carries the optional dependencies of the HTTP surface
type RouteOptions struct {
	Version     string
	Environment string

	// Auth authenticates /data routes when set
	Auth func(http.Handler) http.Handler

	// Pinger is checked by /ready
	Pinger Pinger

	// Metrics and Gatherer enable request metrics and /metrics
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// RequestsPerSecond above zero rate limits /data routes
	RequestsPerSecond float64
	Burst             int

	// MaxUploadRequestSize caps upload bodies in bytes. Zero disables the cap.
	MaxUploadRequestSize int64

	// RequestTimeout bounds every handler except uploads, which carry
	// their own deadline. Zero selects DefaultRequestTimeout.
	RequestTimeout time.Duration

	Logger *zap.SugaredLogger
}

// DefaultRequestTimeout bounds non-upload handlers
const DefaultRequestTimeout = 60 * time.Second

// RegisterRoutes configures all routes for the application
func RegisterRoutes(r chi.Router, handler Handler, opts RouteOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// Set up middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Correlation(logger))
	r.Use(RequestLogger(logger))
	if opts.Metrics != nil {
		r.Use(Metrics(opts.Metrics))
	}
	r.Use(middleware.Recoverer)

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	timed := middleware.Timeout(timeout)

	// CORS
	r.Use(middleware.SetHeader("Access-Control-Allow-Origin", "*"))
	r.Use(middleware.SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS"))
	r.Use(middleware.SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization"))
	r.Use(Preflight)

	r.Group(func(r chi.Router) {
		r.Use(timed)

		// Service routes
		r.Get("/", RootHandler(logger))
		r.Get("/health", HealthHandler())
		r.Get("/ready", ReadyHandler(opts.Pinger, logger))
		r.Get("/version", VersionHandler(opts.Version, opts.Environment, logger))
		if opts.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
		}

		// Exam lookup is public
		r.Get("/exames/{usuarioId}", ExamLookupHandler())
	})

	// Data routes
	r.Route("/data", func(r chi.Router) {
		if opts.RequestsPerSecond > 0 {
			burst := opts.Burst
			if burst <= 0 {
				burst = 1
			}
			r.Use(RateLimit(rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)))
		}

		// Subject checks need the route's URL params, so they run per endpoint
		owner := chi.Chain()
		if opts.Auth != nil {
			r.Use(opts.Auth)
			owner = chi.Chain(auth.RequireSubject("userId"))
		}

		upload := chi.Chain(middleware.AllowContentType("multipart/form-data"))
		if opts.MaxUploadRequestSize > 0 {
			upload = append(upload, middleware.RequestSize(opts.MaxUploadRequestSize))
		}
		r.With(owner...).With(upload...).Post("/upload/{userId}", handler.UploadExams)
		r.With(owner...).With(timed).Delete("/delete/{userId}/{fileId}", handler.DeleteExam)
		r.With(owner...).With(timed).Get("/exames/{userId}", handler.ListExams)
		r.With(owner...).With(timed).Get("/exames/{userId}/{examId}/hemograma", handler.GetBloodPanel)
	})

	// Not found handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
	})

	// Method not allowed handler
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"detail":"Method Not Allowed"}`))
	})
}
