package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
)

// Metrics groups all Prometheus instruments used across the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	UploadsTotal        *prometheus.CounterVec
	DeletesTotal        *prometheus.CounterVec
	ExtractionsTotal    *prometheus.CounterVec
	UploadedBytes       prometheus.Counter
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_uploads_total",
			Help: "Total number of uploaded exam files by outcome.",
		}, []string{"outcome"}),

		DeletesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_deletes_total",
			Help: "Total number of exam deletions by outcome.",
		}, []string{"outcome"}),

		ExtractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_extractions_total",
			Help: "Total number of hemogram extractions by outcome.",
		}, []string{"outcome"}),

		UploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_uploaded_bytes_total",
			Help: "Total bytes of exam files stored.",
		}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method, route pattern and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.UploadsTotal,
		m.DeletesTotal,
		m.ExtractionsTotal,
		m.UploadedBytes,
		m.HTTPRequestDuration,
	)

	return m
}

// ObserveUpload counts one uploaded file
func (m *Metrics) ObserveUpload(outcome string, size int) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.UploadedBytes.Add(float64(size))
	}
}

// ObserveDelete counts one delete attempt
func (m *Metrics) ObserveDelete(outcome string) {
	if m == nil {
		return
	}
	m.DeletesTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtraction counts one hemogram extraction
func (m *Metrics) ObserveExtraction(outcome string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the latency of a completed HTTP request
func (m *Metrics) ObserveRequest(method, route, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(latency.Seconds())
}
