package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricRecomputations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grading",
		Name:      "recomputations_total",
		Help:      "Number of course grade aggregation passes.",
	})

	metricWebhookRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grading",
		Name:      "webhook_rejections_total",
		Help:      "Webhook score events rejected before any write.",
	}, []string{"reason"})

	metricRemediationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grading",
		Name:      "remediation_transitions_total",
		Help:      "Remediation status transitions by target state.",
	}, []string{"to"})
)

// MetricsService encapsulates HTTP-level Prometheus instrumentation and
// serves the scrape endpoint.
type MetricsService struct {
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewMetricsService registers the HTTP collectors.
func NewMetricsService() *MetricsService {
	return &MetricsService{
		handler: promhttp.Handler(),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// Handler exposes the Prometheus scrape handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}
