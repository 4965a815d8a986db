package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the request
// pipeline and the trust-boundary decisions.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
	rateLimitDenied *prometheus.CounterVec
	tokenRotations  prometheus.Counter
	revocations     prometheus.Counter
	securityAlerts  prometheus.Counter
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "Authentication failures by verification reason",
	}, []string{"reason"})

	rateLimitDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_denied_total",
		Help: "Requests rejected by the rate limiter, by tier",
	}, []string{"tier"})

	tokenRotations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refresh_token_rotations_total",
		Help: "Successful refresh-token rotations",
	})

	revocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refresh_token_revocations_total",
		Help: "Refresh tokens revoked by logout or compromise handling",
	})

	securityAlerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_alerts_total",
		Help: "SecurityAlert audit events (possible token theft, integrity violations)",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, authFailures, rateLimitDenied,
		tokenRotations, revocations, securityAlerts, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		authFailures:    authFailures,
		rateLimitDenied: rateLimitDenied,
		tokenRotations:  tokenRotations,
		revocations:     revocations,
		securityAlerts:  securityAlerts,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request timing and status.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveAuthFailure counts a verification failure by its distinct reason.
func (m *MetricsService) ObserveAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// ObserveRateLimitDenied counts a limiter rejection for the tier.
func (m *MetricsService) ObserveRateLimitDenied(tier string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(tier).Inc()
}

// ObserveTokenRotation counts a successful refresh rotation.
func (m *MetricsService) ObserveTokenRotation() {
	if m == nil {
		return
	}
	m.tokenRotations.Inc()
}

// ObserveRevocation counts revoked refresh tokens.
func (m *MetricsService) ObserveRevocation(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.revocations.Add(float64(count))
}

// ObserveSecurityAlert counts a SecurityAlert event.
func (m *MetricsService) ObserveSecurityAlert() {
	if m == nil {
		return
	}
	m.securityAlerts.Inc()
}
