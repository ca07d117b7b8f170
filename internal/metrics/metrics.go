package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface the rest of the application records
// against. A noop implementation backs it when metrics are disabled.
type Recorder interface {
	RecordLogin(result string, duration time.Duration)
	RecordLogout()
	RecordSessionCreated()
	RecordSessionsExpired(count int)
	SetActiveSessions(count int)
	RecordHandleListing(result string, handleCount int)
	RecordHandleRelease(result string)
	RecordRateLimited(endpoint string)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	LoginTotal      *prometheus.CounterVec
	LoginDuration   *prometheus.HistogramVec
	LogoutTotal     prometheus.Counter
	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter
	SessionsActive  prometheus.Gauge

	HandleListingsTotal *prometheus.CounterVec
	OpenHandles         prometheus.Gauge
	HandleReleasesTotal *prometheus.CounterVec

	RateLimitedTotal *prometheus.CounterVec

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag. Prometheus metrics
// register once per process; repeated calls return the same instance.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		LoginTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openshares_login_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"}, // ok, invalid_credentials, not_in_group, directory_unavailable
		),
		LoginDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openshares_login_duration_seconds",
				Help:    "Time taken by the directory authentication call",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		LogoutTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "openshares_logout_total",
				Help: "Total number of logouts",
			},
		),
		SessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "openshares_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "openshares_sessions_expired_total",
				Help: "Total number of sessions removed by idle expiry",
			},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "openshares_sessions_active",
				Help: "Current number of live sessions",
			},
		),
		HandleListingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openshares_handle_listings_total",
				Help: "Total number of open-handle listing fetches",
			},
			[]string{"result"}, // success, error
		),
		OpenHandles: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "openshares_open_handles",
				Help: "Open handles reported by the most recent listing",
			},
		),
		HandleReleasesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openshares_handle_releases_total",
				Help: "Total number of handle release attempts",
			},
			[]string{"result"}, // success, failure
		),
		RateLimitedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openshares_rate_limited_total",
				Help: "Total number of rate-limited requests",
			},
			[]string{"endpoint"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openshares_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openshares_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "openshares_http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests",
			},
		),
	}
}

func (m *Metrics) RecordLogin(result string, duration time.Duration) {
	m.LoginTotal.WithLabelValues(result).Inc()
	m.LoginDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *Metrics) RecordLogout() {
	m.LogoutTotal.Inc()
}

func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

func (m *Metrics) RecordSessionsExpired(count int) {
	m.SessionsExpired.Add(float64(count))
}

func (m *Metrics) SetActiveSessions(count int) {
	m.SessionsActive.Set(float64(count))
}

func (m *Metrics) RecordHandleListing(result string, handleCount int) {
	m.HandleListingsTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.OpenHandles.Set(float64(handleCount))
	}
}

func (m *Metrics) RecordHandleRelease(result string) {
	m.HandleReleasesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRateLimited(endpoint string) {
	m.RateLimitedTotal.WithLabelValues(endpoint).Inc()
}
