package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP, cache and lesson change instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	changesApplied  *prometheus.CounterVec
	requestsOpened  *prometheus.CounterVec
	votesCast       *prometheus.CounterVec
	requestsExpired prometheus.Counter
	notifications   *prometheus.CounterVec
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups partitioned by result",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache operations",
			Buckets: prometheus.DefBuckets,
		}),
		changesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_changes_applied_total",
			Help: "Overrides written, by origin and override type",
		}, []string{"origin", "type"}),
		requestsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "change_requests_opened_total",
			Help: "Change requests opened for voting",
		}, []string{"change_type"}),
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "change_request_votes_total",
			Help: "Votes cast, by outcome",
		}, []string{"result"}),
		requestsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "change_requests_expired_total",
			Help: "Change requests expired by the sweep",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries, by kind and result",
		}, []string{"kind", "result"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLookups, m.cacheLatency,
		m.changesApplied, m.requestsOpened, m.votesCast, m.requestsExpired, m.notifications,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry exposes the registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.Observe(duration.Seconds())
}

// RecordChangeApplied counts an override write; origin is "instant" or "vote".
func (m *MetricsService) RecordChangeApplied(origin string, overrideType models.OverrideType) {
	if m == nil {
		return
	}
	m.changesApplied.WithLabelValues(origin, string(overrideType)).Inc()
}

func (m *MetricsService) RecordRequestOpened(changeType models.ChangeType) {
	if m == nil {
		return
	}
	m.requestsOpened.WithLabelValues(string(changeType)).Inc()
}

func (m *MetricsService) RecordVote(result models.VoteResult) {
	if m == nil {
		return
	}
	m.votesCast.WithLabelValues(string(result)).Inc()
}

func (m *MetricsService) RecordExpired(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.requestsExpired.Add(float64(count))
}

func (m *MetricsService) RecordNotification(kind models.NotificationKind, delivered bool) {
	if m == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "delivered"
	}
	m.notifications.WithLabelValues(string(kind), result).Inc()
}
