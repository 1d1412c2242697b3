package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics набор Prometheus-метрик сервиса
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	DBPoolOpenConns prometheus.Gauge
	DBPoolInUse     prometheus.Gauge
	DBPoolIdle      prometheus.Gauge

	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	NotificationsStale  *prometheus.CounterVec
	AutoCancelTotal     prometheus.Counter
}

// New регистрирует и возвращает метрики сервиса
func New(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: labels,
		}, []string{"method", "route", "code"}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "db_query_duration_seconds",
			Help:        "Database query duration in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),

		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "db_query_errors_total",
			Help:        "Total number of database query errors",
			ConstLabels: labels,
		}, []string{"operation"}),

		DBPoolOpenConns: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "db_pool_open_connections",
			Help:        "Open connections in the database pool",
			ConstLabels: labels,
		}),

		DBPoolInUse: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "db_pool_in_use_connections",
			Help:        "Connections currently in use",
			ConstLabels: labels,
		}),

		DBPoolIdle: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "db_pool_idle_connections",
			Help:        "Idle connections in the database pool",
			ConstLabels: labels,
		}),

		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "notifications_sent_total",
			Help:        "Notifications delivered by the dispatcher",
			ConstLabels: labels,
		}, []string{"event", "channel"}),

		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "notifications_failed_total",
			Help:        "Notifications that exhausted retries or hit a permanent failure",
			ConstLabels: labels,
		}, []string{"event", "channel"}),

		NotificationsStale: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "notifications_stale_total",
			Help:        "Notifications dropped because the booking state made them meaningless",
			ConstLabels: labels,
		}, []string{"event", "channel"}),

		AutoCancelTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "bookings_auto_cancelled_total",
			Help:        "Bookings cancelled because the start was not confirmed in time",
			ConstLabels: labels,
		}),
	}
}
