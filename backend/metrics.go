package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Метрики бэкендов
	BackendState         *prometheus.GaugeVec     // Текущее состояние бэкенда (1=UP, 0.5=PROBING, 0=DOWN)
	BackendRequestsTotal *prometheus.CounterVec   // Количество запросов к конкретным бэкендам
	BackendLatency       *prometheus.HistogramVec // Латентность запросов к бэкендам
	BackendBytesRead     *prometheus.CounterVec   // Количество прочитанных байт с бэкендов
	BackendBytesWrite    *prometheus.CounterVec   // Количество записанных байт в бэкенды
	HealthChecksTotal    *prometheus.CounterVec   // Активные проверки по результату
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BackendState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cosproxy_backend_state",
				Help: "Current state of a backend (1=UP, 0.5=PROBING, 0=DOWN)",
			},
			[]string{"backend"},
		),
		BackendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_backend_requests_total",
				Help: "Total number of requests sent to backends",
			},
			[]string{"backend", "method", "code"},
		),
		BackendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cosproxy_backend_latency_seconds",
				Help:    "Latency of requests to backends in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "method"},
		),
		BackendBytesRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_backend_bytes_read_total",
				Help: "Total number of bytes read from backends",
			},
			[]string{"backend"},
		),
		BackendBytesWrite: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_backend_bytes_write_total",
				Help: "Total number of bytes written to backends",
			},
			[]string{"backend"},
		),
		HealthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_backend_health_checks_total",
				Help: "Total number of active health checks",
			},
			[]string{"backend", "result"},
		),
	}
}
