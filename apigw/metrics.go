package apigw

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Общие метрики запросов
	RequestsTotal  *prometheus.CounterVec   // Общее количество обработанных запросов
	RequestLatency *prometheus.HistogramVec // Латентность запросов
	InFlight       prometheus.Gauge         // Запросы в обработке
}

// NewMetrics создает метрики и регистрирует их в reg (nil - без регистрации)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_apigw_requests_total",
				Help: "Total number of processed requests",
			},
			[]string{"method", "code"},
		),
		RequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cosproxy_apigw_request_latency_seconds",
				Help:    "Latency of proxied requests in seconds",
				Buckets: prometheus.DefBuckets, // Стандартные бакеты времени
			},
			[]string{"method"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cosproxy_apigw_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),
	}
}
