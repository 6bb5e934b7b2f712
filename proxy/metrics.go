package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ErrorsTotal       *prometheus.CounterVec   // Запросы, завершенные прокси с ошибкой
	UpstreamResponses *prometheus.CounterVec   // Ответы бэкендов по коду
	UpstreamLatency   *prometheus.HistogramVec // Латентность бэкендов
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_proxy_errors_total",
				Help: "Total number of requests rejected by the proxy",
			},
			[]string{"code"},
		),
		UpstreamResponses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_proxy_upstream_responses_total",
				Help: "Total number of upstream responses by status code",
			},
			[]string{"code"},
		),
		UpstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cosproxy_proxy_upstream_latency_seconds",
				Help:    "Latency of upstream requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mapped"},
		),
	}
}
