package iam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsTotal  *prometheus.CounterVec // Обращения к провайдеру идентификации
	RequestLatency prometheus.Histogram   // Латентность обмена ключа на токен
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_iam_requests_total",
				Help: "Total number of token exchange requests",
			},
			[]string{"result"}, // success/failure
		),
		RequestLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cosproxy_iam_request_latency_seconds",
				Help:    "Latency of token exchange requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}
