package tokencache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Hits         prometheus.Counter     // Токен отдан из кэша
	Fetches      *prometheus.CounterVec // Обращения к провайдеру токенов
	Coalesced    prometheus.Counter     // Запросы, присоединившиеся к уже идущему обращению
	FetchLatency prometheus.Histogram   // Длительность обращения к провайдеру
	Entries      *prometheus.GaugeVec   // Количество записей по состояниям
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cosproxy_tokencache_hits_total",
			Help: "Total number of token lookups served from cache",
		}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cosproxy_tokencache_fetches_total",
			Help: "Total number of token fetches",
		}, []string{"result"}), // success/failure
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "cosproxy_tokencache_coalesced_total",
			Help: "Total number of lookups that joined an in-flight fetch",
		}),
		FetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cosproxy_tokencache_fetch_latency_seconds",
			Help:    "Latency of token fetches in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		Entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cosproxy_tokencache_entries",
			Help: "Number of cache entries by state",
		}, []string{"state"}),
	}
}
