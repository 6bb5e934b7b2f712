package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ValidationsTotal *prometheus.CounterVec // Количество проверок заголовка Authorization
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ValidationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosproxy_auth_validations_total",
				Help: "Total number of request validations",
			},
			[]string{"result"}, // ok или причина ошибки
		),
	}
}
