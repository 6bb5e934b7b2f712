package proxy

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestCounter - монотонный счетчик запросов процесса
type RequestCounter struct {
	value atomic.Uint64
	total prometheus.Counter
}

// NewRequestCounter создает счетчик и экспортирует его как cosproxy_proxy_requests_total
func NewRequestCounter(reg prometheus.Registerer) *RequestCounter {
	return &RequestCounter{
		total: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "cosproxy_proxy_requests_total",
			Help: "Total number of requests that entered peer selection",
		}),
	}
}

// Inc увеличивает счетчик и возвращает новое значение
func (c *RequestCounter) Inc() uint64 {
	c.total.Inc()
	return c.value.Add(1)
}

// Value возвращает текущее значение
func (c *RequestCounter) Value() uint64 {
	return c.value.Load()
}
