package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NewRegistry создает registry приложения. Модули регистрируют метрики в нем,
// default registry не используется.
func NewRegistry(config *Config) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	if config != nil && config.EnableSystemMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return registry
}
