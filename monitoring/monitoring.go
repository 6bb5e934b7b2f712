package monitoring

import (
	"context"
	"fmt"

	"cosproxy/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// Monitor представляет основной интерфейс модуля мониторинга
type Monitor struct {
	config   *Config
	registry *prometheus.Registry
	server   *Server
}

// New создает новый экземпляр Monitor с собственным registry.
// Источники readiness и статистики подключаются через Attach до Start.
func New(config *Config) (*Monitor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// Валидируем конфигурацию
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitoring config: %w", err)
	}

	monitor := &Monitor{
		config:   config,
		registry: NewRegistry(config),
	}
	monitor.server = NewServer(config, monitor.registry, nil, nil)

	logger.Info("Monitoring module initialized")
	logger.Debug("Monitoring config: enabled=%v, listen=%s, path=%s",
		config.Enabled, config.ListenAddress, config.MetricsPath)

	return monitor, nil
}

// Registry возвращает registry, в котором модули регистрируют метрики
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Attach подключает источники readiness и статистики
func (m *Monitor) Attach(ready ReadinessFunc, stats StatsFunc) {
	m.server = NewServer(m.config, m.registry, ready, stats)
}

// Start запускает модуль мониторинга
func (m *Monitor) Start() error {
	if !m.config.Enabled {
		logger.Info("Monitoring is disabled")
		return nil
	}

	logger.Info("Starting monitoring module...")

	// Запускаем HTTP сервер метрик
	if err := m.server.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info("Monitoring module started successfully")
	return nil
}

// SetShuttingDown сообщает балансировщику о начале остановки
func (m *Monitor) SetShuttingDown() {
	m.server.SetShuttingDown()
}

// Stop останавливает модуль мониторинга
func (m *Monitor) Stop(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	logger.Info("Stopping monitoring module...")

	// Останавливаем HTTP сервер
	if err := m.server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}

	logger.Info("Monitoring module stopped")
	return nil
}

// Addr возвращает адрес, на котором слушает сервер метрик
func (m *Monitor) Addr() string {
	return m.server.Addr()
}

// GetConfig возвращает конфигурацию мониторинга
func (m *Monitor) GetConfig() *Config {
	return m.config
}

// IsEnabled возвращает true, если мониторинг включен
func (m *Monitor) IsEnabled() bool {
	return m.config.Enabled
}
