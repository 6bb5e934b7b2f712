package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/prometheus/client_golang/prometheus"

	"cosproxy/logger"
	"cosproxy/routing"
)

// Manager реализует BackendProvider и управляет состоянием бэкендов
type Manager struct {
	config   ManagerConfig
	backends map[string]*Backend
	checker  Checker
	metrics  *Metrics // Для экспорта метрик состояния

	// Управление жизненным циклом
	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewManager создает менеджер с бэкендом на каждый бакет таблицы маршрутизации
func NewManager(cfg ManagerConfig, table *routing.Table, checker Checker, reg prometheus.Registerer) (*Manager, error) {
	// Если ManagerConfig не передан, используем дефолтный
	if cfg == (ManagerConfig{}) {
		cfg = DefaultManagerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if checker == nil {
		return nil, fmt.Errorf("health checker not provided")
	}

	manager := &Manager{
		config:   cfg,
		backends: make(map[string]*Backend),
		checker:  checker,
		metrics:  NewMetrics(reg),
		stopChan: make(chan struct{}),
	}

	for _, bucket := range table.Buckets() {
		d, _ := table.Resolve(bucket)
		backend := &Backend{
			ID:          bucket,
			Host:        d.Host,
			Port:        d.Port,
			state:       cfg.InitialState,
			windowStart: time.Now(),
		}
		manager.backends[bucket] = backend
		manager.metrics.BackendState.WithLabelValues(bucket).Set(backend.state.ToFloat64())
	}

	logger.Info("Backend manager initialized with %d backends", len(manager.backends))
	for id, backend := range manager.backends {
		logger.Debug("  - %s: %s (state: %s)", id, backend.Host, backend.state)
	}

	return manager, nil
}

// Start запускает менеджер бэкендов
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("backend manager is already running")
	}

	logger.Info("Starting backend manager...")

	// Запускаем горутину для активных проверок здоровья
	m.wg.Add(1)
	go m.runHealthChecks(m.stopChan)

	m.running = true
	return nil
}

// Stop останавливает менеджер бэкендов
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	logger.Info("Stopping backend manager...")
	close(m.stopChan)
	m.running = false
	m.mu.Unlock()

	// Ждем завершения проверок без удержания блокировки
	m.wg.Wait()

	m.mu.Lock()
	// Создаем новый канал для возможного повторного запуска
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	logger.Info("Backend manager stopped")
	return nil
}

// IsRunning возвращает true, если менеджер запущен
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Ready возвращает true, если бэкендов нет или хотя бы один находится в UP
func (m *Manager) Ready() bool {
	m.mu.RLock()
	total := len(m.backends)
	m.mu.RUnlock()
	return total == 0 || len(m.GetLiveBackends()) > 0
}

// GetLiveBackends возвращает список работоспособных бэкендов
func (m *Manager) GetLiveBackends() []*Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var liveBackends []*Backend
	for _, backend := range m.backends {
		if backend.GetState() == StateUp {
			liveBackends = append(liveBackends, backend)
		}
	}
	return liveBackends
}

// GetAllBackends возвращает список всех бэкендов
func (m *Manager) GetAllBackends() []*Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()

	backends := make([]*Backend, 0, len(m.backends))
	for _, backend := range m.backends {
		backends = append(backends, backend)
	}
	return backends
}

// GetBackend возвращает бэкенд по ID
func (m *Manager) GetBackend(id string) (*Backend, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	backend, exists := m.backends[id]
	return backend, exists
}

// Snapshot возвращает состояние всех бэкендов, отсортированное по ID
func (m *Manager) Snapshot() []Status {
	backends := m.GetAllBackends()
	statuses := make([]Status, 0, len(backends))
	for _, b := range backends {
		b.mu.RLock()
		st := Status{ID: b.ID, Host: b.Host, State: b.state.String(), LastCheck: b.lastCheckTime}
		if b.lastError != nil {
			st.LastError = b.lastError.Error()
		}
		b.mu.RUnlock()
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

// isNotFound - ответ 404 означает, что бэкенд доступен
func isNotFound(err error) bool {
	var notFoundError *types.NotFound
	if errors.As(err, &notFoundError) {
		return true
	}
	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		return httpErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

// isBenignError классифицирует ошибку как "безопасную", если она не указывает
// на реальную проблему с бэкендом
func isBenignError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return isNotFound(err)
}

func (m *Manager) observe(result *BackendResult) {
	m.metrics.BackendRequestsTotal.WithLabelValues(result.BackendID, result.Method, strconv.Itoa(result.StatusCode)).Inc()
	m.metrics.BackendLatency.WithLabelValues(result.BackendID, result.Method).Observe(result.Duration.Seconds())
	m.metrics.BackendBytesRead.WithLabelValues(result.BackendID).Add(float64(result.BytesRead))
	m.metrics.BackendBytesWrite.WithLabelValues(result.BackendID).Add(float64(result.BytesWritten))
}

// ReportSuccess сообщает об успешной операции.
// Если бэкенд был в состоянии Down, эта функция возвращает его в строй.
func (m *Manager) ReportSuccess(result *BackendResult) {
	backend, exists := m.GetBackend(result.BackendID)
	if !exists {
		logger.Warn("ReportSuccess: backend '%s' not found", result.BackendID)
		return
	}

	backend.mu.Lock()
	backend.consecutiveFailures = 0
	backend.consecutiveSuccesses++
	backend.recentFailures = 0 // Успех сбрасывает окно Circuit Breaker

	if backend.state == StateDown {
		logger.Info("Backend '%s' is back online after a successful request.", result.BackendID)
		m.setBackendState(backend, StateUp)
	}
	backend.mu.Unlock()

	m.observe(result)
}

// ReportFailure сообщает о неудачной операции, учитывая тип ошибки.
func (m *Manager) ReportFailure(result *BackendResult) {
	backend, exists := m.GetBackend(result.BackendID)
	if !exists {
		logger.Warn("ReportFailure: backend '%s' not found", result.BackendID)
		return
	}
	m.observe(result)

	if isBenignError(result.Err) {
		logger.Debug("ReportFailure: benign error on backend '%s', not affecting circuit breaker: %v",
			result.BackendID, result.Err)
		return
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()

	backend.consecutiveSuccesses = 0
	backend.consecutiveFailures++
	backend.lastError = result.Err

	// Обновляем окно Circuit Breaker
	now := time.Now()
	if now.Sub(backend.windowStart) > m.config.CircuitBreakerWindow {
		backend.recentFailures = 1
		backend.windowStart = now
	} else {
		backend.recentFailures++
	}

	logger.Warn("ReportFailure: failure on backend '%s', consecutive: %d, recent: %d. Error: %v",
		result.BackendID, backend.consecutiveFailures, backend.recentFailures, result.Err)

	if backend.state != StateDown && backend.recentFailures >= m.config.CircuitBreakerThreshold {
		logger.Error("Circuit breaker triggered for backend '%s': %d failures in %v. Setting state to DOWN.",
			result.BackendID, backend.recentFailures, now.Sub(backend.windowStart))
		m.setBackendState(backend, StateDown)
	}
}

// runHealthChecks выполняет активные проверки здоровья в фоновом режиме
func (m *Manager) runHealthChecks(stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	m.performHealthChecks()

	logger.Debug("Health check routine started with interval %v", m.config.HealthCheckInterval)
	for {
		select {
		case <-ticker.C:
			m.performHealthChecks()
		case <-stop:
			logger.Debug("Health check routine stopped")
			return
		}
	}
}

// performHealthChecks выполняет проверку всех бэкендов
func (m *Manager) performHealthChecks() {
	backends := m.GetAllBackends()
	logger.Debug("Performing health checks for %d backends", len(backends))

	var wg sync.WaitGroup
	for _, backend := range backends {
		wg.Add(1)
		go func(b *Backend) {
			defer wg.Done()
			m.checkBackend(b)
		}(backend)
	}
	wg.Wait()
}

// checkBackend выполняет проверку одного бэкенда
func (m *Manager) checkBackend(backend *Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.CheckTimeout)
	defer cancel()

	err := m.checker.Check(ctx, backend)
	if err != nil && isNotFound(err) {
		err = nil
	}
	m.applyCheckResult(backend, err)
}

// applyCheckResult применяет результат проверки к состоянию бэкенда
func (m *Manager) applyCheckResult(backend *Backend, err error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	backend.lastCheckTime = time.Now()
	oldState := backend.state

	if err != nil {
		m.metrics.HealthChecksTotal.WithLabelValues(backend.ID, "failure").Inc()
		backend.lastError = err
		backend.consecutiveSuccesses = 0
		backend.consecutiveFailures++

		logger.Debug("Backend %s health check failed: %v (consecutive failures: %d)",
			backend.ID, err, backend.consecutiveFailures)

		switch backend.state {
		case StateUp:
			if backend.consecutiveFailures >= m.config.FailureThreshold {
				m.setBackendState(backend, StateDown)
			}
		case StateProbing:
			// Из PROBING сразу в DOWN при любой неудаче
			m.setBackendState(backend, StateDown)
		}
	} else {
		m.metrics.HealthChecksTotal.WithLabelValues(backend.ID, "success").Inc()
		backend.lastError = nil
		backend.consecutiveFailures = 0
		backend.consecutiveSuccesses++

		switch backend.state {
		case StateDown:
			// Из DOWN в PROBING при первом успехе
			m.setBackendState(backend, StateProbing)
		case StateProbing:
			if backend.consecutiveSuccesses >= m.config.SuccessThreshold {
				m.setBackendState(backend, StateUp)
			}
		}
	}

	if oldState != backend.state {
		logger.Info("Backend %s state changed: %s -> %s", backend.ID, oldState, backend.state)
	}
}

// setBackendState вызывается под backend.mu
func (m *Manager) setBackendState(backend *Backend, state BackendState) {
	backend.state = state
	m.metrics.BackendState.WithLabelValues(backend.ID).Set(state.ToFloat64())
}
