package backend

import (
	"context"
	"sync"
	"time"
)

// BackendState представляет состояние бэкенда
type BackendState string

const (
	StateUp      BackendState = "UP"      // Бэкенд полностью работоспособен
	StateDown    BackendState = "DOWN"    // Бэкенд недоступен
	StateProbing BackendState = "PROBING" // Промежуточное состояние - проверка восстановления
)

// String возвращает строковое представление состояния
func (s BackendState) String() string {
	return string(s)
}

// ToFloat64 возвращает числовое представление состояния для метрик Prometheus
func (s BackendState) ToFloat64() float64 {
	switch s {
	case StateUp:
		return 1.0
	case StateProbing:
		return 0.5
	default:
		return 0.0
	}
}

// Backend - хранилище, обслуживающее один бакет из таблицы маршрутизации.
// ID совпадает с именем бакета.
type Backend struct {
	ID   string
	Host string
	Port int

	// Внутреннее состояние, защищенное мьютексом
	mu                   sync.RWMutex
	state                BackendState
	lastError            error
	lastCheckTime        time.Time
	consecutiveFailures  int // Количество последовательных неудач
	consecutiveSuccesses int // Количество последовательных успехов

	// Статистика для Circuit Breaker
	recentFailures int       // Количество неудач в скользящем окне
	windowStart    time.Time // Начало текущего окна
}

// BackendResult представляет результат одного обращения к бэкенду
type BackendResult struct {
	BackendID    string
	Method       string
	StatusCode   int
	Err          error
	Duration     time.Duration
	BytesWritten int64
	BytesRead    int64
}

// Status - состояние бэкенда для диагностики
type Status struct {
	ID        string    `json:"id"`
	Host      string    `json:"host"`
	State     string    `json:"state"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// GetState возвращает текущее состояние бэкенда (потокобезопасно)
func (b *Backend) GetState() BackendState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetLastError возвращает последнюю ошибку (потокобезопасно)
func (b *Backend) GetLastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError
}

// GetLastCheckTime возвращает время последней проверки (потокобезопасно)
func (b *Backend) GetLastCheckTime() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastCheckTime
}

// GetStats возвращает статистику бэкенда (потокобезопасно)
func (b *Backend) GetStats() (consecutiveFailures, consecutiveSuccesses, recentFailures int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.consecutiveFailures, b.consecutiveSuccesses, b.recentFailures
}

// Checker выполняет активную проверку одного бэкенда
type Checker interface {
	Check(ctx context.Context, b *Backend) error
}

// BackendProvider - интерфейс для получения информации о бэкендах
type BackendProvider interface {
	// GetLiveBackends возвращает список бэкендов в состоянии UP
	GetLiveBackends() []*Backend

	// GetAllBackends возвращает список всех бэкендов
	GetAllBackends() []*Backend

	// GetBackend возвращает бэкенд по ID
	GetBackend(id string) (*Backend, bool)

	// ReportSuccess сообщает об успешной операции с бэкендом (пассивная проверка)
	ReportSuccess(result *BackendResult)

	// ReportFailure сообщает о неудачной операции с бэкендом (пассивная проверка)
	ReportFailure(result *BackendResult)

	// Ready сообщает, может ли прокси обслуживать запросы
	Ready() bool

	// Start запускает менеджер бэкендов (активные проверки)
	Start() error

	// Stop останавливает менеджер бэкендов
	Stop() error

	// IsRunning возвращает true, если менеджер запущен
	IsRunning() bool
}
