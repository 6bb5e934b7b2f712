package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cosproxy/routing"
)

// fakeChecker возвращает заранее заданную ошибку для каждого бэкенда
type fakeChecker struct {
	mu     sync.Mutex
	errs   map[string]error
	checks map[string]int
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{errs: make(map[string]error), checks: make(map[string]int)}
}

func (f *fakeChecker) Check(ctx context.Context, b *Backend) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[b.ID]++
	return f.errs[b.ID]
}

func (f *fakeChecker) setErr(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

func (f *fakeChecker) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks[id]
}

func testTable() *routing.Table {
	return routing.NewTable([]routing.Entry{
		{Bucket: "orders", Host: "cos.example.com", Port: 443, APIKeyRef: "k1"},
		{Bucket: "invoices", Host: "cos.example.com", Port: 443, APIKeyRef: "k2"},
	}, "default.example.com")
}

func newTestManager(t *testing.T, cfg ManagerConfig, checker Checker) *Manager {
	t.Helper()
	manager, err := NewManager(cfg, testTable(), checker, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return manager
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if !config.Enabled {
		t.Error("Expected health checks to be enabled by default")
	}
	if config.Manager.HealthCheckInterval <= 0 {
		t.Error("Expected positive health check interval")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name        string
		modify      func(*Config)
		expectError bool
	}{
		{"Valid default config", func(c *Config) {}, false},
		{"Zero interval", func(c *Config) { c.Manager.HealthCheckInterval = 0 }, true},
		{"Timeout above interval", func(c *Config) { c.Manager.CheckTimeout = time.Hour }, true},
		{"Bad initial state", func(c *Config) { c.Manager.InitialState = "MAYBE" }, true},
		{"Empty region", func(c *Config) { c.Region = "" }, true},
		{"Disabled skips validation", func(c *Config) { c.Enabled = false; c.Region = "" }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.modify(config)
			err := config.Validate()
			if tc.expectError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tc.expectError && err != nil {
				t.Errorf("Expected no validation error, got: %v", err)
			}
		})
	}
}

func TestBackendStateToFloat64(t *testing.T) {
	testCases := []struct {
		state    BackendState
		expected float64
	}{
		{StateUp, 1.0},
		{StateProbing, 0.5},
		{StateDown, 0.0},
		{BackendState("UNKNOWN"), 0.0},
	}

	for _, tc := range testCases {
		if result := tc.state.ToFloat64(); result != tc.expected {
			t.Errorf("State %s: expected %f, got %f", tc.state, tc.expected, result)
		}
	}
}

func TestNewManager(t *testing.T) {
	manager := newTestManager(t, DefaultManagerConfig(), newFakeChecker())

	if len(manager.backends) != 2 {
		t.Errorf("Expected 2 backends, got %d", len(manager.backends))
	}
	if manager.IsRunning() {
		t.Error("Expected manager to not be running initially")
	}

	if _, err := NewManager(ManagerConfig{HealthCheckInterval: time.Second}, testTable(), newFakeChecker(), nil); err == nil {
		t.Error("Expected error creating manager with invalid config")
	}
	if _, err := NewManager(DefaultManagerConfig(), testTable(), nil, nil); err == nil {
		t.Error("Expected error creating manager without checker")
	}
}

func TestManagerStartStop(t *testing.T) {
	config := DefaultManagerConfig()
	// Используем быстрые интервалы для тестов
	config.HealthCheckInterval = 20 * time.Millisecond
	config.CheckTimeout = 10 * time.Millisecond
	checker := newFakeChecker()
	manager := newTestManager(t, config, checker)

	if err := manager.Start(); err != nil {
		t.Fatalf("Failed to start manager: %v", err)
	}
	if err := manager.Start(); err == nil {
		t.Error("Expected error on double start")
	}
	if !manager.IsRunning() {
		t.Error("Expected manager to be running after start")
	}

	deadline := time.Now().Add(5 * time.Second)
	for checker.count("orders") < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if checker.count("orders") < 3 {
		t.Errorf("Expected repeated health checks, got %d", checker.count("orders"))
	}

	if err := manager.Stop(); err != nil {
		t.Errorf("Failed to stop manager: %v", err)
	}
	if manager.IsRunning() {
		t.Error("Expected manager to not be running after stop")
	}

	// Повторный запуск после остановки
	if err := manager.Start(); err != nil {
		t.Fatalf("Failed to restart manager: %v", err)
	}
	manager.Stop()
}

func TestHealthCheckTransitions(t *testing.T) {
	config := DefaultManagerConfig()
	config.SuccessThreshold = 2
	config.FailureThreshold = 2
	checker := newFakeChecker()
	manager := newTestManager(t, config, checker)
	orders, _ := manager.GetBackend("orders")

	steps := []struct {
		err      error
		expected BackendState
	}{
		{nil, StateProbing},
		{nil, StateUp},
		{errors.New("timeout"), StateUp},
		{errors.New("timeout"), StateDown},
		{nil, StateProbing},
		{errors.New("timeout"), StateDown},
		// 404 означает, что бэкенд отвечает
		{&types.NotFound{}, StateProbing},
	}

	for i, step := range steps {
		checker.setErr("orders", step.err)
		manager.checkBackend(orders)
		if state := orders.GetState(); state != step.expected {
			t.Fatalf("Step %d: expected %s, got %s", i, step.expected, state)
		}
	}
	if orders.GetLastCheckTime().IsZero() {
		t.Error("Expected last check time to be set")
	}
}

func TestGetBackendsAndReady(t *testing.T) {
	manager := newTestManager(t, DefaultManagerConfig(), newFakeChecker())

	if len(manager.GetAllBackends()) != 2 {
		t.Errorf("Expected 2 backends, got %d", len(manager.GetAllBackends()))
	}
	if _, exists := manager.GetBackend("nonexistent"); exists {
		t.Error("Expected nonexistent backend to not exist")
	}

	// Все в PROBING - готовности нет
	if len(manager.GetLiveBackends()) != 0 || manager.Ready() {
		t.Error("Expected no live backends while probing")
	}

	orders, _ := manager.GetBackend("orders")
	orders.mu.Lock()
	manager.setBackendState(orders, StateUp)
	orders.mu.Unlock()

	if !manager.Ready() {
		t.Error("Expected manager to be ready with one backend UP")
	}

	empty, err := NewManager(DefaultManagerConfig(), routing.NewTable(nil, "d"), newFakeChecker(), nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if !empty.Ready() {
		t.Error("Expected manager without backends to be ready")
	}

	snapshot := manager.Snapshot()
	if len(snapshot) != 2 || snapshot[0].ID != "invoices" || snapshot[1].State != "UP" {
		t.Errorf("Unexpected snapshot: %+v", snapshot)
	}
}

func TestReportSuccessFailure(t *testing.T) {
	manager := newTestManager(t, DefaultManagerConfig(), newFakeChecker())
	backend, _ := manager.GetBackend("orders")

	manager.ReportSuccess(&BackendResult{BackendID: "orders", Method: "GET", StatusCode: 200, BytesRead: 10})

	failures, successes, _ := backend.GetStats()
	if failures != 0 || successes != 1 {
		t.Errorf("After ReportSuccess: expected failures=0, successes=1, got failures=%d, successes=%d",
			failures, successes)
	}

	testErr := fmt.Errorf("upstream returned 503")
	manager.ReportFailure(&BackendResult{BackendID: "orders", Method: "GET", StatusCode: 503, Err: testErr})

	failures, successes, _ = backend.GetStats()
	if failures != 1 || successes != 0 {
		t.Errorf("After ReportFailure: expected failures=1, successes=0, got failures=%d, successes=%d",
			failures, successes)
	}
	if backend.GetLastError() != testErr {
		t.Errorf("Expected last error to be set")
	}

	// Отмена клиентом не влияет на счетчики
	manager.ReportFailure(&BackendResult{BackendID: "orders", Method: "GET", Err: context.Canceled})
	if failures, _, _ = backend.GetStats(); failures != 1 {
		t.Errorf("Expected benign error to be ignored, failures=%d", failures)
	}

	// Не должно паниковать
	manager.ReportSuccess(&BackendResult{BackendID: "nonexistent"})
	manager.ReportFailure(&BackendResult{BackendID: "nonexistent", Err: testErr})
}

func TestCircuitBreaker(t *testing.T) {
	config := DefaultManagerConfig()
	config.CircuitBreakerThreshold = 3
	config.CircuitBreakerWindow = time.Minute
	manager := newTestManager(t, config, newFakeChecker())

	backend, _ := manager.GetBackend("orders")
	backend.mu.Lock()
	backend.state = StateUp
	backend.mu.Unlock()

	testErr := fmt.Errorf("connection refused")
	for i := 0; i < 2; i++ {
		manager.ReportFailure(&BackendResult{BackendID: "orders", Method: "GET", Err: testErr})
	}
	if backend.GetState() != StateUp {
		t.Errorf("Expected state UP after 2 failures, got %s", backend.GetState())
	}

	manager.ReportFailure(&BackendResult{BackendID: "orders", Method: "GET", Err: testErr})
	if backend.GetState() != StateDown {
		t.Errorf("Expected state DOWN after circuit breaker trigger, got %s", backend.GetState())
	}

	// Успешный запрос возвращает бэкенд в строй
	manager.ReportSuccess(&BackendResult{BackendID: "orders", Method: "GET", StatusCode: 200})
	if backend.GetState() != StateUp {
		t.Errorf("Expected state UP after success, got %s", backend.GetState())
	}
}
