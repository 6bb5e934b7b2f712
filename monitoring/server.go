package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"cosproxy/backend"
	"cosproxy/logger"
	"cosproxy/tokencache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	livePath  = "/health/live"
	readyPath = "/health/ready"
	statsPath = "/stats"
)

// Stats - диагностический снимок состояния прокси для /stats
type Stats struct {
	Requests uint64                 `json:"requests"`
	Buckets  int                    `json:"buckets"`
	Tokens   []tokencache.EntryInfo `json:"tokens"`
	Backends []backend.Status       `json:"backends,omitempty"`
}

// StatsFunc собирает снимок состояния
type StatsFunc func() Stats

// ReadinessFunc сообщает, готов ли прокси принимать трафик
type ReadinessFunc func() bool

// Server представляет HTTP сервер для экспорта метрик Prometheus
type Server struct {
	config       *Config
	registry     *prometheus.Registry
	mu           sync.Mutex
	server       *http.Server
	listener     net.Listener
	ready        ReadinessFunc
	stats        StatsFunc
	shuttingDown atomic.Bool
}

// NewServer создает новый сервер метрик. ready и stats могут быть nil.
func NewServer(config *Config, registry *prometheus.Registry, ready ReadinessFunc, stats StatsFunc) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if registry == nil {
		registry = NewRegistry(config)
	}

	return &Server{
		config:   config,
		registry: registry,
		ready:    ready,
		stats:    stats,
	}
}

// Handler возвращает мультиплексор со всеми эндпоинтами мониторинга
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))
	mux.HandleFunc(livePath, s.liveHealthHandler)
	mux.HandleFunc(readyPath, s.readyHealthHandler)
	mux.HandleFunc(statsPath, s.statsHandler)
	return mux
}

// Start открывает listener и обслуживает запросы в отдельной горутине.
// Ошибка bind возвращается сразу.
func (s *Server) Start() error {
	if !s.config.Enabled {
		logger.Info("Monitoring is disabled, skipping metrics server start")
		return nil
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.ListenAddress, err)
	}
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.mu.Lock()
	s.listener = ln
	s.server = server
	s.mu.Unlock()

	go func() {
		logger.Info("Metrics server listening on %s%s", ln.Addr(), s.config.MetricsPath)
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed: %v", err)
		}
	}()

	return nil
}

// Addr возвращает фактический адрес listener (полезно при ":0")
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetShuttingDown переводит /health/ready в 503 до остановки сервера
func (s *Server) SetShuttingDown() {
	s.shuttingDown.Store(true)
}

// Stop останавливает HTTP сервер метрик
func (s *Server) Stop(ctx context.Context) error {
	s.SetShuttingDown()

	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if !s.config.Enabled || server == nil {
		return nil
	}

	logger.Info("Stopping metrics server...")
	return server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode monitoring response: %v", err)
	}
}

// liveHealthHandler обрабатывает запросы /health/live
func (s *Server) liveHealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyHealthHandler обрабатывает запросы /health/ready
func (s *Server) readyHealthHandler(w http.ResponseWriter, r *http.Request) {
	// Проверяем, не находимся ли мы в состоянии graceful shutdown
	if s.shuttingDown.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
		return
	}

	if s.ready != nil && !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no live backends"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statsHandler отдает снимок счетчика запросов, таблицы маршрутизации и кэша токенов
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"status": "method not allowed"})
		return
	}

	stats := Stats{Tokens: []tokencache.EntryInfo{}}
	if s.stats != nil {
		stats = s.stats()
		if stats.Tokens == nil {
			stats.Tokens = []tokencache.EntryInfo{}
		}
	}
	writeJSON(w, http.StatusOK, stats)
}
