package apigw

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"cosproxy/logger"
)

// RequestIDHeader - заголовок, в котором клиент получает идентификатор запроса
const RequestIDHeader = "X-Request-Id"

// Gateway представляет входную точку прокси: присваивает идентификатор запроса,
// логирует и считает метрики, после чего передает запрос обработчику.
type Gateway struct {
	config  Config
	handler http.Handler
	server  *http.Server
	metrics *Metrics
}

// New создает новый экземпляр API Gateway
func New(config Config, handler http.Handler, reg prometheus.Registerer) *Gateway {
	gw := &Gateway{
		config:  config,
		handler: handler,
		metrics: NewMetrics(reg),
	}
	gw.server = &http.Server{
		Addr:         config.ListenAddress,
		Handler:      gw,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return gw
}

// statusRecorder запоминает код ответа, отправленный обработчиком
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush нужен для потоковой передачи ответов через ReverseProxy
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// ServeHTTP реализует интерфейс http.Handler
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	gw.metrics.InFlight.Inc()
	defer gw.metrics.InFlight.Dec()

	requestID := uuid.NewString()
	r = r.WithContext(WithRequestID(r.Context(), requestID))
	w.Header().Set(RequestIDHeader, requestID)

	log := logger.With("request_id", requestID)
	log.Info("Incoming request: %s %s", r.Method, r.URL.RequestURI())
	if log.Enabled(logger.DEBUG) {
		log.Debug("Request headers: %v", redactHeaders(r.Header))
	}

	rec := &statusRecorder{ResponseWriter: w}
	gw.handler.ServeHTTP(rec, r)
	if rec.status == 0 {
		rec.status = http.StatusOK
	}

	latency := time.Since(start)
	log.Info("Response sent: %d, %.3f ms", rec.status, float64(latency.Microseconds())/1000.0)

	gw.metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	gw.metrics.RequestLatency.WithLabelValues(r.Method).Observe(latency.Seconds())
}

// redactHeaders скрывает значение Authorization перед выводом в лог
func redactHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out.Get("Authorization") != "" {
		out.Set("Authorization", "REDACTED")
	}
	return out
}

// Start запускает сервер и блокируется до его остановки
func (gw *Gateway) Start() error {
	ln, err := net.Listen("tcp", gw.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", gw.config.ListenAddress, err)
	}
	return gw.Serve(ln)
}

// Serve обслуживает соединения из готового listener до остановки
func (gw *Gateway) Serve(ln net.Listener) error {
	logger.Info("Starting API Gateway on %s", ln.Addr())

	var err error
	// Проверяем, нужно ли использовать TLS
	if gw.config.TLSCertFile != "" && gw.config.TLSKeyFile != "" {
		logger.Info("Starting HTTPS server with TLS")
		err = gw.server.ServeTLS(ln, gw.config.TLSCertFile, gw.config.TLSKeyFile)
	} else {
		logger.Info("Starting HTTP server")
		err = gw.server.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop останавливает сервер
func (gw *Gateway) Stop(ctx context.Context) error {
	logger.Info("Stopping API Gateway...")
	return gw.server.Shutdown(ctx)
}
