package proxy

import (
	"encoding/pem"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosproxy/apigw"
	"cosproxy/auth"
	"cosproxy/backend"
	"cosproxy/routing"
	"cosproxy/tokencache"
)

// seenRequest - то, что получил бэкенд
type seenRequest struct {
	Host          string
	RequestURI    string
	Authorization string
	Method        string
}

type fakeReporter struct {
	mu        sync.Mutex
	successes []*backend.BackendResult
	failures  []*backend.BackendResult
}

func (f *fakeReporter) ReportSuccess(r *backend.BackendResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, r)
}

func (f *fakeReporter) ReportFailure(r *backend.BackendResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, r)
}

// tlsBackend поднимает TLS-бэкенд и возвращает конфигурацию прокси, доверяющую его сертификату
func tlsBackend(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Config) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, pemBytes, 0o600))

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.UpstreamPort = port
	cfg.CAFile = caFile
	return srv, cfg
}

func newTestServer(t *testing.T, cfg *Config, reporter HealthReporter) (*Server, *State) {
	t.Helper()
	state := newTestState(t,
		[]routing.Entry{{Bucket: "orders", Host: "127.0.0.1", APIKeyRef: "k1"}},
		map[string]string{"k1": "tok123"},
	)
	transport, err := NewTransport(cfg)
	require.NoError(t, err)
	t.Cleanup(transport.CloseIdleConnections)

	pipeline := NewPipeline(state, auth.NewValidator(nil, nil), cfg, false)
	return NewServer(pipeline, transport, reporter, nil), state
}

func TestServer_ForwardsRewrittenRequest(t *testing.T) {
	var mu sync.Mutex
	var seen seenRequest
	_, cfg := tlsBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = seenRequest{Host: r.Host, RequestURI: r.RequestURI, Authorization: r.Header.Get("Authorization"), Method: r.Method}
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		_, _ = io.WriteString(w, "object body")
	})

	reporter := &fakeReporter{}
	srv, state := newTestServer(t, cfg, reporter)

	req := httptest.NewRequest(http.MethodGet, "/orders/2024/jan.csv?versionId=3", nil)
	req.Header.Set("Authorization", sigV4Header)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "object body", rec.Body.String())
	assert.Equal(t, `"abc"`, rec.Header().Get("ETag"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "orders.127.0.0.1", seen.Host)
	assert.Equal(t, "/2024/jan.csv?versionId=3", seen.RequestURI)
	assert.Equal(t, "Bearer tok123", seen.Authorization)
	assert.Equal(t, http.MethodGet, seen.Method)

	assert.Equal(t, uint64(1), state.Counter.Value())
	require.Len(t, reporter.successes, 1)
	assert.Equal(t, "orders", reporter.successes[0].BackendID)
}

func TestServer_RejectsWithoutUpstreamContact(t *testing.T) {
	var calls atomic.Int32
	_, cfg := tlsBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	srv, _ := newTestServer(t, cfg, nil)

	tests := []struct {
		target     string
		wantStatus int
		wantCode   string
	}{
		{"//key", http.StatusBadRequest, "InvalidURI"},
		{"/unknown/key", http.StatusServiceUnavailable, "ServiceUnavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/placeholder", nil)
			req.URL.Path = tt.target
			req = req.WithContext(apigw.WithRequestID(req.Context(), "req-42"))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var s3err apigw.S3Error
			require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &s3err))
			assert.Equal(t, tt.wantCode, s3err.Code)
			assert.Equal(t, "req-42", s3err.RequestID)
		})
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestServer_ErrorBodyHidesDetails(t *testing.T) {
	var calls atomic.Int32
	_, cfg := tlsBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	keyFile := filepath.Join(t.TempDir(), "keys", "orders.key")
	state := newTestState(t,
		[]routing.Entry{{Bucket: "orders", Host: "127.0.0.1", APIKeyRef: "k1"}},
		map[string]string{"k1": "file://" + keyFile},
	)
	transport, err := NewTransport(cfg)
	require.NoError(t, err)
	t.Cleanup(transport.CloseIdleConnections)
	srv := NewServer(NewPipeline(state, auth.NewValidator(nil, nil), cfg, false), transport, nil, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/key", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var s3err apigw.S3Error
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &s3err))
	assert.Equal(t, "BadGateway", s3err.Code)
	assert.Equal(t, "could not obtain backend credentials", s3err.Message)
	assert.NotContains(t, rec.Body.String(), keyFile)
	assert.NotContains(t, rec.Body.String(), "no such file")
	assert.Equal(t, int32(0), calls.Load())
}

func TestServer_UnauthorizedInvalidatesToken(t *testing.T) {
	_, cfg := tlsBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	reporter := &fakeReporter{}
	srv, state := newTestServer(t, cfg, reporter)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/orders/key", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, tokencache.Absent, state.Cache.State("orders"))
	assert.Len(t, reporter.successes, 1)
}

func TestServer_UpstreamServerErrorReported(t *testing.T) {
	_, cfg := tlsBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	reporter := &fakeReporter{}
	srv, _ := newTestServer(t, cfg, reporter)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/key", nil))

	// Ответ бэкенда передается без изменений
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Len(t, reporter.failures, 1)
	assert.Error(t, reporter.failures[0].Err)
}

func TestServer_UpstreamUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := DefaultConfig()
	cfg.UpstreamPort = port
	reporter := &fakeReporter{}
	srv, _ := newTestServer(t, cfg, reporter)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/key", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.Len(t, reporter.failures, 1)
	assert.Equal(t, "orders", reporter.failures[0].BackendID)
}

func TestServer_RejectsUntrustedCertificate(t *testing.T) {
	var calls atomic.Int32
	_, cfg := tlsBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	cfg.CAFile = ""
	srv, _ := newTestServer(t, cfg, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/key", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, int32(0), calls.Load())

	// С insecure_skip_verify запрос проходит
	cfg.InsecureSkipVerify = true
	srv, _ = newTestServer(t, cfg, nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/key", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewTransport_BadCAFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CAFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err := NewTransport(cfg)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("not a cert"), 0o600))
	cfg.CAFile = empty
	_, err = NewTransport(cfg)
	assert.Error(t, err)
}

func TestPeer_Address(t *testing.T) {
	assert.Equal(t, "cos.example.com:443", Peer{Host: "cos.example.com", Port: 443}.Address())
	assert.Equal(t, "[::1]:8443", Peer{Host: "::1", Port: 8443}.Address())
}
