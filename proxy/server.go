package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cosproxy/apigw"
	"cosproxy/backend"
	"cosproxy/logger"
)

// HealthReporter получает результаты обращений к бэкендам (пассивные проверки)
type HealthReporter interface {
	ReportSuccess(result *backend.BackendResult)
	ReportFailure(result *backend.BackendResult)
}

// Server - http.Handler, проводящий запрос через Pipeline и пересылающий его на бэкенд
type Server struct {
	pipeline *Pipeline
	state    *State
	reporter HealthReporter
	proxy    *httputil.ReverseProxy
	metrics  *Metrics
}

// NewServer создает сервер. reporter может быть nil.
func NewServer(pipeline *Pipeline, transport http.RoundTripper, reporter HealthReporter, reg prometheus.Registerer) *Server {
	s := &Server{
		pipeline: pipeline,
		state:    pipeline.state,
		reporter: reporter,
		metrics:  NewMetrics(reg),
	}
	s.proxy = &httputil.ReverseProxy{
		Rewrite:        s.rewrite,
		Transport:      transport,
		FlushInterval:  -1,
		ModifyResponse: s.modifyResponse,
		ErrorHandler:   s.errorHandler,
	}
	return s
}

// ServeHTTP реализует интерфейс http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := NewRequestContext(apigw.RequestIDFromContext(r.Context()), s.state)

	peer, err := s.pipeline.SelectPeer(rc, r)
	if err != nil {
		s.fail(w, r, rc, err)
		return
	}

	out, err := s.pipeline.Rewrite(r.Context(), rc, r)
	if err != nil {
		s.fail(w, r, rc, err)
		return
	}

	log := logger.With("request_id", rc.RequestID, "bucket", rc.Path.Bucket)
	if rc.AuditErr != nil {
		log.Warn("Request validation failed (audit only): %v", rc.AuditErr)
	}
	log.Debug("Forwarding %s to %s via %s", r.Method, out.URL(), peer.Address())

	ctx := WithPeer(r.Context(), peer)
	ctx = withRoute(ctx, &route{rc: rc, out: out})
	s.proxy.ServeHTTP(w, r.WithContext(ctx))
}

func (s *Server) rewrite(pr *httputil.ProxyRequest) {
	rt := routeFromContext(pr.In.Context())
	if rt == nil {
		return
	}
	rt.out.Apply(pr.Out)
}

func (s *Server) modifyResponse(resp *http.Response) error {
	rt := routeFromContext(resp.Request.Context())
	if rt == nil {
		return nil
	}
	rc := rt.rc
	rc.advance(Forwarded)

	duration := time.Since(rc.Started)
	s.metrics.UpstreamResponses.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	s.metrics.UpstreamLatency.WithLabelValues(strconv.FormatBool(rc.Mapped)).Observe(duration.Seconds())

	if resp.StatusCode == http.StatusUnauthorized && rc.Token != "" {
		logger.With("request_id", rc.RequestID).Warn("Backend rejected token for bucket %s", rc.Path.Bucket)
		s.state.Cache.Invalidate(rc.Path.Bucket, rc.Token)
	}

	if s.reporter != nil && rc.Mapped {
		result := &backend.BackendResult{
			BackendID:    rc.Path.Bucket,
			Method:       resp.Request.Method,
			StatusCode:   resp.StatusCode,
			Duration:     duration,
			BytesRead:    max(resp.ContentLength, 0),
			BytesWritten: max(resp.Request.ContentLength, 0),
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			result.Err = fmt.Errorf("upstream returned %s", resp.Status)
			s.reporter.ReportFailure(result)
		} else {
			s.reporter.ReportSuccess(result)
		}
	}
	return nil
}

func (s *Server) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	rt := routeFromContext(r.Context())
	if rt == nil {
		apigw.WriteError(w, r, http.StatusBadGateway, "BadGateway", err.Error())
		return
	}
	rc := rt.rc
	rc.advance(Errored)

	log := logger.With("request_id", rc.RequestID, "bucket", rc.Path.Bucket)
	if errors.Is(err, context.Canceled) {
		log.Debug("Client went away: %v", err)
	} else {
		log.Error("Upstream request to %s failed: %v", rc.Peer.Address(), err)
	}

	if s.reporter != nil && rc.Mapped && !errors.Is(err, context.Canceled) {
		s.reporter.ReportFailure(&backend.BackendResult{
			BackendID: rc.Path.Bucket,
			Method:    r.Method,
			Err:       err,
			Duration:  time.Since(rc.Started),
		})
	}

	s.metrics.ErrorsTotal.WithLabelValues("BadGateway").Inc()
	apigw.WriteError(w, r, http.StatusBadGateway, "BadGateway", "upstream request failed")
}

// fail отвечает клиенту ошибкой, не обращаясь к бэкенду
func (s *Server) fail(w http.ResponseWriter, r *http.Request, rc *RequestContext, err error) {
	rc.advance(Errored)
	status, code, message := errorResponse(err)
	logger.With("request_id", rc.RequestID).Warn("Request %s %s rejected with %d: %v", r.Method, r.URL.EscapedPath(), status, err)
	s.metrics.ErrorsTotal.WithLabelValues(code).Inc()
	apigw.WriteError(w, r, status, code, message)
}
