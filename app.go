package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"cosproxy/apigw"
	"cosproxy/auth"
	"cosproxy/backend"
	"cosproxy/iam"
	"cosproxy/logger"
	"cosproxy/monitoring"
	"cosproxy/provider"
	"cosproxy/proxy"
	"cosproxy/tokencache"
)

const shutdownTimeout = 30 * time.Second

// App связывает модули прокси в один процесс
type App struct {
	config  *AppConfig
	monitor *monitoring.Monitor
	state   *proxy.State
	manager *backend.Manager
	gateway *apigw.Gateway

	// Транспорт прокси и транспорт проверок бэкендов не делят пул соединений
	transport      *http.Transport
	checkTransport *http.Transport
}

// NewApp создает все модули, но ничего не запускает
func NewApp(config *AppConfig) (*App, error) {
	monitor, err := monitoring.New(&config.Monitoring)
	if err != nil {
		return nil, err
	}
	reg := monitor.Registry()

	var exchanger provider.TokenExchanger
	if config.Credentials.Provider == provider.KindIAM {
		exchanger = iam.NewClient(&config.IAM, nil, reg)
	}
	p, err := provider.New(&config.Credentials, &config.Routing, exchanger)
	if err != nil {
		return nil, fmt.Errorf("credentials provider: %w", err)
	}

	cache := tokencache.New(config.Credentials.CacheConfig(), reg)
	state, err := proxy.NewState(p, cache, proxy.NewRequestCounter(reg))
	if err != nil {
		return nil, fmt.Errorf("routing table: %w", err)
	}
	logger.Info("Routing table loaded: %d buckets, default domain %s",
		state.Table.Len(), state.Table.DefaultSuffix())
	for _, bucket := range state.Table.Buckets() {
		d, _ := state.Table.Resolve(bucket)
		logger.Debug("  - %s -> %s:%d (credentials: %v)", bucket, d.Host, d.Port, d.HasCredentials())
	}

	if config.Proxy.InsecureSkipVerify {
		logger.Warn("Upstream certificate verification is disabled (proxy.insecure_skip_verify)")
	}
	transport, err := proxy.NewTransport(&config.Proxy)
	if err != nil {
		return nil, fmt.Errorf("upstream transport: %w", err)
	}

	validator := auth.NewValidator(&config.Auth, reg)
	pipeline := proxy.NewPipeline(state, validator, &config.Proxy, config.Routing.PassthroughUnmapped)

	app := &App{
		config:    config,
		monitor:   monitor,
		state:     state,
		transport: transport,
	}

	var reporter proxy.HealthReporter
	if config.Backend.Enabled {
		app.checkTransport, err = proxy.NewTransport(&config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("health check transport: %w", err)
		}
		checker := backend.NewS3Checker(&config.Backend, config.Proxy.UpstreamPort,
			&http.Client{Transport: app.checkTransport}, state.BucketToken)
		app.manager, err = backend.NewManager(config.Backend.Manager, state.Table, checker, reg)
		if err != nil {
			return nil, fmt.Errorf("backend manager: %w", err)
		}
		reporter = app.manager
	} else {
		logger.Info("Backend health checks disabled")
	}

	server := proxy.NewServer(pipeline, transport, reporter, reg)
	app.gateway = apigw.New(config.ToAPIGatewayConfig(), server, reg)

	var ready monitoring.ReadinessFunc
	if app.manager != nil {
		ready = app.manager.Ready
	}
	monitor.Attach(ready, app.stats)

	return app, nil
}

func (a *App) stats() monitoring.Stats {
	s := monitoring.Stats{
		Requests: a.state.Counter.Value(),
		Buckets:  a.state.Table.Len(),
		Tokens:   a.state.Cache.Snapshot(),
	}
	if a.manager != nil {
		s.Backends = a.manager.Snapshot()
	}
	return s
}

// Handler возвращает входной обработчик прокси
func (a *App) Handler() http.Handler {
	return a.gateway
}

// Run запускает модули и блокируется до отмены ctx или ошибки listener
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.config.Server.ListenAddress, err)
	}
	return a.Serve(ctx, ln)
}

// Serve работает как Run, но принимает соединения из готового listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.monitor.Start(); err != nil {
		ln.Close()
		return err
	}
	if a.manager != nil {
		if err := a.manager.Start(); err != nil {
			ln.Close()
			return errors.Join(err, a.monitor.Stop(context.Background()))
		}
		logger.Info("Backend manager running with %d backends", len(a.manager.GetAllBackends()))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.gateway.Serve(ln)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		a.monitor.SetShuttingDown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.gateway.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop api gateway: %w", err))
		}
		if a.manager != nil {
			if err := a.manager.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop backend manager: %w", err))
			}
		}
		if err := a.monitor.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		a.transport.CloseIdleConnections()
		if a.checkTransport != nil {
			a.checkTransport.CloseIdleConnections()
		}
		return errors.Join(errs...)
	})

	logger.Info("COS proxy started on %s", ln.Addr())
	if a.monitor.IsEnabled() {
		logger.Info("Metrics available at: %s%s", a.monitor.Addr(), a.config.Monitoring.MetricsPath)
	}

	err := g.Wait()
	logger.Info("COS proxy stopped")
	return err
}
