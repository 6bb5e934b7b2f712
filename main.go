package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"cosproxy/logger"
)

// cliOverrides - значения командной строки, которые перекрывают файл конфигурации
type cliOverrides struct {
	listenAddr          string
	tlsCert             string
	tlsKey              string
	logLevel            string
	metricsAddr         string
	disableMetrics      bool
	disableHealthChecks bool
	insecureSkipVerify  bool
}

func main() {
	// Парсим аргументы командной строки
	var (
		configFile  = flag.StringP("config", "c", "", "Configuration file path (YAML)")
		writeConfig = flag.String("write-default-config", "", "Write default configuration to the given file and exit")
		o           cliOverrides
	)
	flag.StringVarP(&o.listenAddr, "listen", "l", "", "Listen address (overrides config)")
	flag.StringVar(&o.tlsCert, "tls-cert", "", "TLS certificate file (overrides config)")
	flag.StringVar(&o.tlsKey, "tls-key", "", "TLS key file (overrides config)")
	flag.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error) (overrides config)")
	flag.StringVar(&o.metricsAddr, "metrics-listen", "", "Metrics server listen address (overrides config)")
	flag.BoolVar(&o.disableMetrics, "disable-metrics", false, "Disable metrics server (overrides config)")
	flag.BoolVar(&o.disableHealthChecks, "disable-health-checks", false, "Disable active backend health checks (overrides config)")
	flag.BoolVar(&o.insecureSkipVerify, "insecure-skip-verify", false, "Do not verify upstream certificates (overrides config)")
	flag.Parse()

	if *writeConfig != "" {
		if err := DefaultAppConfig().SaveConfig(*writeConfig); err != nil {
			logger.Fatal("Failed to write default configuration: %v", err)
		}
		logger.Info("Default configuration written to %s", *writeConfig)
		return
	}

	// Загружаем конфигурацию
	if *configFile == "" {
		logger.Error("Config file not provided or incorrect. Exiting.")
		flag.Usage()
		os.Exit(1)
	}

	logger.Info("Loading configuration from file: %s", *configFile)
	config, err := LoadConfig(*configFile)
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	// Применяем переопределения из командной строки
	applyCommandLineOverrides(config, o)
	if err := config.Validate(); err != nil {
		logger.Fatal("Invalid configuration after overrides: %v", err)
	}

	// Устанавливаем уровень логирования
	level := logger.ParseLogLevel(config.Logging.Level)
	logger.SetGlobalLevel(level)

	logger.Info("COS proxy starting...")
	logger.Info("Log level: %s", level.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(config)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("COS proxy exited with error: %v", err)
		stop()
		os.Exit(1)
	}
}

// applyCommandLineOverrides применяет переопределения из командной строки
func applyCommandLineOverrides(config *AppConfig, o cliOverrides) {
	// Переопределения сервера
	if o.listenAddr != "" {
		config.Server.ListenAddress = o.listenAddr
		logger.Debug("Override: server.listen_address = %s", o.listenAddr)
	}

	if o.tlsCert != "" {
		config.Server.TLSCertFile = o.tlsCert
		logger.Debug("Override: server.tls_cert_file = %s", o.tlsCert)
	}

	if o.tlsKey != "" {
		config.Server.TLSKeyFile = o.tlsKey
		logger.Debug("Override: server.tls_key_file = %s", o.tlsKey)
	}

	// Переопределения логирования
	if o.logLevel != "" {
		config.Logging.Level = o.logLevel
		logger.Debug("Override: logging.level = %s", o.logLevel)
	}

	// Переопределения мониторинга
	if o.metricsAddr != "" {
		config.Monitoring.ListenAddress = o.metricsAddr
		logger.Debug("Override: monitoring.listen_address = %s", o.metricsAddr)
	}

	if o.disableMetrics {
		config.Monitoring.Enabled = false
		logger.Debug("Override: monitoring.enabled = false")
	}

	if o.disableHealthChecks {
		config.Backend.Enabled = false
		logger.Debug("Override: backend.enabled = false")
	}

	if o.insecureSkipVerify {
		config.Proxy.InsecureSkipVerify = true
		logger.Debug("Override: proxy.insecure_skip_verify = true")
	}
}
