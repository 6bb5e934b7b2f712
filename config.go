package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cosproxy/apigw"
	"cosproxy/auth"
	"cosproxy/backend"
	"cosproxy/iam"
	"cosproxy/logger"
	"cosproxy/monitoring"
	"cosproxy/provider"
	"cosproxy/proxy"
	"cosproxy/routing"
)

// AppConfig содержит полную конфигурацию приложения
type AppConfig struct {
	// Конфигурация входящего listener
	Server ServerConfig `yaml:"server"`

	// Конфигурация логирования
	Logging LoggingConfig `yaml:"logging"`

	// Соединения с бэкендами
	Proxy proxy.Config `yaml:"proxy"`

	// Таблица бакетов
	Routing routing.Config `yaml:"routing"`

	// Получение и кэширование bearer-токенов
	Credentials provider.Config `yaml:"credentials"`

	// Клиент IAM
	IAM iam.Config `yaml:"iam"`

	// Проверка подписи входящих запросов
	Auth auth.Config `yaml:"auth"`

	// Активные проверки бакетов
	Backend backend.Config `yaml:"backend"`

	// Конфигурация мониторинга
	Monitoring monitoring.Config `yaml:"monitoring"`
}

// ServerConfig содержит конфигурацию HTTP сервера
type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	TLSCertFile   string        `yaml:"tls_cert_file"`
	TLSKeyFile    string        `yaml:"tls_key_file"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// LoggingConfig содержит конфигурацию логирования
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultAppConfig возвращает конфигурацию по умолчанию
func DefaultAppConfig() *AppConfig {
	gw := apigw.DefaultConfig()
	return &AppConfig{
		Server: ServerConfig{
			ListenAddress: gw.ListenAddress,
			ReadTimeout:   gw.ReadTimeout,
			WriteTimeout:  gw.WriteTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Proxy:       *proxy.DefaultConfig(),
		Routing:     *routing.DefaultConfig(),
		Credentials: *provider.DefaultConfig(),
		IAM:         *iam.DefaultConfig(),
		Auth:        *auth.DefaultConfig(),
		Backend:     *backend.DefaultConfig(),
		Monitoring:  *monitoring.DefaultConfig(),
	}
}

// LoadConfig загружает конфигурацию из файла
func LoadConfig(filename string) (*AppConfig, error) {
	// Читаем файл
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", filename, err)
	}
	return config, nil
}

// ParseConfig разбирает YAML поверх конфигурации по умолчанию и валидирует результат
func ParseConfig(data []byte) (*AppConfig, error) {
	// Начинаем с конфигурации по умолчанию
	config := DefaultAppConfig()

	// Парсим YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Валидируем конфигурацию
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate проверяет корректность конфигурации
func (c *AppConfig) Validate() error {
	// Валидируем server конфигурацию
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address cannot be empty")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	// Проверяем TLS конфигурацию
	if (c.Server.TLSCertFile != "" && c.Server.TLSKeyFile == "") ||
		(c.Server.TLSCertFile == "" && c.Server.TLSKeyFile != "") {
		return fmt.Errorf("both tls_cert_file and tls_key_file must be specified for TLS")
	}

	// Валидируем уровень логирования
	if !logger.IsValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	// Валидируем конфигурации модулей
	if err := c.Proxy.Validate(); err != nil {
		return fmt.Errorf("proxy config: %w", err)
	}

	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing config: %w", err)
	}

	if err := c.Credentials.Validate(); err != nil {
		return fmt.Errorf("credentials config: %w", err)
	}

	if c.Credentials.Provider == provider.KindIAM {
		if err := c.IAM.Validate(); err != nil {
			return fmt.Errorf("iam config: %w", err)
		}
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	if err := c.Monitoring.Validate(); err != nil {
		return fmt.Errorf("monitoring config: %w", err)
	}

	return nil
}

// ToAPIGatewayConfig преобразует в конфигурацию API Gateway
func (c *AppConfig) ToAPIGatewayConfig() apigw.Config {
	return apigw.Config{
		ListenAddress: c.Server.ListenAddress,
		TLSCertFile:   c.Server.TLSCertFile,
		TLSKeyFile:    c.Server.TLSKeyFile,
		ReadTimeout:   c.Server.ReadTimeout,
		WriteTimeout:  c.Server.WriteTimeout,
	}
}

// SaveConfig сохраняет конфигурацию в файл (для генерации примера)
func (c *AppConfig) SaveConfig(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}
