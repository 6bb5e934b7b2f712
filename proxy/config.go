package proxy

import (
	"fmt"
	"time"
)

// Config содержит настройки соединений с бэкендами
type Config struct {
	// UpstreamPort - порт, к которому подключается прокси (TLS)
	UpstreamPort int `yaml:"upstream_port"`

	// InsecureSkipVerify отключает проверку сертификата бэкенда
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// CAFile - дополнительные корневые сертификаты в формате PEM
	CAFile string `yaml:"ca_file"`

	DialTimeout         time.Duration `yaml:"dial_timeout"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		UpstreamPort:        443,
		DialTimeout:         10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 32,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.UpstreamPort <= 0 || c.UpstreamPort > 65535 {
		return fmt.Errorf("invalid upstream_port: %d", c.UpstreamPort)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive")
	}
	if c.IdleConnTimeout < 0 {
		return fmt.Errorf("idle_conn_timeout cannot be negative")
	}
	if c.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("max_idle_conns_per_host cannot be negative")
	}
	return nil
}
