package routing

import (
	"fmt"
	"strings"
)

// Entry - одна запись конфигурации маршрутизации бакета
type Entry struct {
	Bucket     string `yaml:"bucket"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	InstanceID string `yaml:"instance"`
	APIKeyRef  string `yaml:"api_key"`
}

// BackendDescriptor описывает хранилище, обслуживающее бакет.
// Пустой APIKeyRef означает, что учетные данные для бакета не настроены.
type BackendDescriptor struct {
	Host       string
	Port       int
	InstanceID string
	APIKeyRef  string
}

// HasCredentials сообщает, можно ли получить токен для этого бакета
func (d BackendDescriptor) HasCredentials() bool {
	return d.APIKeyRef != ""
}

// Config содержит конфигурацию таблицы маршрутизации
type Config struct {
	// DefaultDomain - суффикс для бакетов, отсутствующих в таблице
	DefaultDomain string `yaml:"default_domain"`

	// PassthroughUnmapped - пересылать неизвестные бакеты на <bucket>.<default_domain>
	// с исходным заголовком Authorization вместо ошибки
	PassthroughUnmapped bool `yaml:"passthrough_unmapped"`

	// Buckets - список сопоставлений бакет -> бэкенд
	Buckets []Entry `yaml:"buckets"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		DefaultDomain: "s3.eu-de.cloud-object-storage.appdomain.cloud",
	}
}

// Validate проверяет корректность конфигурации маршрутизации
func (c *Config) Validate() error {
	if c.DefaultDomain == "" {
		return fmt.Errorf("default_domain cannot be empty")
	}
	if strings.HasPrefix(c.DefaultDomain, ".") {
		return fmt.Errorf("default_domain must not start with '.': %s", c.DefaultDomain)
	}

	for i, e := range c.Buckets {
		if e.Bucket == "" {
			return fmt.Errorf("buckets[%d]: bucket cannot be empty", i)
		}
		if strings.Contains(e.Bucket, "/") {
			return fmt.Errorf("buckets[%d]: bucket %q must not contain '/'", i, e.Bucket)
		}
		if e.Host == "" {
			return fmt.Errorf("buckets[%d] (%s): host cannot be empty", i, e.Bucket)
		}
		if e.Port < 0 || e.Port > 65535 {
			return fmt.Errorf("buckets[%d] (%s): invalid port %d", i, e.Bucket, e.Port)
		}
	}
	return nil
}
