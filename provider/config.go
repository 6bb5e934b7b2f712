package provider

import (
	"fmt"
	"time"

	"cosproxy/routing"
	"cosproxy/tokencache"
)

const (
	KindIAM    = "iam"
	KindStatic = "static"
)

// Config содержит настройки получения учетных данных (секция credentials)
type Config struct {
	// Provider - "iam" (обмен API-ключа) или "static" (готовые токены)
	Provider string `yaml:"provider"`

	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	RefreshMargin time.Duration `yaml:"refresh_margin"`

	// StaticTokens - keyRef -> токен, только для provider: static
	StaticTokens map[string]string `yaml:"static_tokens,omitempty"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	cache := tokencache.DefaultConfig()
	return &Config{
		Provider:      KindIAM,
		FetchTimeout:  cache.FetchTimeout,
		RefreshMargin: cache.RefreshMargin,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	switch c.Provider {
	case KindIAM:
	case KindStatic:
		if len(c.StaticTokens) == 0 {
			return fmt.Errorf("static_tokens cannot be empty for provider %q", KindStatic)
		}
	default:
		return fmt.Errorf("unknown credentials provider: %q", c.Provider)
	}
	return c.CacheConfig().Validate()
}

// CacheConfig возвращает настройки кэша токенов
func (c *Config) CacheConfig() tokencache.Config {
	return tokencache.Config{
		FetchTimeout:  c.FetchTimeout,
		RefreshMargin: c.RefreshMargin,
	}
}

// New создает провайдер выбранного типа
func New(c *Config, routingCfg *routing.Config, exchanger TokenExchanger) (ConfigProvider, error) {
	switch c.Provider {
	case KindIAM:
		if exchanger == nil {
			return nil, fmt.Errorf("provider %q requires a token exchanger", KindIAM)
		}
		return NewStatic(routingCfg, exchanger), nil
	case KindStatic:
		return NewStaticTokens(routingCfg, c.StaticTokens), nil
	default:
		return nil, fmt.Errorf("unknown credentials provider: %q", c.Provider)
	}
}
