package tokencache

import (
	"fmt"
	"time"
)

// Config содержит настройки кэша токенов
type Config struct {
	// FetchTimeout - ограничение на одно обращение к провайдеру токенов
	FetchTimeout time.Duration

	// RefreshMargin - за сколько до истечения срока токен считается устаревшим.
	// 0 отключает досрочное обновление.
	RefreshMargin time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		FetchTimeout:  30 * time.Second,
		RefreshMargin: 5 * time.Minute,
	}
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive")
	}
	if c.RefreshMargin < 0 {
		return fmt.Errorf("refresh_margin cannot be negative")
	}
	return nil
}
