package iam

import (
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultTokenURL - эндпоинт IBM Cloud IAM для обмена API-ключа на токен
	DefaultTokenURL = "https://iam.cloud.ibm.com/identity/token"
	// DefaultGrantType - тип гранта для обмена API-ключа
	DefaultGrantType = "urn:ibm:params:oauth:grant-type:apikey"
)

// Config содержит настройки клиента провайдера идентификации
type Config struct {
	TokenURL  string        `yaml:"token_url"`
	GrantType string        `yaml:"grant_type"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		TokenURL:  DefaultTokenURL,
		GrantType: DefaultGrantType,
		Timeout:   10 * time.Second,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	u, err := url.Parse(c.TokenURL)
	if err != nil {
		return fmt.Errorf("invalid token_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("token_url must be an http(s) URL: %s", c.TokenURL)
	}
	if c.GrantType == "" {
		return fmt.Errorf("grant_type cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
