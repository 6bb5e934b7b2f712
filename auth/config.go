package auth

// Config содержит конфигурацию для модуля проверки запросов
type Config struct {
	// Enforce - отклонять запросы, не прошедшие проверку (403 AccessDenied).
	// По умолчанию проверка только логируется.
	Enforce bool `yaml:"enforce" json:"enforce"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{Enforce: false}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	return nil
}
