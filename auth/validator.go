package auth

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"cosproxy/logger"
)

// Validate проверяет, что заголовок Authorization является запросом, подписанным SigV4,
// и возвращает токен вызывающей стороны (access key id). Функция не имеет побочных эффектов.
func Validate(header string) (string, error) {
	if header == "" {
		return "", ErrEmptyHeader
	}
	if !strings.HasPrefix(header, CredentialPrefix) {
		return "", ErrUnrecognizedScheme
	}

	scope, err := ParseCredentialHeader(header)
	if err != nil {
		return "", err
	}
	if scope.AccessKey == "" {
		return "", ErrEmptyToken
	}
	return scope.AccessKey, nil
}

// Validator выполняет Validate с учетом метрик и режима enforce
type Validator struct {
	enforce bool
	metrics *Metrics
}

// NewValidator создает валидатор запросов
func NewValidator(config *Config, reg prometheus.Registerer) *Validator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Validator{
		enforce: config.Enforce,
		metrics: NewMetrics(reg),
	}
}

// Check проверяет заголовок и возвращает токен вызывающей стороны.
// Ошибка возвращается всегда; решение об отказе принимает вызывающий код через Enforced.
func (v *Validator) Check(header string) (string, error) {
	token, err := Validate(header)
	v.metrics.ValidationsTotal.WithLabelValues(reason(err)).Inc()
	if err != nil {
		logger.Debug("Request validation failed: %v", err)
		return "", err
	}
	logger.Debug("Request validated for access key %s", token)
	return token, nil
}

// Enforced сообщает, нужно ли отклонять запросы, не прошедшие проверку
func (v *Validator) Enforced() bool {
	return v.enforce
}
