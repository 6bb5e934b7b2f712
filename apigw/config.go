package apigw

import "time"

// Config содержит конфигурацию для API Gateway
type Config struct {
	// ListenAddress - адрес и порт для прослушивания (например, ":6190")
	ListenAddress string

	// TLSCertFile - путь к файлу SSL-сертификата (опционально, для включения HTTPS)
	TLSCertFile string

	// TLSKeyFile - путь к файлу приватного ключа SSL (опционально)
	TLSKeyFile string

	// ReadTimeout - таймаут на чтение всего запроса, включая тело
	ReadTimeout time.Duration

	// WriteTimeout - таймаут на запись всего ответа
	WriteTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		ListenAddress: ":6190",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  5 * time.Minute,
	}
}
