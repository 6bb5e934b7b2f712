package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cosproxy/apigw"
	"cosproxy/tokencache"
)

var (
	// ErrNoCredentialConfigured - для бакета нет ссылки на API-ключ
	ErrNoCredentialConfigured = errors.New("no credential configured")
	// ErrAccessDenied - запрос не прошел проверку в режиме enforce
	ErrAccessDenied = errors.New("access denied")
)

func noCredential(bucket string) error {
	return fmt.Errorf("%w for bucket %s", ErrNoCredentialConfigured, bucket)
}

// errorResponse сопоставляет ошибку конвейера HTTP-статусу, коду и сообщению ошибки S3.
// Сообщение фиксировано для каждого кода, подробности ошибки остаются в журнале.
func errorResponse(err error) (status int, code, message string) {
	var fetchErr *tokencache.FetchError
	switch {
	case errors.Is(err, apigw.ErrMalformedPath):
		return http.StatusBadRequest, "InvalidURI", "request path must name a bucket"
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden, "AccessDenied", "Access Denied"
	case errors.Is(err, ErrNoCredentialConfigured):
		return http.StatusServiceUnavailable, "ServiceUnavailable", "no credentials are configured for this bucket"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "BadGateway", "could not obtain backend credentials"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "GatewayTimeout", "timed out obtaining backend credentials"
	default:
		return http.StatusBadGateway, "BadGateway", "upstream request failed"
	}
}
