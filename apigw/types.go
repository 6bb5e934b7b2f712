package apigw

import (
	"context"
	"errors"
)

// ErrMalformedPath - путь запроса не содержит имени бакета или не начинается с "/".
var ErrMalformedPath = errors.New("malformed request path")

// ParsedPath - результат разбора пути входящего запроса.
type ParsedPath struct {
	// Имя бакета - первый сегмент пути.
	Bucket string

	// Остаток пути после бакета, включая ведущий "/".
	// Равен "/", если после бакета ничего нет. Percent-encoding сохраняется как есть.
	ForwardedPath string
}

type requestIDKey struct{}

// WithRequestID сохраняет идентификатор запроса в контексте
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext возвращает идентификатор запроса, назначенный Gateway
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
