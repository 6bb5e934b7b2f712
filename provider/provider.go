package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cosproxy/routing"
	"cosproxy/tokencache"
)

// ErrUnknownKeyRef - для ссылки на ключ нет статического токена
var ErrUnknownKeyRef = errors.New("unknown api key reference")

// ConfigProvider поставляет таблицу маршрутизации и bearer-токены для ссылок на ключи
type ConfigProvider interface {
	// RoutingTable возвращает таблицу маршрутизации, построенную при старте
	RoutingTable() (*routing.Table, error)

	// BearerToken возвращает свежий токен для ссылки на API-ключ
	BearerToken(ctx context.Context, keyRef string) (tokencache.Token, error)
}

// TokenExchanger обменивает API-ключ на токен (реализуется iam.Client)
type TokenExchanger interface {
	FetchToken(ctx context.Context, apiKey string) (tokencache.Token, error)
}

// ResolveKeyRef превращает ссылку на ключ в сам ключ:
// env://NAME - переменная окружения, file:///path - содержимое файла без пробелов по краям,
// иначе значение используется как есть.
func ResolveKeyRef(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env://"):
		name := strings.TrimPrefix(ref, "env://")
		value, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return value, nil
	case strings.HasPrefix(ref, "file://"):
		path := strings.TrimPrefix(ref, "file://")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read api key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return ref, nil
	}
}
