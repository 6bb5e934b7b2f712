package tokencache

import (
	"context"
	"fmt"
	"time"
)

// Token - bearer-токен бакета. Нулевой ExpiresAt означает токен без срока действия.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// FetchFunc получает свежий токен у провайдера
type FetchFunc func(ctx context.Context) (Token, error)

// FetchState - состояние записи кэша
type FetchState int

const (
	Absent FetchState = iota
	Fetching
	Ready
	Failed
)

func (s FetchState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchError - ошибка получения токена для бакета
type FetchError struct {
	Bucket string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch token for bucket %s: %v", e.Bucket, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// EntryInfo - состояние записи для диагностики (без значения токена)
type EntryInfo struct {
	Bucket    string     `json:"bucket"`
	State     string     `json:"state"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}
