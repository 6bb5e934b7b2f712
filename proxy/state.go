package proxy

import (
	"context"

	"cosproxy/provider"
	"cosproxy/routing"
	"cosproxy/tokencache"
)

// State - разделяемое состояние процесса: таблица маршрутизации, кэш токенов,
// счетчик запросов и источник токенов. Создается один раз при старте.
type State struct {
	Table    *routing.Table
	Cache    *tokencache.Cache
	Counter  *RequestCounter
	Provider provider.ConfigProvider
}

// NewState собирает состояние из таблицы провайдера
func NewState(p provider.ConfigProvider, cache *tokencache.Cache, counter *RequestCounter) (*State, error) {
	table, err := p.RoutingTable()
	if err != nil {
		return nil, err
	}
	return &State{
		Table:    table,
		Cache:    cache,
		Counter:  counter,
		Provider: p,
	}, nil
}

// Token возвращает bearer-токен бакета через кэш.
// Ключ кэша - имя бакета, ключ доступа берется из keyRef.
func (s *State) Token(ctx context.Context, bucket, keyRef string) (string, error) {
	return s.Cache.GetOrFetch(ctx, bucket, func(ctx context.Context) (tokencache.Token, error) {
		return s.Provider.BearerToken(ctx, keyRef)
	})
}

// BucketToken возвращает токен для бакета из таблицы маршрутизации
func (s *State) BucketToken(ctx context.Context, bucket string) (string, error) {
	d, ok := s.Table.Resolve(bucket)
	if !ok || !d.HasCredentials() {
		return "", noCredential(bucket)
	}
	return s.Token(ctx, bucket, d.APIKeyRef)
}
