package provider

import (
	"context"
	"fmt"

	"cosproxy/routing"
	"cosproxy/tokencache"
)

// Static строит таблицу из конфигурации и получает токены через TokenExchanger
type Static struct {
	table     *routing.Table
	exchanger TokenExchanger
}

// NewStatic создает провайдер с обменом ключей через exchanger
func NewStatic(cfg *routing.Config, exchanger TokenExchanger) *Static {
	return &Static{
		table:     routing.NewTableFromConfig(cfg),
		exchanger: exchanger,
	}
}

func (s *Static) RoutingTable() (*routing.Table, error) {
	return s.table, nil
}

func (s *Static) BearerToken(ctx context.Context, keyRef string) (tokencache.Token, error) {
	apiKey, err := ResolveKeyRef(keyRef)
	if err != nil {
		return tokencache.Token{}, err
	}
	return s.exchanger.FetchToken(ctx, apiKey)
}

// StaticTokens отдает заранее известные токены без обращения к провайдеру идентификации.
// Используется для разработки и тестов.
type StaticTokens struct {
	table  *routing.Table
	tokens map[string]string
}

// NewStaticTokens создает провайдер со статическими токенами keyRef -> token
func NewStaticTokens(cfg *routing.Config, tokens map[string]string) *StaticTokens {
	return &StaticTokens{
		table:  routing.NewTableFromConfig(cfg),
		tokens: tokens,
	}
}

func (s *StaticTokens) RoutingTable() (*routing.Table, error) {
	return s.table, nil
}

func (s *StaticTokens) BearerToken(ctx context.Context, keyRef string) (tokencache.Token, error) {
	token, ok := s.tokens[keyRef]
	if !ok {
		return tokencache.Token{}, fmt.Errorf("%w: %s", ErrUnknownKeyRef, keyRef)
	}
	value, err := ResolveKeyRef(token)
	if err != nil {
		return tokencache.Token{}, err
	}
	return tokencache.Token{Value: value}, nil
}
