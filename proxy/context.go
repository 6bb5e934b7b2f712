package proxy

import (
	"context"
	"time"

	"cosproxy/apigw"
	"cosproxy/routing"
)

// RequestContext - состояние одного запроса. Живет не дольше запроса,
// разделяемое состояние доступно только через State.
type RequestContext struct {
	RequestID string
	State     *State
	Stage     Stage
	Started   time.Time

	Path       apigw.ParsedPath
	Descriptor routing.BackendDescriptor
	Mapped     bool
	Peer       Peer

	// Результат проверки исходного заголовка Authorization
	CallerToken string
	AuditErr    error

	// Токен, подставленный в исходящий запрос
	Token string
}

// NewRequestContext создает контекст нового запроса
func NewRequestContext(requestID string, state *State) *RequestContext {
	return &RequestContext{
		RequestID: requestID,
		State:     state,
		Stage:     Received,
		Started:   time.Now(),
	}
}

// advance переводит запрос на следующий этап. Из Errored выхода нет.
func (rc *RequestContext) advance(stage Stage) {
	if rc.Stage == Errored {
		return
	}
	rc.Stage = stage
}

// route связывает запрос с результатом перезаписи для хуков ReverseProxy
type route struct {
	rc  *RequestContext
	out Outbound
}

type routeKey struct{}

func withRoute(ctx context.Context, rt *route) context.Context {
	return context.WithValue(ctx, routeKey{}, rt)
}

func routeFromContext(ctx context.Context) *route {
	rt, _ := ctx.Value(routeKey{}).(*route)
	return rt
}
