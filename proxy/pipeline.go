package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"cosproxy/apigw"
	"cosproxy/auth"
	"cosproxy/logger"
)

// Outbound - результат перезаписи запроса. Применяется к исходящему запросу через Apply.
type Outbound struct {
	Scheme        string
	Authority     string
	Path          string // экранированный путь, как пришел от клиента
	RawQuery      string
	Authorization string
	Passthrough   bool // запрос к бакету вне таблицы с исходным Authorization
}

// PathAndQuery возвращает путь с query в том виде, в каком он уйдет на бэкенд
func (o Outbound) PathAndQuery() string {
	if o.RawQuery == "" {
		return o.Path
	}
	return o.Path + "?" + o.RawQuery
}

// URL возвращает полный адрес исходящего запроса
func (o Outbound) URL() string {
	return o.Scheme + "://" + o.Authority + o.PathAndQuery()
}

// Apply переписывает исходящий запрос
func (o Outbound) Apply(out *http.Request) {
	out.URL.Scheme = o.Scheme
	out.URL.Host = o.Authority
	if p, err := url.PathUnescape(o.Path); err == nil {
		out.URL.Path = p
		out.URL.RawPath = o.Path
	} else {
		out.URL.Path = o.Path
		out.URL.RawPath = ""
	}
	out.URL.RawQuery = o.RawQuery
	out.Host = o.Authority

	if o.Authorization != "" {
		out.Header.Set("Authorization", o.Authorization)
	} else {
		out.Header.Del("Authorization")
	}
}

// Pipeline выполняет выбор бэкенда и перезапись запроса
type Pipeline struct {
	state       *State
	validator   *auth.Validator
	config      *Config
	passthrough bool
}

// NewPipeline создает конвейер. passthroughUnmapped разрешает пересылать запросы
// к бакетам вне таблицы с исходным заголовком Authorization.
func NewPipeline(state *State, validator *auth.Validator, config *Config, passthroughUnmapped bool) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pipeline{
		state:       state,
		validator:   validator,
		config:      config,
		passthrough: passthroughUnmapped,
	}
}

// SelectPeer увеличивает счетчик запросов, разбирает путь и выбирает бэкенд
func (p *Pipeline) SelectPeer(rc *RequestContext, r *http.Request) (Peer, error) {
	n := p.state.Counter.Inc()
	logger.Debug("Request #%d: selecting peer for %s", n, r.URL.EscapedPath())

	parsed, err := apigw.ParsePath(r.URL.EscapedPath())
	if err != nil {
		rc.advance(Errored)
		return Peer{}, err
	}
	rc.Path = parsed
	rc.advance(PathParsed)

	host := p.state.Table.PeerHost(parsed.Bucket)
	rc.Descriptor, rc.Mapped = p.state.Table.Resolve(parsed.Bucket)
	rc.Peer = Peer{
		Host:               host,
		Port:               p.config.UpstreamPort,
		TLS:                true,
		SNI:                host,
		InsecureSkipVerify: p.config.InsecureSkipVerify,
	}
	rc.advance(Routed)
	return rc.Peer, nil
}

// Rewrite строит исходящий запрос: authority <bucket>.<host>, путь без бакета,
// query без изменений и Authorization: Bearer с токеном бакета
func (p *Pipeline) Rewrite(ctx context.Context, rc *RequestContext, r *http.Request) (Outbound, error) {
	parsed, err := apigw.ParsePath(r.URL.EscapedPath())
	if err != nil {
		rc.advance(Errored)
		return Outbound{}, err
	}
	bucket := parsed.Bucket

	scheme := "https"
	if r.URL.Scheme != "" {
		scheme = r.URL.Scheme
	}
	out := Outbound{
		Scheme:    scheme,
		Authority: p.state.Table.Authority(bucket),
		Path:      parsed.ForwardedPath,
		RawQuery:  r.URL.RawQuery,
	}

	d, mapped := p.state.Table.Resolve(bucket)
	if !mapped && p.passthrough {
		if err := p.validate(rc, r); err != nil {
			return Outbound{}, err
		}
		out.Authorization = r.Header.Get("Authorization")
		out.Passthrough = true
		rc.advance(Rewritten)
		return out, nil
	}
	if !mapped || !d.HasCredentials() {
		rc.advance(Errored)
		return Outbound{}, noCredential(bucket)
	}

	if err := p.validate(rc, r); err != nil {
		return Outbound{}, err
	}

	token, err := p.state.Token(ctx, bucket, d.APIKeyRef)
	if err != nil {
		rc.advance(Errored)
		return Outbound{}, err
	}
	rc.Token = token
	rc.advance(Authorized)

	out.Authorization = "Bearer " + token
	rc.advance(Rewritten)
	return out, nil
}

// validate проверяет подпись клиента. Ошибка возвращается только в режиме enforce,
// иначе результат остается в rc.AuditErr
func (p *Pipeline) validate(rc *RequestContext, r *http.Request) error {
	rc.CallerToken, rc.AuditErr = p.validator.Check(r.Header.Get("Authorization"))
	if rc.AuditErr != nil && p.validator.Enforced() {
		rc.advance(Errored)
		return fmt.Errorf("%w: %w", ErrAccessDenied, rc.AuditErr)
	}
	return nil
}
