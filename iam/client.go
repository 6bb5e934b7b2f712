package iam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"cosproxy/logger"
	"cosproxy/tokencache"
)

// ErrEmptyAPIKey - API-ключ для обмена не задан
var ErrEmptyAPIKey = errors.New("api key is empty")

// Client обменивает API-ключ на bearer-токен у провайдера идентификации.
// Запрос - form POST с grant_type и apikey, ответ - JSON с access_token и expires_in.
type Client struct {
	config     *Config
	httpClient *http.Client
	metrics    *Metrics
}

// NewClient создает клиента. nil httpClient означает http.DefaultClient.
func NewClient(config *Config, httpClient *http.Client, reg prometheus.Registerer) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		metrics:    NewMetrics(reg),
	}
}

// FetchToken выполняет обмен API-ключа на токен
func (c *Client) FetchToken(ctx context.Context, apiKey string) (tokencache.Token, error) {
	if apiKey == "" {
		return tokencache.Token{}, ErrEmptyAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	cc := clientcredentials.Config{
		TokenURL:  c.config.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
		EndpointParams: url.Values{
			"grant_type": {c.config.GrantType},
			"apikey":     {apiKey},
		},
	}

	start := time.Now()
	tok, err := cc.Token(ctx)
	c.metrics.RequestLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.RequestsTotal.WithLabelValues("failure").Inc()
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return tokencache.Token{}, fmt.Errorf("token exchange rejected with status %d: %w", re.Response.StatusCode, err)
		}
		return tokencache.Token{}, fmt.Errorf("token exchange: %w", err)
	}

	c.metrics.RequestsTotal.WithLabelValues("success").Inc()
	logger.Debug("Token exchange succeeded, expiry %v", tok.Expiry)
	return tokencache.Token{Value: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}
