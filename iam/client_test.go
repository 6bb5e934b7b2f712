package iam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIdP поднимает тестовый провайдер, выдающий токен для ключа "good-key"
func newIdP(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, DefaultGrantType, r.PostForm.Get("grant_type"))

		if r.PostForm.Get("apikey") != "good-key" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorCode":"BXNIM0415E","errorMessage":"Provided API key could not be found"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) *Config {
	cfg := DefaultConfig()
	cfg.TokenURL = url
	return cfg
}

func TestClient_FetchToken(t *testing.T) {
	var calls atomic.Int32
	srv := newIdP(t, &calls)
	client := NewClient(testConfig(srv.URL), srv.Client(), nil)

	before := time.Now()
	token, err := client.FetchToken(context.Background(), "good-key")
	require.NoError(t, err)
	assert.Equal(t, "tok123", token.Value)
	assert.True(t, token.ExpiresAt.After(before.Add(59*time.Minute)))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(client.metrics.RequestsTotal.WithLabelValues("success")))
}

func TestClient_FetchToken_Rejected(t *testing.T) {
	var calls atomic.Int32
	srv := newIdP(t, &calls)
	client := NewClient(testConfig(srv.URL), srv.Client(), nil)

	_, err := client.FetchToken(context.Background(), "bad-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, 1.0, testutil.ToFloat64(client.metrics.RequestsTotal.WithLabelValues("failure")))
}

func TestClient_FetchToken_EmptyKey(t *testing.T) {
	client := NewClient(nil, nil, nil)
	_, err := client.FetchToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestClient_FetchToken_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"no access token", `{"token_type":"Bearer","expires_in":3600}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(testConfig(srv.URL), srv.Client(), nil)
			_, err := client.FetchToken(context.Background(), "good-key")
			assert.Error(t, err)
		})
	}
}

func TestClient_FetchToken_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewClient(cfg, srv.Client(), nil)

	start := time.Now()
	_, err := client.FetchToken(context.Background(), "good-key")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad scheme", func(c *Config) { c.TokenURL = "ftp://iam" }, true},
		{"empty grant", func(c *Config) { c.GrantType = "" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
