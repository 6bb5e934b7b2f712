package proxy

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Peer - адрес, к которому устанавливается соединение с бэкендом.
// Может отличаться от authority исходящего запроса: authority содержит имя бакета.
type Peer struct {
	Host               string
	Port               int
	TLS                bool
	SNI                string
	InsecureSkipVerify bool
}

// Address возвращает host:port для установки соединения
func (p Peer) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

type peerKey struct{}

// WithPeer сохраняет выбранный Peer в контексте запроса
func WithPeer(ctx context.Context, peer Peer) context.Context {
	return context.WithValue(ctx, peerKey{}, peer)
}

// PeerFromContext возвращает Peer, выбранный для запроса
func PeerFromContext(ctx context.Context) (Peer, bool) {
	peer, ok := ctx.Value(peerKey{}).(Peer)
	return peer, ok
}

// NewTransport создает транспорт, который соединяется с Peer из контекста запроса
// вместо хоста из URL. Без Peer в контексте транспорт ведет себя как обычный.
func NewTransport(cfg *Config) (*http.Transport, error) {
	base := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		base.RootCAs = pool
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if peer, ok := PeerFromContext(ctx); ok {
			addr = peer.Address()
		}
		return dialer.DialContext(ctx, network, addr)
	}

	dialTLS := func(ctx context.Context, network, addr string) (net.Conn, error) {
		serverName, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		tlsConfig := base.Clone()
		if peer, ok := PeerFromContext(ctx); ok {
			addr = peer.Address()
			serverName = peer.SNI
			tlsConfig.InsecureSkipVerify = tlsConfig.InsecureSkipVerify || peer.InsecureSkipVerify
		}
		tlsConfig.ServerName = serverName

		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		return tlsConn, nil
	}

	return &http.Transport{
		DialContext:           dial,
		DialTLSContext:        dialTLS,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ExpectContinueTimeout: time.Second,
	}, nil
}

func loadCertPool(caFile string) (*x509.CertPool, error) {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca_file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("ca_file %s contains no PEM certificates", caFile)
	}
	return pool, nil
}
