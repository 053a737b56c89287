package client

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

const (
	// DialTimeout specifies default maximum connection initialization time.
	DialTimeout = 10 * time.Second
	// KeepAlive is the interval of TCP keep-alive messages.
	KeepAlive = 10 * time.Second
	// TLSHandshakeTimeout specifies default timeout of TLS handshake.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout specifies default amount of time to wait for a server's response headers.
	ResponseHeaderTimeout = 30 * time.Second
	// MaxConnectionsPerHost specifies default maximum number of open connections to a host.
	MaxConnectionsPerHost = 32
	// HTTP2PingTimeout specifies how long an HTTP2 connection may be idle before it is health checked.
	HTTP2PingTimeout = 5 * time.Second
)

// DefaultTransport creates a transport with reasonable limits, HTTP2 is used if the server supports it.
func DefaultTransport() http.RoundTripper {
	dialer := Dialer()
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true, // HTTP2 is preferred.
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: ResponseHeaderTimeout,
		MaxConnsPerHost:       MaxConnectionsPerHost,
		MaxIdleConnsPerHost:   MaxConnectionsPerHost,
	}
}

// HTTP2Transport creates a transport which forces HTTP2 protocol over TLS.
func HTTP2Transport() http.RoundTripper {
	dialer := Dialer()
	return &http2.Transport{
		DialTLS: func(network, addr string, cfg *tls.Config) (net.Conn, error) {
			return tls.DialWithDialer(dialer, network, addr, cfg)
		},
		ReadIdleTimeout:  HTTP2PingTimeout,
		PingTimeout:      HTTP2PingTimeout,
		WriteByteTimeout: HTTP2PingTimeout,
	}
}

// Dialer - default dialer.
func Dialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: KeepAlive,
	}
}
