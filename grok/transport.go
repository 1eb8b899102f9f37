package grok

import (
	"net"
	"net/http"
	"time"
)

// All requests go to a single API origin, so the idle pool is sized per host.
const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
	defaultMaxIdleConns    = 4
)

// connPool holds the connection settings of the default HTTP client.
type connPool struct {
	keepAlive       time.Duration
	idleConnTimeout time.Duration
	maxIdleConns    int
}

func defaultConnPool() connPool {
	return connPool{
		keepAlive:       defaultKeepAlive,
		idleConnTimeout: defaultIdleConnTimeout,
		maxIdleConns:    defaultMaxIdleConns,
	}
}

func (p connPool) httpClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: defaultDialTimeout, KeepAlive: p.keepAlive}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        p.maxIdleConns,
		MaxIdleConnsPerHost: p.maxIdleConns,
		IdleConnTimeout:     p.idleConnTimeout,
		TLSHandshakeTimeout: defaultDialTimeout,
	}
	if p.maxIdleConns == 0 {
		transport.DisableKeepAlives = true
	}

	return &http.Client{Timeout: timeout, Transport: transport}
}
