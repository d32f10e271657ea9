package http_utils

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/quic-go/quic-go/http3"

	"github.com/recondor/recondor/pkg/proxy"
)

// DefaultUserAgent is sent by every module request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CreateHttpTransport creates an HTTP transport routed through the proxy
// selector. connectTimeout bounds the TCP connect; zero uses a 30s default.
func CreateHttpTransport(selector *proxy.Selector, connectTimeout time.Duration) *http.Transport {
	transport := &http.Transport{
		Proxy:                 selector.ProxyFunc(),
		DialContext:           selector.DialContext(connectTimeout),
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       100,
		DisableKeepAlives:     false,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			Renegotiation:      tls.RenegotiateOnceAsClient,
			InsecureSkipVerify: true,
		},
	}
	return transport
}

// CreateHttpClient creates a regular HTTP client. timeout bounds the whole
// request including body reads; zero means no limit.
func CreateHttpClient(selector *proxy.Selector, timeout, connectTimeout time.Duration) *http.Client {
	transport := CreateHttpTransport(selector, connectTimeout)
	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	return client
}

// CreateHttp3Transport creates an HTTP/3 transport.
func CreateHttp3Transport() *http3.RoundTripper {
	return &http3.RoundTripper{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		DisableCompression: false,
		EnableDatagrams:    true,
	}
}

// CreateHttp3Client creates an HTTP/3 client. QUIC carries its own dialing,
// so the proxy selector does not apply here.
func CreateHttp3Client(timeout time.Duration) *http.Client {
	transport := CreateHttp3Transport()
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
