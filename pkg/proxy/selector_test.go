package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectorPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected string
	}{
		{
			name:     "No proxy configured",
			cfg:      Config{},
			expected: "",
		},
		{
			name:     "HTTP proxy only",
			cfg:      Config{HTTP: "http://127.0.0.1:8080"},
			expected: "http://127.0.0.1:8080",
		},
		{
			name:     "HTTPS wins over HTTP",
			cfg:      Config{HTTP: "http://127.0.0.1:8080", HTTPS: "http://127.0.0.1:8443"},
			expected: "http://127.0.0.1:8443",
		},
		{
			name:     "Tor wins over everything",
			cfg:      Config{HTTP: "http://127.0.0.1:8080", HTTPS: "http://127.0.0.1:8443", UseTor: true},
			expected: "socks5://127.0.0.1:9050",
		},
		{
			name:     "Custom tor address",
			cfg:      Config{UseTor: true, TorAddress: "socks5://10.0.0.5:9150"},
			expected: "socks5://10.0.0.5:9150",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			selector := NewSelector(test.cfg)
			assert.Equal(t, test.expected, selector.URL())
		})
	}
}

func TestSelectorRequestProxyURL(t *testing.T) {
	// HTTP proxies route at the request level
	selector := NewSelector(Config{HTTP: "http://127.0.0.1:8080"})
	proxyURL := selector.RequestProxyURL()
	assert.NotNil(t, proxyURL)
	assert.Equal(t, "http://127.0.0.1:8080", proxyURL.String())
	assert.NotNil(t, selector.ProxyFunc())

	// SOCKS proxies must not leak into request level routing
	selector = NewSelector(Config{UseTor: true})
	assert.Nil(t, selector.RequestProxyURL())
	assert.Nil(t, selector.ProxyFunc())

	// no proxy at all
	selector = NewSelector(Config{})
	assert.Nil(t, selector.RequestProxyURL())
	assert.Nil(t, selector.ProxyFunc())
}

func TestSelectorDialContext(t *testing.T) {
	// a dialer is always returned, proxied or not
	selector := NewSelector(Config{})
	assert.NotNil(t, selector.DialContext(0))

	selector = NewSelector(Config{UseTor: true})
	assert.NotNil(t, selector.DialContext(0))

	// invalid proxy URLs fall back to direct connections
	selector = NewSelector(Config{HTTP: "http://\x7f"})
	assert.Equal(t, "", selector.URL())
	assert.NotNil(t, selector.DialContext(0))
}
