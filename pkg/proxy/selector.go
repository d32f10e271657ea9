// Package proxy centralizes outbound proxy routing for scan modules.
//
// A single active proxy is selected with Tor taking precedence over the
// HTTPS proxy, which takes precedence over the HTTP proxy. SOCKS proxies are
// applied at the dialer while HTTP proxies are applied at the request level,
// never both, so a request cannot be double proxied.
package proxy

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	xproxy "golang.org/x/net/proxy"
)

const DefaultTorAddress = "socks5://127.0.0.1:9050"

// Config holds the proxy settings for a selector.
type Config struct {
	HTTP   string
	HTTPS  string
	UseTor bool
	// TorAddress overrides the default Tor SOCKS endpoint.
	TorAddress string
}

// ConfigFromViper reads the proxy configuration keys.
func ConfigFromViper() Config {
	return Config{
		HTTP:       viper.GetString("proxy.http"),
		HTTPS:      viper.GetString("proxy.https"),
		UseTor:     viper.GetBool("proxy.use_tor"),
		TorAddress: viper.GetString("proxy.tor_address"),
	}
}

// Selector resolves which proxy outbound connections should use.
type Selector struct {
	active *url.URL
}

// NewSelector builds a selector from the given configuration. Unparseable
// proxy URLs are logged and treated as unset.
func NewSelector(cfg Config) *Selector {
	selector := &Selector{}

	candidate := ""
	if cfg.UseTor {
		candidate = cfg.TorAddress
		if candidate == "" {
			candidate = DefaultTorAddress
		}
	} else if cfg.HTTPS != "" {
		candidate = cfg.HTTPS
	} else if cfg.HTTP != "" {
		candidate = cfg.HTTP
	}
	if candidate == "" {
		return selector
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		log.Error().Err(err).Str("proxy", candidate).Msg("Error parsing proxy url, connecting directly")
		return selector
	}
	log.Info().Str("proxy", parsed.Redacted()).Msg("Routing outbound requests through proxy")
	selector.active = parsed
	return selector
}

// NewSelectorFromConfig builds a selector from the loaded configuration.
func NewSelectorFromConfig() *Selector {
	return NewSelector(ConfigFromViper())
}

// URL returns the active proxy URL, or the empty string when unset. Used for
// components like the browser that take a proxy address directly.
func (s *Selector) URL() string {
	if s.active == nil {
		return ""
	}
	return s.active.String()
}

func (s *Selector) isSocks() bool {
	return s.active != nil && strings.HasPrefix(s.active.Scheme, "socks")
}

// DialContext returns the dial function transports should use. SOCKS proxies
// are wired here; anything else dials directly.
func (s *Selector) DialContext(timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	if !s.isSocks() {
		return dialer.DialContext
	}
	socksDialer, err := xproxy.FromURL(s.active, dialer)
	if err != nil {
		log.Error().Err(err).Str("proxy", s.active.Redacted()).Msg("Error creating SOCKS dialer, connecting directly")
		return dialer.DialContext
	}
	if contextDialer, ok := socksDialer.(xproxy.ContextDialer); ok {
		return contextDialer.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return socksDialer.Dial(network, addr)
	}
}

// RequestProxyURL returns the proxy for request-level routing. SOCKS proxies
// are excluded since the dialer already handles them.
func (s *Selector) RequestProxyURL() *url.URL {
	if s.active == nil || s.isSocks() {
		return nil
	}
	return s.active
}

// ProxyFunc adapts RequestProxyURL for http.Transport.
func (s *Selector) ProxyFunc() func(*http.Request) (*url.URL, error) {
	proxyURL := s.RequestProxyURL()
	if proxyURL == nil {
		return nil
	}
	return http.ProxyURL(proxyURL)
}
