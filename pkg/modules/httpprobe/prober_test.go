package httpprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/modules"
)

func newTestDeps(t *testing.T, settings modules.Settings) modules.Deps {
	t.Helper()
	viper.Set("database", filepath.Join(t.TempDir(), "httpprobe_test.db"))
	store, err := db.NewDatabaseConnection()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return modules.Deps{Store: store, ScanID: "scan-test", Settings: settings}
}

func seedSubdomains(t *testing.T, deps modules.Deps, target string, subdomains ...string) {
	t.Helper()
	var payloads db.SubdomainPayloads
	for _, subdomain := range subdomains {
		payloads = append(payloads, db.SubdomainPayload{Subdomain: subdomain, Source: "test"})
	}
	_, err := deps.Store.StoreFinding(deps.ScanID, target, "subdomain/crtsh", "test", db.FindingTypeSubdomain, payloads)
	require.NoError(t, err)
}

func seedOpenPort(t *testing.T, deps modules.Deps, target string, port int) {
	t.Helper()
	payload := db.PortPayloads{{IP: "192.0.2.10", Port: port, State: "open"}}
	_, err := deps.Store.StoreFinding(deps.ScanID, target, "portscan/scanner", "port_scanner", db.FindingTypePort, payload)
	require.NoError(t, err)
}

func TestCollectHostsDefaultsToTarget(t *testing.T) {
	deps := newTestDeps(t, modules.Settings{})
	module := &Prober{BaseModule: modules.NewBaseModule("http", "prober", deps)}

	hosts, err := module.collectHosts("example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, hosts)
}

func TestCollectHostsSubdomainsOnly(t *testing.T) {
	deps := newTestDeps(t, modules.Settings{})
	seedSubdomains(t, deps, "example.com", "www.example.com", "api.example.com")
	seedOpenPort(t, deps, "example.com", 22)
	module := &Prober{BaseModule: modules.NewBaseModule("http", "prober", deps)}

	hosts, err := module.collectHosts("example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"api.example.com", "www.example.com"}, hosts)
}

func TestCollectHostsPrioritizesTargetOnWebPort(t *testing.T) {
	deps := newTestDeps(t, modules.Settings{})
	seedSubdomains(t, deps, "example.com", "www.example.com", "api.example.com")
	seedOpenPort(t, deps, "example.com", 443)
	module := &Prober{BaseModule: modules.NewBaseModule("http", "prober", deps)}

	hosts, err := module.collectHosts("example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "api.example.com", "www.example.com"}, hosts)
}

func TestCollectHostsAppliesProbingLimit(t *testing.T) {
	deps := newTestDeps(t, modules.Settings{"probing_limit": 2})
	seedSubdomains(t, deps, "example.com", "a.example.com", "b.example.com", "c.example.com")
	module := &Prober{BaseModule: modules.NewBaseModule("http", "prober", deps)}

	hosts, err := module.collectHosts("example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, hosts)
}

func TestProberRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx/1.25.0")
		w.Write([]byte("<html><head><title>  Welcome  </title></head><body>hi</body></html>"))
	}))
	defer server.Close()

	deps := newTestDeps(t, modules.Settings{"fingerprint": false, "concurrency": 2})
	module := &Prober{BaseModule: modules.NewBaseModule("http", "prober", deps)}

	host := strings.TrimPrefix(server.URL, "http://")
	err := module.Run(context.Background(), host)
	assert.Nil(t, err)

	findings, err := deps.Store.GetFindings(db.FindingFilter{Target: host, Module: "http/prober"})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "http_prober", findings[0].Source)
	assert.Equal(t, db.FindingTypeHTTP, findings[0].Type)

	entries := db.PayloadItems(findings[0].Data)
	require.Len(t, entries, 1)
	assert.Equal(t, server.URL, db.PayloadString(entries[0], "url"))
	status, ok := db.PayloadInt(entries[0], "status")
	require.True(t, ok)
	assert.Equal(t, 200, status)
	assert.Equal(t, "Welcome", db.PayloadString(entries[0], "title"))
	assert.Equal(t, "nginx/1.25.0", db.PayloadString(entries[0], "server"))
	assert.Equal(t, "Unknown", db.PayloadString(entries[0], "x-powered-by"))
}

func TestProberRunNoServices(t *testing.T) {
	deps := newTestDeps(t, modules.Settings{"timeout": 1, "connect_timeout": 1})
	module := &Prober{BaseModule: modules.NewBaseModule("http", "prober", deps)}

	err := module.Run(context.Background(), "host.invalid")
	assert.Nil(t, err)

	findings, err := deps.Store.GetFindings(db.FindingFilter{Target: "host.invalid", Module: "http/prober"})
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Hello", extractTitle([]byte("<html><head><title>Hello</title></head></html>")))
	assert.Equal(t, "No Title", extractTitle([]byte("<html><body>nothing</body></html>")))
	assert.Equal(t, "No Title", extractTitle([]byte("not html at all")))
}

func TestParseFingerprint(t *testing.T) {
	name, version := parseFingerprint("Nginx:1.25.0")
	assert.Equal(t, "Nginx", name)
	assert.Equal(t, "1.25.0", version)

	name, version = parseFingerprint("Cloudflare")
	assert.Equal(t, "Cloudflare", name)
	assert.Equal(t, "", version)
}

func TestHeaderOrUnknown(t *testing.T) {
	header := http.Header{}
	header.Set("Server", "Apache")
	assert.Equal(t, "Apache", headerOrUnknown(header, "Server"))
	assert.Equal(t, "Unknown", headerOrUnknown(header, "X-Powered-By"))
}

func TestProberRegistered(t *testing.T) {
	factory, ok := modules.Lookup("http", "prober")
	require.True(t, ok)
	module := factory(modules.Deps{})
	assert.Equal(t, "http/prober", module.Path())
}
