package subdomains

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/modules"
)

func newTestDeps(t *testing.T, settings modules.Settings) modules.Deps {
	t.Helper()
	viper.Set("database", filepath.Join(t.TempDir(), "subdomains_test.db"))
	store, err := db.NewDatabaseConnection()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return modules.Deps{Store: store, ScanID: "scan-test", Settings: settings}
}

func storedSubdomains(t *testing.T, deps modules.Deps, target string) []string {
	t.Helper()
	subdomains, err := deps.Store.GetUniqueSubdomains(target)
	require.NoError(t, err)
	return subdomains
}

func TestCollector(t *testing.T) {
	found := newCollector("example.com")
	found.add("WWW.Example.COM")
	found.add("*.api.example.com")
	found.add("  mail.example.com ")
	found.add("example.com")  // the target itself is not a subdomain
	found.add("other.org")    // unrelated domains are filtered
	found.add("www.example.com")

	findings := found.payloads("crt.sh")
	require.Len(t, findings, 3)
	assert.Equal(t, "api.example.com", findings[0].Subdomain)
	assert.Equal(t, "mail.example.com", findings[1].Subdomain)
	assert.Equal(t, "www.example.com", findings[2].Subdomain)
	assert.Equal(t, "crt.sh", findings[0].Source)
}

func TestCrtShRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "%.example.com", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("output"))
		w.Write([]byte(`[
			{"name_value": "www.example.com\n*.api.example.com"},
			{"name_value": "EXAMPLE.COM"},
			{"name_value": "unrelated.org"}
		]`))
	}))
	defer server.Close()

	deps := newTestDeps(t, modules.Settings{"base_url": server.URL})
	module := &CrtSh{BaseModule: modules.NewBaseModule("subdomain", "crtsh", deps)}

	err := module.Run(context.Background(), "example.com")
	assert.Nil(t, err)
	assert.Equal(t, []string{"api.example.com", "www.example.com"}, storedSubdomains(t, deps, "example.com"))

	findings, err := deps.Store.GetFindings(db.FindingFilter{Target: "example.com", Module: "subdomain/crtsh"})
	assert.Nil(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "crt.sh", findings[0].Source)
	assert.Equal(t, db.FindingTypeSubdomain, findings[0].Type)
}

func TestCrtShRunUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	deps := newTestDeps(t, modules.Settings{"base_url": server.URL})
	module := &CrtSh{BaseModule: modules.NewBaseModule("subdomain", "crtsh", deps)}

	err := module.Run(context.Background(), "example.com")
	assert.ErrorContains(t, err, "status 502")
	assert.Empty(t, storedSubdomains(t, deps, "example.com"))
}

func TestCrtShRunInvalidTarget(t *testing.T) {
	deps := newTestDeps(t, modules.Settings{})
	module := &CrtSh{BaseModule: modules.NewBaseModule("subdomain", "crtsh", deps)}
	err := module.Run(context.Background(), "bad")
	assert.ErrorContains(t, err, "invalid target")
}

func TestAlienVaultRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indicators/domain/example.com/passive_dns", r.URL.Path)
		w.Write([]byte(`{"passive_dns": [
			{"hostname": "vpn.example.com"},
			{"hostname": "example.com"},
			{"hostname": "cdn.example.net"}
		]}`))
	}))
	defer server.Close()

	deps := newTestDeps(t, modules.Settings{"base_url": server.URL})
	module := &AlienVault{BaseModule: modules.NewBaseModule("subdomain", "alienvault", deps)}

	err := module.Run(context.Background(), "example.com")
	assert.Nil(t, err)
	assert.Equal(t, []string{"vpn.example.com"}, storedSubdomains(t, deps, "example.com"))
}

func TestAnubisRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subdomains/example.com", r.URL.Path)
		w.Write([]byte(`["dev.example.com", "Staging.Example.com", "example.com"]`))
	}))
	defer server.Close()

	deps := newTestDeps(t, modules.Settings{"base_url": server.URL})
	module := &Anubis{BaseModule: modules.NewBaseModule("subdomain", "anubis", deps)}

	err := module.Run(context.Background(), "example.com")
	assert.Nil(t, err)
	assert.Equal(t, []string{"dev.example.com", "staging.example.com"}, storedSubdomains(t, deps, "example.com"))
}

func TestVirusTotalRunWithoutKey(t *testing.T) {
	deps := newTestDeps(t, modules.Settings{})
	module := &VirusTotal{BaseModule: modules.NewBaseModule("subdomain", "virustotal", deps)}

	// a missing key skips the module without failing it
	err := module.Run(context.Background(), "example.com")
	assert.Nil(t, err)
	assert.Empty(t, storedSubdomains(t, deps, "example.com"))
}

func TestVirusTotalRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vt-key", r.Header.Get("x-apikey"))
		assert.Equal(t, "40", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"data": [{"id": "api.example.com"}, {"id": "www.example.com"}]}`))
	}))
	defer server.Close()

	deps := newTestDeps(t, modules.Settings{
		"base_url": server.URL,
		"api_keys": map[string]string{"virustotal": "vt-key"},
	})
	module := &VirusTotal{BaseModule: modules.NewBaseModule("subdomain", "virustotal", deps)}

	err := module.Run(context.Background(), "example.com")
	assert.Nil(t, err)
	assert.Equal(t, []string{"api.example.com", "www.example.com"}, storedSubdomains(t, deps, "example.com"))
}

func TestVirusTotalRunInvalidKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	deps := newTestDeps(t, modules.Settings{
		"base_url": server.URL,
		"api_keys": map[string]string{"virustotal": "wrong"},
	})
	module := &VirusTotal{BaseModule: modules.NewBaseModule("subdomain", "virustotal", deps)}

	err := module.Run(context.Background(), "example.com")
	assert.ErrorContains(t, err, "invalid")
}

func TestSecurityTrailsRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "st-key", r.Header.Get("APIKEY"))
		assert.Equal(t, "/domain/example.com/subdomains", r.URL.Path)
		w.Write([]byte(`{"subdomains": ["www", "api"]}`))
	}))
	defer server.Close()

	deps := newTestDeps(t, modules.Settings{
		"base_url": server.URL,
		"api_keys": map[string]string{"securitytrails": "st-key"},
	})
	module := &SecurityTrails{BaseModule: modules.NewBaseModule("subdomain", "securitytrails", deps)}

	err := module.Run(context.Background(), "example.com")
	assert.Nil(t, err)
	assert.Equal(t, []string{"api.example.com", "www.example.com"}, storedSubdomains(t, deps, "example.com"))
}

func TestSourcesAreRegistered(t *testing.T) {
	for _, name := range []string{"crtsh", "alienvault", "anubis", "virustotal", "securitytrails"} {
		_, ok := modules.Lookup("subdomain", name)
		assert.True(t, ok, "expected %s to be registered", name)
	}
}
