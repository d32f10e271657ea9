package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondor/recondor/db"
)

func TestGetTargetFindingsHandler(t *testing.T) {
	app, _, store := newTestApp(t)
	_, err := store.StoreFinding("scan-1", "example.com", "subdomain/crtsh", "crtsh", db.FindingTypeSubdomain,
		db.SubdomainPayloads{{Subdomain: "a.example.com", Source: "crtsh"}})
	require.NoError(t, err)
	_, err = store.StoreFinding("scan-2", "example.com", "portscan/scanner", "scanner", db.FindingTypePort,
		db.PortPayloads{{IP: "192.0.2.1", Port: 443, State: "open"}})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/targets/example.com/findings", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data  []db.Finding `json:"data"`
		Count int          `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 2, body.Count)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/targets/example.com/findings?type=port", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, db.FindingTypePort, body.Data[0].Type)
}

func TestGetTargetSubdomainsHandler(t *testing.T) {
	app, _, store := newTestApp(t)
	_, err := store.StoreFinding("scan-1", "example.com", "subdomain/crtsh", "crtsh", db.FindingTypeSubdomain,
		db.SubdomainPayloads{
			{Subdomain: "b.example.com", Source: "crtsh"},
			{Subdomain: "a.example.com", Source: "crtsh"},
		})
	require.NoError(t, err)
	_, err = store.StoreFinding("scan-2", "example.com", "subdomain/alienvault", "alienvault", db.FindingTypeSubdomain,
		db.SubdomainPayloads{{Subdomain: "a.example.com", Source: "alienvault"}})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/targets/example.com/subdomains", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data  []string `json:"data"`
		Count int      `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, body.Data)
}

func TestGetTargetSubdomainsHandlerEmpty(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/targets/example.com/subdomains", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data  []string `json:"data"`
		Count int      `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 0, body.Count)
}
