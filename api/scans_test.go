package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/scan/manager"
)

func newTestApp(t *testing.T) (*fiber.App, *manager.ScanManager, *db.DatabaseConnection) {
	t.Helper()
	tmp := t.TempDir()
	viper.Set("database", filepath.Join(tmp, "api_test.db"))
	viper.Set("reports.screenshots_dir", filepath.Join(tmp, "reports", "screenshots"))
	for _, category := range []string{"subdomain", "portscan", "shodan", "http", "screenshot", "github", "cloud_buckets"} {
		viper.Set("modules.enabled."+category, []string{})
	}

	store, err := db.NewDatabaseConnection()
	require.NoError(t, err)
	sm := manager.New(store)
	sm.Start()
	t.Cleanup(func() {
		sm.Stop()
		store.Close()
	})
	return NewApp(sm), sm, store
}

func jsonRequest(method, url string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestStartScanHandler(t *testing.T) {
	app, sm, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest("POST", "/api/v1/scans", ScanRequest{Target: "example.com"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body ScanResponse
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.ScanID)
	assert.Equal(t, "pending", body.Status)

	// the scan runs detached and completes since no modules are enabled
	require.Eventually(t, func() bool {
		scan, err := sm.GetScan(body.ScanID)
		return err == nil && scan.Status == db.ScanStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStartScanHandlerInvalidTarget(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest("POST", "/api/v1/scans", ScanRequest{Target: "not_a_domain"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Validation failed", body.Error)
}

func TestStartScanHandlerMalformedBody(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/v1/scans", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetScanHandler(t *testing.T) {
	app, _, store := newTestApp(t)
	_, err := store.CreateScan("scan-api", "example.com", db.ScanStatusCompleted)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/scans/scan-api", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var scan db.Scan
	decodeBody(t, resp, &scan)
	assert.Equal(t, "scan-api", scan.ID)
	assert.Equal(t, "example.com", scan.Target)
}

func TestGetScanHandlerNotFound(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/scans/no-such-scan", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Scan not found", body.Error)
}

func TestListScansHandler(t *testing.T) {
	app, _, store := newTestApp(t)
	_, err := store.CreateScan("scan-1", "example.com", db.ScanStatusCompleted)
	require.NoError(t, err)
	_, err = store.CreateScan("scan-2", "example.org", db.ScanStatusCompleted)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/scans?limit=1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data  []db.Scan `json:"data"`
		Count int       `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 1, body.Count)
	assert.Len(t, body.Data, 1)
}

func TestGetScanFindingsHandler(t *testing.T) {
	app, _, store := newTestApp(t)
	_, err := store.CreateScan("scan-f", "example.com", db.ScanStatusCompleted)
	require.NoError(t, err)
	_, err = store.StoreFinding("scan-f", "example.com", "subdomain/crtsh", "crtsh", db.FindingTypeSubdomain,
		db.SubdomainPayloads{{Subdomain: "a.example.com", Source: "crtsh"}})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/scans/scan-f/findings", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data  []db.Finding `json:"data"`
		Count int          `json:"count"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "subdomain/crtsh", body.Data[0].Module)
}

func TestGetScanFindingsHandlerUnknownScan(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/scans/no-such-scan/findings", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetScanLogsHandler(t *testing.T) {
	app, sm, _ := newTestApp(t)

	scanID, err := sm.StartScan("example.com")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		scan, err := sm.GetScan(scanID)
		return err == nil && scan.Status == db.ScanStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(sm.GetScanLog(scanID)) >= 2
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/scans/"+scanID+"/logs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data  []map[string]any `json:"data"`
		Count int              `json:"count"`
	}
	decodeBody(t, resp, &body)
	require.GreaterOrEqual(t, body.Count, 2)
	assert.Equal(t, "status", body.Data[0]["type"])
}

func TestGetScanLogsHandlerUnknownScan(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/scans/no-such-scan/logs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearHistoryHandler(t *testing.T) {
	app, _, store := newTestApp(t)
	_, err := store.CreateScan("scan-clear", "example.com", db.ScanStatusCompleted)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("POST", "/api/v1/scans/clear", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body ActionResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "success", body.Status)

	scans, err := store.ListScans(0)
	require.NoError(t, err)
	assert.Empty(t, scans)
}
