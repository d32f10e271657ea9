package portscan

import (
	"context"
	"net"
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
	viper.Set("database", filepath.Join(t.TempDir(), "portscan_test.db"))
	store, err := db.NewDatabaseConnection()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return modules.Deps{Store: store, ScanID: "scan-test", Settings: settings}
}

func TestScannerRun(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	openPort := listener.Addr().(*net.TCPAddr).Port

	// grab a port that is certainly closed
	closedListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closedListener.Addr().(*net.TCPAddr).Port
	closedListener.Close()

	deps := newTestDeps(t, modules.Settings{
		"ports":       []any{openPort, closedPort},
		"timeout":     1,
		"concurrency": 10,
	})
	module := &Scanner{BaseModule: modules.NewBaseModule("portscan", "scanner", deps)}

	err = module.Run(context.Background(), "127.0.0.1")
	assert.Nil(t, err)

	findings, err := deps.Store.GetFindings(db.FindingFilter{Target: "127.0.0.1", Module: "portscan/scanner"})
	assert.Nil(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, db.FindingTypePort, findings[0].Type)
	assert.Equal(t, "port_scanner", findings[0].Source)

	entries := db.PayloadItems(findings[0].Data)
	require.Len(t, entries, 1)
	port, ok := db.PayloadInt(entries[0], "port")
	assert.True(t, ok)
	assert.Equal(t, openPort, port)
	assert.Equal(t, "open", db.PayloadString(entries[0], "state"))
	assert.Equal(t, "127.0.0.1", db.PayloadString(entries[0], "ip"))
}

func TestScannerRunUnresolvableTarget(t *testing.T) {
	deps := newTestDeps(t, modules.Settings{"ports": []any{80}, "timeout": 1})
	module := &Scanner{BaseModule: modules.NewBaseModule("portscan", "scanner", deps)}

	// resolution failures yield no findings but do not fail the module
	err := module.Run(context.Background(), "definitely-not-resolvable.invalid")
	assert.Nil(t, err)

	findings, err := deps.Store.GetFindings(db.FindingFilter{Target: "definitely-not-resolvable.invalid"})
	assert.Nil(t, err)
	assert.Len(t, findings, 0)
}

func TestScannerRunNoOpenPorts(t *testing.T) {
	closedListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closedListener.Addr().(*net.TCPAddr).Port
	closedListener.Close()

	deps := newTestDeps(t, modules.Settings{"ports": []any{closedPort}, "timeout": 1})
	module := &Scanner{BaseModule: modules.NewBaseModule("portscan", "scanner", deps)}

	err = module.Run(context.Background(), "127.0.0.1")
	assert.Nil(t, err)

	findings, err := deps.Store.GetFindings(db.FindingFilter{Target: "127.0.0.1"})
	assert.Nil(t, err)
	assert.Len(t, findings, 0)
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []int{80, 443}, intersect([]int{22, 80, 443, 8080}, []int{80, 443}))
	assert.Nil(t, intersect([]int{22}, []int{80, 443}))
}

func TestResolveIPv4(t *testing.T) {
	ip, err := resolveIPv4(context.Background(), "127.0.0.1")
	assert.Nil(t, err)
	assert.Equal(t, "127.0.0.1", ip.String())
}
