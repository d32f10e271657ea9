// Package portscan implements the TCP connect scanner that feeds the
// enrichment and probing phases.
package portscan

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/projectdiscovery/cdncheck"
	"github.com/sourcegraph/conc/pool"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/lib"
	"github.com/recondor/recondor/pkg/modules"
)

var defaultPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143,
	443, 445, 993, 995, 1723, 3306, 3389, 5900, 8080, 8443,
}

func init() {
	modules.Register("portscan", "scanner", func(deps modules.Deps) modules.Module {
		return &Scanner{BaseModule: modules.NewBaseModule("portscan", "scanner", deps)}
	})
}

// Scanner resolves the target and probes a configurable list of common TCP
// ports with bounded concurrency. Targets may be hostnames or addresses, so
// the hostname validation hook is intentionally not applied here.
type Scanner struct {
	modules.BaseModule
}

func (m *Scanner) Run(ctx context.Context, target string) error {
	logger := m.Logger()

	ip, err := resolveIPv4(ctx, target)
	if err != nil {
		// an unresolvable target simply yields no findings
		logger.Error().Err(err).Str("target", target).Msg("Failed to resolve target")
		return nil
	}
	logger.Info().Str("target", target).Str("ip", ip.String()).Msg("Resolved target, initiating scan")

	ports := m.Settings().IntSlice("ports", defaultPorts)
	timeout := time.Duration(m.Settings().Int("timeout", 2)) * time.Second
	concurrency := m.Settings().Int("concurrency", 100)

	// CDN edges accept connections on nearly every port, which would drown
	// the results in noise. Keep only the web ports for those.
	if matched, provider := m.checkCDN(ip); matched {
		ports = intersect(ports, m.Settings().IntSlice("cdn_ports", []int{80, 443}))
		logger.Info().Str("ip", ip.String()).Str("provider", provider).Msg("Target is behind a CDN, limiting scan to web ports")
	}

	dialer := &net.Dialer{Timeout: timeout}
	var mu sync.Mutex
	var openPorts []int

	p := pool.New().WithMaxGoroutines(concurrency)
	for _, port := range ports {
		port := port
		p.Go(func() {
			if err := m.Acquire(ctx); err != nil {
				return
			}
			address := net.JoinHostPort(ip.String(), strconv.Itoa(port))
			conn, err := dialer.DialContext(ctx, "tcp", address)
			if err != nil {
				return
			}
			conn.Close()
			mu.Lock()
			openPorts = append(openPorts, port)
			mu.Unlock()
		})
	}
	p.Wait()

	if len(openPorts) == 0 {
		logger.Info().Str("target", target).Msg("No common ports found open")
		return nil
	}
	sort.Ints(openPorts)

	findings := make(db.PortPayloads, 0, len(openPorts))
	for _, port := range openPorts {
		findings = append(findings, db.PortPayload{IP: ip.String(), Port: port, State: "open"})
	}
	m.StoreFindings(target, "port_scanner", db.FindingTypePort, findings)
	logger.Info().Int("count", len(openPorts)).Str("target", target).Msg("Discovered open ports")
	return nil
}

func (m *Scanner) checkCDN(ip net.IP) (bool, string) {
	client := cdncheck.New()
	matched, provider, err := client.CheckCDN(ip)
	if err != nil {
		logger := m.Logger()
		logger.Error().Err(err).Str("ip", ip.String()).Msg("Error during CDN check")
		return false, ""
	}
	return matched, provider
}

func resolveIPv4(ctx context.Context, target string) (net.IP, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", target)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return ips[0], nil
}

func intersect(ports, allowed []int) []int {
	var filtered []int
	for _, port := range ports {
		if lib.SliceContainsInt(allowed, port) {
			filtered = append(filtered, port)
		}
	}
	return filtered
}
