// Package shodan enriches discovered addresses with Shodan host data.
package shodan

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

const shodanBaseURL = "https://api.shodan.io"

const maxBannerLength = 500

func init() {
	modules.Register("shodan", "enricher", func(deps modules.Deps) modules.Module {
		return &Enricher{BaseModule: modules.NewBaseModule("shodan", "enricher", deps)}
	})
}

// Enricher queries the Shodan host API for every IP the port scanner found,
// falling back to resolving the target itself. Without an API key the module
// skips quietly.
type Enricher struct {
	modules.BaseModule
}

type shodanHost struct {
	Org       string          `json:"org"`
	OS        string          `json:"os"`
	Ports     []int           `json:"ports"`
	Vulns     []string        `json:"vulns"`
	Hostnames []string        `json:"hostnames"`
	Data      []shodanService `json:"data"`
}

type shodanService struct {
	Port    int    `json:"port"`
	Banner  string `json:"data"`
	Product string `json:"product"`
}

func (m *Enricher) Run(ctx context.Context, target string) error {
	logger := m.Logger()

	apiKey := m.Settings().APIKey("shodan")
	if apiKey == "" {
		logger.Warn().Msg("Shodan API key missing, skipping module")
		return nil
	}

	ips, err := m.collectIPs(target)
	if err != nil {
		return fmt.Errorf("collecting IPs: %w", err)
	}
	if len(ips) == 0 {
		ip, err := resolveIPv4(target)
		if err != nil {
			logger.Error().Err(err).Str("target", target).Msg("Failed to resolve target")
			return nil
		}
		ips = []string{ip}
	}
	logger.Info().Int("count", len(ips)).Str("target", target).Msg("Enriching IPs via Shodan")

	timeout := time.Duration(m.Settings().Int("timeout", 10)) * time.Second
	client := http_utils.CreateHttpClient(m.ProxySelector(), timeout, timeout)
	baseURL := m.Settings().String("base_url", shodanBaseURL)

	var findings db.EnrichmentPayloads
	for _, ip := range ips {
		if err := m.Acquire(ctx); err != nil {
			return err
		}
		enrichment, err := m.queryHost(ctx, client, baseURL, apiKey, ip)
		if err != nil {
			logger.Error().Err(err).Str("ip", ip).Msg("Shodan lookup failed")
			continue
		}
		findings = append(findings, enrichment)
		logger.Info().Str("ip", ip).Msg("Retrieved Shodan data")
	}

	if len(findings) == 0 {
		logger.Info().Str("target", target).Msg("No Shodan data found")
		return nil
	}
	m.StoreFindings(target, "shodan", db.FindingTypeEnrichment, findings)
	logger.Info().Int("count", len(findings)).Msg("Stored Shodan enrichment")
	return nil
}

// collectIPs pulls the unique addresses out of the port scanner findings.
func (m *Enricher) collectIPs(target string) ([]string, error) {
	findings, err := m.Store().GetFindings(db.FindingFilter{Target: target, Module: "portscan/scanner"})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, finding := range findings {
		for _, entry := range db.PayloadItems(finding.Data) {
			if ip := db.PayloadString(entry, "ip"); ip != "" {
				seen[ip] = struct{}{}
			}
		}
	}
	ips := make([]string, 0, len(seen))
	for ip := range seen {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips, nil
}

func (m *Enricher) queryHost(ctx context.Context, client *http.Client, baseURL, apiKey, ip string) (db.EnrichmentPayload, error) {
	url := fmt.Sprintf("%s/shodan/host/%s?key=%s", baseURL, ip, apiKey)
	req, err := http_utils.NewRequest(ctx, http.MethodGet, url)
	if err != nil {
		return db.EnrichmentPayload{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return db.EnrichmentPayload{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return db.EnrichmentPayload{}, fmt.Errorf("shodan responded with status %d", resp.StatusCode)
	}

	var host shodanHost
	if err := json.NewDecoder(resp.Body).Decode(&host); err != nil {
		return db.EnrichmentPayload{}, fmt.Errorf("decoding shodan response: %w", err)
	}

	enrichment := db.EnrichmentPayload{
		IP:        ip,
		Org:       valueOrUnknown(host.Org),
		OS:        valueOrUnknown(host.OS),
		Ports:     host.Ports,
		Vulns:     host.Vulns,
		Hostnames: host.Hostnames,
	}
	if enrichment.Ports == nil {
		enrichment.Ports = []int{}
	}
	if enrichment.Vulns == nil {
		enrichment.Vulns = []string{}
	}
	if enrichment.Hostnames == nil {
		enrichment.Hostnames = []string{}
	}
	enrichment.Data = make([]db.ServiceBanner, 0, len(host.Data))
	for _, service := range host.Data {
		banner := strings.TrimSpace(service.Banner)
		if len(banner) > maxBannerLength {
			banner = banner[:maxBannerLength]
		}
		enrichment.Data = append(enrichment.Data, db.ServiceBanner{
			Port:    service.Port,
			Banner:  banner,
			Service: valueOrUnknown(service.Product),
		})
	}
	return enrichment, nil
}

func valueOrUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

func resolveIPv4(host string) (string, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return "", err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address for %s", host)
}
