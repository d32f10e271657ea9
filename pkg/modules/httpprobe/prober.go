// Package httpprobe implements HTTP service detection over the hostnames
// and ports the discovery phases produced.
package httpprobe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"github.com/sourcegraph/conc/pool"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/lib"
	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

// webPorts are the open ports that mark the scan target itself as worth
// probing ahead of its subdomains.
var webPorts = []int{80, 443, 8000, 8080, 8443, 8888}

const maxBodyBytes = 128 * 1024

func init() {
	modules.Register("http", "prober", func(deps modules.Deps) modules.Module {
		return &Prober{BaseModule: modules.NewBaseModule("http", "prober", deps)}
	})
}

// Prober requests http:// and https:// on every candidate host and records
// the services that answer. Successful responses are also fingerprinted for
// technologies, and optionally re-probed over HTTP/3.
type Prober struct {
	modules.BaseModule
}

func (m *Prober) Run(ctx context.Context, target string) error {
	logger := m.Logger()

	hosts, err := m.collectHosts(target)
	if err != nil {
		return fmt.Errorf("collecting probe targets: %w", err)
	}

	totalTimeout := time.Duration(m.Settings().Int("timeout", 5)) * time.Second
	connectTimeout := time.Duration(m.Settings().Int("connect_timeout", 3)) * time.Second
	concurrency := m.Settings().Int("concurrency", 20)

	client := http_utils.CreateHttpClient(m.ProxySelector(), totalTimeout, connectTimeout)

	var wappalyzerClient *wappalyzer.Wappalyze
	if m.Settings().Bool("fingerprint", true) {
		wappalyzerClient, err = wappalyzer.New()
		if err != nil {
			logger.Warn().Err(err).Msg("Could not initialize wappalyzer, skipping fingerprinting")
		}
	}
	var http3Client *http.Client
	if m.Settings().Bool("probe_http3", false) {
		http3Client = http_utils.CreateHttp3Client(totalTimeout)
	}

	var (
		mu            sync.Mutex
		services      db.HTTPPayloads
		http3Services db.HTTPPayloads
		technologies  db.TechnologyPayloads
		techSeen      = make(map[string]struct{})
		completed     int
	)

	p := pool.New().WithMaxGoroutines(concurrency)
	for _, host := range hosts {
		host := host
		p.Go(func() {
			for _, scheme := range []string{"http", "https"} {
				url := scheme + "://" + host
				info, header, body, err := m.fetchService(ctx, client, url)
				if err != nil {
					// dead endpoints are the norm, not worth more than a debug line
					logger.Debug().Err(err).Str("url", url).Msg("No HTTP service")
					continue
				}
				logger.Debug().Str("url", info.URL).Int("status", info.Status).Msg("Found HTTP service")

				var found db.TechnologyPayloads
				if wappalyzerClient != nil {
					found = fingerprintResponse(wappalyzerClient, info.URL, header, body)
				}
				var http3Info *db.HTTPPayload
				if http3Client != nil && scheme == "https" {
					if h3, _, _, err := m.fetchService(ctx, http3Client, url); err == nil {
						http3Info = &h3
					}
				}

				mu.Lock()
				services = append(services, info)
				for _, tech := range found {
					key := tech.URL + "|" + tech.Technology + "|" + tech.Version
					if _, dup := techSeen[key]; !dup {
						techSeen[key] = struct{}{}
						technologies = append(technologies, tech)
					}
				}
				if http3Info != nil {
					http3Services = append(http3Services, *http3Info)
				}
				mu.Unlock()
			}
			mu.Lock()
			completed++
			if completed%5 == 0 || completed == len(hosts) {
				logger.Info().Int("checked", completed).Int("total", len(hosts)).Msg("HTTP probing progress")
			}
			mu.Unlock()
		})
	}
	p.Wait()

	if len(services) == 0 {
		logger.Info().Str("target", target).Msg("No HTTP services detected")
		return nil
	}
	m.StoreFindings(target, "http_prober", db.FindingTypeHTTP, services)
	logger.Info().Int("count", len(services)).Str("target", target).Msg("Detected HTTP services")

	if len(http3Services) > 0 {
		m.StoreFindings(target, "http3_prober", db.FindingTypeHTTP, http3Services)
		logger.Info().Int("count", len(http3Services)).Msg("Detected HTTP/3 capable services")
	}
	if len(technologies) > 0 {
		m.StoreFindings(target, "wappalyzer", db.FindingTypeTechnology, technologies)
		logger.Info().Int("count", len(technologies)).Msg("Fingerprinted technologies")
	}
	return nil
}

// collectHosts builds the probe list: the scan target first when a web port
// was found open on it, then every known subdomain, capped by the probing
// limit. With nothing discovered the target itself is probed.
func (m *Prober) collectHosts(target string) ([]string, error) {
	subdomains, err := m.Store().GetUniqueSubdomains(target)
	if err != nil {
		return nil, err
	}

	portFindings, err := m.Store().GetFindings(db.FindingFilter{Target: target, Module: "portscan"})
	if err != nil {
		return nil, err
	}
	webPortOpen := false
	for _, finding := range portFindings {
		for _, entry := range db.PayloadItems(finding.Data) {
			if port, ok := db.PayloadInt(entry, "port"); ok && lib.SliceContainsInt(webPorts, port) {
				webPortOpen = true
				break
			}
		}
	}

	hosts := subdomains
	if webPortOpen {
		hosts = append([]string{target}, lib.FilterOutString(subdomains, target)...)
	}

	limit := m.Settings().Int("probing_limit", 100)
	if len(hosts) > limit {
		logger := m.Logger()
		logger.Info().Int("limit", limit).Int("total", len(hosts)).Msg("Limiting HTTP probing")
		hosts = hosts[:limit]
	}
	if len(hosts) == 0 {
		hosts = []string{target}
	}
	return hosts, nil
}

// fetchService requests one URL and summarizes the response. The body read
// is capped; titles only need the first chunk.
func (m *Prober) fetchService(ctx context.Context, client *http.Client, url string) (db.HTTPPayload, http.Header, []byte, error) {
	if err := m.Acquire(ctx); err != nil {
		return db.HTTPPayload{}, nil, nil, err
	}
	req, err := http_utils.NewRequest(ctx, http.MethodGet, url)
	if err != nil {
		return db.HTTPPayload{}, nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return db.HTTPPayload{}, nil, nil, err
	}
	defer resp.Body.Close()

	title := "Read Error"
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err == nil {
		title = extractTitle(body)
	}

	info := db.HTTPPayload{
		URL:        resp.Request.URL.String(),
		Status:     resp.StatusCode,
		Server:     headerOrUnknown(resp.Header, "Server"),
		Title:      title,
		XPoweredBy: headerOrUnknown(resp.Header, "X-Powered-By"),
	}
	return info, resp.Header, body, nil
}

func extractTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "Read Error"
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "No Title"
	}
	return title
}

func headerOrUnknown(header http.Header, name string) string {
	if value := header.Get(name); value != "" {
		return value
	}
	return "Unknown"
}

// fingerprintResponse maps wappalyzer hits ("Name:1.2.3" or "Name") onto
// technology payloads for one URL.
func fingerprintResponse(client *wappalyzer.Wappalyze, url string, header http.Header, body []byte) db.TechnologyPayloads {
	var technologies db.TechnologyPayloads
	for fingerprint := range client.Fingerprint(header, body) {
		name, version := parseFingerprint(fingerprint)
		technologies = append(technologies, db.TechnologyPayload{
			URL:        url,
			Technology: name,
			Version:    version,
		})
	}
	return technologies
}

func parseFingerprint(fingerprint string) (name, version string) {
	parts := strings.SplitN(fingerprint, ":", 2)
	if len(parts) > 1 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}
