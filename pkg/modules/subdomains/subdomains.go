// Package subdomains implements the passive subdomain discovery sources.
// Each source queries one public dataset and stores the hostnames it finds;
// cross source deduplication happens at read time in the store.
package subdomains

import (
	"sort"
	"strings"
	"time"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/modules"
)

const defaultTimeout = 30

// requestTimeout resolves the per request timeout for a source.
func requestTimeout(settings modules.Settings) time.Duration {
	return time.Duration(settings.Int("timeout", defaultTimeout)) * time.Second
}

// collector gathers hostnames that belong to the scan target. Names are
// lowercased, wildcard prefixes stripped, and the target itself excluded.
type collector struct {
	target string
	seen   map[string]struct{}
}

func newCollector(target string) *collector {
	return &collector{
		target: strings.ToLower(target),
		seen:   make(map[string]struct{}),
	}
}

func (c *collector) add(hostname string) {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	hostname = strings.TrimPrefix(hostname, "*.")
	if !strings.HasSuffix(hostname, "."+c.target) {
		return
	}
	c.seen[hostname] = struct{}{}
}

// payloads returns the collected hostnames as a sorted findings batch.
func (c *collector) payloads(source string) db.SubdomainPayloads {
	names := make([]string, 0, len(c.seen))
	for name := range c.seen {
		names = append(names, name)
	}
	sort.Strings(names)

	findings := make(db.SubdomainPayloads, 0, len(names))
	for _, name := range names {
		findings = append(findings, db.SubdomainPayload{Subdomain: name, Source: source})
	}
	return findings
}
