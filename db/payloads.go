package db

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Payload is the closed set of finding payload shapes modules may store.
// Batch producing modules use the slice variants so a whole module run lands
// in a single findings row, mirroring how consumers read them back.
type Payload interface {
	findingPayload()
}

// SubdomainPayload is one discovered hostname.
type SubdomainPayload struct {
	Subdomain string `json:"subdomain"`
	Source    string `json:"source"`
}

type SubdomainPayloads []SubdomainPayload

// PortPayload is one open TCP port on a resolved address.
type PortPayload struct {
	IP    string `json:"ip"`
	Port  int    `json:"port"`
	State string `json:"state"`
}

type PortPayloads []PortPayload

// HTTPPayload describes one live HTTP endpoint.
type HTTPPayload struct {
	URL        string `json:"url"`
	Status     int    `json:"status"`
	Server     string `json:"server"`
	Title      string `json:"title"`
	XPoweredBy string `json:"x-powered-by"`
}

type HTTPPayloads []HTTPPayload

// ServiceBanner is one service observed on a host by an enrichment provider.
type ServiceBanner struct {
	Port    int    `json:"port"`
	Banner  string `json:"banner"`
	Service string `json:"service"`
}

// EnrichmentPayload aggregates what an internet scan database knows about an IP.
type EnrichmentPayload struct {
	IP        string          `json:"ip"`
	Org       string          `json:"org"`
	OS        string          `json:"os"`
	Ports     []int           `json:"ports"`
	Vulns     []string        `json:"vulns"`
	Hostnames []string        `json:"hostnames"`
	Data      []ServiceBanner `json:"data"`
}

type EnrichmentPayloads []EnrichmentPayload

// CloudBucketPayload is one reachable storage bucket.
type CloudBucketPayload struct {
	Bucket   string `json:"bucket"`
	Provider string `json:"provider"`
	URL      string `json:"url"`
	Status   string `json:"status"`
}

type CloudBucketPayloads []CloudBucketPayload

// GithubPayload is one code search hit for a dork query.
type GithubPayload struct {
	Query      string `json:"query"`
	URL        string `json:"url"`
	Repository string `json:"repository"`
	Path       string `json:"path"`
}

type GithubPayloads []GithubPayload

// ScreenshotPayload records a capture attempt, including failed ones.
type ScreenshotPayload struct {
	URL            string `json:"url"`
	ScreenshotPath string `json:"screenshot_path"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

type ScreenshotPayloads []ScreenshotPayload

// TechnologyPayload is one fingerprinted technology on an endpoint.
type TechnologyPayload struct {
	URL        string `json:"url"`
	Technology string `json:"technology"`
	Version    string `json:"version,omitempty"`
}

type TechnologyPayloads []TechnologyPayload

func (SubdomainPayload) findingPayload()    {}
func (SubdomainPayloads) findingPayload()   {}
func (PortPayload) findingPayload()         {}
func (PortPayloads) findingPayload()        {}
func (HTTPPayload) findingPayload()         {}
func (HTTPPayloads) findingPayload()        {}
func (EnrichmentPayload) findingPayload()   {}
func (EnrichmentPayloads) findingPayload()  {}
func (CloudBucketPayload) findingPayload()  {}
func (CloudBucketPayloads) findingPayload() {}
func (GithubPayload) findingPayload()       {}
func (GithubPayloads) findingPayload()      {}
func (ScreenshotPayload) findingPayload()   {}
func (ScreenshotPayloads) findingPayload()  {}
func (TechnologyPayload) findingPayload()   {}
func (TechnologyPayloads) findingPayload()  {}

// PayloadLen returns the number of entries a payload stores.
func PayloadLen(p Payload) int {
	switch v := p.(type) {
	case SubdomainPayloads:
		return len(v)
	case PortPayloads:
		return len(v)
	case HTTPPayloads:
		return len(v)
	case EnrichmentPayloads:
		return len(v)
	case CloudBucketPayloads:
		return len(v)
	case GithubPayloads:
		return len(v)
	case ScreenshotPayloads:
		return len(v)
	case TechnologyPayloads:
		return len(v)
	case nil:
		return 0
	default:
		return 1
	}
}

// canonicalJSON encodes a payload with sorted object keys so that two
// semantically equal payloads serialize to identical bytes. Compaction and
// unique views rely on this byte equality.
func canonicalJSON(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	// encoding/json writes map keys in sorted order
	return json.Marshal(generic)
}

// PayloadItems flattens a stored payload into its entries. Payloads are
// either a single object or a list of objects; consumers handle both.
func PayloadItems(data datatypes.JSON) []map[string]any {
	if len(data) == 0 {
		return nil
	}
	var list []map[string]any
	if err := json.Unmarshal(data, &list); err == nil {
		return list
	}
	var single map[string]any
	if err := json.Unmarshal(data, &single); err == nil {
		return []map[string]any{single}
	}
	return nil
}

// PayloadString extracts a string field from a payload entry.
func PayloadString(entry map[string]any, key string) string {
	if v, ok := entry[key].(string); ok {
		return v
	}
	return ""
}

// PayloadInt extracts an integer field from a payload entry. JSON numbers
// decode as float64, so both forms are accepted.
func PayloadInt(entry map[string]any, key string) (int, bool) {
	switch v := entry[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
