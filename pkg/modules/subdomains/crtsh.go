package subdomains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

const crtshBaseURL = "https://crt.sh"

func init() {
	modules.Register("subdomain", "crtsh", func(deps modules.Deps) modules.Module {
		return &CrtSh{BaseModule: modules.NewBaseModule("subdomain", "crtsh", deps)}
	})
}

// CrtSh discovers subdomains through certificate transparency logs.
type CrtSh struct {
	modules.BaseModule
}

type crtshEntry struct {
	NameValue string `json:"name_value"`
}

func (m *CrtSh) Run(ctx context.Context, target string) error {
	logger := m.Logger()
	if !m.ValidateTarget(target) {
		return fmt.Errorf("invalid target: %s", target)
	}

	url := fmt.Sprintf("%s/?q=%%.%s&output=json", m.Settings().String("base_url", crtshBaseURL), target)
	logger.Info().Str("target", target).Msg("Searching crt.sh")

	if err := m.Acquire(ctx); err != nil {
		return err
	}
	client := http_utils.CreateHttpClient(m.ProxySelector(), requestTimeout(m.Settings()), 0)
	req, err := http_utils.NewRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("querying crt.sh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("crt.sh returned status %d", resp.StatusCode)
	}

	var entries []crtshEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		// crt.sh occasionally answers JSON requests with an HTML error page
		return fmt.Errorf("parsing crt.sh response: %w", err)
	}

	found := newCollector(target)
	for _, entry := range entries {
		// name_value can contain multiple domains separated by newline
		for _, hostname := range strings.Split(entry.NameValue, "\n") {
			found.add(hostname)
		}
	}

	findings := found.payloads("crt.sh")
	if len(findings) == 0 {
		logger.Info().Str("target", target).Msg("No subdomains found via crt.sh")
		return nil
	}
	m.StoreFindings(target, "crt.sh", db.FindingTypeSubdomain, findings)
	logger.Info().Int("count", len(findings)).Str("target", target).Msg("Found subdomains via crt.sh")
	return nil
}
