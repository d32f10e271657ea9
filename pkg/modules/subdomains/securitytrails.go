package subdomains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

const securitytrailsBaseURL = "https://api.securitytrails.com/v1"

func init() {
	modules.Register("subdomain", "securitytrails", func(deps modules.Deps) modules.Module {
		return &SecurityTrails{BaseModule: modules.NewBaseModule("subdomain", "securitytrails", deps)}
	})
}

// SecurityTrails discovers subdomains through the SecurityTrails DNS
// database. Requires an API key; without one the module skips itself.
type SecurityTrails struct {
	modules.BaseModule
}

type securitytrailsResponse struct {
	Subdomains []string `json:"subdomains"`
}

func (m *SecurityTrails) Run(ctx context.Context, target string) error {
	logger := m.Logger()
	apiKey := m.Settings().APIKey("securitytrails")
	if apiKey == "" {
		logger.Warn().Msg("SecurityTrails API key missing, skipping module")
		return nil
	}
	if !m.ValidateTarget(target) {
		return fmt.Errorf("invalid target: %s", target)
	}

	url := fmt.Sprintf("%s/domain/%s/subdomains", m.Settings().String("base_url", securitytrailsBaseURL), target)
	logger.Info().Str("target", target).Msg("Searching SecurityTrails")

	if err := m.Acquire(ctx); err != nil {
		return err
	}
	client := http_utils.CreateHttpClient(m.ProxySelector(), requestTimeout(m.Settings()), 0)
	req, err := http_utils.NewRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	req.Header.Set("APIKEY", apiKey)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("querying SecurityTrails: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("SecurityTrails API key invalid or rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SecurityTrails returned status %d", resp.StatusCode)
	}

	var data securitytrailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("parsing SecurityTrails response: %w", err)
	}

	// the API returns bare labels, not full hostnames
	found := newCollector(target)
	for _, label := range data.Subdomains {
		found.add(label + "." + target)
	}

	findings := found.payloads("securitytrails")
	if len(findings) == 0 {
		logger.Info().Str("target", target).Msg("No subdomains found via SecurityTrails")
		return nil
	}
	m.StoreFindingsDefaultType(target, "securitytrails", findings)
	logger.Info().Int("count", len(findings)).Str("target", target).Msg("Found subdomains via SecurityTrails")
	return nil
}
