package subdomains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

const anubisBaseURL = "https://jldc.me/anubis"

func init() {
	modules.Register("subdomain", "anubis", func(deps modules.Deps) modules.Module {
		return &Anubis{BaseModule: modules.NewBaseModule("subdomain", "anubis", deps)}
	})
}

// Anubis discovers subdomains through the jldc.me aggregate database.
type Anubis struct {
	modules.BaseModule
}

func (m *Anubis) Run(ctx context.Context, target string) error {
	logger := m.Logger()
	if !m.ValidateTarget(target) {
		return fmt.Errorf("invalid target: %s", target)
	}

	url := fmt.Sprintf("%s/subdomains/%s", m.Settings().String("base_url", anubisBaseURL), target)
	logger.Info().Str("target", target).Msg("Searching Anubis")

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
		return fmt.Errorf("querying Anubis: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Anubis returned status %d", resp.StatusCode)
	}

	var hostnames []string
	if err := json.NewDecoder(resp.Body).Decode(&hostnames); err != nil {
		return fmt.Errorf("parsing Anubis response: %w", err)
	}

	found := newCollector(target)
	for _, hostname := range hostnames {
		found.add(hostname)
	}

	findings := found.payloads("anubis")
	if len(findings) == 0 {
		logger.Info().Str("target", target).Msg("No subdomains found via Anubis")
		return nil
	}
	m.StoreFindingsDefaultType(target, "anubis", findings)
	logger.Info().Int("count", len(findings)).Str("target", target).Msg("Found subdomains via Anubis")
	return nil
}
