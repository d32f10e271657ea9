package subdomains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

const alienvaultBaseURL = "https://otx.alienvault.com/api/v1"

func init() {
	modules.Register("subdomain", "alienvault", func(deps modules.Deps) modules.Module {
		return &AlienVault{BaseModule: modules.NewBaseModule("subdomain", "alienvault", deps)}
	})
}

// AlienVault discovers subdomains through the OTX passive DNS dataset.
type AlienVault struct {
	modules.BaseModule
}

type alienvaultResponse struct {
	PassiveDNS []struct {
		Hostname string `json:"hostname"`
	} `json:"passive_dns"`
}

func (m *AlienVault) Run(ctx context.Context, target string) error {
	logger := m.Logger()
	if !m.ValidateTarget(target) {
		return fmt.Errorf("invalid target: %s", target)
	}

	url := fmt.Sprintf("%s/indicators/domain/%s/passive_dns", m.Settings().String("base_url", alienvaultBaseURL), target)
	logger.Info().Str("target", target).Msg("Searching AlienVault OTX")

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
		return fmt.Errorf("querying AlienVault: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("AlienVault returned status %d", resp.StatusCode)
	}

	var data alienvaultResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("parsing AlienVault response: %w", err)
	}

	found := newCollector(target)
	for _, record := range data.PassiveDNS {
		found.add(record.Hostname)
	}

	findings := found.payloads("alienvault")
	if len(findings) == 0 {
		logger.Info().Str("target", target).Msg("No subdomains found via AlienVault")
		return nil
	}
	m.StoreFindingsDefaultType(target, "alienvault", findings)
	logger.Info().Int("count", len(findings)).Str("target", target).Msg("Found subdomains via AlienVault")
	return nil
}
