package subdomains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

const virustotalBaseURL = "https://www.virustotal.com/api/v3"

func init() {
	modules.Register("subdomain", "virustotal", func(deps modules.Deps) modules.Module {
		return &VirusTotal{BaseModule: modules.NewBaseModule("subdomain", "virustotal", deps)}
	})
}

// VirusTotal discovers subdomains through the VirusTotal v3 API. Requires an
// API key; without one the module skips itself.
type VirusTotal struct {
	modules.BaseModule
}

type virustotalResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (m *VirusTotal) Run(ctx context.Context, target string) error {
	logger := m.Logger()
	apiKey := m.Settings().APIKey("virustotal")
	if apiKey == "" {
		logger.Warn().Msg("VirusTotal API key missing, skipping module")
		return nil
	}
	if !m.ValidateTarget(target) {
		return fmt.Errorf("invalid target: %s", target)
	}

	url := fmt.Sprintf("%s/domains/%s/subdomains?limit=40", m.Settings().String("base_url", virustotalBaseURL), target)
	logger.Info().Str("target", target).Msg("Searching VirusTotal")

	if err := m.Acquire(ctx); err != nil {
		return err
	}
	client := http_utils.CreateHttpClient(m.ProxySelector(), requestTimeout(m.Settings()), 0)
	req, err := http_utils.NewRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	req.Header.Set("x-apikey", apiKey)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("querying VirusTotal: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("VirusTotal API key is invalid")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("VirusTotal returned status %d", resp.StatusCode)
	}

	var data virustotalResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("parsing VirusTotal response: %w", err)
	}

	found := newCollector(target)
	for _, item := range data.Data {
		found.add(item.ID)
	}

	findings := found.payloads("virustotal")
	if len(findings) == 0 {
		logger.Info().Str("target", target).Msg("No subdomains found via VirusTotal")
		return nil
	}
	m.StoreFindingsDefaultType(target, "virustotal", findings)
	logger.Info().Int("count", len(findings)).Str("target", target).Msg("Found subdomains via VirusTotal")
	return nil
}
