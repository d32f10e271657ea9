// Package github searches GitHub code for references to the target domain.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

const githubBaseURL = "https://api.github.com"

// resultsPerDork caps how many hits a single query contributes.
const resultsPerDork = 10

var defaultDorks = []string{
	`"{domain}"`,
	`"{domain}" api_key`,
	`"{domain}" secret`,
}

func init() {
	modules.Register("github", "dorker", func(deps modules.Deps) modules.Module {
		return &Dorker{BaseModule: modules.NewBaseModule("github", "dorker", deps)}
	})
}

// Dorker runs a list of code search queries against the GitHub API, looking
// for code that mentions the target. A token is optional but unauthenticated
// search is rate limited hard, so a 403 stops the remaining dorks.
type Dorker struct {
	modules.BaseModule
}

type githubSearchResponse struct {
	Items []struct {
		HTMLURL    string `json:"html_url"`
		Path       string `json:"path"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	} `json:"items"`
}

func (m *Dorker) Run(ctx context.Context, target string) error {
	logger := m.Logger()

	token := m.Settings().APIKey("github")
	dorks := m.Settings().StringSlice("dorks", defaultDorks)

	timeout := time.Duration(m.Settings().Int("timeout", 10)) * time.Second
	client := http_utils.CreateHttpClient(m.ProxySelector(), timeout, timeout)
	baseURL := m.Settings().String("base_url", githubBaseURL)

	logger.Info().Int("dorks", len(dorks)).Str("target", target).Msg("Starting GitHub dorking")

	var findings db.GithubPayloads
	for _, template := range dorks {
		query := strings.ReplaceAll(template, "{domain}", target)
		logger.Info().Str("query", query).Msg("Running GitHub query")

		if err := m.Acquire(ctx); err != nil {
			return err
		}
		hits, status, err := m.searchCode(ctx, client, baseURL, token, query)
		if err != nil {
			if status == http.StatusForbidden {
				logger.Warn().Msg("GitHub rate limit reached or search forbidden, stopping dorks")
				break
			}
			logger.Error().Err(err).Str("query", query).Msg("GitHub search failed")
			continue
		}
		findings = append(findings, hits...)
		logger.Info().Int("count", len(hits)).Str("query", query).Msg("GitHub query finished")
	}

	if len(findings) == 0 {
		logger.Info().Str("target", target).Msg("No GitHub results found")
		return nil
	}
	m.StoreFindings(target, "github_dorker", db.FindingTypeGithub, findings)
	logger.Info().Int("count", len(findings)).Msg("Stored GitHub dorking results")
	return nil
}

func (m *Dorker) searchCode(ctx context.Context, client *http.Client, baseURL, token, query string) (db.GithubPayloads, int, error) {
	searchURL := fmt.Sprintf("%s/search/code?q=%s&per_page=%d", baseURL, url.QueryEscape(query), resultsPerDork)
	req, err := http_utils.NewRequest(ctx, http.MethodGet, searchURL)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("github responded with status %d", resp.StatusCode)
	}

	var parsed githubSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding github response: %w", err)
	}

	var hits db.GithubPayloads
	for i, item := range parsed.Items {
		if i >= resultsPerDork {
			break
		}
		hits = append(hits, db.GithubPayload{
			Query:      query,
			URL:        item.HTMLURL,
			Repository: item.Repository.FullName,
			Path:       item.Path,
		})
	}
	return hits, resp.StatusCode, nil
}
