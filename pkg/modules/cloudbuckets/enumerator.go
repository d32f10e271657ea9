// Package cloudbuckets guesses storage bucket names derived from the target
// domain across AWS, Azure and GCP.
package cloudbuckets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/http_utils"
	"github.com/recondor/recondor/pkg/modules"
)

var defaultWordlist = []string{
	"{domain}",
	"{domain}-backup",
	"{domain}-assets",
	"backup-{domain}",
}

var defaultProviders = []string{"aws", "azure", "gcp"}

func init() {
	modules.Register("cloud_buckets", "enumerator", func(deps modules.Deps) modules.Module {
		return &Enumerator{BaseModule: modules.NewBaseModule("cloud_buckets", "enumerator", deps)}
	})
}

// Enumerator probes provider bucket endpoints with HEAD requests. A 200
// means the bucket is listable, a 403 means it exists but denies access,
// anything else is treated as nonexistent.
type Enumerator struct {
	modules.BaseModule
}

func (m *Enumerator) Run(ctx context.Context, target string) error {
	logger := m.Logger()

	wordlist := m.Settings().StringSlice("wordlist", defaultWordlist)
	providers := m.Settings().StringSlice("providers", defaultProviders)
	names := bucketNames(target, wordlist)

	logger.Info().Int("patterns", len(names)).Int("providers", len(providers)).Msg("Checking bucket patterns")

	timeout := time.Duration(m.Settings().Int("timeout", 5)) * time.Second
	client := http_utils.CreateHttpClient(m.ProxySelector(), timeout, timeout)

	var (
		mu       sync.Mutex
		findings db.CloudBucketPayloads
	)
	var wg conc.WaitGroup
	for _, name := range names {
		for _, provider := range providers {
			url := bucketURL(name, provider)
			if url == "" {
				continue
			}
			name, provider, url := name, provider, url
			wg.Go(func() {
				finding := m.checkBucket(ctx, client, name, provider, url)
				if finding == nil {
					return
				}
				mu.Lock()
				findings = append(findings, *finding)
				mu.Unlock()
			})
		}
	}
	wg.Wait()

	if len(findings) == 0 {
		logger.Info().Str("target", target).Msg("No buckets discovered")
		return nil
	}
	m.StoreFindings(target, "cloud_bucket_enumerator", db.FindingTypeCloudBucket, findings)
	logger.Info().Int("count", len(findings)).Msg("Identified buckets")
	return nil
}

// bucketNames expands the wordlist templates with the first label of the
// target domain.
func bucketNames(target string, wordlist []string) []string {
	domain := strings.Split(target, ".")[0]
	names := make([]string, 0, len(wordlist))
	for _, template := range wordlist {
		names = append(names, strings.ReplaceAll(template, "{domain}", domain))
	}
	return names
}

func bucketURL(name, provider string) string {
	switch provider {
	case "aws":
		return fmt.Sprintf("https://%s.s3.amazonaws.com", name)
	case "azure":
		return fmt.Sprintf("https://%s.blob.core.windows.net/", name)
	case "gcp":
		return fmt.Sprintf("https://storage.googleapis.com/%s/", name)
	}
	return ""
}

// checkBucket HEADs one endpoint. Connection errors mean the bucket does not
// exist and are ignored.
func (m *Enumerator) checkBucket(ctx context.Context, client *http.Client, name, provider, url string) *db.CloudBucketPayload {
	if err := m.Acquire(ctx); err != nil {
		return nil
	}
	req, err := http_utils.NewRequest(ctx, http.MethodHead, url)
	if err != nil {
		return nil
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var status string
	switch resp.StatusCode {
	case http.StatusOK:
		status = "public"
	case http.StatusForbidden:
		status = "private"
	default:
		return nil
	}
	return &db.CloudBucketPayload{
		Bucket:   name,
		Provider: provider,
		URL:      url,
		Status:   status,
	}
}
