// Package screenshot captures headless browser screenshots of the HTTP
// services found earlier in the scan.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/viper"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/lib"
	"github.com/recondor/recondor/pkg/modules"
)

const maxFilenameLength = 150

func init() {
	modules.Register("screenshot", "capturer", func(deps modules.Deps) modules.Module {
		return &Capturer{BaseModule: modules.NewBaseModule("screenshot", "capturer", deps)}
	})
}

// Capturer renders every probed URL in a headless browser and writes a PNG
// per endpoint. Failed captures are recorded as findings too, so the report
// shows which endpoints resisted rendering.
type Capturer struct {
	modules.BaseModule
}

func (m *Capturer) Run(ctx context.Context, target string) error {
	logger := m.Logger()

	urls, err := m.collectURLs(target)
	if err != nil {
		return fmt.Errorf("collecting URLs to capture: %w", err)
	}
	if len(urls) == 0 {
		logger.Info().Str("target", target).Msg("No HTTP services to screenshot")
		return nil
	}

	outputDir := viper.GetString("reports.screenshots_dir")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating screenshots directory: %w", err)
	}

	browser, cleanup, err := m.launchBrowser()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	defer cleanup()

	timeout := time.Duration(m.Settings().Int("timeout", 15)) * time.Second
	concurrency := m.Settings().Int("concurrency", 5)

	var (
		mu       sync.Mutex
		captures db.ScreenshotPayloads
	)
	p := pool.New().WithMaxGoroutines(concurrency)
	for _, url := range urls {
		url := url
		p.Go(func() {
			capture := m.capturePage(ctx, browser, url, outputDir, timeout)
			if capture.Status == "success" {
				logger.Info().Str("url", url).Str("file", capture.ScreenshotPath).Msg("Captured screenshot")
			} else {
				logger.Warn().Str("url", url).Str("error", capture.Error).Msg("Screenshot failed")
			}
			mu.Lock()
			captures = append(captures, capture)
			mu.Unlock()
		})
	}
	p.Wait()

	m.StoreFindings(target, "screenshot_capturer", db.FindingTypeScreenshot, captures)
	logger.Info().Int("count", len(captures)).Str("target", target).Msg("Finished screenshot capture")
	return nil
}

// collectURLs gathers the unique URLs the HTTP prober recorded for this scan.
func (m *Capturer) collectURLs(target string) ([]string, error) {
	findings, err := m.Store().GetFindings(db.FindingFilter{
		Target: target,
		ScanID: m.ScanID(),
		Module: "http/prober",
		Type:   db.FindingTypeHTTP,
	})
	if err != nil {
		return nil, err
	}
	var urls []string
	seen := make(map[string]struct{})
	for _, finding := range findings {
		for _, entry := range db.PayloadItems(finding.Data) {
			url := db.PayloadString(entry, "url")
			if url == "" {
				continue
			}
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
			urls = append(urls, url)
		}
	}
	return urls, nil
}

func (m *Capturer) launchBrowser() (*rod.Browser, func(), error) {
	options := launcher.New().
		Headless(m.Settings().Bool("headless", true)).
		Set("allow-running-insecure-content").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("no-sandbox")
	if proxyURL := m.ProxySelector().URL(); proxyURL != "" {
		options.Proxy(proxyURL)
	}
	controlURL, err := options.Launch()
	if err != nil {
		return nil, nil, err
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := browser.Close(); err != nil {
			logger := m.Logger()
			logger.Debug().Err(err).Msg("Error closing browser")
		}
	}
	return browser, cleanup, nil
}

func (m *Capturer) capturePage(ctx context.Context, browser *rod.Browser, url, outputDir string, timeout time.Duration) db.ScreenshotPayload {
	logger := m.Logger()
	capture := db.ScreenshotPayload{URL: url, Status: "failed"}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		capture.Error = err.Error()
		return capture
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := (proto.SecuritySetIgnoreCertificateErrors{Ignore: true}).Call(page); err != nil {
		logger.Debug().Err(err).Msg("Could not handle SecuritySetIgnoreCertificateErrors")
	}
	viewport := &proto.EmulationSetDeviceMetricsOverride{Width: 1280, Height: 720, DeviceScaleFactor: 1}
	if err := page.SetViewport(viewport); err != nil {
		logger.Debug().Err(err).Str("url", url).Msg("Could not set viewport")
	}

	if err := page.Timeout(timeout).Navigate(url); err != nil {
		capture.Error = err.Error()
		return capture
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		capture.Error = err.Error()
		return capture
	}

	data, err := page.Screenshot(false, nil)
	if err != nil {
		capture.Error = err.Error()
		return capture
	}
	path := filepath.Join(outputDir, screenshotFilename(url))
	if err := os.WriteFile(path, data, 0644); err != nil {
		capture.Error = err.Error()
		return capture
	}
	capture.ScreenshotPath = path
	capture.Status = "success"
	return capture
}

func screenshotFilename(url string) string {
	return lib.SlugifyFilename(url, maxFilenameLength) + ".png"
}
