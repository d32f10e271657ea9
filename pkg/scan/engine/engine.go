// Package engine orchestrates one reconnaissance scan end to end: phase
// scheduling, module isolation, progress events and the final summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/modules"
	"github.com/recondor/recondor/pkg/progress"
	"github.com/recondor/recondor/pkg/proxy"
	"github.com/recondor/recondor/pkg/ratelimit"
)

// DefaultPhaseTimeout bounds how long the engine waits for a phase before
// moving on. Modules still running keep going in the background; their late
// writes are harmless.
const DefaultPhaseTimeout = 5 * time.Minute

// scanPhase is an ordered batch of module categories. The order encodes the
// data dependencies between phases: portscan feeds shodan and the HTTP
// prober, the prober feeds the screenshot capturer.
type scanPhase struct {
	Label      string
	Categories []string
}

var scanPhases = []scanPhase{
	{Label: "Discovery", Categories: []string{"subdomain", "github", "cloud_buckets"}},
	{Label: "Port scan", Categories: []string{"portscan"}},
	{Label: "Service enrichment", Categories: []string{"shodan"}},
	{Label: "HTTP probing", Categories: []string{"http"}},
	{Label: "Visual capture", Categories: []string{"screenshot"}},
}

// ScanEngine runs scans against the shared store with a shared rate limiter
// and proxy selector. Construct it once and reuse it across scans.
type ScanEngine struct {
	store        *db.DatabaseConnection
	limiter      ratelimit.RateLimiter
	selector     *proxy.Selector
	events       chan<- progress.Event
	phaseTimeout time.Duration
}

type Option func(*ScanEngine)

// WithPhaseTimeout overrides the per phase wall clock bound.
func WithPhaseTimeout(timeout time.Duration) Option {
	return func(e *ScanEngine) {
		e.phaseTimeout = timeout
	}
}

// WithEvents makes the engine emit progress events on the given channel.
// The receiver must keep draining it for the lifetime of the engine.
func WithEvents(events chan<- progress.Event) Option {
	return func(e *ScanEngine) {
		e.events = events
	}
}

func NewScanEngine(store *db.DatabaseConnection, limiter ratelimit.RateLimiter, selector *proxy.Selector, opts ...Option) *ScanEngine {
	engine := &ScanEngine{
		store:        store,
		limiter:      limiter,
		selector:     selector,
		phaseTimeout: DefaultPhaseTimeout,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// GenerateScanID builds an identifier for scans started without one, typically
// from the CLI.
func GenerateScanID() string {
	return "cli_" + uuid.NewString()[:8]
}

// RunScan executes the five phases against the target. An empty scanID gets
// one generated. The scan row is created or flipped to running first and ends
// completed or failed; module problems never fail the scan.
func (e *ScanEngine) RunScan(ctx context.Context, target, scanID string) error {
	if scanID == "" {
		scanID = GenerateScanID()
		log.Info().Str("scan", scanID).Msg("No scan id provided, generated one")
	}
	scanLog := log.With().Str("scan", scanID).Str("target", target).Logger()
	scanLog.Info().Msg("Starting recon scan")
	e.publish(progress.StatusEvent(scanID, "running", fmt.Sprintf("Starting scan for %s", target)))

	if err := e.ensureScanRunning(scanID, target); err != nil {
		return e.fail(scanLog, scanID, fmt.Errorf("preparing scan row: %w", err))
	}

	run := &scanRun{
		engine: e,
		target: target,
		scanID: scanID,
		loader: modules.NewLoader(e.store, e.limiter, e.selector, scanID),
		logger: scanLog,
	}
	for _, phase := range scanPhases {
		run.runPhase(ctx, phase)
	}

	deleted, err := e.store.CompactFindings(target, "")
	if err != nil {
		return e.fail(scanLog, scanID, fmt.Errorf("compacting findings: %w", err))
	}
	if deleted > 0 {
		scanLog.Info().Int64("count", deleted).Msg("Removed duplicate findings")
	}

	summary, uniqueSubdomains, err := e.summarize(scanID)
	if err != nil {
		return e.fail(scanLog, scanID, fmt.Errorf("building scan summary: %w", err))
	}
	scanLog.Info().Interface("summary", summary).Msg("Scan finding counts")
	if uniqueSubdomains > 0 {
		scanLog.Info().Int("count", uniqueSubdomains).Msg("Unique subdomains discovered")
	}

	if err := e.store.UpdateScanStatus(scanID, db.ScanStatusCompleted); err != nil {
		return e.fail(scanLog, scanID, fmt.Errorf("updating scan status: %w", err))
	}
	message := fmt.Sprintf("Scan completed for %s", target)
	if uniqueSubdomains > 0 {
		message = fmt.Sprintf("%s (%d unique subdomains)", message, uniqueSubdomains)
	}
	e.publish(progress.CompletedEvent(scanID, message, summary))
	scanLog.Info().Msg("Scan completed")
	return nil
}

// ensureScanRunning creates the scan row, or flips a row the manager already
// created to running.
func (e *ScanEngine) ensureScanRunning(scanID, target string) error {
	_, err := e.store.CreateScan(scanID, target, db.ScanStatusRunning)
	if errors.Is(err, db.ErrScanExists) {
		return e.store.UpdateScanStatus(scanID, db.ScanStatusRunning)
	}
	return err
}

// summarize counts the scan's finding rows by type and the unique subdomain
// names inside them.
func (e *ScanEngine) summarize(scanID string) (map[string]int, int, error) {
	findings, err := e.store.GetFindings(db.FindingFilter{ScanID: scanID})
	if err != nil {
		return nil, 0, err
	}
	counts := make(map[string]int)
	subdomains := make(map[string]struct{})
	for _, finding := range findings {
		counts[finding.Type]++
		if finding.Type != db.FindingTypeSubdomain {
			continue
		}
		for _, entry := range db.PayloadItems(finding.Data) {
			if name := db.PayloadString(entry, "subdomain"); name != "" {
				subdomains[name] = struct{}{}
			}
		}
	}
	return counts, len(subdomains), nil
}

func (e *ScanEngine) fail(scanLog zerolog.Logger, scanID string, err error) error {
	scanLog.Error().Err(err).Msg("Scan failed")
	if statusErr := e.store.UpdateScanStatus(scanID, db.ScanStatusFailed); statusErr != nil {
		scanLog.Error().Err(statusErr).Msg("Could not mark scan as failed")
	}
	e.publish(progress.ErrorEvent(scanID, "Scan failed: %s", err))
	return err
}

func (e *ScanEngine) publish(event progress.Event) {
	if e.events == nil {
		return
	}
	e.events <- event
}

// scanRun carries the per scan state through the phases.
type scanRun struct {
	engine *ScanEngine
	target string
	scanID string
	loader *modules.Loader
	logger zerolog.Logger
}

// runPhase loads and runs the phase's modules concurrently, waiting until
// they finish or the phase timeout fires. On timeout the phase is abandoned
// but its modules are not interrupted.
func (r *scanRun) runPhase(ctx context.Context, phase scanPhase) {
	r.engine.publish(progress.PhaseEvent(r.scanID, phase.Label, phase.Categories))

	var loaded []modules.Module
	for _, category := range phase.Categories {
		loaded = append(loaded, r.loader.LoadCategory(category)...)
	}
	if len(loaded) == 0 {
		r.logger.Debug().Str("phase", phase.Label).Msg("No modules enabled for phase")
		return
	}

	r.logger.Info().Str("phase", phase.Label).Int("modules", len(loaded)).Msg("Running phase modules in parallel")
	r.engine.publish(progress.LogEvent(r.scanID, "%s: Running %d modules...", phase.Label, len(loaded)))

	var wg conc.WaitGroup
	for _, module := range loaded {
		module := module
		wg.Go(func() {
			r.runModule(ctx, module)
		})
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(r.engine.phaseTimeout):
		r.logger.Warn().Str("phase", phase.Label).Dur("timeout", r.engine.phaseTimeout).Msg("Phase timed out, continuing with next phase")
	case <-ctx.Done():
		r.logger.Warn().Str("phase", phase.Label).Msg("Context cancelled while waiting for phase")
	}
}

// runModule is the isolation shell: a module error or panic is reported and
// contained, never propagated.
func (r *scanRun) runModule(ctx context.Context, module modules.Module) {
	moduleLog := r.logger.With().Str("module", module.Category()+"/"+module.Name()).Logger()
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("module panicked: %v", recovered)
			moduleLog.Error().Err(err).Msg("Module failed")
			r.engine.publish(progress.ModuleFailedEvent(r.scanID, module.Name(), err))
			r.engine.publish(progress.ErrorEvent(r.scanID, "%s: %s", module.Name(), err))
		}
	}()

	moduleLog.Debug().Msg("Starting module")
	if err := module.Run(ctx, r.target); err != nil {
		moduleLog.Error().Err(err).Msg("Module failed")
		r.engine.publish(progress.ModuleFailedEvent(r.scanID, module.Name(), err))
		r.engine.publish(progress.ErrorEvent(r.scanID, "%s: %s", module.Name(), err))
		return
	}
	moduleLog.Debug().Msg("Module completed")
	r.engine.publish(progress.ModuleCompletedEvent(r.scanID, module.Name()))
}
