// Package manager provides the ScanManager which coordinates scans within a
// process: it owns the engine, routes its progress events into the
// broadcaster's replay buffers, and exposes the query surface the API and CLI
// are built on.
package manager

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/progress"
	"github.com/recondor/recondor/pkg/proxy"
	"github.com/recondor/recondor/pkg/ratelimit"
	"github.com/recondor/recondor/pkg/scan/engine"
)

// eventBufferSize is the capacity of the engine to manager event channel.
// Publishing engines block once it fills, so the consumer must stay running
// while scans are active.
const eventBufferSize = 256

// ScanManager coordinates scan execution within a process. Scans run on
// detached goroutines; progress events flow through a single channel into
// the broadcaster, which buffers them per scan for replay.
type ScanManager struct {
	store       *db.DatabaseConnection
	engine      *engine.ScanEngine
	broadcaster *progress.Broadcaster
	events      chan progress.Event

	ctx          context.Context
	cancel       context.CancelFunc
	stopCh       chan struct{}
	consumerDone chan struct{}
	startOnce    sync.Once
	stopOnce     sync.Once
	mu           sync.Mutex
	started      bool
}

// New creates a ScanManager wired to the store. The rate limiter and proxy
// selector are built from the loaded configuration. Extra engine options are
// passed through, which tests use to shrink the phase timeout.
func New(store *db.DatabaseConnection, engineOpts ...engine.Option) *ScanManager {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan progress.Event, eventBufferSize)

	opts := append([]engine.Option{engine.WithEvents(events)}, engineOpts...)
	sm := &ScanManager{
		store:        store,
		broadcaster:  progress.NewBroadcaster(),
		events:       events,
		ctx:          ctx,
		cancel:       cancel,
		stopCh:       make(chan struct{}),
		consumerDone: make(chan struct{}),
	}
	sm.engine = engine.NewScanEngine(store, limiterFromConfig(), proxy.NewSelectorFromConfig(), opts...)
	return sm
}

// limiterFromConfig builds the shared rate limiter from the rate_limit key.
// Zero or negative disables limiting.
func limiterFromConfig() ratelimit.RateLimiter {
	rate := viper.GetFloat64("rate_limit")
	if rate <= 0 {
		return ratelimit.NewNoOpRateLimiter()
	}
	log.Debug().Float64("rate", rate).Msg("Outbound requests rate limited")
	return ratelimit.NewTokenBucket(rate)
}

// Start launches the event consumer goroutine. Safe to call more than once.
func (sm *ScanManager) Start() {
	sm.startOnce.Do(func() {
		sm.mu.Lock()
		sm.started = true
		sm.mu.Unlock()
		go sm.consumeEvents()
		log.Info().Msg("Scan manager started")
	})
}

// Stop cancels running scans and stops the event consumer. Does not wait for
// in-flight scans; their contexts are cancelled and they wind down on their
// own.
func (sm *ScanManager) Stop() {
	sm.stopOnce.Do(func() {
		sm.cancel()
		close(sm.stopCh)
		sm.mu.Lock()
		started := sm.started
		sm.mu.Unlock()
		if started {
			<-sm.consumerDone
		}
		log.Info().Msg("Scan manager stopped")
	})
}

func (sm *ScanManager) consumeEvents() {
	defer close(sm.consumerDone)
	for {
		select {
		case event := <-sm.events:
			sm.broadcaster.Publish(event)
		case <-sm.stopCh:
			return
		}
	}
}

// StartScan registers a pending scan for the target and runs it on a
// detached goroutine. The scan ID is returned immediately; progress is
// observable through the broadcaster and the scan row.
func (sm *ScanManager) StartScan(target string) (string, error) {
	scanID := uuid.NewString()
	if _, err := sm.store.CreateScan(scanID, target, db.ScanStatusPending); err != nil {
		return "", err
	}
	log.Info().Str("scan", scanID).Str("target", target).Msg("Scan queued")

	go func() {
		if err := sm.engine.RunScan(sm.ctx, target, scanID); err != nil {
			log.Error().Err(err).Str("scan", scanID).Msg("Scan run failed")
		}
	}()
	return scanID, nil
}

// ListScans returns the most recent scans.
func (sm *ScanManager) ListScans(limit int) ([]*db.Scan, error) {
	return sm.store.ListScans(limit)
}

// GetScan fetches one scan by ID.
func (sm *ScanManager) GetScan(scanID string) (*db.Scan, error) {
	return sm.store.GetScan(scanID)
}

// GetScanFindings returns the findings of one scan, optionally filtered by
// module prefix and finding type. Unknown scan IDs yield ErrScanNotFound.
func (sm *ScanManager) GetScanFindings(scanID, module, findingType string) ([]*db.Finding, error) {
	if _, err := sm.store.GetScan(scanID); err != nil {
		return nil, err
	}
	return sm.store.GetFindings(db.FindingFilter{
		ScanID: scanID,
		Module: module,
		Type:   findingType,
	})
}

// GetTargetFindings returns findings across all scans of a target.
func (sm *ScanManager) GetTargetFindings(target, module, findingType string) ([]*db.Finding, error) {
	return sm.store.GetFindings(db.FindingFilter{
		Target: target,
		Module: module,
		Type:   findingType,
	})
}

// GetUniqueSubdomains returns the sorted unique subdomains of a target.
func (sm *ScanManager) GetUniqueSubdomains(target string) ([]string, error) {
	return sm.store.GetUniqueSubdomains(target)
}

// GetScanLog replays the buffered progress events of a scan. Unknown or
// evicted scans yield an empty slice.
func (sm *ScanManager) GetScanLog(scanID string) []progress.Event {
	return sm.broadcaster.Replay(scanID)
}

// ClearHistory truncates all scans and findings and drops the event buffers.
func (sm *ScanManager) ClearHistory() error {
	if err := sm.store.ClearHistory(); err != nil {
		return err
	}
	sm.broadcaster.Reset()
	return nil
}

// Broadcaster exposes the event broadcaster for websocket subscribers.
func (sm *ScanManager) Broadcaster() *progress.Broadcaster {
	return sm.broadcaster
}

// Store exposes the underlying database connection.
func (sm *ScanManager) Store() *db.DatabaseConnection {
	return sm.store
}
