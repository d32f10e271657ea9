package modules

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/proxy"
	"github.com/recondor/recondor/pkg/ratelimit"
)

// Module is one reconnaissance technique run against a target. Run does the
// work and stores findings through the shared store; a returned error marks
// the module as failed without affecting the rest of the scan.
type Module interface {
	Name() string
	Category() string
	ValidateTarget(target string) bool
	Run(ctx context.Context, target string) error
}

// Deps carries the shared handles a module instance works with.
type Deps struct {
	Store    *db.DatabaseConnection
	Limiter  ratelimit.RateLimiter
	Proxy    *proxy.Selector
	ScanID   string
	Settings Settings
}

// BaseModule implements the common parts of the module contract. Concrete
// modules embed it and provide Run.
type BaseModule struct {
	name     string
	category string
	deps     Deps
}

func NewBaseModule(category, name string, deps Deps) BaseModule {
	return BaseModule{name: name, category: category, deps: deps}
}

func (m *BaseModule) Name() string {
	return m.name
}

func (m *BaseModule) Category() string {
	return m.category
}

// Path is the category/name identifier findings are stored under.
func (m *BaseModule) Path() string {
	return m.category + "/" + m.name
}

// ValidateTarget accepts anything that loosely resembles a hostname.
// Modules with stricter needs override this.
func (m *BaseModule) ValidateTarget(target string) bool {
	return strings.Contains(target, ".") && len(target) > 3
}

func (m *BaseModule) Store() *db.DatabaseConnection {
	return m.deps.Store
}

func (m *BaseModule) ScanID() string {
	return m.deps.ScanID
}

func (m *BaseModule) ProxySelector() *proxy.Selector {
	if m.deps.Proxy == nil {
		return proxy.NewSelector(proxy.Config{})
	}
	return m.deps.Proxy
}

func (m *BaseModule) Settings() Settings {
	return m.deps.Settings
}

// Acquire waits for the shared rate limiter before an outbound request.
func (m *BaseModule) Acquire(ctx context.Context) error {
	if m.deps.Limiter == nil {
		return nil
	}
	return m.deps.Limiter.Acquire(ctx)
}

// Logger returns a logger tagged with the module path and scan.
func (m *BaseModule) Logger() zerolog.Logger {
	logger := log.With().Str("module", m.Path())
	if m.deps.ScanID != "" {
		logger = logger.Str("scan", m.deps.ScanID)
	}
	return logger.Logger()
}

// StoreFindings persists a payload under an explicit finding type. Storage
// errors are logged and swallowed so one bad write never kills a module run.
func (m *BaseModule) StoreFindings(target, source, ftype string, payload db.Payload) {
	if m.deps.Store == nil {
		return
	}
	_, err := m.deps.Store.StoreFinding(m.deps.ScanID, target, m.Path(), source, ftype, payload)
	logger := m.Logger()
	if err != nil {
		logger.Error().Err(err).Str("type", ftype).Msg("Failed to store findings")
		return
	}
	logger.Debug().Int("entries", db.PayloadLen(payload)).Str("type", ftype).Msg("Stored findings")
}

// StoreFindingsDefaultType persists a payload typed after the module
// category, which is right for every category except portscan.
func (m *BaseModule) StoreFindingsDefaultType(target, source string, payload db.Payload) {
	m.StoreFindings(target, source, m.category, payload)
}
