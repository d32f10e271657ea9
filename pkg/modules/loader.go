package modules

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/proxy"
	"github.com/recondor/recondor/pkg/ratelimit"
)

// Loader instantiates the enabled modules of a category for one scan,
// injecting the shared store, rate limiter and proxy selector.
type Loader struct {
	store   *db.DatabaseConnection
	limiter ratelimit.RateLimiter
	proxy   *proxy.Selector
	scanID  string
}

func NewLoader(store *db.DatabaseConnection, limiter ratelimit.RateLimiter, selector *proxy.Selector, scanID string) *Loader {
	return &Loader{
		store:   store,
		limiter: limiter,
		proxy:   selector,
		scanID:  scanID,
	}
}

// LoadCategory builds the modules enabled for a category. Names without a
// registered factory are logged and skipped; a module problem must never
// take the scan down.
func (l *Loader) LoadCategory(category string) []Module {
	enabled := viper.GetStringSlice("modules.enabled." + category)
	if len(enabled) == 0 {
		log.Debug().Str("category", category).Msg("No modules enabled for category")
		return nil
	}

	settings := l.categorySettings(category)
	var loaded []Module
	for _, name := range enabled {
		factory, ok := Lookup(category, name)
		if !ok {
			log.Error().Str("category", category).Str("module", name).Msg("Enabled module is not registered, skipping")
			continue
		}
		loaded = append(loaded, factory(Deps{
			Store:    l.store,
			Limiter:  l.limiter,
			Proxy:    l.proxy,
			ScanID:   l.scanID,
			Settings: settings,
		}))
	}
	return loaded
}

// categorySettings merges the category configuration with the shared API
// keys so every module can resolve credentials the same way.
func (l *Loader) categorySettings(category string) Settings {
	settings := Settings{}
	for key, value := range viper.GetStringMap("modules." + category) {
		settings[key] = value
	}
	settings["api_keys"] = viper.GetStringMapString("api_keys")
	return settings
}
