package extension

import (
	"time"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/plugin"
	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/store/backend"
)

// Option configures the parklot Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine. It takes precedence over the
// configured backend.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a parklot.Option through to the underlying engine.
func WithEngineOption(opt parklot.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a parklot plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, parklot.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithBackend selects the store backend by driver and DSN.
func WithBackend(cfg backend.Config) Option {
	return func(e *Extension) { e.config.Store = cfg }
}

// WithCurrency sets the lot's billing currency.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithLockTimeout caps each atomic operation.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.LockTimeout = d }
}

// WithOverstayMonitor enables overstay reporting.
func WithOverstayMonitor(threshold, interval time.Duration) Option {
	return func(e *Extension) {
		e.config.OverstayThreshold = threshold
		e.config.OverstayInterval = interval
	}
}
