// Package extension provides the Forge extension adapter for parklot.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.parklot" or "parklot" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/store/backend"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "parklot"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Parking spot allocation and fee engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the parklot engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *parklot.Engine
	store      store.Store
	engineOpts []parklot.Option
}

// New creates a new parklot Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *parklot.Engine { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration, opens the
// store and registers the engine in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := backend.Open(context.Background(), e.storeConfig())
		if err != nil {
			return fmt.Errorf("parklot: open store: %w", err)
		}
		e.store = s
	}

	e.engine = parklot.New(e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*parklot.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("parklot: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("parklot: store not initialized")
	}
	return e.store.Ping(ctx)
}

// storeConfig hands the engine-wide lock timeout to the backend unless the
// store section sets its own.
func (e *Extension) storeConfig() backend.Config {
	cfg := e.config.Store
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = e.config.LockTimeout
	}
	return cfg
}

// buildEngineOpts constructs parklot.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []parklot.Option {
	opts := make([]parklot.Option, 0, len(e.engineOpts)+4)

	opts = append(opts,
		parklot.WithCurrency(e.config.Currency),
		parklot.WithLockTimeout(e.config.LockTimeout),
	)
	if e.config.OverstayThreshold > 0 {
		opts = append(opts, parklot.WithOverstayMonitor(e.config.OverstayThreshold, e.config.OverstayInterval))
	}
	if e.config.DisableMigrate {
		opts = append(opts, parklot.WithoutMigrate())
	}

	// Pass-through options win over config-derived ones.
	return append(opts, e.engineOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("parklot: configuration is required but not found in config files; " +
				"ensure 'extensions.parklot' or 'parklot' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("parklot: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_driver", e.config.Store.Driver),
		forge.F("currency", e.config.Currency),
		forge.F("lock_timeout", e.config.LockTimeout),
		forge.F("overstay_threshold", e.config.OverstayThreshold),
		forge.F("overstay_interval", e.config.OverstayInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.parklot", "parklot"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("parklot: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("parklot: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = defaults.LockTimeout
	}
	if cfg.OverstayInterval == 0 {
		cfg.OverstayInterval = defaults.OverstayInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.Store.Driver == "" {
		yamlConfig.Store = programmaticConfig.Store
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.LockTimeout == 0 {
		yamlConfig.LockTimeout = programmaticConfig.LockTimeout
	}
	if yamlConfig.OverstayThreshold == 0 {
		yamlConfig.OverstayThreshold = programmaticConfig.OverstayThreshold
	}
	if yamlConfig.OverstayInterval == 0 {
		yamlConfig.OverstayInterval = programmaticConfig.OverstayInterval
	}

	return mergeWithDefaults(yamlConfig)
}
