// Package extension provides the Forge extension adapter for Warden.
//
// It implements the forge.Extension interface to integrate Warden
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.warden" or "warden" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/warden"
	"github.com/xraph/warden/directory"
	"github.com/xraph/warden/registry"
	"github.com/xraph/warden/store"
	"github.com/xraph/warden/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "warden"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Session permission resolution and usage metering"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Warden as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config        Config
	engine        *warden.Warden
	store         store.Store
	collaborators *warden.Collaborators
	wardenOpts    []warden.Option
}

// New creates a new Warden Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Warden instance.
// This is nil until Register is called.
func (e *Extension) Engine() *warden.Warden { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the warden engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	collab := directory.New().Collaborators()
	if e.collaborators != nil {
		collab = *e.collaborators
	}

	opts, err := e.buildWardenOpts()
	if err != nil {
		return err
	}

	eng, err := warden.New(e.store, collab, opts...)
	if err != nil {
		return err
	}
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*warden.Warden, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("warden: extension not initialized")
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
		return errors.New("warden: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildWardenOpts constructs warden.Option values from the resolved config.
func (e *Extension) buildWardenOpts() ([]warden.Option, error) {
	opts := make([]warden.Option, 0, len(e.wardenOpts)+6)

	opts = append(opts,
		warden.WithNearLimitThreshold(e.config.NearLimitPercent),
		warden.WithComplexityBounds(e.config.MinComplexity, e.config.MaxComplexity),
		warden.WithReconcileInterval(e.config.ReconcileInterval),
		warden.WithReconcileConcurrency(e.config.ReconcileConcurrency),
	)

	if e.config.CounterCache {
		opts = append(opts, warden.WithCounterCache(e.config.CounterMaxStaleness))
	}
	if e.config.DisableMigrate {
		opts = append(opts, warden.WithoutMigrate())
	}

	if e.config.RegistryFile != "" {
		reg, err := registry.LoadFile(e.config.RegistryFile)
		if err != nil {
			return nil, fmt.Errorf("warden: load registry: %w", err)
		}
		opts = append(opts, warden.WithRegistry(reg))
	}

	// Pass-through options win over config-derived ones.
	opts = append(opts, e.wardenOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("warden: configuration is required but not found in config files; " +
				"ensure 'extensions.warden' or 'warden' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("warden: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("near_limit_percent", e.config.NearLimitPercent),
		forge.F("counter_cache", e.config.CounterCache),
		forge.F("counter_max_staleness", e.config.CounterMaxStaleness),
		forge.F("reconcile_interval", e.config.ReconcileInterval),
		forge.F("registry_file", e.config.RegistryFile),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.warden", "warden"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("warden: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("warden: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.NearLimitPercent == 0 {
		cfg.NearLimitPercent = defaults.NearLimitPercent
	}
	if cfg.MinComplexity == 0 {
		cfg.MinComplexity = defaults.MinComplexity
	}
	if cfg.MaxComplexity == 0 {
		cfg.MaxComplexity = defaults.MaxComplexity
	}
	if cfg.CounterMaxStaleness == 0 {
		cfg.CounterMaxStaleness = defaults.CounterMaxStaleness
	}
	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = defaults.ReconcileInterval
	}
	if cfg.ReconcileConcurrency == 0 {
		cfg.ReconcileConcurrency = defaults.ReconcileConcurrency
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.CounterCache {
		yamlConfig.CounterCache = true
	}

	if yamlConfig.RegistryFile == "" {
		yamlConfig.RegistryFile = programmaticConfig.RegistryFile
	}
	if yamlConfig.NearLimitPercent == 0 {
		yamlConfig.NearLimitPercent = programmaticConfig.NearLimitPercent
	}
	if yamlConfig.MinComplexity == 0 {
		yamlConfig.MinComplexity = programmaticConfig.MinComplexity
	}
	if yamlConfig.MaxComplexity == 0 {
		yamlConfig.MaxComplexity = programmaticConfig.MaxComplexity
	}
	if yamlConfig.CounterMaxStaleness == 0 {
		yamlConfig.CounterMaxStaleness = programmaticConfig.CounterMaxStaleness
	}
	if yamlConfig.ReconcileInterval == 0 {
		yamlConfig.ReconcileInterval = programmaticConfig.ReconcileInterval
	}
	if yamlConfig.ReconcileConcurrency == 0 {
		yamlConfig.ReconcileConcurrency = programmaticConfig.ReconcileConcurrency
	}

	return mergeWithDefaults(yamlConfig)
}
