package extension

import (
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/plugin"
	"github.com/xraph/warden/store"
)

// Option configures the Warden Forge extension.
type Option func(*Extension)

// WithStore sets the store for the warden engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithCollaborators sets the membership, session and allowance services.
// Without it the extension runs on an in-process directory.Directory.
func WithCollaborators(c warden.Collaborators) Option {
	return func(e *Extension) {
		e.collaborators = &c
	}
}

// WithWardenOption passes a warden.Option through to the underlying engine.
func WithWardenOption(opt warden.Option) Option {
	return func(e *Extension) {
		e.wardenOpts = append(e.wardenOpts, opt)
	}
}

// WithPlugin registers a warden plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.wardenOpts = append(e.wardenOpts, warden.WithPlugin(p))
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

// WithCounterCache enables the cached quota counter.
func WithCounterCache(maxStaleness time.Duration) Option {
	return func(e *Extension) {
		e.config.CounterCache = true
		e.config.CounterMaxStaleness = maxStaleness
	}
}

// WithReconcileInterval sets how often cached counters are reconciled.
func WithReconcileInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ReconcileInterval = d }
}

// WithRegistryFile loads the event catalog from a YAML file.
func WithRegistryFile(path string) Option {
	return func(e *Extension) { e.config.RegistryFile = path }
}
