package extension

import "time"

// Config holds the Warden extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.warden" or "warden" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// NearLimitPercent is the quota percentage flagged as near the limit
	// (default: 90).
	NearLimitPercent float64 `json:"near_limit_percent" mapstructure:"near_limit_percent" yaml:"near_limit_percent"`

	// MinComplexity and MaxComplexity bound the complexity multiplier
	// (default: 1.0 and 3.0).
	MinComplexity float64 `json:"min_complexity" mapstructure:"min_complexity" yaml:"min_complexity"`
	MaxComplexity float64 `json:"max_complexity" mapstructure:"max_complexity" yaml:"max_complexity"`

	// CounterCache serves quota checks from the per-period counter.
	CounterCache bool `json:"counter_cache" mapstructure:"counter_cache" yaml:"counter_cache"`

	// CounterMaxStaleness is how long a reconciled counter is trusted
	// (default: 1m).
	CounterMaxStaleness time.Duration `json:"counter_max_staleness" mapstructure:"counter_max_staleness" yaml:"counter_max_staleness"`

	// ReconcileInterval is how often cached counters are reconciled with the
	// ledger (default: 5m).
	ReconcileInterval time.Duration `json:"reconcile_interval" mapstructure:"reconcile_interval" yaml:"reconcile_interval"`

	// ReconcileConcurrency bounds concurrent reconciliations (default: 8).
	ReconcileConcurrency int `json:"reconcile_concurrency" mapstructure:"reconcile_concurrency" yaml:"reconcile_concurrency"`

	// RegistryFile is a YAML event catalog replacing the built-in one.
	RegistryFile string `json:"registry_file" mapstructure:"registry_file" yaml:"registry_file"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		NearLimitPercent:     90,
		MinComplexity:        1.0,
		MaxComplexity:        3.0,
		CounterMaxStaleness:  time.Minute,
		ReconcileInterval:    5 * time.Minute,
		ReconcileConcurrency: 8,
	}
}
