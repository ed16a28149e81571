package extension

import (
	"testing"
	"time"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{NearLimitPercent: 75})
	def := DefaultConfig()

	if cfg.NearLimitPercent != 75 {
		t.Errorf("NearLimitPercent = %v, want 75", cfg.NearLimitPercent)
	}
	if cfg.MaxComplexity != def.MaxComplexity || cfg.ReconcileInterval != def.ReconcileInterval {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name  string
		yaml  Config
		prog  Config
		check func(t *testing.T, got Config)
	}{
		{
			name: "yaml wins",
			yaml: Config{ReconcileInterval: time.Minute},
			prog: Config{ReconcileInterval: time.Hour},
			check: func(t *testing.T, got Config) {
				if got.ReconcileInterval != time.Minute {
					t.Errorf("ReconcileInterval = %v", got.ReconcileInterval)
				}
			},
		},
		{
			name: "programmatic fills gaps",
			prog: Config{RegistryFile: "events.yaml", MinComplexity: 0.5},
			check: func(t *testing.T, got Config) {
				if got.RegistryFile != "events.yaml" || got.MinComplexity != 0.5 {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "programmatic flags override",
			prog: Config{DisableMigrate: true, CounterCache: true},
			check: func(t *testing.T, got Config) {
				if !got.DisableMigrate || !got.CounterCache {
					t.Errorf("flags lost: %+v", got)
				}
			},
		},
		{
			name: "defaults last",
			check: func(t *testing.T, got Config) {
				if got.NearLimitPercent != 90 || got.ReconcileConcurrency != 8 {
					t.Errorf("got %+v", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mergeConfigurations(tt.yaml, tt.prog))
		})
	}
}
