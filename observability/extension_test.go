package observability_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/observability"
	"github.com/xraph/warden/plugin"
)

type fakeFactory struct {
	mu     sync.Mutex
	values map[string]float64
	obs    map[string][]float64
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{values: map[string]float64{}, obs: map[string][]float64{}}
}

type fakeCounter struct {
	f    *fakeFactory
	name string
}

func (c fakeCounter) Inc() { c.Add(1) }

func (c fakeCounter) Add(v float64) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.values[c.name] += v
}

type fakeHistogram struct {
	f    *fakeFactory
	name string
}

func (h fakeHistogram) Observe(v float64) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	h.f.obs[h.name] = append(h.f.obs[h.name], v)
}

func (f *fakeFactory) Counter(name string) observability.Counter {
	return fakeCounter{f: f, name: name}
}

func (f *fakeFactory) Histogram(name string) observability.Histogram {
	return fakeHistogram{f: f, name: name}
}

func TestMetricsThroughRegistry(t *testing.T) {
	f := newFakeFactory()
	ext := observability.NewMetricsExtension(f)

	reg := plugin.NewRegistry()
	if err := reg.Register(ext); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	reg.EmitAccessDenied(ctx, plugin.Denial{Resolution: access.Resolution{Warning: errors.New("unknown mode")}})
	reg.EmitConfigUpdated(ctx,
		&access.Record{Config: access.Organization{}},
		&access.Record{Config: access.PerUser{}},
	)
	reg.EmitConfigUpdated(ctx, nil, &access.Record{Config: access.PerUser{}})
	reg.EmitQuotaChecked(ctx, &meter.QuotaStatus{PercentageUsed: 42})
	reg.EmitQuotaChecked(ctx, &meter.QuotaStatus{Unlimited: true})
	reg.EmitUsageRecorded(ctx, &meter.UsageEvent{CreditsConsumed: 18}, &meter.UsageResult{})
	reg.EmitUsageRecorded(ctx, &meter.UsageEvent{CreditsConsumed: 7}, &meter.UsageResult{})
	reg.EmitCounterReconciled(ctx, "org_1", 8, 5)

	counters := []struct {
		name string
		want float64
	}{
		{"warden.access.denied", 1},
		{"warden.access.unknown_mode", 1},
		{"warden.access_config.updated", 2},
		{"warden.access_config.mode_changed", 1},
		{"warden.quota.checks", 2},
		{"warden.usage.recorded", 2},
		{"warden.usage.credits", 25},
		{"warden.counter.reconciled", 1},
	}
	for _, tt := range counters {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.values[tt.name]; got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if got := f.obs["warden.quota.used_percent"]; len(got) != 1 || got[0] != 42 {
		t.Errorf("used_percent observations = %v", got)
	}
	if got := f.obs["warden.counter.drift"]; len(got) != 1 || got[0] != 3 {
		t.Errorf("drift observations = %v", got)
	}
}
