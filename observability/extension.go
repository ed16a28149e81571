// Package observability provides a metrics extension for Warden that records
// access and metering event counts via go-utils MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnAccessDenied      = (*MetricsExtension)(nil)
	_ plugin.OnConfigUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnConfigRejected    = (*MetricsExtension)(nil)
	_ plugin.OnQuotaChecked      = (*MetricsExtension)(nil)
	_ plugin.OnNearLimit         = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded     = (*MetricsExtension)(nil)
	_ plugin.OnUsageRecorded     = (*MetricsExtension)(nil)
	_ plugin.OnAuditGap          = (*MetricsExtension)(nil)
	_ plugin.OnCounterReconciled = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide access and metering metrics.
// Register it as a Warden plugin.
type MetricsExtension struct {
	factory MetricFactory

	// Access metrics
	AccessDenied    Counter
	UnknownMode     Counter
	ConfigUpdated   Counter
	ConfigRejected  Counter
	ConfigModeShift Counter

	// Quota metrics
	QuotaChecks    Counter
	QuotaNearLimit Counter
	QuotaExceeded  Counter
	QuotaUsedPct   Histogram

	// Usage metrics
	UsageRecorded Counter
	UsageCredits  Counter
	EventCredits  Histogram
	AuditGaps     Counter

	// Counter cache metrics
	CountersReconciled Counter
	CounterDrift       Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		AccessDenied:    factory.Counter("warden.access.denied"),
		UnknownMode:     factory.Counter("warden.access.unknown_mode"),
		ConfigUpdated:   factory.Counter("warden.access_config.updated"),
		ConfigRejected:  factory.Counter("warden.access_config.rejected"),
		ConfigModeShift: factory.Counter("warden.access_config.mode_changed"),

		QuotaChecks:    factory.Counter("warden.quota.checks"),
		QuotaNearLimit: factory.Counter("warden.quota.near_limit"),
		QuotaExceeded:  factory.Counter("warden.quota.exceeded"),
		QuotaUsedPct:   factory.Histogram("warden.quota.used_percent"),

		UsageRecorded: factory.Counter("warden.usage.recorded"),
		UsageCredits:  factory.Counter("warden.usage.credits"),
		EventCredits:  factory.Histogram("warden.usage.event_credits"),
		AuditGaps:     factory.Counter("warden.usage.audit_gaps"),

		CountersReconciled: factory.Counter("warden.counter.reconciled"),
		CounterDrift:       factory.Histogram("warden.counter.drift"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnAccessDenied implements plugin.OnAccessDenied.
func (m *MetricsExtension) OnAccessDenied(_ context.Context, d plugin.Denial) error {
	m.AccessDenied.Inc()
	if d.Resolution.Warning != nil {
		m.UnknownMode.Inc()
	}
	return nil
}

// OnConfigUpdated implements plugin.OnConfigUpdated.
func (m *MetricsExtension) OnConfigUpdated(_ context.Context, prev, next *access.Record) error {
	m.ConfigUpdated.Inc()
	if prev != nil && prev.Config != nil && next.Config != nil && prev.Config.Mode() != next.Config.Mode() {
		m.ConfigModeShift.Inc()
	}
	return nil
}

// OnConfigRejected implements plugin.OnConfigRejected.
func (m *MetricsExtension) OnConfigRejected(_ context.Context, _, _ string, _ error) error {
	m.ConfigRejected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Metering hooks
// ──────────────────────────────────────────────────

// OnQuotaChecked implements plugin.OnQuotaChecked.
func (m *MetricsExtension) OnQuotaChecked(_ context.Context, s *meter.QuotaStatus) error {
	m.QuotaChecks.Inc()
	if !s.Unlimited {
		m.QuotaUsedPct.Observe(s.PercentageUsed)
	}
	return nil
}

// OnNearLimit implements plugin.OnNearLimit.
func (m *MetricsExtension) OnNearLimit(_ context.Context, _ *meter.QuotaStatus) error {
	m.QuotaNearLimit.Inc()
	return nil
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _ *meter.QuotaStatus) error {
	m.QuotaExceeded.Inc()
	return nil
}

// OnUsageRecorded implements plugin.OnUsageRecorded.
func (m *MetricsExtension) OnUsageRecorded(_ context.Context, evt *meter.UsageEvent, _ *meter.UsageResult) error {
	m.UsageRecorded.Inc()
	m.UsageCredits.Add(float64(evt.CreditsConsumed))
	m.EventCredits.Observe(float64(evt.CreditsConsumed))
	return nil
}

// OnAuditGap implements plugin.OnAuditGap.
func (m *MetricsExtension) OnAuditGap(_ context.Context, _ *meter.UsageEvent, _ error) error {
	m.AuditGaps.Inc()
	return nil
}

// OnCounterReconciled implements plugin.OnCounterReconciled.
func (m *MetricsExtension) OnCounterReconciled(_ context.Context, _ string, cached, actual int64) error {
	m.CountersReconciled.Inc()
	drift := actual - cached
	if drift < 0 {
		drift = -drift
	}
	m.CounterDrift.Observe(float64(drift))
	return nil
}
