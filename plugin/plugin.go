// Package plugin provides lifecycle hooks for Warden.
// A plugin implements Plugin plus any subset of the hook interfaces below;
// the Registry discovers which ones at registration time.
package plugin

import (
	"context"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, w interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// Denial describes a refused session operation.
type Denial struct {
	UserID     string
	SessionID  string
	Required   access.Permission
	Resolution access.Resolution
}

// OnAccessDenied is called when Authorize refuses an operation.
type OnAccessDenied interface {
	Plugin
	OnAccessDenied(ctx context.Context, d Denial) error
}

// OnConfigUpdated is called after a session's access config was replaced.
// prev is nil when the session had no stored config.
type OnConfigUpdated interface {
	Plugin
	OnConfigUpdated(ctx context.Context, prev, next *access.Record) error
}

// OnConfigRejected is called when an update was refused, either for
// insufficient permission or an invalid config.
type OnConfigRejected interface {
	Plugin
	OnConfigRejected(ctx context.Context, userID, sessionID string, reason error) error
}

// ──────────────────────────────────────────────────
// Metering hooks
// ──────────────────────────────────────────────────

// OnQuotaChecked is called for every computed quota status.
type OnQuotaChecked interface {
	Plugin
	OnQuotaChecked(ctx context.Context, status *meter.QuotaStatus) error
}

// OnNearLimit is called when consumption crosses the near-limit threshold.
type OnNearLimit interface {
	Plugin
	OnNearLimit(ctx context.Context, status *meter.QuotaStatus) error
}

// OnQuotaExceeded is called when an organization is at or over its allowance.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, status *meter.QuotaStatus) error
}

// OnUsageRecorded is called after a usage event was written.
type OnUsageRecorded interface {
	Plugin
	OnUsageRecorded(ctx context.Context, event *meter.UsageEvent, result *meter.UsageResult) error
}

// OnAuditGap is called when a completed action could not be written to the
// ledger. Implementations should alert; the event was charged to nobody.
type OnAuditGap interface {
	Plugin
	OnAuditGap(ctx context.Context, event *meter.UsageEvent, cause error) error
}

// OnCounterReconciled is called when the cached counter was compared with
// the ledger sum.
type OnCounterReconciled interface {
	Plugin
	OnCounterReconciled(ctx context.Context, orgID string, cached, actual int64) error
}
