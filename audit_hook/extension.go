// Package audithook bridges Warden access and metering events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnAccessDenied      = (*Extension)(nil)
	_ plugin.OnConfigUpdated     = (*Extension)(nil)
	_ plugin.OnConfigRejected    = (*Extension)(nil)
	_ plugin.OnUsageRecorded     = (*Extension)(nil)
	_ plugin.OnAuditGap          = (*Extension)(nil)
	_ plugin.OnNearLimit         = (*Extension)(nil)
	_ plugin.OnQuotaExceeded     = (*Extension)(nil)
	_ plugin.OnCounterReconciled = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	ID         id.AuditEventID `json:"id"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	Category   string          `json:"category"`
	ResourceID string          `json:"resource_id,omitempty"`
	ActorID    string          `json:"actor_id,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Outcome    string          `json:"outcome"`
	Severity   string          `json:"severity"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Warden events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	usage    bool
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnAccessDenied implements plugin.OnAccessDenied.
func (e *Extension) OnAccessDenied(ctx context.Context, d plugin.Denial) error {
	return e.record(ctx, ActionAccessDenied, SeverityWarning, OutcomeFailure,
		ResourceSession, d.SessionID, CategoryAccess, d.UserID, nil,
		"required", d.Required.String(),
		"resolved", d.Resolution.Permission.String(),
		"mode", string(d.Resolution.Mode),
		"reason", string(d.Resolution.Reason),
	)
}

// OnConfigUpdated implements plugin.OnConfigUpdated. The old and new
// configs are attached in their stored document form.
func (e *Extension) OnConfigUpdated(ctx context.Context, prev, next *access.Record) error {
	kv := []any{
		"organization_id", next.OrganizationID,
		"revision", next.Revision.String(),
		"new_config", configDocument(next),
	}
	if prev != nil {
		kv = append(kv,
			"old_config", configDocument(prev),
			"old_revision", prev.Revision.String(),
		)
	}
	return e.record(ctx, ActionConfigUpdated, SeverityInfo, OutcomeSuccess,
		ResourceAccessConfig, next.SessionID, CategoryAccess, next.UpdatedBy, nil,
		kv...,
	)
}

// OnConfigRejected implements plugin.OnConfigRejected.
func (e *Extension) OnConfigRejected(ctx context.Context, userID, sessionID string, reason error) error {
	severity := SeverityInfo
	if errors.Is(reason, warden.ErrAccessDenied) {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionConfigRejected, severity, OutcomeFailure,
		ResourceAccessConfig, sessionID, CategoryAccess, userID, reason,
	)
}

// ──────────────────────────────────────────────────
// Metering hooks
// ──────────────────────────────────────────────────

// OnUsageRecorded implements plugin.OnUsageRecorded. It is a no-op unless
// WithUsageRecords was given.
func (e *Extension) OnUsageRecorded(ctx context.Context, evt *meter.UsageEvent, res *meter.UsageResult) error {
	if !e.usage {
		return nil
	}
	return e.record(ctx, ActionUsageRecorded, SeverityInfo, OutcomeSuccess,
		ResourceUsage, evt.ID.String(), CategoryUsage, evt.UserID, nil,
		"organization_id", evt.OrganizationID,
		"event_type", evt.EventType,
		"credits", evt.CreditsConsumed,
		"running_total", res.RunningTotal,
	)
}

// OnAuditGap implements plugin.OnAuditGap.
func (e *Extension) OnAuditGap(ctx context.Context, evt *meter.UsageEvent, cause error) error {
	return e.record(ctx, ActionAuditGap, SeverityCritical, OutcomeFailure,
		ResourceUsage, evt.ID.String(), CategoryUsage, evt.UserID, cause,
		"organization_id", evt.OrganizationID,
		"session_id", evt.SessionID,
		"event_type", evt.EventType,
		"credits", evt.CreditsConsumed,
	)
}

// OnNearLimit implements plugin.OnNearLimit.
func (e *Extension) OnNearLimit(ctx context.Context, status *meter.QuotaStatus) error {
	return e.quota(ctx, ActionNearLimit, SeverityInfo, status)
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, status *meter.QuotaStatus) error {
	return e.quota(ctx, ActionQuotaExceeded, SeverityWarning, status)
}

// OnCounterReconciled implements plugin.OnCounterReconciled. Only drift is
// audited.
func (e *Extension) OnCounterReconciled(ctx context.Context, orgID string, cached, actual int64) error {
	if cached == actual {
		return nil
	}
	return e.record(ctx, ActionCounterDrifted, SeverityWarning, OutcomePartial,
		ResourceCounter, orgID, CategoryUsage, "", nil,
		"cached", cached,
		"actual", actual,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) quota(ctx context.Context, action, severity string, s *meter.QuotaStatus) error {
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceQuota, s.OrganizationID, CategoryQuota, "", nil,
		"consumed", s.Consumed,
		"allowance", s.Allowance,
		"percentage_used", s.PercentageUsed,
		"period_start", s.PeriodStart,
	)
}

// configDocument renders a record's config in its stored form, falling back
// to the mode name when it cannot be encoded.
func configDocument(rec *access.Record) string {
	if rec.Config == nil {
		return ""
	}
	data, err := access.Marshal(rec.Config)
	if err != nil {
		return string(rec.Config.Mode())
	}
	return string(data)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category, actorID string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewAuditEventID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		ActorID:    actorID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
