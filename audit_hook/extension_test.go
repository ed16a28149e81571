package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	audithook "github.com/xraph/warden/audit_hook"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/plugin"
)

type captured struct {
	events []*audithook.AuditEvent
	err    error
}

func (c *captured) Record(_ context.Context, evt *audithook.AuditEvent) error {
	c.events = append(c.events, evt)
	return c.err
}

func TestConfigUpdatedCarriesBothDocuments(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)

	prev := &access.Record{SessionID: "sess_1", Config: access.Organization{}}
	next := &access.Record{
		SessionID: "sess_1",
		Revision:  id.NewConfigRevisionID(),
		UpdatedBy: "olivia",
		Config:    access.PerRole{Roles: map[access.Role]access.Permission{access.RoleViewer: access.Write}},
	}
	if err := ext.OnConfigUpdated(context.Background(), prev, next); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Action != audithook.ActionConfigUpdated || evt.ActorID != "olivia" || evt.ResourceID != "sess_1" {
		t.Errorf("unexpected event: %+v", evt)
	}
	if !strings.HasPrefix(evt.ID.String(), "aud_") {
		t.Errorf("event id = %q", evt.ID)
	}
	if doc, _ := evt.Metadata["new_config"].(string); !strings.Contains(doc, "per_role") {
		t.Errorf("new_config = %q", doc)
	}
	if _, ok := evt.Metadata["old_config"]; !ok {
		t.Error("old_config missing")
	}
}

func TestRejectionSeverity(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)
	ctx := context.Background()

	denied := &warden.AccessDeniedError{UserID: "vic", SessionID: "sess_1", Required: access.Delete}
	_ = ext.OnConfigRejected(ctx, "vic", "sess_1", denied)
	_ = ext.OnConfigRejected(ctx, "olivia", "sess_1", warden.ValidationError{Field: "roles", Message: "unknown role"})

	if len(rec.events) != 2 {
		t.Fatalf("recorded %d events, want 2", len(rec.events))
	}
	if rec.events[0].Severity != audithook.SeverityWarning {
		t.Errorf("denied severity = %q", rec.events[0].Severity)
	}
	if rec.events[1].Severity != audithook.SeverityInfo || rec.events[1].Reason == "" {
		t.Errorf("invalid config event = %+v", rec.events[1])
	}
}

func TestActionFiltering(t *testing.T) {
	ctx := context.Background()
	status := &meter.QuotaStatus{OrganizationID: "org_1", Consumed: 95, Allowance: 100}

	rec := &captured{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionNearLimit))
	_ = ext.OnNearLimit(ctx, status)
	_ = ext.OnQuotaExceeded(ctx, status)
	if len(rec.events) != 1 || rec.events[0].Action != audithook.ActionQuotaExceeded {
		t.Errorf("disabled action recorded: %+v", rec.events)
	}

	rec = &captured{}
	ext = audithook.New(rec, audithook.WithEnabledActions(audithook.ActionAuditGap))
	evt := &meter.UsageEvent{ID: id.NewUsageEventID(), OrganizationID: "org_1"}
	_ = ext.OnAccessDenied(ctx, plugin.Denial{UserID: "vic"})
	_ = ext.OnAuditGap(ctx, evt, errors.New("disk full"))
	if len(rec.events) != 1 || rec.events[0].Severity != audithook.SeverityCritical {
		t.Errorf("enabled filter: %+v", rec.events)
	}
}

func TestUsageAndDrift(t *testing.T) {
	ctx := context.Background()
	evt := &meter.UsageEvent{ID: id.NewUsageEventID(), OrganizationID: "org_1", CreditsConsumed: 5}
	res := &meter.UsageResult{RunningTotal: 5}

	rec := &captured{}
	ext := audithook.New(rec)
	_ = ext.OnUsageRecorded(ctx, evt, res)
	_ = ext.OnCounterReconciled(ctx, "org_1", 5, 5)
	if len(rec.events) != 0 {
		t.Fatalf("expected no events, got %d", len(rec.events))
	}

	ext = audithook.New(rec, audithook.WithUsageRecords())
	_ = ext.OnUsageRecorded(ctx, evt, res)
	_ = ext.OnCounterReconciled(ctx, "org_1", 3, 5)
	if len(rec.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.events))
	}
	if rec.events[1].Metadata["actual"] != int64(5) {
		t.Errorf("drift metadata = %v", rec.events[1].Metadata)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	rec := &captured{err: errors.New("backend down")}
	ext := audithook.New(rec, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := ext.OnAccessDenied(context.Background(), plugin.Denial{UserID: "vic", SessionID: "sess_1"}); err != nil {
		t.Errorf("hook returned %v, want nil", err)
	}
}
