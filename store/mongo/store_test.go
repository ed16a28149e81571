package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
)

func TestEventFilter(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	minCredits := int64(3)

	f := eventFilter("org_1", meter.QueryOpts{
		EventTypes: []string{"a", "b"},
		UserID:     "u",
		Start:      start,
		MinCredits: &minCredits,
	})

	if f["organization_id"] != "org_1" || f["user_id"] != "u" {
		t.Errorf("unexpected filter: %v", f)
	}
	if _, ok := f["session_id"]; ok {
		t.Error("empty session id should not filter")
	}

	in, ok := f["event_type"].(bson.M)
	if !ok || len(in["$in"].([]string)) != 2 {
		t.Errorf("event_type = %v", f["event_type"])
	}

	created, ok := f["created_at"].(bson.M)
	if !ok || created["$gte"] != start {
		t.Errorf("created_at = %v", f["created_at"])
	}
	if _, ok := created["$lt"]; ok {
		t.Error("unset end should not bound created_at")
	}

	credits, ok := f["credits_consumed"].(bson.M)
	if !ok || credits["$gte"] != int64(3) {
		t.Errorf("credits_consumed = %v", f["credits_consumed"])
	}

	until := start.AddDate(0, 1, 0)
	bounded, ok := eventFilter("org_1", meter.QueryOpts{Until: until})["created_at"].(bson.M)
	if !ok || bounded["$lte"] != until {
		t.Errorf("until should bound created_at inclusively, got %v", bounded)
	}

	if len(eventFilter("org_1", meter.QueryOpts{})) != 1 {
		t.Error("empty opts should filter by organization only")
	}
}

func TestSessionConfigModel(t *testing.T) {
	rec := &access.Record{
		SessionID: "sess_1",
		Config: access.PerRole{Roles: map[access.Role]access.Permission{
			access.RoleViewer: access.Write,
		}},
	}

	m := toSessionConfigModel(rec)
	if m.AccessMode != "per_role" || m.RolePermissions["viewer"] != "write" || m.UserPermissions != nil {
		t.Fatalf("unexpected model: %+v", m)
	}

	m.RolePermissions["billing"] = "superpower"
	back, err := fromSessionConfigModel(m)
	if err != nil {
		t.Fatal(err)
	}
	pr, ok := back.Config.(access.PerRole)
	if !ok {
		t.Fatalf("decoded %T, want PerRole", back.Config)
	}
	if pr.Roles[access.RoleViewer] != access.Write || pr.Roles[access.RoleBilling] != access.None {
		t.Errorf("unexpected roles: %v", pr.Roles)
	}

	m.AccessMode = "public"
	back, _ = fromSessionConfigModel(m)
	if back.Config.Mode() != "public" {
		t.Errorf("unknown mode decoded as %q", back.Config.Mode())
	}
}

func TestCounterKey(t *testing.T) {
	local := time.Date(2026, 3, 1, 2, 0, 0, 0, time.FixedZone("CET", 2*3600))
	if counterKey("org_1", local) != "org_1:2026-03-01T00:00:00Z" {
		t.Errorf("counterKey = %q", counterKey("org_1", local))
	}
}
