package warden_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	"github.com/xraph/warden/store/memory"
)

func TestResolvePermission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	tests := []struct {
		user   string
		want   access.Permission
		reason access.Reason
	}{
		{"mia", access.Delete, access.ReasonCreator},
		{"olivia", access.Delete, access.ReasonOrganization},
		{"adam", access.Delete, access.ReasonOrganization},
		{"vic", access.Read, access.ReasonOrganization},
		{"bill", access.Read, access.ReasonOrganization},
		{"stranger", access.None, access.ReasonNotMember},
	}

	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			res, err := f.w.ResolvePermission(ctx, tt.user, "sess_1")
			if err != nil {
				t.Fatalf("ResolvePermission: %v", err)
			}
			if res.Permission != tt.want || res.Reason != tt.reason {
				t.Errorf("got %s (%s), want %s (%s)", res.Permission, res.Reason, tt.want, tt.reason)
			}
		})
	}

	if _, err := f.w.ResolvePermission(ctx, "mia", "sess_missing"); !errors.Is(err, warden.ErrSessionNotFound) {
		t.Errorf("missing session: got %v", err)
	}
}

func TestCreatorOutsideOrganization(t *testing.T) {
	f := newFixture(t, nil)
	f.dir.RemoveMember("org_1", "mia")

	res, err := f.w.ResolvePermission(context.Background(), "mia", "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Permission != access.None {
		t.Errorf("former member resolved to %s, want none", res.Permission)
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	f := newFixture(t, nil, warden.WithPlugin(rec))

	if _, err := f.w.Authorize(ctx, "vic", "sess_1", access.Read); err != nil {
		t.Errorf("viewer read: %v", err)
	}

	_, err := f.w.Authorize(ctx, "vic", "sess_1", access.Write)
	var denied *warden.AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("got %v, want *AccessDeniedError", err)
	}
	if !warden.IsAccessDenied(err) || denied.Required != access.Write || denied.Resolved.Permission != access.Read {
		t.Errorf("unexpected denial: %+v", denied)
	}
	if len(rec.denials) != 1 || rec.denials[0].UserID != "vic" {
		t.Errorf("OnAccessDenied = %+v", rec.denials)
	}
}

func TestAccessibleSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.dir.AddSession("sess_2", "org_1", "adam")

	if _, err := f.w.UpdatePermissionConfig(ctx, "adam", "sess_2", access.PerRole{
		Roles: map[access.Role]access.Permission{access.RoleMember: access.None},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := f.w.AccessibleSessions(ctx, "mia", []string{"sess_1", "sess_2", "sess_gone"}, access.Read)
	if err != nil {
		t.Fatalf("AccessibleSessions: %v", err)
	}
	if len(got) != 1 || got[0] != "sess_1" {
		t.Errorf("AccessibleSessions = %v, want [sess_1]", got)
	}
}

func TestInitPermissionConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.w.InitPermissionConfig(ctx, "sess_1", "mia"); err != nil {
		t.Fatalf("InitPermissionConfig: %v", err)
	}
	first, err := f.w.GetPermissionConfig(ctx, "mia", "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if first.Revision.IsNil() || first.Config.Mode() != access.ModeOrganization {
		t.Errorf("unexpected initial record: %+v", first)
	}

	if err := f.w.InitPermissionConfig(ctx, "sess_1", "mia"); err != nil {
		t.Fatalf("second InitPermissionConfig: %v", err)
	}
	again, _ := f.w.GetPermissionConfig(ctx, "mia", "sess_1")
	if again.Revision.String() != first.Revision.String() {
		t.Error("InitPermissionConfig overwrote an existing config")
	}

	if err := f.w.InitPermissionConfig(ctx, "sess_missing", "mia"); !errors.Is(err, warden.ErrSessionNotFound) {
		t.Errorf("missing session: got %v", err)
	}
}

func TestGetPermissionConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	rec, err := f.w.GetPermissionConfig(ctx, "vic", "sess_1")
	if err != nil {
		t.Fatalf("GetPermissionConfig: %v", err)
	}
	if !rec.Revision.IsNil() || rec.Config.Mode() != access.ModeOrganization {
		t.Errorf("expected the unsaved default, got %+v", rec)
	}

	if _, err := f.w.GetPermissionConfig(ctx, "stranger", "sess_1"); !warden.IsAccessDenied(err) {
		t.Errorf("non-member: got %v, want access denied", err)
	}
}

func TestUpdatePermissionConfig(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	f := newFixture(t, nil, warden.WithPlugin(rec))

	next, err := f.w.UpdatePermissionConfig(ctx, "adam", "sess_1", access.PerUser{
		Users: []access.UserGrant{{UserID: "vic", Permission: access.Write}},
	})
	if err != nil {
		t.Fatalf("UpdatePermissionConfig: %v", err)
	}
	pu, ok := next.Config.(access.PerUser)
	if !ok || len(pu.Users) != 1 {
		t.Fatalf("unexpected config %#v", next.Config)
	}
	if pu.Users[0].GrantedBy != "adam" || !pu.Users[0].GrantedAt.Equal(testNow) {
		t.Errorf("grant not stamped: %+v", pu.Users[0])
	}
	if next.UpdatedBy != "adam" || next.Revision.IsNil() {
		t.Errorf("unexpected record: %+v", next)
	}

	tests := []struct {
		user string
		want access.Permission
	}{
		{"vic", access.Write},
		{"adam", access.None},
		{"olivia", access.None},
		{"mia", access.Delete},
	}
	for _, tt := range tests {
		res, err := f.w.ResolvePermission(ctx, tt.user, "sess_1")
		if err != nil {
			t.Fatal(err)
		}
		if res.Permission != tt.want {
			t.Errorf("%s: got %s, want %s", tt.user, res.Permission, tt.want)
		}
	}

	if len(rec.updated) != 1 {
		t.Errorf("OnConfigUpdated fired %d times, want 1", len(rec.updated))
	}
}

func TestUpdatePermissionConfigRejected(t *testing.T) {
	ctx := context.Background()

	prior := access.PerRole{Roles: map[access.Role]access.Permission{
		access.RoleAdmin:  access.Delete,
		access.RoleViewer: access.Write,
	}}

	tests := []struct {
		name string
		user string
		cfg  access.Config
		want error
	}{
		{
			name: "unknown role",
			user: "adam",
			cfg:  access.PerRole{Roles: map[access.Role]access.Permission{"superuser": access.Delete}},
			want: warden.ErrInvalidConfiguration,
		},
		{
			name: "non-member grant",
			user: "adam",
			cfg:  access.PerUser{Users: []access.UserGrant{{UserID: "stranger", Permission: access.Read}}},
			want: warden.ErrInvalidConfiguration,
		},
		{
			name: "unrecognized mode",
			user: "adam",
			cfg:  access.Unrecognized{RawMode: "public"},
			want: warden.ErrInvalidConfiguration,
		},
		{
			name: "write is not enough",
			user: "vic",
			cfg:  access.Organization{},
			want: warden.ErrAccessDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			f := newFixture(t, nil, warden.WithPlugin(rec))
			before, err := f.w.UpdatePermissionConfig(ctx, "mia", "sess_1", prior)
			if err != nil {
				t.Fatal(err)
			}

			if _, err := f.w.UpdatePermissionConfig(ctx, tt.user, "sess_1", tt.cfg); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}

			after, err := f.w.GetPermissionConfig(ctx, "mia", "sess_1")
			if err != nil {
				t.Fatal(err)
			}
			if after.Revision.String() != before.Revision.String() {
				t.Error("rejected update changed the stored config")
			}
			if len(rec.rejected) != 1 {
				t.Errorf("OnConfigRejected fired %d times, want 1", len(rec.rejected))
			}
		})
	}
}

func TestUpdatePermissionConfigPersistenceFailure(t *testing.T) {
	fs := &faultyStore{Store: memory.New(), failReplace: true}
	f := newFixture(t, fs)

	_, err := f.w.UpdatePermissionConfig(context.Background(), "mia", "sess_1", access.Organization{})
	if !warden.IsRetryable(err) {
		t.Errorf("got %v, want a retryable persistence error", err)
	}
}

func TestUnrecognizedStoredMode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	cfg, err := access.Unmarshal([]byte(`{"version":"1.0","access_mode":"public"}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.store.CreateConfig(ctx, &access.Record{SessionID: "sess_1", OrganizationID: "org_1", Config: cfg}); err != nil {
		t.Fatal(err)
	}

	res, err := f.w.ResolvePermission(ctx, "vic", "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Permission != access.Read || !errors.Is(res.Warning, access.ErrUnrecognizedAccessMode) {
		t.Errorf("got %s with warning %v", res.Permission, res.Warning)
	}
}
