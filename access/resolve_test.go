package access_test

import (
	"errors"
	"testing"

	"github.com/xraph/warden/access"
)

// configs covers every variant, including data that belongs to other modes.
func configs() map[string]access.Config {
	return map[string]access.Config{
		"nil":          nil,
		"organization": access.Organization{},
		"per_role empty": access.PerRole{},
		"per_role deny all": access.PerRole{Roles: map[access.Role]access.Permission{
			access.RoleOwner: access.None, access.RoleAdmin: access.None, access.RoleMember: access.None,
		}},
		"per_user empty":   access.PerUser{},
		"per_user listed":  access.PerUser{Users: []access.UserGrant{{UserID: "u_member", Permission: access.Read}}},
		"unrecognized":     access.Unrecognized{RawMode: "team_only"},
		"pointer per_role": &access.PerRole{Roles: map[access.Role]access.Permission{access.RoleMember: access.Read}},
	}
}

func TestCreatorAlwaysGetsDelete(t *testing.T) {
	for name, cfg := range configs() {
		for _, role := range append(access.Roles(), access.Role("stranger")) {
			t.Run(name+"/"+string(role), func(t *testing.T) {
				res := access.Resolve(
					access.Actor{UserID: "u_creator", Role: role},
					access.Session{CreatorID: "u_creator", Config: cfg},
				)
				if res.Permission != access.Delete {
					t.Errorf("creator resolved to %s, want delete", res.Permission)
				}
				if res.Reason != access.ReasonCreator {
					t.Errorf("reason = %s, want %s", res.Reason, access.ReasonCreator)
				}
			})
		}
	}
}

func TestOrganizationModeDependsOnlyOnRole(t *testing.T) {
	want := map[access.Role]access.Permission{
		access.RoleOwner:   access.Delete,
		access.RoleAdmin:   access.Delete,
		access.RoleMember:  access.Write,
		access.RoleViewer:  access.Read,
		access.RoleBilling: access.Read,
		"ghost":            access.None,
	}

	sessions := []access.Session{
		{ID: "s1", CreatorID: "u_creator", Config: access.Organization{}},
		{ID: "s2", CreatorID: "someone_else", OrganizationID: "org_2", Config: &access.Organization{}},
		{ID: "s3", Config: nil},
	}

	for role, perm := range want {
		for _, s := range sessions {
			t.Run(string(role)+"/"+s.ID, func(t *testing.T) {
				res := access.Resolve(access.Actor{UserID: "u_actor", Role: role}, s)
				if res.Permission != perm {
					t.Errorf("resolved %s, want %s", res.Permission, perm)
				}
				if res.Warning != nil {
					t.Errorf("unexpected warning %v", res.Warning)
				}
			})
		}
	}
}

func TestPerRoleDeniesUnlistedRoles(t *testing.T) {
	cfg := access.PerRole{Roles: map[access.Role]access.Permission{
		access.RoleViewer: access.Write,
		access.RoleMember: access.Read,
	}}

	tests := []struct {
		role access.Role
		want access.Permission
	}{
		{access.RoleViewer, access.Write},
		{access.RoleMember, access.Read},
		{access.RoleOwner, access.None},
		{access.RoleAdmin, access.None},
		{access.RoleBilling, access.None},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			res := access.Resolve(access.Actor{UserID: "u1", Role: tt.role}, access.Session{CreatorID: "c", Config: cfg})
			if res.Permission != tt.want {
				t.Errorf("resolved %s, want %s", res.Permission, tt.want)
			}
		})
	}
}

func TestPerUserIsAnAllowList(t *testing.T) {
	cfg := access.PerUser{Users: []access.UserGrant{
		{UserID: "u_alice", Permission: access.Write},
		{UserID: "u_bob", Permission: access.Read},
	}}

	tests := []struct {
		user string
		role access.Role
		want access.Permission
	}{
		{"u_alice", access.RoleViewer, access.Write},
		{"u_bob", access.RoleOwner, access.Read},
		{"u_carol", access.RoleOwner, access.None},
		{"u_dave", access.RoleAdmin, access.None},
		{"", access.RoleMember, access.None},
	}

	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			res := access.Resolve(access.Actor{UserID: tt.user, Role: tt.role}, access.Session{CreatorID: "c", Config: cfg})
			if res.Permission != tt.want {
				t.Errorf("resolved %s, want %s", res.Permission, tt.want)
			}
		})
	}
}

func TestUnrecognizedModeFallsBackWithWarning(t *testing.T) {
	res := access.Resolve(
		access.Actor{UserID: "u1", Role: access.RoleMember},
		access.Session{CreatorID: "c", Config: access.Unrecognized{RawMode: "public"}},
	)
	if res.Permission != access.Write {
		t.Errorf("resolved %s, want write", res.Permission)
	}
	if res.Mode != access.ModeOrganization {
		t.Errorf("mode = %s, want organization", res.Mode)
	}
	if !errors.Is(res.Warning, access.ErrUnrecognizedAccessMode) {
		t.Errorf("warning = %v, want ErrUnrecognizedAccessMode", res.Warning)
	}
}

func TestAllowsOrdering(t *testing.T) {
	levels := []access.Permission{access.None, access.Read, access.Write, access.Delete}
	for _, have := range levels {
		for _, need := range levels {
			got := access.Resolution{Permission: have}.Allows(need)
			if want := have >= need; got != want {
				t.Errorf("%s.Allows(%s) = %v, want %v", have, need, got, want)
			}
		}
	}
	if access.Permission(9).Allows(access.None) {
		t.Error("invalid permission must not allow anything")
	}
}
