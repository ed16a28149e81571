// Package access models session permissions and resolves an actor's
// effective permission on a session.
//
// Resolve is a pure function: it reads nothing but its arguments, so the
// engine can call it on every request and tests can exercise it without a
// store.
package access

import (
	"fmt"
)

// Permission is an ordered access level: None < Read < Write < Delete.
// A higher level implies every lower one.
//
//nolint:recvcheck // UnmarshalText needs a pointer receiver.
type Permission uint8

const (
	None Permission = iota
	Read
	Write
	Delete
)

var permissionNames = [...]string{
	None:   "none",
	Read:   "read",
	Write:  "write",
	Delete: "delete",
}

// ParsePermission parses the text form of a permission.
func ParsePermission(s string) (Permission, error) {
	for p, name := range permissionNames {
		if name == s {
			return Permission(p), nil
		}
	}
	return None, fmt.Errorf("access: unknown permission %q", s)
}

func (p Permission) String() string {
	if p.Valid() {
		return permissionNames[p]
	}
	return fmt.Sprintf("permission(%d)", uint8(p))
}

// Valid reports whether p is one of the four defined levels.
func (p Permission) Valid() bool { return p <= Delete }

// Allows reports whether p satisfies an operation requiring level required.
func (p Permission) Allows(required Permission) bool { return p.Valid() && p >= required }

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("access: invalid permission %d", uint8(p))
	}
	return []byte(permissionNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(data []byte) error {
	parsed, err := ParsePermission(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Role is an organization membership role.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
	RoleBilling Role = "billing"
)

// Roles lists every recognized role.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer, RoleBilling}
}

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer, RoleBilling:
		return true
	}
	return false
}

// OrganizationDefault returns the permission a role gets in organization
// mode. Unrecognized roles get None.
func OrganizationDefault(r Role) Permission {
	switch r {
	case RoleOwner, RoleAdmin:
		return Delete
	case RoleMember:
		return Write
	case RoleViewer, RoleBilling:
		return Read
	default:
		return None
	}
}
