package access

import "errors"

// ErrUnrecognizedAccessMode is reported on a Resolution whose stored mode was
// unknown and was resolved as ModeOrganization instead.
var ErrUnrecognizedAccessMode = errors.New("access: unrecognized access mode")

// Reason explains which rule produced a Resolution.
type Reason string

const (
	ReasonCreator      Reason = "creator"
	ReasonOrganization Reason = "organization_default"
	ReasonRoleOverride Reason = "role_override"
	ReasonRoleMissing  Reason = "role_not_listed"
	ReasonUserGrant    Reason = "user_grant"
	ReasonUserMissing  Reason = "user_not_listed"
	ReasonNotMember    Reason = "not_member"
)

// Actor is the user asking for access, with their role in the session's
// organization.
type Actor struct {
	UserID string
	Role   Role
}

// Session is the part of a session that permission resolution reads.
type Session struct {
	ID             string
	CreatorID      string
	OrganizationID string
	Config         Config
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Permission Permission
	Mode       Mode
	Reason     Reason

	// Warning is non-nil when resolution fell back to a default, currently
	// only ErrUnrecognizedAccessMode.
	Warning error
}

// Allows reports whether the resolved permission satisfies required.
func (r Resolution) Allows(required Permission) bool {
	return r.Permission.Allows(required)
}

// Resolve computes the effective permission of actor on session. The
// creator always gets Delete. Otherwise the session's access mode decides;
// per-role and per-user modes deny anything they do not list.
func Resolve(actor Actor, session Session) Resolution {
	cfg := deref(session.Config)

	if actor.UserID != "" && actor.UserID == session.CreatorID {
		return Resolution{Permission: Delete, Mode: cfg.Mode(), Reason: ReasonCreator}
	}

	switch c := cfg.(type) {
	case Organization:
		return Resolution{
			Permission: OrganizationDefault(actor.Role),
			Mode:       ModeOrganization,
			Reason:     ReasonOrganization,
		}

	case PerRole:
		p, ok := c.Roles[actor.Role]
		if !ok || !p.Valid() {
			return Resolution{Permission: None, Mode: ModePerRole, Reason: ReasonRoleMissing}
		}
		return Resolution{Permission: p, Mode: ModePerRole, Reason: ReasonRoleOverride}

	case PerUser:
		g, ok := c.Grant(actor.UserID)
		if !ok || actor.UserID == "" || !g.Permission.Valid() {
			return Resolution{Permission: None, Mode: ModePerUser, Reason: ReasonUserMissing}
		}
		return Resolution{Permission: g.Permission, Mode: ModePerUser, Reason: ReasonUserGrant}

	default:
		return Resolution{
			Permission: OrganizationDefault(actor.Role),
			Mode:       ModeOrganization,
			Reason:     ReasonOrganization,
			Warning:    ErrUnrecognizedAccessMode,
		}
	}
}

// NotMember is the Resolution for a user outside the session's organization.
func NotMember() Resolution {
	return Resolution{Permission: None, Reason: ReasonNotMember}
}
