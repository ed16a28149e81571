package access

import (
	"maps"
	"slices"
	"time"
)

// Mode selects how a session's permissions are computed.
type Mode string

const (
	ModeOrganization Mode = "organization"
	ModePerRole      Mode = "per_role"
	ModePerUser      Mode = "per_user"
)

// Config is a session access policy. It is one of Organization, PerRole,
// PerUser or Unrecognized; only the active variant's data exists.
type Config interface {
	Mode() Mode
	isConfig()
}

// Organization applies the fixed role table to every member.
type Organization struct{}

// PerRole overrides permissions per role. Roles missing from the map get None.
type PerRole struct {
	Roles map[Role]Permission
}

// PerUser is an allow-list. Users missing from the list get None.
type PerUser struct {
	Users []UserGrant
}

// UserGrant gives one user a permission on a session.
type UserGrant struct {
	UserID     string
	Permission Permission
	GrantedBy  string
	GrantedAt  time.Time
}

// Unrecognized carries an access mode read from storage that this version
// does not know. It resolves as Organization with a warning and is never
// accepted on update.
type Unrecognized struct {
	RawMode string
}

func (Organization) Mode() Mode   { return ModeOrganization }
func (PerRole) Mode() Mode        { return ModePerRole }
func (PerUser) Mode() Mode        { return ModePerUser }
func (u Unrecognized) Mode() Mode { return Mode(u.RawMode) }

func (Organization) isConfig() {}
func (PerRole) isConfig()      {}
func (PerUser) isConfig()      {}
func (Unrecognized) isConfig() {}

// Grant returns the grant for userID.
func (c PerUser) Grant(userID string) (UserGrant, bool) {
	for _, g := range c.Users {
		if g.UserID == userID {
			return g, true
		}
	}
	return UserGrant{}, false
}

// UserIDs returns the granted user IDs in list order.
func (c PerUser) UserIDs() []string {
	ids := make([]string, 0, len(c.Users))
	for _, g := range c.Users {
		ids = append(ids, g.UserID)
	}
	return ids
}

// Default is the policy of a newly created session.
func Default() Config { return Organization{} }

// deref turns pointer variants into values and nil into Organization.
func deref(c Config) Config {
	switch v := c.(type) {
	case nil:
		return Organization{}
	case *Organization:
		return Organization{}
	case *PerRole:
		return *v
	case *PerUser:
		return *v
	case *Unrecognized:
		return *v
	}
	return c
}

// Clone returns a deep copy of c so callers cannot alias stored state.
func Clone(c Config) Config {
	switch v := deref(c).(type) {
	case PerRole:
		return PerRole{Roles: maps.Clone(v.Roles)}
	case PerUser:
		return PerUser{Users: slices.Clone(v.Users)}
	default:
		return v
	}
}
