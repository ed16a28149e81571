package access

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentVersion is written into every encoded config.
const DocumentVersion = "1.0"

type document struct {
	Version         string            `json:"version"`
	AccessMode      string            `json:"access_mode"`
	Type            string            `json:"type,omitempty"`
	RolePermissions map[string]string `json:"role_permissions,omitempty"`
	UserPermissions []grantDocument   `json:"user_permissions,omitempty"`
}

type grantDocument struct {
	UserID     string     `json:"user_id"`
	Permission string     `json:"permission"`
	GrantedBy  string     `json:"granted_by,omitempty"`
	GrantedAt  *time.Time `json:"granted_at,omitempty"`
}

// Marshal encodes c in its stored JSON form. Only the active variant's
// table is written.
func Marshal(c Config) ([]byte, error) {
	doc := document{Version: DocumentVersion, AccessMode: string(deref(c).Mode())}

	switch v := deref(c).(type) {
	case PerRole:
		doc.RolePermissions = make(map[string]string, len(v.Roles))
		for role, p := range v.Roles {
			doc.RolePermissions[string(role)] = p.String()
		}
	case PerUser:
		doc.UserPermissions = make([]grantDocument, 0, len(v.Users))
		for _, g := range v.Users {
			gd := grantDocument{UserID: g.UserID, Permission: g.Permission.String(), GrantedBy: g.GrantedBy}
			if !g.GrantedAt.IsZero() {
				at := g.GrantedAt.UTC()
				gd.GrantedAt = &at
			}
			doc.UserPermissions = append(doc.UserPermissions, gd)
		}
	}

	return json.Marshal(doc)
}

// Unmarshal decodes a stored config. Tables that do not belong to the
// stored mode are ignored, unknown permission values decode to None, and an
// unknown mode decodes to Unrecognized. Empty input decodes to Organization.
func Unmarshal(data []byte) (Config, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Organization{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("access: decode config: %w", err)
	}

	mode := doc.AccessMode
	if mode == "" {
		mode = doc.Type
	}

	switch Mode(mode) {
	case ModeOrganization, "":
		return Organization{}, nil

	case ModePerRole:
		roles := make(map[Role]Permission, len(doc.RolePermissions))
		for role, raw := range doc.RolePermissions {
			p, err := ParsePermission(raw)
			if err != nil {
				p = None
			}
			roles[Role(role)] = p
		}
		return PerRole{Roles: roles}, nil

	case ModePerUser:
		users := make([]UserGrant, 0, len(doc.UserPermissions))
		for _, gd := range doc.UserPermissions {
			p, err := ParsePermission(gd.Permission)
			if err != nil {
				p = None
			}
			g := UserGrant{UserID: gd.UserID, Permission: p, GrantedBy: gd.GrantedBy}
			if gd.GrantedAt != nil {
				g.GrantedAt = *gd.GrantedAt
			}
			users = append(users, g)
		}
		return PerUser{Users: users}, nil

	default:
		return Unrecognized{RawMode: mode}, nil
	}
}
