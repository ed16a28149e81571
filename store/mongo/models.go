package mongo

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/types"
)

// ==================== Access config models ====================

type sessionConfigModel struct {
	grove.BaseModel `grove:"table:warden_session_configs"`

	SessionID       string            `grove:"session_id,pk"    bson:"_id"`
	OrganizationID  string            `grove:"organization_id"  bson:"organization_id"`
	Revision        string            `grove:"revision"         bson:"revision"`
	Version         string            `grove:"version"          bson:"version"`
	AccessMode      string            `grove:"access_mode"      bson:"access_mode"`
	RolePermissions map[string]string `grove:"role_permissions" bson:"role_permissions,omitempty"`
	UserPermissions []userGrantModel  `grove:"user_permissions" bson:"user_permissions,omitempty"`
	UpdatedBy       string            `grove:"updated_by"       bson:"updated_by"`
	CreatedAt       time.Time         `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"       bson:"updated_at"`
}

type userGrantModel struct {
	UserID     string    `bson:"user_id"`
	Permission string    `bson:"permission"`
	GrantedBy  string    `bson:"granted_by,omitempty"`
	GrantedAt  time.Time `bson:"granted_at,omitempty"`
}

func toSessionConfigModel(rec *access.Record) *sessionConfigModel {
	m := &sessionConfigModel{
		SessionID:      rec.SessionID,
		OrganizationID: rec.OrganizationID,
		Revision:       rec.Revision.String(),
		Version:        access.DocumentVersion,
		AccessMode:     string(access.ModeOrganization),
		UpdatedBy:      rec.UpdatedBy,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if rec.Config == nil {
		return m
	}
	m.AccessMode = string(rec.Config.Mode())

	// only the active mode's table is written
	switch c := access.Clone(rec.Config).(type) {
	case access.PerRole:
		m.RolePermissions = make(map[string]string, len(c.Roles))
		for role, p := range c.Roles {
			m.RolePermissions[string(role)] = p.String()
		}
	case access.PerUser:
		m.UserPermissions = make([]userGrantModel, len(c.Users))
		for i, g := range c.Users {
			m.UserPermissions[i] = userGrantModel{
				UserID:     g.UserID,
				Permission: g.Permission.String(),
				GrantedBy:  g.GrantedBy,
				GrantedAt:  g.GrantedAt,
			}
		}
	}
	return m
}

func fromSessionConfigModel(m *sessionConfigModel) (*access.Record, error) {
	var rev id.ConfigRevisionID
	if m.Revision != "" {
		var err error
		if rev, err = id.ParseConfigRevisionID(m.Revision); err != nil {
			return nil, err
		}
	}

	return &access.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		SessionID:      m.SessionID,
		OrganizationID: m.OrganizationID,
		Revision:       rev,
		Config:         configFromModel(m),
		UpdatedBy:      m.UpdatedBy,
	}, nil
}

// configFromModel decodes the stored policy. Unknown permissions decode to
// none; unknown modes are kept as access.Unrecognized.
func configFromModel(m *sessionConfigModel) access.Config {
	parse := func(s string) access.Permission {
		p, err := access.ParsePermission(s)
		if err != nil {
			return access.None
		}
		return p
	}

	switch access.Mode(m.AccessMode) {
	case access.ModeOrganization, "":
		return access.Organization{}
	case access.ModePerRole:
		roles := make(map[access.Role]access.Permission, len(m.RolePermissions))
		for role, p := range m.RolePermissions {
			roles[access.Role(role)] = parse(p)
		}
		return access.PerRole{Roles: roles}
	case access.ModePerUser:
		users := make([]access.UserGrant, len(m.UserPermissions))
		for i, g := range m.UserPermissions {
			users[i] = access.UserGrant{
				UserID:     g.UserID,
				Permission: parse(g.Permission),
				GrantedBy:  g.GrantedBy,
				GrantedAt:  g.GrantedAt,
			}
		}
		return access.PerUser{Users: users}
	default:
		return access.Unrecognized{RawMode: m.AccessMode}
	}
}

// ==================== Usage event models ====================

type usageEventModel struct {
	grove.BaseModel `grove:"table:warden_usage_events"`

	ID              string         `grove:"id,pk"            bson:"_id"`
	OrganizationID  string         `grove:"organization_id"  bson:"organization_id"`
	UserID          string         `grove:"user_id"          bson:"user_id"`
	SessionID       string         `grove:"session_id"       bson:"session_id"`
	EventType       string         `grove:"event_type"       bson:"event_type"`
	CreditsConsumed int64          `grove:"credits_consumed" bson:"credits_consumed"`
	EventData       eventDataModel `grove:"event_data"       bson:"event_data"`
	CreatedAt       time.Time      `grove:"created_at"       bson:"created_at"`
}

type eventDataModel struct {
	Complexity          float64           `bson:"complexity"`
	RequestedComplexity float64           `bson:"requested_complexity,omitempty"`
	BaseCredits         int64             `bson:"base_credits"`
	FeatureCredits      map[string]int64  `bson:"feature_credits,omitempty"`
	Endpoint            string            `bson:"endpoint,omitempty"`
	Metadata            map[string]string `bson:"metadata,omitempty"`
}

func toUsageEventModel(e *meter.UsageEvent) *usageEventModel {
	d := e.Data()
	return &usageEventModel{
		ID:              e.ID.String(),
		OrganizationID:  e.OrganizationID,
		UserID:          e.UserID,
		SessionID:       e.SessionID,
		EventType:       e.EventType,
		CreditsConsumed: e.CreditsConsumed,
		EventData: eventDataModel{
			Complexity:          d.Complexity,
			RequestedComplexity: d.RequestedComplexity,
			BaseCredits:         d.BaseCredits,
			FeatureCredits:      d.FeatureCredits,
			Endpoint:            d.Endpoint,
			Metadata:            d.Metadata,
		},
		CreatedAt: e.CreatedAt,
	}
}

func fromUsageEventModel(m *usageEventModel) (*meter.UsageEvent, error) {
	evtID, err := id.ParseUsageEventID(m.ID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(meter.EventData{
		Complexity:          m.EventData.Complexity,
		RequestedComplexity: m.EventData.RequestedComplexity,
		BaseCredits:         m.EventData.BaseCredits,
		FeatureCredits:      m.EventData.FeatureCredits,
		Endpoint:            m.EventData.Endpoint,
		Metadata:            m.EventData.Metadata,
	})
	if err != nil {
		return nil, err
	}

	return &meter.UsageEvent{
		ID:              evtID,
		OrganizationID:  m.OrganizationID,
		UserID:          m.UserID,
		SessionID:       m.SessionID,
		EventType:       m.EventType,
		CreditsConsumed: m.CreditsConsumed,
		EventData:       data,
		CreatedAt:       m.CreatedAt,
	}, nil
}

// ==================== Usage counter models ====================

type usageCounterModel struct {
	grove.BaseModel `grove:"table:warden_usage_counters"`

	ID             string    `grove:"id,pk"           bson:"_id"`
	OrganizationID string    `grove:"organization_id" bson:"organization_id"`
	PeriodStart    time.Time `grove:"period_start"    bson:"period_start"`
	Credits        int64     `grove:"credits"         bson:"credits"`
	ReconciledAt   time.Time `grove:"reconciled_at"   bson:"reconciled_at,omitempty"`
	UpdatedAt      time.Time `grove:"updated_at"      bson:"updated_at"`
	Version        int64     `grove:"version"         bson:"version"`
}

// counterKey is the document id of an organization's counter for one period.
func counterKey(orgID string, periodStart time.Time) string {
	return orgID + ":" + periodStart.UTC().Format(time.RFC3339)
}

func fromUsageCounterModel(m *usageCounterModel) *meter.Counter {
	return &meter.Counter{
		OrganizationID: m.OrganizationID,
		PeriodStart:    m.PeriodStart.UTC(),
		Credits:        m.Credits,
		ReconciledAt:   m.ReconciledAt,
		UpdatedAt:      m.UpdatedAt,
		Version:        m.Version,
	}
}
