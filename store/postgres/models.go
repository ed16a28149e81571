package postgres

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

	SessionID      string          `grove:"session_id,pk"`
	OrganizationID string          `grove:"organization_id"`
	Revision       string          `grove:"revision"`
	AccessMode     string          `grove:"access_mode"`
	Config         json.RawMessage `grove:"config,type:jsonb"`
	UpdatedBy      string          `grove:"updated_by"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toSessionConfigModel(rec *access.Record) (*sessionConfigModel, error) {
	doc, err := access.Marshal(rec.Config)
	if err != nil {
		return nil, err
	}
	return &sessionConfigModel{
		SessionID:      rec.SessionID,
		OrganizationID: rec.OrganizationID,
		Revision:       rec.Revision.String(),
		AccessMode:     string(rec.Config.Mode()),
		Config:         doc,
		UpdatedBy:      rec.UpdatedBy,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}

func fromSessionConfigModel(m *sessionConfigModel) (*access.Record, error) {
	cfg, err := access.Unmarshal(m.Config)
	if err != nil {
		return nil, err
	}

	var rev id.ConfigRevisionID
	if m.Revision != "" {
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
		Config:         cfg,
		UpdatedBy:      m.UpdatedBy,
	}, nil
}

// ==================== Usage event models ====================

type usageEventModel struct {
	grove.BaseModel `grove:"table:warden_usage_events"`

	ID              string          `grove:"id,pk"`
	OrganizationID  string          `grove:"organization_id"`
	UserID          string          `grove:"user_id"`
	SessionID       string          `grove:"session_id"`
	EventType       string          `grove:"event_type"`
	CreditsConsumed int64           `grove:"credits_consumed"`
	EventData       json.RawMessage `grove:"event_data,type:jsonb"`
	CreatedAt       time.Time       `grove:"created_at"`
}

func toUsageEventModel(e *meter.UsageEvent) *usageEventModel {
	data := e.EventData
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	return &usageEventModel{
		ID:              e.ID.String(),
		OrganizationID:  e.OrganizationID,
		UserID:          e.UserID,
		SessionID:       e.SessionID,
		EventType:       e.EventType,
		CreditsConsumed: e.CreditsConsumed,
		EventData:       data,
		CreatedAt:       e.CreatedAt,
	}
}

func fromUsageEventModel(m *usageEventModel) (*meter.UsageEvent, error) {
	evtID, err := id.ParseUsageEventID(m.ID)
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
		EventData:       m.EventData,
		CreatedAt:       m.CreatedAt,
	}, nil
}

// ==================== Usage counter models ====================

type usageCounterModel struct {
	grove.BaseModel `grove:"table:warden_usage_counters"`

	OrganizationID string     `grove:"organization_id,pk"`
	PeriodStart    time.Time  `grove:"period_start,pk"`
	Credits        int64      `grove:"credits"`
	ReconciledAt   *time.Time `grove:"reconciled_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
	Version        int64      `grove:"version"`
}

func toUsageCounterModel(c *meter.Counter) *usageCounterModel {
	m := &usageCounterModel{
		OrganizationID: c.OrganizationID,
		PeriodStart:    c.PeriodStart.UTC(),
		Credits:        c.Credits,
		UpdatedAt:      c.UpdatedAt,
		Version:        c.Version,
	}
	if !c.ReconciledAt.IsZero() {
		at := c.ReconciledAt.UTC()
		m.ReconciledAt = &at
	}
	return m
}

func fromUsageCounterModel(m *usageCounterModel) *meter.Counter {
	c := &meter.Counter{
		OrganizationID: m.OrganizationID,
		PeriodStart:    m.PeriodStart.UTC(),
		Credits:        m.Credits,
		UpdatedAt:      m.UpdatedAt,
		Version:        m.Version,
	}
	if m.ReconciledAt != nil {
		c.ReconciledAt = *m.ReconciledAt
	}
	return c
}
