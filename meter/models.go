// Package meter defines the append-only usage ledger and quota types.
package meter

import (
	"encoding/json"
	"time"

	"github.com/xraph/warden/id"
)

// UsageEvent is one completed, metered action. Rows are immutable.
type UsageEvent struct {
	ID              id.UsageEventID `json:"id"`
	OrganizationID  string          `json:"organization_id"`
	UserID          string          `json:"user_id"`
	SessionID       string          `json:"session_id,omitempty"`
	EventType       string          `json:"event_type"`
	CreditsConsumed int64           `json:"credits_consumed"`
	EventData       json.RawMessage `json:"event_data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EventData is the structured part of UsageEvent.EventData written by the
// meter. Callers may add keys under Metadata.
type EventData struct {
	Complexity          float64           `json:"complexity"`
	RequestedComplexity float64           `json:"requested_complexity,omitempty"`
	BaseCredits         int64             `json:"base_credits"`
	FeatureCredits      map[string]int64  `json:"feature_credits,omitempty"`
	Endpoint            string            `json:"endpoint,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Data decodes EventData. Missing or malformed data yields the zero value.
func (e *UsageEvent) Data() EventData {
	var d EventData
	if len(e.EventData) > 0 {
		_ = json.Unmarshal(e.EventData, &d) //nolint:errcheck // free-form column, best-effort decode
	}
	return d
}

// Record is the input to recording a completed action.
type Record struct {
	OrganizationID string
	UserID         string
	SessionID      string
	EventType      string

	// Complexity is caller metadata describing the size of the completed
	// work. It is clamped before it multiplies the base cost.
	Complexity float64

	// Features names optional add-ons that were used; only add-ons the
	// event's definition prices are charged.
	Features []string

	Metadata map[string]string
}

// QuotaStatus is an organization's consumption within a billing period.
type QuotaStatus struct {
	OrganizationID    string    `json:"organization_id"`
	Consumed          int64     `json:"consumed"`
	Allowance         int64     `json:"allowance"`
	Remaining         int64     `json:"remaining"`
	PercentageUsed    float64   `json:"percentage_used"`
	IsNearLimit       bool      `json:"is_near_limit"`
	IsOverLimit       bool      `json:"is_over_limit"`
	Unlimited         bool      `json:"unlimited"`
	RecommendedAction string    `json:"recommended_action,omitempty"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
}

// UsageResult is returned after a usage event is recorded. Warning is the
// quota status after the event.
type UsageResult struct {
	UsageEventID     id.UsageEventID `json:"usage_event_id"`
	CreditsConsumed  int64           `json:"credits_consumed"`
	RunningTotal     int64           `json:"running_total"`
	RemainingCredits int64           `json:"remaining_credits"`
	Warning          QuotaStatus     `json:"warning"`
}

// Counter is a cached aggregate of an organization's credits for one
// period. The ledger sum stays authoritative.
//
// Version grows by one on every write. A counter created by an increment
// has version 1 and a zero ReconciledAt.
type Counter struct {
	OrganizationID string    `json:"organization_id"`
	PeriodStart    time.Time `json:"period_start"`
	Credits        int64     `json:"credits"`
	Version        int64     `json:"version"`
	ReconciledAt   time.Time `json:"reconciled_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Summary aggregates a set of usage events.
type Summary struct {
	TotalCredits int64 `json:"total_credits"`
	TotalEvents  int64 `json:"total_events"`
	UniqueUsers  int64 `json:"unique_users"`
}
