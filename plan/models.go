// Package plan maps organizations to credit allowances and billing periods.
package plan

import (
	"context"
	"time"
)

// Unlimited is the allowance of a plan without a credit cap.
const Unlimited int64 = -1

type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Plan is a named credit allowance.
type Plan struct {
	Slug           string `json:"slug" yaml:"slug"`
	DisplayName    string `json:"display_name" yaml:"display_name"`
	MonthlyCredits int64  `json:"monthly_credits" yaml:"monthly_credits"`
}

// IsUnlimited reports whether the plan has no credit cap.
func (p Plan) IsUnlimited() bool { return p.MonthlyCredits == Unlimited }

// Provider returns the credit allowance of an organization for one billing
// period. Unlimited means no cap.
type Provider interface {
	Allowance(ctx context.Context, orgID string) (int64, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, orgID string) (int64, error)

// Allowance implements Provider.
func (f ProviderFunc) Allowance(ctx context.Context, orgID string) (int64, error) {
	return f(ctx, orgID)
}

// Defaults returns the standard plan catalog.
func Defaults() []Plan {
	return []Plan{
		{Slug: "free", DisplayName: "Free", MonthlyCredits: 100},
		{Slug: "starter", DisplayName: "Starter", MonthlyCredits: 1000},
		{Slug: "professional", DisplayName: "Professional", MonthlyCredits: 5000},
		{Slug: "enterprise", DisplayName: "Enterprise", MonthlyCredits: 15000},
	}
}

// Find returns the plan with the given slug.
func Find(plans []Plan, slug string) (Plan, bool) {
	for _, p := range plans {
		if p.Slug == slug {
			return p, true
		}
	}
	return Plan{}, false
}

// Window returns the [start, end) bounds of the billing period containing t,
// in UTC. Unknown periods fall back to monthly.
func (p Period) Window(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	switch p {
	case PeriodYearly:
		start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	default:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
}

// Start returns the first instant of the billing period containing t.
func (p Period) Start(t time.Time) time.Time {
	start, _ := p.Window(t)
	return start
}
