package plan_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/warden/plan"
)

func TestPeriodWindow(t *testing.T) {
	at := time.Date(2026, time.February, 17, 13, 45, 0, 0, time.FixedZone("x", 3*3600))

	tests := []struct {
		period    plan.Period
		wantStart time.Time
		wantEnd   time.Time
	}{
		{plan.PeriodMonthly, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{plan.PeriodYearly, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{plan.Period("fortnightly"), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			start, end := tt.period.Window(at)
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("Window = [%v, %v), want [%v, %v)", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	p, ok := plan.Find(plan.Defaults(), "starter")
	if !ok {
		t.Fatal("starter plan missing")
	}
	if p.MonthlyCredits != 1000 {
		t.Errorf("starter credits = %d, want 1000", p.MonthlyCredits)
	}
	if _, ok := plan.Find(plan.Defaults(), "platinum"); ok {
		t.Error("unexpected platinum plan")
	}
	if !(plan.Plan{MonthlyCredits: plan.Unlimited}).IsUnlimited() {
		t.Error("Unlimited plan not reported as unlimited")
	}
}

func TestProviderFunc(t *testing.T) {
	var p plan.Provider = plan.ProviderFunc(func(_ context.Context, orgID string) (int64, error) {
		if orgID == "org_a" {
			return 250, nil
		}
		return 0, nil
	})
	got, err := p.Allowance(context.Background(), "org_a")
	if err != nil || got != 250 {
		t.Errorf("Allowance = %d, %v", got, err)
	}
}
