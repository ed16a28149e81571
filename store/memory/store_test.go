package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/store/memory"
)

func TestCompareAndSetCounter(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := start.Add(time.Hour)

	tests := []struct {
		name        string
		increments  int
		version     int64
		wantOK      bool
		wantCredits int64
		wantVersion int64
	}{
		{name: "seed missing counter", version: 0, wantOK: true, wantCredits: 50, wantVersion: 1},
		{name: "seed lost to increment", increments: 1, version: 0, wantOK: false, wantCredits: 1, wantVersion: 1},
		{name: "current version", increments: 2, version: 2, wantOK: true, wantCredits: 50, wantVersion: 3},
		{name: "stale version", increments: 3, version: 2, wantOK: false, wantCredits: 3, wantVersion: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			for range tt.increments {
				if _, err := s.IncrementCounter(ctx, "org_1", start, 1, at); err != nil {
					t.Fatal(err)
				}
			}

			ok, err := s.CompareAndSetCounter(ctx, &meter.Counter{
				OrganizationID: "org_1",
				PeriodStart:    start,
				Credits:        50,
				ReconciledAt:   at,
				UpdatedAt:      at,
			}, tt.version)
			if err != nil {
				t.Fatalf("CompareAndSetCounter: %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}

			c, err := s.GetCounter(ctx, "org_1", start)
			if err != nil {
				t.Fatal(err)
			}
			if c.Credits != tt.wantCredits || c.Version != tt.wantVersion {
				t.Errorf("counter = %d credits at version %d, want %d at %d",
					c.Credits, c.Version, tt.wantCredits, tt.wantVersion)
			}
		})
	}
}

func TestIncrementCounterTimestamp(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2026, 3, 9, 8, 0, 0, 0, time.FixedZone("x", 3600))

	s := memory.New()
	total, err := s.IncrementCounter(ctx, "org_1", start, 4, at)
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.GetCounter(ctx, "org_1", start)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || !c.UpdatedAt.Equal(at) || c.UpdatedAt.Location() != time.UTC {
		t.Errorf("counter = %+v after increment at %v", c, at)
	}
	if !c.ReconciledAt.IsZero() {
		t.Errorf("increment set ReconciledAt = %v", c.ReconciledAt)
	}
}
