package meter

import (
	"context"
	"time"
)

// Store is the append-only usage ledger.
type Store interface {
	InsertEvent(ctx context.Context, e *UsageEvent) error
	SumCredits(ctx context.Context, orgID string, start, end time.Time) (int64, error)

	// QueryEvents returns one page of matching events, newest first, and the
	// total number of matching events.
	QueryEvents(ctx context.Context, orgID string, opts QueryOpts) ([]*UsageEvent, int64, error)

	// Summarize aggregates every matching event, ignoring Limit and Offset.
	Summarize(ctx context.Context, orgID string, opts QueryOpts) (*Summary, error)
}

// CounterStore keeps cached per-period aggregates.
type CounterStore interface {
	// IncrementCounter atomically adds delta to the counter, creating it
	// when missing, bumps its version, stamps UpdatedAt with at and returns
	// the new value.
	IncrementCounter(ctx context.Context, orgID string, periodStart time.Time, delta int64, at time.Time) (int64, error)
	GetCounter(ctx context.Context, orgID string, periodStart time.Time) (*Counter, error)

	// CompareAndSetCounter writes c only when the stored counter still has
	// the given version; version 0 means no counter exists yet. The written
	// counter gets version+1. It reports false, with no error, when the
	// version no longer matches.
	CompareAndSetCounter(ctx context.Context, c *Counter, version int64) (bool, error)
	ListCounters(ctx context.Context, periodStart time.Time) ([]*Counter, error)
}

// QueryOpts filters the ledger. Zero fields do not filter. Start is
// inclusive, End exclusive and Until inclusive.
type QueryOpts struct {
	EventTypes []string
	UserID     string
	SessionID  string
	Start      time.Time
	End        time.Time
	Until      time.Time
	MinCredits *int64
	MaxCredits *int64
	Limit      int
	Offset     int
}

// Matches reports whether e satisfies the filters of o.
func (o QueryOpts) Matches(e *UsageEvent) bool {
	if len(o.EventTypes) > 0 {
		found := false
		for _, et := range o.EventTypes {
			if et == e.EventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	switch {
	case o.UserID != "" && e.UserID != o.UserID:
		return false
	case o.SessionID != "" && e.SessionID != o.SessionID:
		return false
	case !o.Start.IsZero() && e.CreatedAt.Before(o.Start):
		return false
	case !o.End.IsZero() && !e.CreatedAt.Before(o.End):
		return false
	case !o.Until.IsZero() && e.CreatedAt.After(o.Until):
		return false
	case o.MinCredits != nil && e.CreditsConsumed < *o.MinCredits:
		return false
	case o.MaxCredits != nil && e.CreditsConsumed > *o.MaxCredits:
		return false
	}
	return true
}
