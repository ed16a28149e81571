// Package memory is an in-process Store for tests and single-node setups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
	wardenstore "github.com/xraph/warden/store"
)

var _ wardenstore.Store = (*Store)(nil)

type counterKey struct {
	orgID       string
	periodStart int64
}

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Access configs by session ID
	configs map[string]access.Record

	// Append-only usage ledger
	usageEvents []meter.UsageEvent

	// Cached aggregates
	counters map[counterKey]meter.Counter
}

func New() *Store {
	return &Store{
		configs:     make(map[string]access.Record),
		usageEvents: make([]meter.UsageEvent, 0),
		counters:    make(map[counterKey]meter.Counter),
	}
}

func copyRecord(rec access.Record) *access.Record {
	rec.Config = access.Clone(rec.Config)
	return &rec
}

// ──────────────────────────────────────────────────
// Access config store
// ──────────────────────────────────────────────────

func (s *Store) GetConfig(_ context.Context, sessionID string) (*access.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, warden.ErrStoreClosed
	}
	rec, ok := s.configs[sessionID]
	if !ok {
		return nil, warden.ErrConfigNotFound
	}
	return copyRecord(rec), nil
}

func (s *Store) CreateConfig(_ context.Context, rec *access.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return warden.ErrStoreClosed
	}
	if _, exists := s.configs[rec.SessionID]; exists {
		return warden.ErrAlreadyExists
	}
	s.configs[rec.SessionID] = *copyRecord(*rec)
	return nil
}

func (s *Store) ReplaceConfig(_ context.Context, rec *access.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return warden.ErrStoreClosed
	}
	next := *copyRecord(*rec)
	if prev, ok := s.configs[rec.SessionID]; ok {
		next.CreatedAt = prev.CreatedAt
	}
	s.configs[rec.SessionID] = next
	return nil
}

// ──────────────────────────────────────────────────
// Usage ledger
// ──────────────────────────────────────────────────

func (s *Store) InsertEvent(_ context.Context, e *meter.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return warden.ErrStoreClosed
	}
	for i := range s.usageEvents {
		if s.usageEvents[i].ID == e.ID {
			return warden.ErrAlreadyExists
		}
	}
	row := *e
	row.EventData = append([]byte(nil), e.EventData...)
	s.usageEvents = append(s.usageEvents, row)
	return nil
}

func (s *Store) SumCredits(_ context.Context, orgID string, start, end time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, warden.ErrStoreClosed
	}
	var total int64
	for _, e := range s.usageEvents {
		if e.OrganizationID == orgID && !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			total += e.CreditsConsumed
		}
	}
	return total, nil
}

// matching returns the organization's events that satisfy opts, newest first.
func (s *Store) matching(orgID string, opts meter.QueryOpts) []meter.UsageEvent {
	result := make([]meter.UsageEvent, 0)
	for _, e := range s.usageEvents {
		if e.OrganizationID == orgID && opts.Matches(&e) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *Store) QueryEvents(_ context.Context, orgID string, opts meter.QueryOpts) ([]*meter.UsageEvent, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, warden.ErrStoreClosed
	}
	all := s.matching(orgID, opts)
	total := int64(len(all))

	// Apply limit/offset
	start := min(opts.Offset, len(all))
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(all) {
		end = len(all)
	}

	page := make([]*meter.UsageEvent, 0, end-start)
	for i := start; i < end; i++ {
		e := all[i]
		page = append(page, &e)
	}
	return page, total, nil
}

func (s *Store) Summarize(_ context.Context, orgID string, opts meter.QueryOpts) (*meter.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, warden.ErrStoreClosed
	}
	sum := &meter.Summary{}
	users := make(map[string]struct{})
	for _, e := range s.matching(orgID, opts) {
		sum.TotalCredits += e.CreditsConsumed
		sum.TotalEvents++
		users[e.UserID] = struct{}{}
	}
	sum.UniqueUsers = int64(len(users))
	return sum, nil
}

// ──────────────────────────────────────────────────
// Counter cache
// ──────────────────────────────────────────────────

func keyFor(orgID string, periodStart time.Time) counterKey {
	return counterKey{orgID: orgID, periodStart: periodStart.UTC().UnixNano()}
}

func (s *Store) IncrementCounter(_ context.Context, orgID string, periodStart time.Time, delta int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, warden.ErrStoreClosed
	}
	k := keyFor(orgID, periodStart)
	c, ok := s.counters[k]
	if !ok {
		c = meter.Counter{OrganizationID: orgID, PeriodStart: periodStart.UTC()}
	}
	c.Credits += delta
	c.Version++
	c.UpdatedAt = at.UTC()
	s.counters[k] = c
	return c.Credits, nil
}

func (s *Store) GetCounter(_ context.Context, orgID string, periodStart time.Time) (*meter.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, warden.ErrStoreClosed
	}
	c, ok := s.counters[keyFor(orgID, periodStart)]
	if !ok {
		return nil, warden.ErrCounterNotFound
	}
	return &c, nil
}

func (s *Store) CompareAndSetCounter(_ context.Context, c *meter.Counter, version int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, warden.ErrStoreClosed
	}
	k := keyFor(c.OrganizationID, c.PeriodStart)
	if s.counters[k].Version != version {
		return false, nil
	}
	row := *c
	row.PeriodStart = row.PeriodStart.UTC()
	row.Version = version + 1
	s.counters[k] = row
	return true, nil
}

func (s *Store) ListCounters(_ context.Context, periodStart time.Time) ([]*meter.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, warden.ErrStoreClosed
	}
	want := periodStart.UTC().UnixNano()
	result := make([]*meter.Counter, 0)
	for k, c := range s.counters {
		if k.periodStart == want {
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OrganizationID < result[j].OrganizationID })
	return result, nil
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return warden.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
