package warden_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	"github.com/xraph/warden/directory"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/plugin"
	"github.com/xraph/warden/store"
	"github.com/xraph/warden/store/memory"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// fixture is an engine over a memory store and an in-memory directory
// with one organization:
//
//	org_1: owner "olivia", admin "adam", member "mia", viewer "vic",
//	       billing "bill"; session "sess_1" created by "mia".
type fixture struct {
	w     *warden.Warden
	dir   *directory.Directory
	store store.Store
	clock *clock
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T, s store.Store, opts ...warden.Option) *fixture {
	t.Helper()
	if s == nil {
		s = memory.New()
	}

	dir := directory.New()
	dir.AddMember("org_1", "olivia", access.RoleOwner)
	dir.AddMember("org_1", "adam", access.RoleAdmin)
	dir.AddMember("org_1", "mia", access.RoleMember)
	dir.AddMember("org_1", "vic", access.RoleViewer)
	dir.AddMember("org_1", "bill", access.RoleBilling)
	dir.AddSession("sess_1", "org_1", "mia")

	c := &clock{now: testNow}
	base := []warden.Option{
		warden.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		warden.WithClock(c.Now),
	}

	w, err := warden.New(s, dir.Collaborators(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{w: w, dir: dir, store: s, clock: c}
}

// countingStore counts ledger reads.
type countingStore struct {
	store.Store
	queries atomic.Int64
}

func (s *countingStore) QueryEvents(ctx context.Context, orgID string, opts meter.QueryOpts) ([]*meter.UsageEvent, int64, error) {
	s.queries.Add(1)
	return s.Store.QueryEvents(ctx, orgID, opts)
}

func (s *countingStore) Summarize(ctx context.Context, orgID string, opts meter.QueryOpts) (*meter.Summary, error) {
	s.queries.Add(1)
	return s.Store.Summarize(ctx, orgID, opts)
}

// faultyStore fails selected writes.
type faultyStore struct {
	store.Store
	failInsert  bool
	failReplace bool
	failSum     bool
}

var errInjected = errors.New("injected failure")

func (s *faultyStore) InsertEvent(ctx context.Context, e *meter.UsageEvent) error {
	if s.failInsert {
		return errInjected
	}
	return s.Store.InsertEvent(ctx, e)
}

func (s *faultyStore) ReplaceConfig(ctx context.Context, rec *access.Record) error {
	if s.failReplace {
		return errInjected
	}
	return s.Store.ReplaceConfig(ctx, rec)
}

func (s *faultyStore) SumCredits(ctx context.Context, orgID string, start, end time.Time) (int64, error) {
	if s.failSum {
		return 0, errInjected
	}
	return s.Store.SumCredits(ctx, orgID, start, end)
}

// interleavingStore runs after once, right after the next ledger sum
// returns, so work lands between a sum and the counter write that follows.
type interleavingStore struct {
	store.Store
	mu    sync.Mutex
	after func()
}

func (s *interleavingStore) SumCredits(ctx context.Context, orgID string, start, end time.Time) (int64, error) {
	total, err := s.Store.SumCredits(ctx, orgID, start, end)
	s.mu.Lock()
	after := s.after
	s.after = nil
	s.mu.Unlock()
	if after != nil {
		after()
	}
	return total, err
}

// conflictingStore loses every counter write race.
type conflictingStore struct {
	store.Store
}

func (conflictingStore) CompareAndSetCounter(context.Context, *meter.Counter, int64) (bool, error) {
	return false, nil
}

// setCounter overwrites the stored counter at its current version.
func setCounter(t *testing.T, s store.Store, c *meter.Counter) {
	t.Helper()
	ctx := context.Background()
	var version int64
	cur, err := s.GetCounter(ctx, c.OrganizationID, c.PeriodStart)
	switch {
	case err == nil:
		version = cur.Version
	case !errors.Is(err, warden.ErrCounterNotFound):
		t.Fatalf("GetCounter: %v", err)
	}
	ok, err := s.CompareAndSetCounter(ctx, c, version)
	if err != nil || !ok {
		t.Fatalf("CompareAndSetCounter = %v, %v", ok, err)
	}
}

// recorder is a plugin capturing the hooks the tests assert on.
type recorder struct {
	mu         sync.Mutex
	denials    []plugin.Denial
	updated    []*access.Record
	rejected   []error
	nearLimit  int
	exceeded   int
	recorded   int
	gaps       []error
	reconciled map[string][2]int64
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnAccessDenied(_ context.Context, d plugin.Denial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denials = append(r.denials, d)
	return nil
}

func (r *recorder) OnConfigUpdated(_ context.Context, _, next *access.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, next)
	return nil
}

func (r *recorder) OnConfigRejected(_ context.Context, _, _ string, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
	return nil
}

func (r *recorder) OnNearLimit(_ context.Context, _ *meter.QuotaStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nearLimit++
	return nil
}

func (r *recorder) OnQuotaExceeded(_ context.Context, _ *meter.QuotaStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceeded++
	return nil
}

func (r *recorder) OnUsageRecorded(_ context.Context, _ *meter.UsageEvent, _ *meter.UsageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded++
	return nil
}

func (r *recorder) OnAuditGap(_ context.Context, _ *meter.UsageEvent, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gaps = append(r.gaps, cause)
	return nil
}

func (r *recorder) OnCounterReconciled(_ context.Context, orgID string, cached, actual int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reconciled == nil {
		r.reconciled = make(map[string][2]int64)
	}
	r.reconciled[orgID] = [2]int64{cached, actual}
	return nil
}

// seed records n events of eventType for org_1 by "mia".
func seed(t *testing.T, w *warden.Warden, n int, eventType string) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := w.RecordEvent(context.Background(), meter.Record{
			OrganizationID: "org_1",
			UserID:         "mia",
			SessionID:      "sess_1",
			EventType:      eventType,
		}); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
}
