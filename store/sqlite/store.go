package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
	wardenstore "github.com/xraph/warden/store"
)

// compile-time interface check
var _ wardenstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("warden/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: warden/sqlite: %w", warden.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Access Store ====================

func (s *Store) GetConfig(ctx context.Context, sessionID string) (*access.Record, error) {
	m := new(sessionConfigModel)
	err := s.sdb.NewSelect(m).
		Where("session_id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, warden.ErrConfigNotFound
		}
		return nil, fmt.Errorf("warden/sqlite: get config %s: %w", sessionID, err)
	}
	return fromSessionConfigModel(m)
}

func (s *Store) CreateConfig(ctx context.Context, rec *access.Record) error {
	m, err := toSessionConfigModel(rec)
	if err != nil {
		return err
	}
	res, err := s.sdb.NewInsert(m).
		OnConflict("(session_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warden/sqlite: create config %s: %w", rec.SessionID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return warden.ErrAlreadyExists
	}
	return nil
}

// ReplaceConfig upserts the whole record in one statement. created_at of an
// existing row is kept.
func (s *Store) ReplaceConfig(ctx context.Context, rec *access.Record) error {
	m, err := toSessionConfigModel(rec)
	if err != nil {
		return err
	}
	_, err = s.sdb.NewInsert(m).
		OnConflict("(session_id) DO UPDATE").
		Set("organization_id = EXCLUDED.organization_id").
		Set("revision = EXCLUDED.revision").
		Set("access_mode = EXCLUDED.access_mode").
		Set("config = EXCLUDED.config").
		Set("updated_by = EXCLUDED.updated_by").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warden/sqlite: replace config %s: %w", rec.SessionID, err)
	}
	return nil
}

// ==================== Meter Store ====================

func (s *Store) InsertEvent(ctx context.Context, e *meter.UsageEvent) error {
	if _, err := s.sdb.NewInsert(toUsageEventModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("warden/sqlite: insert usage event: %w", err)
	}
	return nil
}

func (s *Store) SumCredits(ctx context.Context, orgID string, start, end time.Time) (int64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(credits_consumed), 0) FROM warden_usage_events
		WHERE organization_id = ? AND created_at >= ? AND created_at < ?
	`, orgID, start.UTC(), end.UTC()).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("warden/sqlite: sum credits: %w", err)
	}
	return total, nil
}

func (s *Store) QueryEvents(ctx context.Context, orgID string, opts meter.QueryOpts) ([]*meter.UsageEvent, int64, error) {
	where, args := eventWhere(orgID, opts)

	var total int64
	if err := s.sdb.NewRaw("SELECT COUNT(*) FROM warden_usage_events WHERE "+where, args...).Scan(ctx, &total); err != nil {
		return nil, 0, fmt.Errorf("warden/sqlite: count usage events: %w", err)
	}
	if total == 0 {
		return []*meter.UsageEvent{}, 0, nil
	}

	var models []usageEventModel
	q := s.sdb.NewSelect(&models).Where(where, args...)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, 0, fmt.Errorf("warden/sqlite: query usage events: %w", err)
	}

	result := make([]*meter.UsageEvent, len(models))
	for i := range models {
		evt, err := fromUsageEventModel(&models[i])
		if err != nil {
			return nil, 0, err
		}
		result[i] = evt
	}
	return result, total, nil
}

func (s *Store) Summarize(ctx context.Context, orgID string, opts meter.QueryOpts) (*meter.Summary, error) {
	where, args := eventWhere(orgID, opts)
	sum := &meter.Summary{}

	queries := []struct {
		expr string
		dest *int64
	}{
		{"COALESCE(SUM(credits_consumed), 0)", &sum.TotalCredits},
		{"COUNT(*)", &sum.TotalEvents},
		{"COUNT(DISTINCT user_id)", &sum.UniqueUsers},
	}
	for _, q := range queries {
		if err := s.sdb.NewRaw("SELECT "+q.expr+" FROM warden_usage_events WHERE "+where, args...).Scan(ctx, q.dest); err != nil {
			return nil, fmt.Errorf("warden/sqlite: summarize usage: %w", err)
		}
	}
	return sum, nil
}

// ==================== Counter Store ====================

func (s *Store) IncrementCounter(ctx context.Context, orgID string, periodStart time.Time, delta int64, at time.Time) (int64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		INSERT INTO warden_usage_counters (organization_id, period_start, credits, updated_at, version)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (organization_id, period_start)
		DO UPDATE SET credits = warden_usage_counters.credits + EXCLUDED.credits,
			updated_at = EXCLUDED.updated_at,
			version = warden_usage_counters.version + 1
		RETURNING credits
	`, orgID, periodStart.UTC(), delta, at.UTC()).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("warden/sqlite: increment counter: %w", err)
	}
	return total, nil
}

func (s *Store) GetCounter(ctx context.Context, orgID string, periodStart time.Time) (*meter.Counter, error) {
	m := new(usageCounterModel)
	err := s.sdb.NewSelect(m).
		Where("organization_id = ?", orgID).
		Where("period_start = ?", periodStart.UTC()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, warden.ErrCounterNotFound
		}
		return nil, fmt.Errorf("warden/sqlite: get counter: %w", err)
	}
	return fromUsageCounterModel(m), nil
}

// CompareAndSetCounter writes c only when the stored version equals version.
// Version 0 matches a missing row.
func (s *Store) CompareAndSetCounter(ctx context.Context, c *meter.Counter, version int64) (bool, error) {
	m := toUsageCounterModel(c)
	if version == 0 {
		m.Version = 1
		res, err := s.sdb.NewInsert(m).
			OnConflict("(organization_id, period_start) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("warden/sqlite: seed counter: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("warden/sqlite: seed counter: %w", err)
		}
		return n == 1, nil
	}

	res, err := s.sdb.NewUpdate((*usageCounterModel)(nil)).
		Set("credits = ?", m.Credits).
		Set("reconciled_at = ?", m.ReconciledAt).
		Set("updated_at = ?", m.UpdatedAt).
		Set("version = ?", version+1).
		Where("organization_id = ?", m.OrganizationID).
		Where("period_start = ?", m.PeriodStart).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("warden/sqlite: set counter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("warden/sqlite: set counter: %w", err)
	}
	return n == 1, nil
}

func (s *Store) ListCounters(ctx context.Context, periodStart time.Time) ([]*meter.Counter, error) {
	var models []usageCounterModel
	err := s.sdb.NewSelect(&models).
		Where("period_start = ?", periodStart.UTC()).
		OrderExpr("organization_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warden/sqlite: list counters: %w", err)
	}

	result := make([]*meter.Counter, len(models))
	for i := range models {
		result[i] = fromUsageCounterModel(&models[i])
	}
	return result, nil
}

// ==================== Helpers ====================

// eventWhere renders the ledger filter as a WHERE clause.
func eventWhere(orgID string, opts meter.QueryOpts) (string, []any) {
	args := []any{orgID}
	clauses := []string{"organization_id = ?"}
	arg := func(v any) string {
		args = append(args, v)
		return "?"
	}

	if len(opts.EventTypes) > 0 {
		ph := make([]string, len(opts.EventTypes))
		for i, et := range opts.EventTypes {
			ph[i] = arg(et)
		}
		clauses = append(clauses, "event_type IN ("+strings.Join(ph, ", ")+")")
	}
	if opts.UserID != "" {
		clauses = append(clauses, "user_id = "+arg(opts.UserID))
	}
	if opts.SessionID != "" {
		clauses = append(clauses, "session_id = "+arg(opts.SessionID))
	}
	if !opts.Start.IsZero() {
		clauses = append(clauses, "created_at >= "+arg(opts.Start.UTC()))
	}
	if !opts.End.IsZero() {
		clauses = append(clauses, "created_at < "+arg(opts.End.UTC()))
	}
	if !opts.Until.IsZero() {
		clauses = append(clauses, "created_at <= "+arg(opts.Until.UTC()))
	}
	if opts.MinCredits != nil {
		clauses = append(clauses, "credits_consumed >= "+arg(*opts.MinCredits))
	}
	if opts.MaxCredits != nil {
		clauses = append(clauses, "credits_consumed <= "+arg(*opts.MaxCredits))
	}

	return strings.Join(clauses, " AND "), args
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
