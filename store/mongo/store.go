package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
	wardenstore "github.com/xraph/warden/store"
)

// Collection name constants.
const (
	colSessionConfigs = "warden_session_configs"
	colUsageEvents    = "warden_usage_events"
	colUsageCounters  = "warden_usage_counters"
)

// compile-time interface check
var _ wardenstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all warden collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: warden/mongo: %s indexes: %w", warden.ErrMigrationFailed, col, err)
		}
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
	var m sessionConfigModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": sessionID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, warden.ErrConfigNotFound
		}
		return nil, fmt.Errorf("warden/mongo: get config: %w", err)
	}
	return fromSessionConfigModel(&m)
}

func (s *Store) CreateConfig(ctx context.Context, rec *access.Record) error {
	_, err := s.mdb.NewInsert(toSessionConfigModel(rec)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return warden.ErrAlreadyExists
		}
		return fmt.Errorf("warden/mongo: create config: %w", err)
	}
	return nil
}

// ReplaceConfig upserts the whole document in one write. created_at of an
// existing document is kept.
func (s *Store) ReplaceConfig(ctx context.Context, rec *access.Record) error {
	m := toSessionConfigModel(rec)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.SessionID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"organization_id":  m.OrganizationID,
				"revision":         m.Revision,
				"version":          m.Version,
				"access_mode":      m.AccessMode,
				"role_permissions": m.RolePermissions,
				"user_permissions": m.UserPermissions,
				"updated_by":       m.UpdatedBy,
				"updated_at":       m.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": m.CreatedAt},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warden/mongo: replace config: %w", err)
	}
	return nil
}

// ==================== Meter Store ====================

func (s *Store) InsertEvent(ctx context.Context, e *meter.UsageEvent) error {
	_, err := s.mdb.NewInsert(toUsageEventModel(e)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return warden.ErrAlreadyExists
		}
		return fmt.Errorf("warden/mongo: insert usage event: %w", err)
	}
	return nil
}

func (s *Store) SumCredits(ctx context.Context, orgID string, start, end time.Time) (int64, error) {
	sum, err := s.summarize(ctx, eventFilter(orgID, meter.QueryOpts{Start: start, End: end}))
	if err != nil {
		return 0, err
	}
	return sum.TotalCredits, nil
}

func (s *Store) QueryEvents(ctx context.Context, orgID string, opts meter.QueryOpts) ([]*meter.UsageEvent, int64, error) {
	filter := eventFilter(orgID, opts)

	total, err := s.mdb.Collection(colUsageEvents).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("warden/mongo: count usage events: %w", err)
	}
	if total == 0 {
		return []*meter.UsageEvent{}, 0, nil
	}

	var models []usageEventModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, 0, fmt.Errorf("warden/mongo: query usage events: %w", err)
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
	return s.summarize(ctx, eventFilter(orgID, opts))
}

func (s *Store) summarize(ctx context.Context, filter bson.M) (*meter.Summary, error) {
	pipeline := bson.A{
		bson.M{"$match": filter},
		bson.M{
			"$group": bson.M{
				"_id":    nil,
				"total":  bson.M{"$sum": "$credits_consumed"},
				"events": bson.M{"$sum": 1},
				"users":  bson.M{"$addToSet": "$user_id"},
			},
		},
		bson.M{
			"$project": bson.M{
				"total":  1,
				"events": 1,
				"users":  bson.M{"$size": "$users"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colUsageEvents).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("warden/mongo: aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total  int64 `bson:"total"`
		Events int64 `bson:"events"`
		Users  int64 `bson:"users"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("warden/mongo: aggregate decode: %w", err)
	}

	if len(results) == 0 {
		return &meter.Summary{}, nil
	}
	return &meter.Summary{
		TotalCredits: results[0].Total,
		TotalEvents:  results[0].Events,
		UniqueUsers:  results[0].Users,
	}, nil
}

// ==================== Counter Store ====================

func (s *Store) IncrementCounter(ctx context.Context, orgID string, periodStart time.Time, delta int64, at time.Time) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var m usageCounterModel
	err := s.mdb.Collection(colUsageCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": counterKey(orgID, periodStart)},
		bson.M{
			"$inc": bson.M{"credits": delta, "version": int64(1)},
			"$set": bson.M{"updated_at": at.UTC()},
			"$setOnInsert": bson.M{
				"organization_id": orgID,
				"period_start":    periodStart.UTC(),
			},
		},
		opts,
	).Decode(&m)
	if err != nil {
		return 0, fmt.Errorf("warden/mongo: increment counter: %w", err)
	}
	return m.Credits, nil
}

func (s *Store) GetCounter(ctx context.Context, orgID string, periodStart time.Time) (*meter.Counter, error) {
	var m usageCounterModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": counterKey(orgID, periodStart)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, warden.ErrCounterNotFound
		}
		return nil, fmt.Errorf("warden/mongo: get counter: %w", err)
	}
	return fromUsageCounterModel(&m), nil
}

// CompareAndSetCounter writes c only when the stored version equals version.
// Version 0 matches a missing document.
func (s *Store) CompareAndSetCounter(ctx context.Context, c *meter.Counter, version int64) (bool, error) {
	key := counterKey(c.OrganizationID, c.PeriodStart)
	if version == 0 {
		_, err := s.mdb.NewInsert(&usageCounterModel{
			ID:             key,
			OrganizationID: c.OrganizationID,
			PeriodStart:    c.PeriodStart.UTC(),
			Credits:        c.Credits,
			ReconciledAt:   c.ReconciledAt,
			UpdatedAt:      c.UpdatedAt,
			Version:        1,
		}).Exec(ctx)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return false, nil
			}
			return false, fmt.Errorf("warden/mongo: seed counter: %w", err)
		}
		return true, nil
	}

	res, err := s.mdb.NewUpdate((*usageCounterModel)(nil)).
		Filter(bson.M{"_id": key, "version": version}).
		SetUpdate(bson.M{"$set": bson.M{
			"credits":       c.Credits,
			"reconciled_at": c.ReconciledAt,
			"updated_at":    c.UpdatedAt,
			"version":       version + 1,
		}}).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("warden/mongo: set counter: %w", err)
	}
	return res.MatchedCount() == 1, nil
}

func (s *Store) ListCounters(ctx context.Context, periodStart time.Time) ([]*meter.Counter, error) {
	var models []usageCounterModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"period_start": periodStart.UTC()}).
		Sort(bson.D{{Key: "organization_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warden/mongo: list counters: %w", err)
	}

	result := make([]*meter.Counter, len(models))
	for i := range models {
		result[i] = fromUsageCounterModel(&models[i])
	}
	return result, nil
}

// ==================== Helpers ====================

// eventFilter renders the ledger filter as a query document.
func eventFilter(orgID string, opts meter.QueryOpts) bson.M {
	filter := bson.M{"organization_id": orgID}

	if len(opts.EventTypes) > 0 {
		filter["event_type"] = bson.M{"$in": opts.EventTypes}
	}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if opts.SessionID != "" {
		filter["session_id"] = opts.SessionID
	}

	created := bson.M{}
	if !opts.Start.IsZero() {
		created["$gte"] = opts.Start.UTC()
	}
	if !opts.End.IsZero() {
		created["$lt"] = opts.End.UTC()
	}
	if !opts.Until.IsZero() {
		created["$lte"] = opts.Until.UTC()
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	credits := bson.M{}
	if opts.MinCredits != nil {
		credits["$gte"] = *opts.MinCredits
	}
	if opts.MaxCredits != nil {
		credits["$lte"] = *opts.MaxCredits
	}
	if len(credits) > 0 {
		filter["credits_consumed"] = credits
	}

	return filter
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all warden collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSessionConfigs: {
			{Keys: bson.D{{Key: "organization_id", Value: 1}}},
		},
		colUsageEvents: {
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "event_type", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colUsageCounters: {
			{
				Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "period_start", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "period_start", Value: 1}}},
		},
	}
}
