package warden

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/warden/id"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/plan"
	"github.com/xraph/warden/registry"
)

// ──────────────────────────────────────────────────
// Quota evaluation
// ──────────────────────────────────────────────────

// CheckQuota returns the organization's consumption in the current billing
// period against its allowance.
func (w *Warden) CheckQuota(ctx context.Context, orgID string) (*meter.QuotaStatus, error) {
	if orgID == "" {
		return nil, ErrInvalidOrganization
	}

	start, end := w.period.Window(w.now())

	consumed, err := w.consumed(ctx, orgID, start, end)
	if err != nil {
		return nil, err
	}

	allowance, err := w.allowances.Allowance(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("warden: get allowance of %s: %w", orgID, err)
	}

	status := w.evaluate(orgID, consumed, allowance, start, end)
	w.emitQuota(ctx, status)

	return status, nil
}

// Admit is the pre-check before a billable action. It returns a
// *QuotaExceededError when the organization is over its allowance; the
// caller must then not perform the action.
func (w *Warden) Admit(ctx context.Context, orgID string) (*meter.QuotaStatus, error) {
	status, err := w.CheckQuota(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if status.IsOverLimit {
		w.logger.Info("admission refused, quota exceeded",
			"organization_id", orgID,
			"consumed", status.Consumed,
			"allowance", status.Allowance,
		)
		return status, &QuotaExceededError{Status: *status}
	}
	return status, nil
}

// evaluate computes a quota status. A negative allowance is unlimited; a
// zero allowance is always over the limit.
func (w *Warden) evaluate(orgID string, consumed, allowance int64, start, end time.Time) *meter.QuotaStatus {
	status := &meter.QuotaStatus{
		OrganizationID: orgID,
		Consumed:       consumed,
		Allowance:      allowance,
		PeriodStart:    start,
		PeriodEnd:      end,
	}

	switch {
	case allowance < 0:
		status.Unlimited = true
		status.Remaining = plan.Unlimited
		return status
	case allowance == 0:
		status.PercentageUsed = 100
	default:
		status.PercentageUsed = float64(consumed) / float64(allowance) * 100
	}

	status.Remaining = max(0, allowance-consumed)
	status.IsNearLimit = status.PercentageUsed >= w.nearLimitPercent
	status.IsOverLimit = status.PercentageUsed >= 100

	switch {
	case status.IsOverLimit:
		status.RecommendedAction = ActionOverLimit
	case status.IsNearLimit:
		status.RecommendedAction = ActionNearLimit
	}

	return status
}

func (w *Warden) emitQuota(ctx context.Context, status *meter.QuotaStatus) {
	w.plugins.EmitQuotaChecked(ctx, status)
	switch {
	case status.IsOverLimit:
		w.plugins.EmitQuotaExceeded(ctx, status)
	case status.IsNearLimit:
		w.plugins.EmitNearLimit(ctx, status)
	}
}

// consumed returns the credits used in [start, end). The ledger sum is
// authoritative; with the counter cache enabled a counter reconciled
// within the staleness bound is used instead, and an older one is
// recomputed and rewritten.
func (w *Warden) consumed(ctx context.Context, orgID string, start, end time.Time) (int64, error) {
	if w.counterCache {
		c, err := w.store.GetCounter(ctx, orgID, start)
		switch {
		case err == nil && w.fresh(c):
			return c.Credits, nil
		case err != nil && !errors.Is(err, ErrCounterNotFound):
			w.logger.Warn("usage counter read failed, summing ledger",
				"organization_id", orgID,
				"error", err,
			)
			return w.sum(ctx, orgID, start, end)
		}
		return w.sumAndSeed(ctx, orgID, start, end)
	}

	return w.sum(ctx, orgID, start, end)
}

func (w *Warden) sumAndSeed(ctx context.Context, orgID string, start, end time.Time) (int64, error) {
	r, err := w.recount(ctx, orgID, start, end)
	switch {
	case err == nil:
		if !r.written {
			w.logger.Debug("usage counter busy, left for reconciliation",
				"organization_id", orgID,
			)
		}
		return r.actual, nil
	case r.summed:
		w.logger.Warn("usage counter refresh failed",
			"organization_id", orgID,
			"error", err,
		)
		return r.actual, nil
	default:
		w.logger.Warn("usage counter refresh failed, summing ledger",
			"organization_id", orgID,
			"error", err,
		)
		return w.sum(ctx, orgID, start, end)
	}
}

func (w *Warden) sum(ctx context.Context, orgID string, start, end time.Time) (int64, error) {
	total, err := w.store.SumCredits(ctx, orgID, start, end)
	if err != nil {
		return 0, fmt.Errorf("%w: sum credits for %s: %w", ErrPersistence, orgID, err)
	}
	return total, nil
}

// counterWriteAttempts bounds how often recount retries a conflicting write.
const counterWriteAttempts = 3

// recount is the outcome of one counter recomputation. cached is the
// counter value read just before the ledger sum.
type recount struct {
	cached  int64
	actual  int64
	summed  bool
	written bool
}

// recount sums the ledger for [start, end) and stores the sum in the
// organization's counter only if no increment landed since the counter was
// read. On a conflict the counter is read and the ledger summed again.
// written is false when every attempt conflicted.
func (w *Warden) recount(ctx context.Context, orgID string, start, end time.Time) (recount, error) {
	var r recount
	for range counterWriteAttempts {
		var version int64
		c, err := w.store.GetCounter(ctx, orgID, start)
		switch {
		case err == nil:
			version, r.cached = c.Version, c.Credits
		case errors.Is(err, ErrCounterNotFound):
			r.cached = 0
		default:
			return r, fmt.Errorf("%w: get usage counter for %s: %w", ErrPersistence, orgID, err)
		}

		actual, err := w.store.SumCredits(ctx, orgID, start, end)
		if err != nil {
			return r, fmt.Errorf("%w: sum credits for %s: %w", ErrPersistence, orgID, err)
		}
		r.actual, r.summed = actual, true

		at := w.now().UTC()
		ok, err := w.store.CompareAndSetCounter(ctx, &meter.Counter{
			OrganizationID: orgID,
			PeriodStart:    start,
			Credits:        actual,
			ReconciledAt:   at,
			UpdatedAt:      at,
		}, version)
		if err != nil {
			return r, fmt.Errorf("%w: set usage counter for %s: %w", ErrPersistence, orgID, err)
		}
		if ok {
			r.written = true
			return r, nil
		}
	}
	return r, nil
}

// ──────────────────────────────────────────────────
// Recording
// ──────────────────────────────────────────────────

// RecordEvent appends a completed action to the ledger and returns the
// post-update quota status. Call it only after the action succeeded.
//
// A failed ledger insert returns an error wrapping ErrAuditGap: the action
// already happened and is not undone, so callers must not fail their
// workflow on it. A failure computing the running total after a successful
// insert returns the partial result together with an ErrPersistence error.
func (w *Warden) RecordEvent(ctx context.Context, rec meter.Record) (*meter.UsageResult, error) {
	switch {
	case rec.OrganizationID == "":
		return nil, ErrInvalidOrganization
	case rec.UserID == "":
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidInput)
	case rec.EventType == "":
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidInput)
	}

	def := w.registry.Lookup(rec.EventType)
	if !w.registry.Known(rec.EventType) {
		w.logger.Warn("recording unknown event type at zero cost",
			"organization_id", rec.OrganizationID,
			"event_type", rec.EventType,
		)
	}

	now := w.now().UTC()
	credits, data := w.price(def, rec)
	evt := &meter.UsageEvent{
		ID:              id.NewUsageEventID(),
		OrganizationID:  rec.OrganizationID,
		UserID:          rec.UserID,
		SessionID:       rec.SessionID,
		EventType:       rec.EventType,
		CreditsConsumed: credits,
		EventData:       data,
		CreatedAt:       now,
	}

	if err := w.store.InsertEvent(ctx, evt); err != nil {
		return nil, w.auditGap(ctx, evt, err)
	}

	result := &meter.UsageResult{
		UsageEventID:    evt.ID,
		CreditsConsumed: credits,
	}

	start, end := w.period.Window(now)
	total, err := w.runningTotal(ctx, evt, start, end)
	if err != nil {
		return result, err
	}

	allowance, err := w.allowances.Allowance(ctx, rec.OrganizationID)
	if err != nil {
		return result, fmt.Errorf("warden: get allowance of %s: %w", rec.OrganizationID, err)
	}

	status := w.evaluate(rec.OrganizationID, total, allowance, start, end)
	result.RunningTotal = total
	result.RemainingCredits = status.Remaining
	result.Warning = *status

	w.logger.Debug("recorded usage event",
		"organization_id", rec.OrganizationID,
		"event_type", rec.EventType,
		"credits", credits,
		"running_total", total,
	)

	w.plugins.EmitUsageRecorded(ctx, evt, result)
	switch {
	case status.IsOverLimit:
		w.plugins.EmitQuotaExceeded(ctx, status)
	case status.IsNearLimit:
		w.plugins.EmitNearLimit(ctx, status)
	}

	return result, nil
}

func (w *Warden) runningTotal(ctx context.Context, evt *meter.UsageEvent, start, end time.Time) (int64, error) {
	if w.counterCache {
		total, err := w.store.IncrementCounter(ctx, evt.OrganizationID, start, evt.CreditsConsumed, evt.CreatedAt)
		if err != nil {
			w.logger.Warn("usage counter increment failed, summing ledger",
				"organization_id", evt.OrganizationID,
				"error", err,
			)
		} else if w.counterFresh(ctx, evt.OrganizationID, start) {
			return total, nil
		}
	}

	return w.sum(ctx, evt.OrganizationID, start, end)
}

// counterFresh reports whether the counter was reconciled against the
// ledger within the staleness bound. A counter created by an increment has
// never been reconciled and misses earlier events.
func (w *Warden) counterFresh(ctx context.Context, orgID string, start time.Time) bool {
	c, err := w.store.GetCounter(ctx, orgID, start)
	return err == nil && w.fresh(c)
}

func (w *Warden) fresh(c *meter.Counter) bool {
	return !c.ReconciledAt.IsZero() && w.now().Sub(c.ReconciledAt) <= w.counterMaxStaleness
}

// auditGap reports a completed action whose cost could not be recorded.
func (w *Warden) auditGap(ctx context.Context, evt *meter.UsageEvent, cause error) error {
	w.logger.Error("usage event not recorded",
		"audit_gap", true,
		"usage_event_id", evt.ID,
		"organization_id", evt.OrganizationID,
		"user_id", evt.UserID,
		"session_id", evt.SessionID,
		"event_type", evt.EventType,
		"credits", evt.CreditsConsumed,
		"error", cause,
	)
	w.plugins.EmitAuditGap(ctx, evt, cause)
	return fmt.Errorf("%w: %w: %w", ErrAuditGap, ErrPersistence, cause)
}

// complexityBounds returns the clamp range for def: the engine bounds,
// narrowed by the definition's own bounds when they overlap.
func (w *Warden) complexityBounds(def registry.Definition) (float64, float64) {
	lo, hi := w.minComplexity, w.maxComplexity
	if def.Complexity != nil {
		dlo, dhi := max(lo, def.Complexity.Min), min(hi, def.Complexity.Max)
		if dlo <= dhi {
			lo, hi = dlo, dhi
		}
	}
	return lo, hi
}

// Clamp returns the complexity multiplier that will be charged for
// eventType. Missing or non-finite values use the lower bound.
func (w *Warden) Clamp(eventType string, complexity float64) float64 {
	lo, hi := w.complexityBounds(w.registry.Lookup(eventType))
	if math.IsNaN(complexity) || math.IsInf(complexity, 0) || complexity <= 0 {
		return lo
	}
	return min(max(complexity, lo), hi)
}

// Credits returns what recording rec would charge.
func (w *Warden) Credits(rec meter.Record) int64 {
	credits, _ := w.price(w.registry.Lookup(rec.EventType), rec)
	return credits
}

func (w *Warden) price(def registry.Definition, rec meter.Record) (int64, json.RawMessage) {
	applied := w.Clamp(def.EventType, rec.Complexity)
	base := int64(math.Round(float64(def.BaseCost) * applied))

	data := meter.EventData{
		Complexity:  applied,
		BaseCredits: def.BaseCost,
		Endpoint:    def.Endpoint,
		Metadata:    rec.Metadata,
	}
	if rec.Complexity != applied {
		data.RequestedComplexity = rec.Complexity
	}
	if math.IsNaN(data.RequestedComplexity) || math.IsInf(data.RequestedComplexity, 0) {
		data.RequestedComplexity = 0
	}

	credits := base
	for _, f := range rec.Features {
		cost, ok := def.Features[f]
		if !ok {
			continue
		}
		if _, dup := data.FeatureCredits[f]; dup {
			continue
		}
		if data.FeatureCredits == nil {
			data.FeatureCredits = make(map[string]int64)
		}
		data.FeatureCredits[f] = cost
		credits += cost
	}

	raw, err := json.Marshal(data)
	if err != nil {
		raw = nil
	}
	return credits, raw
}

// RunMetered performs a billable action under admission control: it
// refuses to call fn when the organization is over quota, and records
// usage only when fn succeeds. A recording failure after fn succeeded is
// returned as an audit gap error alongside a nil result.
func (w *Warden) RunMetered(ctx context.Context, rec meter.Record, fn func(ctx context.Context) error) (*meter.UsageResult, error) {
	if _, err := w.Admit(ctx, rec.OrganizationID); err != nil {
		return nil, err
	}

	if err := fn(ctx); err != nil {
		w.logger.Debug("metered action failed, nothing recorded",
			"organization_id", rec.OrganizationID,
			"event_type", rec.EventType,
			"error", err,
		)
		return nil, err
	}

	return w.RecordEvent(ctx, rec)
}

// ──────────────────────────────────────────────────
// Counter reconciliation
// ──────────────────────────────────────────────────

// ReconcileCounters rewrites every cached counter of the current period
// from the ledger sum and returns how many were reconciled. A counter that
// kept changing under every write attempt is left for the next run.
func (w *Warden) ReconcileCounters(ctx context.Context) (int, error) {
	start, end := w.period.Window(w.now())

	counters, err := w.store.ListCounters(ctx, start)
	if err != nil {
		return 0, fmt.Errorf("%w: list usage counters: %w", ErrPersistence, err)
	}

	var reconciled atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.reconcileConcurrency)

	for _, c := range counters {
		g.Go(func() error {
			r, err := w.recount(gctx, c.OrganizationID, start, end)
			if err != nil {
				return err
			}
			if !r.written {
				w.logger.Warn("usage counter reconciliation deferred",
					"organization_id", c.OrganizationID,
					"attempts", counterWriteAttempts,
				)
				return nil
			}

			if r.cached != r.actual {
				w.logger.Warn("usage counter drift",
					"organization_id", c.OrganizationID,
					"cached", r.cached,
					"actual", r.actual,
				)
			}

			reconciled.Add(1)
			w.plugins.EmitCounterReconciled(gctx, c.OrganizationID, r.cached, r.actual)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(reconciled.Load()), nil
}
