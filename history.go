package warden

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/plan"
)

// History paging limits.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100

	// breakdownBatch is the page size used when scanning a month of
	// the ledger.
	breakdownBatch = 500
)

// HistoryFilter narrows a usage history query. Zero fields do not filter.
// Category and EventType combine as a union; a category with no members
// matches nothing. Start and End are both inclusive.
type HistoryFilter struct {
	EventType  string
	Category   string
	UserID     string
	SessionID  string
	Start      time.Time
	End        time.Time
	MinCredits *int64
	MaxCredits *int64
}

// HistoryEvent is a ledger row enriched with its catalog entry.
type HistoryEvent struct {
	meter.UsageEvent
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Endpoint    string  `json:"endpoint"`
	Complexity  float64 `json:"complexity"`
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// DateRange spans the events of a page. Both ends are nil for an empty page.
type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// PageSummary aggregates the events of one page only. Use AggregateUsage
// for totals over the whole filtered set.
type PageSummary struct {
	TotalCredits int64     `json:"total_credits"`
	TotalEvents  int       `json:"total_events"`
	UniqueUsers  int       `json:"unique_users"`
	DateRange    DateRange `json:"date_range"`
}

// HistoryPage is one page of usage history.
type HistoryPage struct {
	Events     []HistoryEvent `json:"events"`
	Pagination Pagination     `json:"pagination"`
	Summary    PageSummary    `json:"summary"`
}

// QueryUsageHistory returns a page of an organization's usage events,
// newest first.
func (w *Warden) QueryUsageHistory(ctx context.Context, orgID string, f HistoryFilter, page, limit int) (*HistoryPage, error) {
	if orgID == "" {
		return nil, ErrInvalidOrganization
	}

	page, limit = normalizePage(page, limit)

	opts, ok := w.queryOpts(f)
	if !ok {
		return &HistoryPage{
			Events:     []HistoryEvent{},
			Pagination: paginate(page, limit, 0),
		}, nil
	}
	opts.Limit = limit
	opts.Offset = (page - 1) * limit

	events, total, err := w.store.QueryEvents(ctx, orgID, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: query usage events for %s: %w", ErrPersistence, orgID, err)
	}

	out := &HistoryPage{
		Events:     make([]HistoryEvent, 0, len(events)),
		Pagination: paginate(page, limit, total),
	}

	users := make(map[string]struct{}, len(events))
	for _, e := range events {
		out.Events = append(out.Events, w.enrich(e))
		out.Summary.TotalCredits += e.CreditsConsumed
		users[e.UserID] = struct{}{}

		at := e.CreatedAt
		if out.Summary.DateRange.Start == nil || at.Before(*out.Summary.DateRange.Start) {
			out.Summary.DateRange.Start = &at
		}
		if out.Summary.DateRange.End == nil || at.After(*out.Summary.DateRange.End) {
			out.Summary.DateRange.End = &at
		}
	}
	out.Summary.TotalEvents = len(events)
	out.Summary.UniqueUsers = len(users)

	return out, nil
}

// AggregateUsage returns totals over every event matching f.
func (w *Warden) AggregateUsage(ctx context.Context, orgID string, f HistoryFilter) (*meter.Summary, error) {
	if orgID == "" {
		return nil, ErrInvalidOrganization
	}

	opts, ok := w.queryOpts(f)
	if !ok {
		return &meter.Summary{}, nil
	}

	sum, err := w.store.Summarize(ctx, orgID, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: summarize usage for %s: %w", ErrPersistence, orgID, err)
	}
	return sum, nil
}

// queryOpts maps a filter to ledger options. It reports false when the
// filter can match nothing, so the store need not be queried.
func (w *Warden) queryOpts(f HistoryFilter) (meter.QueryOpts, bool) {
	opts := meter.QueryOpts{
		UserID:     f.UserID,
		SessionID:  f.SessionID,
		Start:      f.Start,
		Until:      f.End,
		MinCredits: f.MinCredits,
		MaxCredits: f.MaxCredits,
	}

	if f.Category != "" {
		opts.EventTypes = w.registry.CategoryMembers(f.Category)
		if len(opts.EventTypes) == 0 {
			return opts, false
		}
	}
	if f.EventType != "" && !slices.Contains(opts.EventTypes, f.EventType) {
		opts.EventTypes = append(opts.EventTypes, f.EventType)
	}
	return opts, true
}

func (w *Warden) enrich(e *meter.UsageEvent) HistoryEvent {
	def := w.registry.Lookup(e.EventType)
	data := e.Data()

	he := HistoryEvent{
		UsageEvent:  *e,
		Description: def.Description,
		Category:    def.Category,
		Endpoint:    data.Endpoint,
		Complexity:  data.Complexity,
	}
	if he.Endpoint == "" {
		he.Endpoint = "unknown"
	}
	if he.Complexity == 0 {
		he.Complexity = 1.0
	}
	return he
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return page, limit
}

func paginate(page, limit int, total int64) Pagination {
	pages := (total + int64(limit) - 1) / int64(limit)
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    int64(page) < pages,
		HasPrev:    page > 1,
	}
}

// ──────────────────────────────────────────────────
// Monthly breakdown
// ──────────────────────────────────────────────────

// Breakdown is a month of usage grouped for reporting.
type Breakdown struct {
	OrganizationID string           `json:"organization_id"`
	PeriodStart    time.Time        `json:"period_start"`
	PeriodEnd      time.Time        `json:"period_end"`
	TotalCredits   int64            `json:"total_credits"`
	TotalEvents    int64            `json:"total_events"`
	ByEventType    map[string]int64 `json:"by_event_type"`
	ByUser         map[string]int64 `json:"by_user"`
	Daily          []DailyUsage     `json:"daily"`
	TopEventTypes  []EventTypeUsage `json:"top_event_types"`
}

// DailyUsage is the credits consumed on one UTC day. Days without usage
// are listed with zero credits.
type DailyUsage struct {
	Date    string `json:"date"`
	Credits int64  `json:"credits"`
	Events  int64  `json:"events"`
}

// EventTypeUsage is one entry of the top event types ranking.
type EventTypeUsage struct {
	EventType   string `json:"event_type"`
	Description string `json:"description"`
	Credits     int64  `json:"credits"`
	Events      int64  `json:"events"`
}

const topEventTypes = 5

// UsageBreakdown groups one calendar month of an organization's usage by
// event type, user and day. month is any instant within the month; the
// current month is cut off at the present.
func (w *Warden) UsageBreakdown(ctx context.Context, orgID string, month time.Time) (*Breakdown, error) {
	if orgID == "" {
		return nil, ErrInvalidOrganization
	}

	start, end := plan.PeriodMonthly.Window(month)
	if now := w.now().UTC(); now.Before(end) {
		end = now.Add(time.Nanosecond)
	}

	b := &Breakdown{
		OrganizationID: orgID,
		PeriodStart:    start,
		PeriodEnd:      end,
		ByEventType:    make(map[string]int64),
		ByUser:         make(map[string]int64),
		Daily:          []DailyUsage{},
		TopEventTypes:  []EventTypeUsage{},
	}

	counts := make(map[string]int64)
	daily := make(map[string]*DailyUsage)

	for offset := 0; ; offset += breakdownBatch {
		events, total, err := w.store.QueryEvents(ctx, orgID, meter.QueryOpts{
			Start:  start,
			End:    end,
			Limit:  breakdownBatch,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: query usage events for %s: %w", ErrPersistence, orgID, err)
		}

		for _, e := range events {
			b.TotalCredits += e.CreditsConsumed
			b.TotalEvents++
			b.ByEventType[e.EventType] += e.CreditsConsumed
			b.ByUser[e.UserID] += e.CreditsConsumed
			counts[e.EventType]++

			day := e.CreatedAt.UTC().Format(time.DateOnly)
			d, ok := daily[day]
			if !ok {
				d = &DailyUsage{Date: day}
				daily[day] = d
			}
			d.Credits += e.CreditsConsumed
			d.Events++
		}

		if len(events) < breakdownBatch || int64(offset+len(events)) >= total {
			break
		}
	}

	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		if d, ok := daily[key]; ok {
			b.Daily = append(b.Daily, *d)
			continue
		}
		b.Daily = append(b.Daily, DailyUsage{Date: key})
	}

	for et, credits := range b.ByEventType {
		b.TopEventTypes = append(b.TopEventTypes, EventTypeUsage{
			EventType:   et,
			Description: w.registry.Lookup(et).Description,
			Credits:     credits,
			Events:      counts[et],
		})
	}
	sort.Slice(b.TopEventTypes, func(i, j int) bool {
		a, c := b.TopEventTypes[i], b.TopEventTypes[j]
		if a.Credits != c.Credits {
			return a.Credits > c.Credits
		}
		return a.EventType < c.EventType
	})
	if len(b.TopEventTypes) > topEventTypes {
		b.TopEventTypes = b.TopEventTypes[:topEventTypes]
	}

	return b, nil
}

// ──────────────────────────────────────────────────
// Trends
// ──────────────────────────────────────────────────

// Trend window bounds, in calendar months.
const (
	DefaultTrendMonths = 3
	MaxTrendMonths     = 24
)

// MonthlyTrend is the credits of one calendar month. Growth is the percent
// change from the previous month, and zero for the first month listed.
type MonthlyTrend struct {
	Month   string  `json:"month"`
	Credits int64   `json:"credits"`
	Growth  float64 `json:"growth"`
}

// Forecast extrapolates next month's usage from recent growth. Confidence
// drops as growth gets more volatile.
type Forecast struct {
	NextMonthEstimate int64 `json:"next_month_estimate"`
	Confidence        int   `json:"confidence"`
}

// Trends is an organization's monthly usage ending with the current month.
type Trends struct {
	MonthlyTrends []MonthlyTrend `json:"monthly_trends"`
	Forecast      Forecast       `json:"forecast"`
}

// UsageTrends sums the last months calendar months, oldest first, and
// forecasts the next one from the mean growth of the last three.
func (w *Warden) UsageTrends(ctx context.Context, orgID string, months int) (*Trends, error) {
	if orgID == "" {
		return nil, ErrInvalidOrganization
	}
	switch {
	case months <= 0:
		months = DefaultTrendMonths
	case months > MaxTrendMonths:
		months = MaxTrendMonths
	}

	current := plan.PeriodMonthly.Start(w.now())
	out := &Trends{MonthlyTrends: make([]MonthlyTrend, 0, months)}

	for i := months - 1; i >= 0; i-- {
		start, end := plan.PeriodMonthly.Window(current.AddDate(0, -i, 0))
		credits, err := w.store.SumCredits(ctx, orgID, start, end)
		if err != nil {
			return nil, fmt.Errorf("%w: sum credits for %s: %w", ErrPersistence, orgID, err)
		}

		t := MonthlyTrend{Month: start.Format("2006-01"), Credits: credits}
		if n := len(out.MonthlyTrends); n > 0 {
			prev := out.MonthlyTrends[n-1].Credits
			t.Growth = float64(credits-prev) / float64(max(1, prev)) * 100
		}
		out.MonthlyTrends = append(out.MonthlyTrends, t)
	}

	recent := out.MonthlyTrends[max(0, len(out.MonthlyTrends)-3):]
	var growth float64
	for _, t := range recent {
		growth += t.Growth
	}
	growth /= float64(len(recent))

	last := out.MonthlyTrends[len(out.MonthlyTrends)-1].Credits
	out.Forecast = Forecast{
		NextMonthEstimate: int64(math.Round(math.Max(0, float64(last)*(1+growth/100)))),
		Confidence:        int(math.Round(math.Max(0, math.Min(100, 100-math.Abs(growth)*2)))),
	}
	return out, nil
}
