package warden

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/warden/plan"
	"github.com/xraph/warden/plugin"
	"github.com/xraph/warden/registry"
	"github.com/xraph/warden/store"
)

// Default metering policy.
const (
	DefaultNearLimitPercent     = 90.0
	DefaultMinComplexity        = 1.0
	DefaultMaxComplexity        = 3.0
	DefaultCounterMaxStaleness  = time.Minute
	DefaultReconcileInterval    = 5 * time.Minute
	DefaultReconcileConcurrency = 8
)

// Warden is the session permission and usage metering engine.
type Warden struct {
	store      store.Store
	registry   *registry.Registry
	members    MembershipService
	sessions   SessionStore
	allowances plan.Provider
	plugins    *plugin.Registry
	logger     *slog.Logger
	now        func() time.Time

	// Metering policy
	nearLimitPercent float64
	minComplexity    float64
	maxComplexity    float64
	period           plan.Period

	// Cached aggregate counter
	counterCache         bool
	counterMaxStaleness  time.Duration
	reconcileInterval    time.Duration
	reconcileConcurrency int

	// Background workers
	autoMigrate bool
	cancel      context.CancelFunc
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// New creates a Warden over s. All collaborators are required.
func New(s store.Store, c Collaborators, opts ...Option) (*Warden, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	w := &Warden{
		store:                s,
		members:              c.Members,
		sessions:             c.Sessions,
		allowances:           c.Allowances,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		now:                  time.Now,
		nearLimitPercent:     DefaultNearLimitPercent,
		minComplexity:        DefaultMinComplexity,
		maxComplexity:        DefaultMaxComplexity,
		period:               plan.PeriodMonthly,
		counterMaxStaleness:  DefaultCounterMaxStaleness,
		reconcileInterval:    DefaultReconcileInterval,
		reconcileConcurrency: DefaultReconcileConcurrency,
		autoMigrate:          true,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.registry == nil {
		w.registry = registry.Default()
	}

	return w, nil
}

// Option configures a Warden instance.
type Option func(*Warden)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Warden) {
		w.logger = logger
		w.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(w *Warden) {
		_ = w.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds every plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(w *Warden) {
		w.plugins.WithTimeout(d)
	}
}

// WithRegistry sets the event catalog. Defaults to registry.Default().
func WithRegistry(r *registry.Registry) Option {
	return func(w *Warden) {
		w.registry = r
	}
}

// WithNearLimitThreshold sets the percentage at which a quota status is
// flagged as near its limit.
func WithNearLimitThreshold(percent float64) Option {
	return func(w *Warden) {
		if percent > 0 && percent <= 100 {
			w.nearLimitPercent = percent
		}
	}
}

// WithComplexityBounds sets the range complexity multipliers are clamped to.
func WithComplexityBounds(lo, hi float64) Option {
	return func(w *Warden) {
		if lo > 0 && hi >= lo {
			w.minComplexity = lo
			w.maxComplexity = hi
		}
	}
}

// WithPeriod sets the billing period quotas are evaluated over.
func WithPeriod(p plan.Period) Option {
	return func(w *Warden) {
		w.period = p
	}
}

// WithCounterCache serves quota checks from a cached per-period counter
// while it was reconciled within maxStaleness. Older counters are
// recomputed from the ledger on read.
func WithCounterCache(maxStaleness time.Duration) Option {
	return func(w *Warden) {
		w.counterCache = true
		if maxStaleness > 0 {
			w.counterMaxStaleness = maxStaleness
		}
	}
}

// WithReconcileInterval sets how often the background worker reconciles
// cached counters. Zero disables the worker.
func WithReconcileInterval(d time.Duration) Option {
	return func(w *Warden) {
		w.reconcileInterval = d
	}
}

// WithReconcileConcurrency limits concurrent reconciliations.
func WithReconcileConcurrency(n int) Option {
	return func(w *Warden) {
		if n > 0 {
			w.reconcileConcurrency = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Warden) {
		w.now = now
	}
}

// WithoutMigrate skips store migrations in Start.
func WithoutMigrate() Option {
	return func(w *Warden) {
		w.autoMigrate = false
	}
}

// Registry returns the event catalog.
func (w *Warden) Registry() *registry.Registry { return w.registry }

// Store returns the underlying store.
func (w *Warden) Store() store.Store { return w.store }

// Plugins returns the plugin registry.
func (w *Warden) Plugins() *plugin.Registry { return w.plugins }

// Start migrates the store, initializes plugins and starts the counter
// reconciliation worker when the counter cache is enabled.
func (w *Warden) Start(ctx context.Context) error {
	if w.autoMigrate {
		if err := w.store.Migrate(ctx); err != nil {
			return err
		}
	}

	w.plugins.EmitInit(ctx, w)

	workerCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if w.counterCache && w.reconcileInterval > 0 {
		w.wg.Add(1)
		go w.reconcileWorker(workerCtx)
	}

	w.logger.Info("warden started",
		"event_types", w.registry.Len(),
		"near_limit_percent", w.nearLimitPercent,
		"complexity_min", w.minComplexity,
		"complexity_max", w.maxComplexity,
		"period", w.period,
		"counter_cache", w.counterCache,
	)

	return nil
}

// Stop shuts down background work, notifies plugins and closes the store.
func (w *Warden) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()

		w.plugins.EmitShutdown(context.Background())
		err = w.store.Close()
	})
	return err
}

// reconcileWorker periodically rewrites cached counters from the ledger.
func (w *Warden) reconcileWorker(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.ReconcileCounters(ctx)
			if err != nil {
				w.logger.Error("counter reconciliation failed",
					"error", err,
				)
				continue
			}
			w.logger.Debug("reconciled usage counters",
				"counters", n,
			)
		}
	}
}
