package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook interfaces are resolved once in Register.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onAccessDenied      []OnAccessDenied
	onConfigUpdated     []OnConfigUpdated
	onConfigRejected    []OnConfigRejected
	onQuotaChecked      []OnQuotaChecked
	onNearLimit         []OnNearLimit
	onQuotaExceeded     []OnQuotaExceeded
	onUsageRecorded     []OnUsageRecorded
	onAuditGap          []OnAuditGap
	onCounterReconciled []OnCounterReconciled
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnAccessDenied); ok {
		r.onAccessDenied = append(r.onAccessDenied, v)
		hooks = append(hooks, "OnAccessDenied")
	}
	if v, ok := p.(OnConfigUpdated); ok {
		r.onConfigUpdated = append(r.onConfigUpdated, v)
		hooks = append(hooks, "OnConfigUpdated")
	}
	if v, ok := p.(OnConfigRejected); ok {
		r.onConfigRejected = append(r.onConfigRejected, v)
		hooks = append(hooks, "OnConfigRejected")
	}
	if v, ok := p.(OnQuotaChecked); ok {
		r.onQuotaChecked = append(r.onQuotaChecked, v)
		hooks = append(hooks, "OnQuotaChecked")
	}
	if v, ok := p.(OnNearLimit); ok {
		r.onNearLimit = append(r.onNearLimit, v)
		hooks = append(hooks, "OnNearLimit")
	}
	if v, ok := p.(OnQuotaExceeded); ok {
		r.onQuotaExceeded = append(r.onQuotaExceeded, v)
		hooks = append(hooks, "OnQuotaExceeded")
	}
	if v, ok := p.(OnUsageRecorded); ok {
		r.onUsageRecorded = append(r.onUsageRecorded, v)
		hooks = append(hooks, "OnUsageRecorded")
	}
	if v, ok := p.(OnAuditGap); ok {
		r.onAuditGap = append(r.onAuditGap, v)
		hooks = append(hooks, "OnAuditGap")
	}
	if v, ok := p.(OnCounterReconciled); ok {
		r.onCounterReconciled = append(r.onCounterReconciled, v)
		hooks = append(hooks, "OnCounterReconciled")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// hooksOf snapshots one cached hook list under the read lock.
func hooksOf[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, w interface{}) {
	for _, p := range hooksOf(r, &r.onInit) {
		r.dispatch(ctx, p.Name(), "OnInit", func() error { return p.OnInit(ctx, w) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, p := range hooksOf(r, &r.onShutdown) {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error { return p.OnShutdown(ctx) })
	}
}

// EmitAccessDenied emits an access denied event.
func (r *Registry) EmitAccessDenied(ctx context.Context, d Denial) {
	for _, p := range hooksOf(r, &r.onAccessDenied) {
		r.dispatch(ctx, p.Name(), "OnAccessDenied", func() error { return p.OnAccessDenied(ctx, d) })
	}
}

// EmitConfigUpdated emits an access config replacement.
func (r *Registry) EmitConfigUpdated(ctx context.Context, prev, next *access.Record) {
	for _, p := range hooksOf(r, &r.onConfigUpdated) {
		r.dispatch(ctx, p.Name(), "OnConfigUpdated", func() error { return p.OnConfigUpdated(ctx, prev, next) })
	}
}

// EmitConfigRejected emits a refused access config update.
func (r *Registry) EmitConfigRejected(ctx context.Context, userID, sessionID string, reason error) {
	for _, p := range hooksOf(r, &r.onConfigRejected) {
		r.dispatch(ctx, p.Name(), "OnConfigRejected", func() error {
			return p.OnConfigRejected(ctx, userID, sessionID, reason)
		})
	}
}

// EmitQuotaChecked emits a computed quota status.
func (r *Registry) EmitQuotaChecked(ctx context.Context, status *meter.QuotaStatus) {
	for _, p := range hooksOf(r, &r.onQuotaChecked) {
		r.dispatch(ctx, p.Name(), "OnQuotaChecked", func() error { return p.OnQuotaChecked(ctx, status) })
	}
}

// EmitNearLimit emits a near-limit warning.
func (r *Registry) EmitNearLimit(ctx context.Context, status *meter.QuotaStatus) {
	for _, p := range hooksOf(r, &r.onNearLimit) {
		r.dispatch(ctx, p.Name(), "OnNearLimit", func() error { return p.OnNearLimit(ctx, status) })
	}
}

// EmitQuotaExceeded emits an over-limit status.
func (r *Registry) EmitQuotaExceeded(ctx context.Context, status *meter.QuotaStatus) {
	for _, p := range hooksOf(r, &r.onQuotaExceeded) {
		r.dispatch(ctx, p.Name(), "OnQuotaExceeded", func() error { return p.OnQuotaExceeded(ctx, status) })
	}
}

// EmitUsageRecorded emits a written usage event.
func (r *Registry) EmitUsageRecorded(ctx context.Context, event *meter.UsageEvent, result *meter.UsageResult) {
	for _, p := range hooksOf(r, &r.onUsageRecorded) {
		r.dispatch(ctx, p.Name(), "OnUsageRecorded", func() error { return p.OnUsageRecorded(ctx, event, result) })
	}
}

// EmitAuditGap emits a usage event that could not be written.
func (r *Registry) EmitAuditGap(ctx context.Context, event *meter.UsageEvent, cause error) {
	for _, p := range hooksOf(r, &r.onAuditGap) {
		r.dispatch(ctx, p.Name(), "OnAuditGap", func() error { return p.OnAuditGap(ctx, event, cause) })
	}
}

// EmitCounterReconciled emits a counter reconciliation result.
func (r *Registry) EmitCounterReconciled(ctx context.Context, orgID string, cached, actual int64) {
	for _, p := range hooksOf(r, &r.onCounterReconciled) {
		r.dispatch(ctx, p.Name(), "OnCounterReconciled", func() error {
			return p.OnCounterReconciled(ctx, orgID, cached, actual)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the request path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
