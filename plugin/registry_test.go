package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/plugin"
)

type quotaWatcher struct {
	name     string
	exceeded []string
	err      error
}

func (q *quotaWatcher) Name() string { return q.name }

func (q *quotaWatcher) OnQuotaExceeded(_ context.Context, s *meter.QuotaStatus) error {
	q.exceeded = append(q.exceeded, s.OrganizationID)
	return q.err
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnCounterReconciled(ctx context.Context, _ string, _, _ int64) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegister(t *testing.T) {
	r := newRegistry()

	if err := r.Register(&quotaWatcher{name: "watcher"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&quotaWatcher{name: "watcher"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	if r.Count() != 1 || len(r.List()) != 1 {
		t.Errorf("Count = %d, List = %d", r.Count(), len(r.List()))
	}
	if r.Get("watcher") == nil || r.Get("missing") != nil {
		t.Error("Get returned the wrong plugin")
	}
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := newRegistry()
	a := &quotaWatcher{name: "a"}
	b := &quotaWatcher{name: "b", err: errors.New("sink down")}
	for _, p := range []plugin.Plugin{a, b, slowPlugin{}} {
		if err := r.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	r.EmitQuotaExceeded(context.Background(), &meter.QuotaStatus{OrganizationID: "org_1"})
	r.EmitNearLimit(context.Background(), &meter.QuotaStatus{OrganizationID: "org_2"})

	if len(a.exceeded) != 1 || a.exceeded[0] != "org_1" {
		t.Errorf("a received %v", a.exceeded)
	}
	// a failing plugin does not stop dispatch or surface an error
	if len(b.exceeded) != 1 {
		t.Errorf("b received %v", b.exceeded)
	}
}

func TestEmitTimeout(t *testing.T) {
	r := newRegistry().WithTimeout(20 * time.Millisecond)
	if err := r.Register(slowPlugin{}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	r.EmitCounterReconciled(context.Background(), "org_1", 1, 2)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("slow hook blocked dispatch for %v", elapsed)
	}
}
