package warden_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	"github.com/xraph/warden/directory"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/store/memory"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		// In-memory collaborators; a real host wires its own services
		dir := directory.New()
		dir.AddMember("org_acme", "user_ann", access.RoleOwner)
		dir.AddMember("org_acme", "user_ben", access.RoleViewer)
		dir.AddSession("sess_q3", "org_acme", "user_ann")

		w, err := warden.New(memory.New(), dir.Collaborators(),
			warden.WithLogger(slog.Default()),
			warden.WithCounterCache(0),
		)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer w.Stop()

		if err := w.InitPermissionConfig(ctx, "sess_q3", "user_ann"); err != nil {
			t.Fatal(err)
		}

		// Viewers may read but not edit
		if _, err := w.Authorize(ctx, "user_ben", "sess_q3", access.Read); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Authorize(ctx, "user_ben", "sess_q3", access.Write); !warden.IsAccessDenied(err) {
			t.Fatalf("expected access denied, got %v", err)
		}

		result, err := w.RunMetered(ctx, meter.Record{
			OrganizationID: "org_acme",
			UserID:         "user_ann",
			SessionID:      "sess_q3",
			EventType:      "structuring_diagnose",
			Complexity:     1.8,
		}, func(context.Context) error { return nil })
		if err != nil {
			t.Fatal(err)
		}
		if result.CreditsConsumed != 18 {
			t.Errorf("CreditsConsumed = %d, want 18", result.CreditsConsumed)
		}

		history, err := w.QueryUsageHistory(ctx, "org_acme", warden.HistoryFilter{}, 1, 10)
		if err != nil {
			t.Fatal(err)
		}
		if history.Pagination.Total != 1 {
			t.Errorf("history total = %d, want 1", history.Pagination.Total)
		}
	})
}
