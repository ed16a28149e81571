// Package warden resolves session permissions and meters credit usage for
// multi-tenant Go applications.
//
// Warden is a library, not a service. It answers two questions on every
// request of a host application:
//
//   - May this user read, write or delete this session?
//   - May this organization spend credits on this action, and what did it cost?
//
// It provides:
//
//   - Pure, exhaustive permission resolution over three access modes
//   - An immutable event catalog with server-side complexity clamping
//   - Admission control before billable actions and an append-only usage ledger
//   - Paginated usage history with page summaries and global aggregates
//   - An optional cached counter reconciled against the ledger
//   - Lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/warden"
//	    "github.com/xraph/warden/store/postgres"
//	)
//
//	store := postgres.New(db)
//
//	w, err := warden.New(store, warden.Collaborators{
//	    Members:    members,    // organization memberships
//	    Sessions:   sessions,   // session ownership
//	    Allowances: allowances, // credits per billing period
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Permissions
//
// Every session carries an access policy. The creator always holds delete.
// Everyone else is resolved by the policy's mode:
//
//	organization  permission follows the member's role
//	per_role      only listed roles have access
//	per_user      only listed users have access
//
// Users outside the session's organization resolve to none.
//
//	res, err := w.Authorize(ctx, userID, sessionID, access.Write)
//	if warden.IsAccessDenied(err) {
//	    // 403
//	}
//
// # Metering
//
// Billable actions run under admission control. The action is never invoked
// for an organization that is over its allowance, and usage is recorded only
// after it succeeds:
//
//	result, err := w.RunMetered(ctx, meter.Record{
//	    OrganizationID: orgID,
//	    UserID:         userID,
//	    SessionID:      sessionID,
//	    EventType:      "structuring_diagnose",
//	    Complexity:     1.8,
//	}, callModel)
//	switch {
//	case warden.IsQuotaError(err):
//	    // 402, nothing was attempted
//	case warden.IsAuditGap(err):
//	    // the action happened but its cost was not recorded
//	}
//
// Credits are the event's base cost times its clamped complexity, plus any
// priced feature add-ons. Unknown event types are recorded at zero cost.
//
// # TypeID
//
// Identifiers are TypeIDs:
//
//	uevt_01h2xcejqtf2nbrexx3vqjhp41  // usage event
//	pcfg_01h455vb4pex5vsknk084sn02q  // access config revision
package warden
