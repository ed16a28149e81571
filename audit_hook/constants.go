package audithook

// Action constants for audit events.
const (
	// Access actions
	ActionAccessDenied   = "access.denied"
	ActionConfigUpdated  = "access_config.updated"
	ActionConfigRejected = "access_config.rejected"

	// Metering actions
	ActionUsageRecorded  = "usage.recorded"
	ActionAuditGap       = "usage.audit_gap"
	ActionNearLimit      = "quota.near_limit"
	ActionQuotaExceeded  = "quota.exceeded"
	ActionCounterDrifted = "counter.drifted"
)

// Resource constants for audit events.
const (
	ResourceSession      = "session"
	ResourceAccessConfig = "access_config"
	ResourceUsage        = "usage"
	ResourceQuota        = "quota"
	ResourceCounter      = "usage_counter"
)

// Category constants for audit events.
const (
	CategoryAccess = "access"
	CategoryUsage  = "usage"
	CategoryQuota  = "quota"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
