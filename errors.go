package warden

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound            = errors.New("warden: not found")
	ErrAlreadyExists       = errors.New("warden: already exists")
	ErrInvalidInput        = errors.New("warden: invalid input")
	ErrMissingCollaborator = errors.New("warden: missing collaborator")

	// Access errors
	ErrAccessDenied         = errors.New("warden: access denied")
	ErrInvalidConfiguration = errors.New("warden: invalid configuration")
	ErrSessionNotFound      = errors.New("warden: session not found")
	ErrNotMember            = errors.New("warden: not a member of the organization")
	ErrConfigNotFound       = errors.New("warden: access config not found")

	// Metering errors
	ErrQuotaExceeded       = errors.New("warden: quota exceeded")
	ErrAuditGap            = errors.New("warden: usage not recorded (audit gap)")
	ErrCounterNotFound     = errors.New("warden: usage counter not found")
	ErrInvalidOrganization = errors.New("warden: missing organization id")

	// Store errors
	ErrPersistence     = errors.New("warden: persistence failure")
	ErrStoreClosed     = errors.New("warden: store is closed")
	ErrMigrationFailed = errors.New("warden: migration failed")
)

// Recommended actions attached to quota statuses.
const (
	ActionOverLimit = "Consider upgrading your plan or purchasing additional credits"
	ActionNearLimit = "You are approaching your monthly limit"
)

// AccessDeniedError reports a resolved permission below the level an
// operation needs.
type AccessDeniedError struct {
	UserID    string
	SessionID string
	Required  access.Permission
	Resolved  access.Resolution
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("warden: access denied: user %s has %s on session %s, needs %s",
		e.UserID, e.Resolved.Permission, e.SessionID, e.Required)
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// QuotaExceededError is returned by admission control when an organization
// has used its allowance.
type QuotaExceededError struct {
	Status meter.QuotaStatus
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("warden: quota exceeded for %s: %d of %d credits used",
		e.Status.OrganizationID, e.Status.Consumed, e.Status.Allowance)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// RecommendedAction is the user-facing advice for this failure.
func (e *QuotaExceededError) RecommendedAction() string {
	if e.Status.RecommendedAction != "" {
		return e.Status.RecommendedAction
	}
	return ActionOverLimit
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("warden: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "warden: no errors"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("warden: %d errors occurred: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns nil when nothing was collected.
func (e MultiError) ErrorOrNil() error {
	if !e.HasErrors() {
		return nil
	}
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrConfigNotFound) ||
		errors.Is(err, ErrCounterNotFound)
}

// IsAccessDenied returns true if the actor lacked the required permission.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsQuotaError returns true if the error is related to quota/limits.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsAuditGap returns true if a completed action could not be recorded.
func IsAuditGap(err error) bool {
	return errors.Is(err, ErrAuditGap)
}

// IsRetryable returns true if the operation can be retried safely. Ledger
// insert failures are not: they are reported as audit gaps instead.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) && !errors.Is(err, ErrAuditGap)
}
