package warden

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/plan"
)

// MembershipService answers membership questions about an organization.
// GetRole returns ErrNotMember for users outside the organization.
type MembershipService interface {
	GetRole(ctx context.Context, orgID, userID string) (access.Role, error)
	IsActiveMember(ctx context.Context, orgID, userID string) (bool, error)
}

// SessionStore looks up session ownership. GetSession returns
// ErrSessionNotFound for unknown sessions. The returned Config is ignored;
// the engine reads configs from its own store.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*access.Session, error)
}

// Collaborators are the external services the engine depends on.
type Collaborators struct {
	Members    MembershipService
	Sessions   SessionStore
	Allowances plan.Provider
}

func (c Collaborators) validate() error {
	var missing []string
	if c.Members == nil {
		missing = append(missing, "members")
	}
	if c.Sessions == nil {
		missing = append(missing, "sessions")
	}
	if c.Allowances == nil {
		missing = append(missing, "allowances")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCollaborator, strings.Join(missing, ", "))
	}
	return nil
}
