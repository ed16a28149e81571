// Package directory provides in-memory organizations, memberships and
// sessions. It satisfies the engine's collaborator interfaces for tests,
// demos and the CLI.
package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/warden"
	"github.com/xraph/warden/access"
	"github.com/xraph/warden/plan"
)

type member struct {
	role   access.Role
	active bool
}

// Directory is a concurrency-safe in-memory directory.
type Directory struct {
	mu       sync.RWMutex
	plans    []plan.Plan
	orgPlan  map[string]string
	members  map[string]map[string]member
	sessions map[string]access.Session
}

var (
	_ warden.MembershipService = (*Directory)(nil)
	_ warden.SessionStore      = (*Directory)(nil)
	_ plan.Provider            = (*Directory)(nil)
)

// New creates a directory pricing organizations with plans. With no plans
// the default catalog is used.
func New(plans ...plan.Plan) *Directory {
	if len(plans) == 0 {
		plans = plan.Defaults()
	}
	return &Directory{
		plans:    plans,
		orgPlan:  make(map[string]string),
		members:  make(map[string]map[string]member),
		sessions: make(map[string]access.Session),
	}
}

// SetPlan assigns an organization to a plan slug.
func (d *Directory) SetPlan(orgID, slug string) error {
	if _, ok := plan.Find(d.plans, slug); !ok {
		return fmt.Errorf("%w: unknown plan %q", warden.ErrInvalidInput, slug)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orgPlan[orgID] = slug
	return nil
}

// AddMember adds or updates an active membership.
func (d *Directory) AddMember(orgID, userID string, role access.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[orgID]
	if !ok {
		m = make(map[string]member)
		d.members[orgID] = m
	}
	m[userID] = member{role: role, active: true}
}

// Deactivate keeps the membership on record but stops it counting.
func (d *Directory) Deactivate(orgID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.members[orgID][userID]; ok {
		m.active = false
		d.members[orgID][userID] = m
	}
}

// RemoveMember deletes a membership.
func (d *Directory) RemoveMember(orgID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members[orgID], userID)
}

// AddSession registers a session owned by creatorID.
func (d *Directory) AddSession(sessionID, orgID, creatorID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[sessionID] = access.Session{
		ID:             sessionID,
		CreatorID:      creatorID,
		OrganizationID: orgID,
	}
}

// GetRole returns the role of an active member.
func (d *Directory) GetRole(_ context.Context, orgID, userID string) (access.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[orgID][userID]
	if !ok || !m.active {
		return "", warden.ErrNotMember
	}
	return m.role, nil
}

// IsActiveMember reports whether userID is an active member of orgID.
func (d *Directory) IsActiveMember(_ context.Context, orgID, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[orgID][userID]
	return ok && m.active, nil
}

// GetSession returns a copy of the session.
func (d *Directory) GetSession(_ context.Context, sessionID string) (*access.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[sessionID]
	if !ok {
		return nil, warden.ErrSessionNotFound
	}
	return &s, nil
}

// Allowance returns the monthly credits of the organization's plan.
// Organizations without an assignment are on the first plan.
func (d *Directory) Allowance(_ context.Context, orgID string) (int64, error) {
	d.mu.RLock()
	slug, ok := d.orgPlan[orgID]
	d.mu.RUnlock()

	if !ok {
		if len(d.plans) == 0 {
			return 0, nil
		}
		return d.plans[0].MonthlyCredits, nil
	}
	p, _ := plan.Find(d.plans, slug)
	return p.MonthlyCredits, nil
}

// Collaborators returns d as every engine collaborator.
func (d *Directory) Collaborators() warden.Collaborators {
	return warden.Collaborators{
		Members:    d,
		Sessions:   d,
		Allowances: d,
	}
}
