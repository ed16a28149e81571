package warden

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/plugin"
	"github.com/xraph/warden/types"
)

// ──────────────────────────────────────────────────
// Permission resolution
// ──────────────────────────────────────────────────

// loadSession returns the session with its effective config and the stored
// record, which is nil when none was stored yet.
func (w *Warden) loadSession(ctx context.Context, sessionID string) (*access.Session, *access.Record, error) {
	sess, err := w.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	rec, err := w.store.GetConfig(ctx, sessionID)
	switch {
	case err == nil:
		sess.Config = rec.Config
	case errors.Is(err, ErrConfigNotFound):
		sess.Config = access.Default()
		rec = nil
	default:
		return nil, nil, fmt.Errorf("%w: load access config for %s: %w", ErrPersistence, sessionID, err)
	}

	return sess, rec, nil
}

// resolve computes the permission of userID on an already loaded session.
func (w *Warden) resolve(ctx context.Context, userID string, sess *access.Session) (access.Resolution, error) {
	role, err := w.members.GetRole(ctx, sess.OrganizationID, userID)
	if errors.Is(err, ErrNotMember) {
		return access.NotMember(), nil
	}
	if err != nil {
		return access.Resolution{}, fmt.Errorf("warden: look up role of %s: %w", userID, err)
	}

	res := access.Resolve(access.Actor{UserID: userID, Role: role}, *sess)
	if res.Warning != nil {
		w.logger.Warn("unrecognized access mode, resolving as organization",
			"session_id", sess.ID,
			"access_mode", sess.Config.Mode(),
			"user_id", userID,
		)
	}

	return res, nil
}

// ResolvePermission returns the effective permission of userID on a
// session. Users outside the session's organization resolve to none.
func (w *Warden) ResolvePermission(ctx context.Context, userID, sessionID string) (access.Resolution, error) {
	sess, _, err := w.loadSession(ctx, sessionID)
	if err != nil {
		return access.Resolution{}, err
	}

	res, err := w.resolve(ctx, userID, sess)
	if err != nil {
		return access.Resolution{}, err
	}

	w.logger.Debug("resolved session permission",
		"session_id", sessionID,
		"user_id", userID,
		"permission", res.Permission,
		"reason", res.Reason,
	)

	return res, nil
}

// Authorize resolves the permission of userID and returns an
// *AccessDeniedError when it is below required.
func (w *Warden) Authorize(ctx context.Context, userID, sessionID string, required access.Permission) (access.Resolution, error) {
	res, err := w.ResolvePermission(ctx, userID, sessionID)
	if err != nil {
		return res, err
	}

	if !res.Allows(required) {
		w.plugins.EmitAccessDenied(ctx, plugin.Denial{
			UserID:     userID,
			SessionID:  sessionID,
			Required:   required,
			Resolution: res,
		})
		return res, &AccessDeniedError{UserID: userID, SessionID: sessionID, Required: required, Resolved: res}
	}

	return res, nil
}

// AccessibleSessions filters sessionIDs down to those userID holds at least
// required on. Unknown sessions are skipped.
func (w *Warden) AccessibleSessions(ctx context.Context, userID string, sessionIDs []string, required access.Permission) ([]string, error) {
	result := make([]string, 0, len(sessionIDs))
	for _, sid := range sessionIDs {
		res, err := w.ResolvePermission(ctx, userID, sid)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if res.Allows(required) {
			result = append(result, sid)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Access configuration
// ──────────────────────────────────────────────────

// InitPermissionConfig stores the default policy for a newly created
// session. It is a no-op when the session already has a config.
func (w *Warden) InitPermissionConfig(ctx context.Context, sessionID, createdBy string) error {
	sess, err := w.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	rec := &access.Record{
		Entity:         types.EntityAt(w.now()),
		SessionID:      sessionID,
		OrganizationID: sess.OrganizationID,
		Revision:       id.NewConfigRevisionID(),
		Config:         access.Default(),
		UpdatedBy:      createdBy,
	}

	if err := w.store.CreateConfig(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("%w: create access config for %s: %w", ErrPersistence, sessionID, err)
	}

	w.logger.Debug("initialized session access config",
		"session_id", sessionID,
		"organization_id", sess.OrganizationID,
	)
	return nil
}

// GetPermissionConfig returns the session's stored policy. userID needs
// read access. Sessions without a stored policy return a default record
// with a nil revision.
func (w *Warden) GetPermissionConfig(ctx context.Context, userID, sessionID string) (*access.Record, error) {
	sess, rec, err := w.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res, err := w.resolve(ctx, userID, sess)
	if err != nil {
		return nil, err
	}
	if !res.Allows(access.Read) {
		return nil, &AccessDeniedError{UserID: userID, SessionID: sessionID, Required: access.Read, Resolved: res}
	}

	if rec == nil {
		return &access.Record{
			SessionID:      sessionID,
			OrganizationID: sess.OrganizationID,
			Config:         access.Default(),
		}, nil
	}
	return rec, nil
}

// UpdatePermissionConfig replaces a session's access policy as a whole.
// userID must hold delete under the current policy. Roles must be
// recognized and listed users must be active members of the session's
// organization; otherwise nothing is written and the returned error wraps
// ErrInvalidConfiguration.
func (w *Warden) UpdatePermissionConfig(ctx context.Context, userID, sessionID string, cfg access.Config) (*access.Record, error) {
	sess, prev, err := w.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res, err := w.resolve(ctx, userID, sess)
	if err != nil {
		return nil, err
	}
	if res.Permission != access.Delete {
		denied := &AccessDeniedError{UserID: userID, SessionID: sessionID, Required: access.Delete, Resolved: res}
		w.plugins.EmitConfigRejected(ctx, userID, sessionID, denied)
		return nil, denied
	}

	if err := w.validateConfig(ctx, sess.OrganizationID, cfg); err != nil {
		w.logger.Info("rejected session access config",
			"session_id", sessionID,
			"user_id", userID,
			"error", err,
		)
		w.plugins.EmitConfigRejected(ctx, userID, sessionID, err)
		return nil, err
	}

	now := w.now()
	next := &access.Record{
		Entity:         types.EntityAt(now),
		SessionID:      sessionID,
		OrganizationID: sess.OrganizationID,
		Revision:       id.NewConfigRevisionID(),
		Config:         stampGrants(access.Clone(cfg), userID, now),
		UpdatedBy:      userID,
	}
	if prev != nil {
		next.CreatedAt = prev.CreatedAt
	}

	if err := w.store.ReplaceConfig(ctx, next); err != nil {
		return nil, fmt.Errorf("%w: replace access config for %s: %w", ErrPersistence, sessionID, err)
	}

	w.logger.Info("updated session access config",
		"session_id", sessionID,
		"user_id", userID,
		"access_mode", next.Config.Mode(),
		"revision", next.Revision,
	)
	w.plugins.EmitConfigUpdated(ctx, prev, next)

	return next, nil
}

func (w *Warden) validateConfig(ctx context.Context, orgID string, cfg access.Config) error {
	var errs MultiError

	for _, p := range access.Validate(cfg) {
		errs.Add(ValidationError{Field: p.Field, Message: p.Message})
	}

	if pu, ok := access.Clone(cfg).(access.PerUser); ok {
		for i, g := range pu.Users {
			if g.UserID == "" {
				continue
			}
			active, err := w.members.IsActiveMember(ctx, orgID, g.UserID)
			if err != nil {
				return fmt.Errorf("warden: check membership of %s: %w", g.UserID, err)
			}
			if !active {
				errs.Add(ValidationError{
					Field:   fmt.Sprintf("user_permissions[%d]", i),
					Message: fmt.Sprintf("user %q is not an active member of the organization", g.UserID),
				})
			}
		}
	}

	return errs.ErrorOrNil()
}

// stampGrants fills in who granted per-user access and when.
func stampGrants(cfg access.Config, grantedBy string, at time.Time) access.Config {
	pu, ok := cfg.(access.PerUser)
	if !ok {
		return cfg
	}
	for i := range pu.Users {
		if pu.Users[i].GrantedBy == "" {
			pu.Users[i].GrantedBy = grantedBy
		}
		if pu.Users[i].GrantedAt.IsZero() {
			pu.Users[i].GrantedAt = at.UTC()
		}
	}
	return pu
}
