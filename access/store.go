package access

import (
	"context"

	"github.com/xraph/warden/id"
	"github.com/xraph/warden/types"
)

// Record is the stored access policy of one session. Every replacement
// writes a new Revision.
type Record struct {
	types.Entity
	SessionID      string              `json:"session_id"`
	OrganizationID string              `json:"organization_id"`
	Revision       id.ConfigRevisionID `json:"revision"`
	Config         Config              `json:"-"`
	UpdatedBy      string              `json:"updated_by,omitempty"`
}

// Store persists session access policies. ReplaceConfig must be a single
// atomic write of the whole record; there is no partial update.
type Store interface {
	GetConfig(ctx context.Context, sessionID string) (*Record, error)
	CreateConfig(ctx context.Context, rec *Record) error
	ReplaceConfig(ctx context.Context, rec *Record) error
}
