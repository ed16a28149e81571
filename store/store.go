// Package store defines the aggregate persistence interface of Warden.
package store

import (
	"context"

	"github.com/xraph/warden/access"
	"github.com/xraph/warden/meter"
)

// Store is the unified storage interface. Backends live in subpackages:
// memory, postgres, sqlite and mongo.
type Store interface {
	access.Store
	meter.Store
	meter.CounterStore

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
