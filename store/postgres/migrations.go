package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Warden store.
var Migrations = migrate.NewGroup("warden")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_warden_session_configs",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warden_session_configs (
    session_id      TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL DEFAULT '',
    revision        TEXT NOT NULL DEFAULT '',
    access_mode     TEXT NOT NULL DEFAULT 'organization',
    config          JSONB NOT NULL DEFAULT '{"version":"1.0","access_mode":"organization"}',
    updated_by      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_warden_configs_org ON warden_session_configs (organization_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warden_session_configs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_warden_usage_events",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warden_usage_events (
    id               TEXT PRIMARY KEY,
    organization_id  TEXT NOT NULL,
    user_id          TEXT NOT NULL,
    session_id       TEXT NOT NULL DEFAULT '',
    event_type       TEXT NOT NULL,
    credits_consumed BIGINT NOT NULL DEFAULT 0 CHECK (credits_consumed >= 0),
    event_data       JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_warden_usage_org_time ON warden_usage_events (organization_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_warden_usage_org_type ON warden_usage_events (organization_id, event_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_warden_usage_org_user ON warden_usage_events (organization_id, user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_warden_usage_session ON warden_usage_events (session_id) WHERE session_id != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warden_usage_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_warden_usage_counters",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warden_usage_counters (
    organization_id TEXT NOT NULL,
    period_start    TIMESTAMPTZ NOT NULL,
    credits         BIGINT NOT NULL DEFAULT 0,
    reconciled_at   TIMESTAMPTZ,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    version         BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (organization_id, period_start)
);

CREATE INDEX IF NOT EXISTS idx_warden_counters_period ON warden_usage_counters (period_start);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warden_usage_counters`)
				return err
			},
		},
	)
}
