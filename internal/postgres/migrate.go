package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var _schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id               TEXT PRIMARY KEY,
		asset_name       TEXT NOT NULL,
		category         TEXT NOT NULL,
		kind             TEXT NOT NULL CHECK (kind IN ('MARKET', 'ACCRUING')),
		amount           DOUBLE PRECISION NOT NULL CHECK (amount > 0),
		cost_basis_price DOUBLE PRECISION NOT NULL CHECK (cost_basis_price > 0),
		purchase_date    TIMESTAMPTZ NOT NULL,
		annual_rate_pct  DOUBLE PRECISION,
		term_months      INTEGER,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT accruing_fields CHECK ((annual_rate_pct IS NULL) = (term_months IS NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS price_snapshots (
		id         BIGSERIAL PRIMARY KEY,
		asset_name TEXT NOT NULL,
		ts         TIMESTAMPTZ NOT NULL,
		price      DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS price_snapshots_asset_ts ON price_snapshots (asset_name, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS reference_prices (
		asset_name   TEXT NOT NULL,
		window_label TEXT NOT NULL,
		price        DOUBLE PRECISION NOT NULL,
		as_of_date   TIMESTAMPTZ NOT NULL,
		fetched_at   TIMESTAMPTZ NOT NULL,
		CONSTRAINT asset_window UNIQUE (asset_name, window_label)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_lots (
		id           TEXT PRIMARY KEY,
		position_id  TEXT NOT NULL REFERENCES positions (id) ON DELETE CASCADE,
		purchased_at TIMESTAMPTZ NOT NULL,
		quantity     DOUBLE PRECISION NOT NULL CHECK (quantity > 0),
		price        DOUBLE PRECISION NOT NULL CHECK (price > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS purchase_lots_position ON purchase_lots (position_id, purchased_at DESC)`,
	`CREATE TABLE IF NOT EXISTS portfolio_history (
		id          BIGSERIAL PRIMARY KEY,
		total_value DOUBLE PRECISION NOT NULL,
		ts          TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables if they don't exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: can't begin migration", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range _schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: can't apply schema", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: can't commit migration", err)
	}
	return nil
}
