package database

import (
	"context"
	"fmt"
)

// LedgerTable holds the ledger rows. Every cell is text so the table
// behaves like a spreadsheet; row order is id order.
const LedgerTable = "ledger_rows"

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ledger_rows (
			id BIGSERIAL PRIMARY KEY,
			date TEXT NOT NULL DEFAULT '',
			place TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			receipt_number TEXT NOT NULL DEFAULT '',
			tag TEXT NOT NULL DEFAULT '',
			receipt TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_ledger_rows_date ON ledger_rows(date)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
