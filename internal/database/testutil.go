package database

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB returns a database connection pool for testing.
// Skips the test if TEST_DATABASE_URL is not set.
func TestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

// CleanupTables empties the ledger for a clean test state.
func CleanupTables(t *testing.T, db PGXDB) {
	t.Helper()

	_, err := db.Exec(context.Background(), "TRUNCATE TABLE "+LedgerTable+" RESTART IDENTITY")
	if err != nil {
		t.Fatalf("failed to truncate table %s: %v", LedgerTable, err)
	}
}
