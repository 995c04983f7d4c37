package db

import (
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a write/read pool pair in t.TempDir(), runs all
// migrations on the write pool, and registers cleanup.
func OpenTestSQLite(t *testing.T) *Pools {
	t.Helper()

	path := filepath.Join(t.TempDir(), "diff.sqlite")

	pools, err := OpenPools(path, 4)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = pools.Close() })

	if err := RunMigrations(pools.Write); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return pools
}
