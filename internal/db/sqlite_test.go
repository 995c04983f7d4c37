package db

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN_Write(t *testing.T) {
	dsn := buildDSN("/tmp/diff.sqlite", ModeWrite)

	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_synchronous=NORMAL")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/diff.sqlite?"))
}

func TestBuildDSN_Read(t *testing.T) {
	dsn := buildDSN("/tmp/diff.sqlite", ModeRead)

	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.NotContains(t, dsn, "_txlock")
}

func TestOpen_InvalidMode(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), Mode("invalid"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpen_Write(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), ModeWrite, 0)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", strings.ToLower(journalMode))

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpen_ReadDefaultMaxOpen(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), ModeRead, 0)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.Equal(t, 4, db.Stats().MaxOpenConnections)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db", ModeWrite, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping sqlite")
}

func TestOpenPools_ConcurrentReads(t *testing.T) {
	pools, err := OpenPools(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pools.Close() })

	assert.Equal(t, 1, pools.Write.Stats().MaxOpenConnections)
	assert.Equal(t, 4, pools.Read.Stats().MaxOpenConnections)

	_, err = pools.Write.Exec("CREATE TABLE nums (n INTEGER)")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		_, err = pools.Write.Exec("INSERT INTO nums (n) VALUES (?)", i)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			var count int
			errs[idx] = pools.Read.QueryRow("SELECT count(*) FROM nums").Scan(&count)
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		assert.NoError(t, e, "reader %d failed", i)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pools := OpenTestSQLite(t)

	require.NoError(t, RunMigrations(pools.Write))

	v, err := SchemaVersion(pools.Write)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestMigrations_MessageDeleteCascadesToTaskAndAttrs(t *testing.T) {
	pools := OpenTestSQLite(t)
	w := pools.Write

	_, err := w.Exec(`INSERT INTO queue_msg (msg_id, queue_name, device_name, status, scheduled_time, created_time, updated_time)
		VALUES ('m1', 'DiffTasks', 'dev', 'SCHEDULED', 1, 1, 1)`)
	require.NoError(t, err)
	res, err := w.Exec(`INSERT INTO diff_task (local_aet, primary_aet, secondary_aet, created_time, updated_time, queue_msg_id)
		VALUES ('L', 'P', 'S', 1, 1, 'm1')`)
	require.NoError(t, err)
	pk, err := res.LastInsertId()
	require.NoError(t, err)
	_, err = w.Exec(`INSERT INTO diff_task_attrs (diff_task_fk, encoded_attrs, created_time) VALUES (?, x'01', 1)`, pk)
	require.NoError(t, err)

	_, err = w.Exec(`DELETE FROM queue_msg WHERE msg_id = 'm1'`)
	require.NoError(t, err)

	var tasks, attrs int
	require.NoError(t, w.QueryRow(`SELECT count(*) FROM diff_task`).Scan(&tasks))
	require.NoError(t, w.QueryRow(`SELECT count(*) FROM diff_task_attrs`).Scan(&attrs))
	assert.Zero(t, tasks)
	assert.Zero(t, attrs)
}
