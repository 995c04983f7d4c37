package cli

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcdiff/internal/api"
	"arcdiff/internal/domain"
)

// newTestDB isolates the config environment and returns a fresh database path.
func newTestDB(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"MAX_QUEUE_SIZE", "DIFF_QUEUE_NAME", "DELETE_FETCH_SIZE", "DRAIN_RATE", "ENV", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("DEVICE_NAME", "test-device")
	return filepath.Join(t.TempDir(), "diff.sqlite")
}

// runCLI executes a fresh root command against dbPath with JSON output and
// returns what it wrote to stdout.
func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	rootCmd.SetArgs(append([]string{"--db", dbPath, "--env-file=", "-o", "json", "--log-level", "error"}, args...))
	done := captureStdout(t)
	err := rootCmd.Execute()
	return done(), err
}

func mustRun(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dbPath, args...)
	require.NoError(t, err, "diffd %v", args)
	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func submit(t *testing.T, dbPath string, extra ...string) api.DiffTask {
	t.Helper()
	args := append([]string{"tasks", "submit", "--local-aet", "ARCDIFF", "--primary-aet", "PACS_A", "--secondary-aet", "PACS_B"}, extra...)
	return decode[api.DiffTask](t, mustRun(t, dbPath, args...))
}

func TestTasksLifecycle(t *testing.T) {
	db := newTestDB(t)

	first := submit(t, db, "--batch", "b1", "--priority", "1", "--compare-fields", "PatientName,StudyDate")
	second := submit(t, db, "--batch", "b1", "--priority", "9", "--check-missing")
	require.NotEmpty(t, first.QueueMessageID)
	assert.Equal(t, []string{"PatientName", "StudyDate"}, first.CompareFields)
	assert.True(t, second.CheckMissing)

	tasks := decode[[]api.DiffTask](t, mustRun(t, db, "tasks", "list", "--batch", "b1"))
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	require.NotNil(t, tasks[0].QueueMessage)
	assert.Equal(t, "test-device", tasks[0].QueueMessage.DeviceName)

	got := decode[api.DiffTask](t, mustRun(t, db, "tasks", "get", strconv.FormatInt(second.ID, 10)))
	assert.Equal(t, second.QueueMessageID, got.QueueMessageID)

	count := decode[map[string]int64](t, mustRun(t, db, "tasks", "count", "--status", "scheduled"))
	assert.Equal(t, int64(2), count["count"])

	devices := decode[[]string](t, mustRun(t, db, "tasks", "devices"))
	assert.Equal(t, []string{"test-device"}, devices)

	// Lower priority value is claimed first.
	claimed := decode[api.QueueMessage](t, mustRun(t, db, "tasks", "claim"))
	assert.Equal(t, first.QueueMessageID, claimed.MessageID)
	assert.Equal(t, "IN_PROCESS", claimed.Status)

	firstID := strconv.FormatInt(first.ID, 10)
	mustRun(t, db, "tasks", "result", firstID, "--matches", "3", "--different", "1")
	mustRun(t, db, "tasks", "add-snapshot", firstID, `{"StudyInstanceUID":"1.2.3"}`)
	mustRun(t, db, "tasks", "complete", claimed.MessageID, "--outcome", "done", "--warning")

	snapshots := decode[[]string](t, mustRun(t, db, "tasks", "snapshots", firstID))
	assert.Equal(t, []string{`{"StudyInstanceUID":"1.2.3"}`}, snapshots)
	byFilter := decode[[]string](t, mustRun(t, db, "tasks", "snapshots", "--batch", "b1"))
	assert.Equal(t, snapshots, byFilter)

	batches := decode[[]api.DiffBatch](t, mustRun(t, db, "batches", "list"))
	require.Len(t, batches, 1)
	b := batches[0]
	assert.Equal(t, "b1", b.BatchID)
	assert.Equal(t, int64(1), b.Scheduled)
	assert.Equal(t, int64(1), b.Warning)
	assert.Equal(t, int64(3), b.Matches)
	assert.Equal(t, int64(1), b.Different)
	assert.Equal(t, []string{"PatientName", "StudyDate"}, b.CompareFields)
	assert.Equal(t, []bool{false, true}, b.CheckMissing)

	canceled := decode[map[string]int64](t, mustRun(t, db, "cancel", strconv.FormatInt(second.ID, 10)))
	assert.Equal(t, int64(1), canceled["canceled"])

	_, err := runCLI(t, db, "cancel", firstID)
	var illegal *domain.IllegalStateError
	require.ErrorAs(t, err, &illegal, "a WARNING message is no longer cancelable")

	purged := decode[map[string]int64](t, mustRun(t, db, "purge", "--batch", "b1"))
	assert.Equal(t, int64(2), purged["deleted"])

	count = decode[map[string]int64](t, mustRun(t, db, "tasks", "count"))
	assert.Zero(t, count["count"])
}

func TestTasksRescheduleAndFail(t *testing.T) {
	db := newTestDB(t)
	task := submit(t, db)
	id := strconv.FormatInt(task.ID, 10)

	claimed := decode[api.QueueMessage](t, mustRun(t, db, "tasks", "claim"))
	mustRun(t, db, "tasks", "fail", claimed.MessageID, "--error", "association rejected")

	got := decode[api.DiffTask](t, mustRun(t, db, "tasks", "get", id))
	require.NotNil(t, got.QueueMessage)
	assert.Equal(t, "FAILED", got.QueueMessage.Status)
	assert.Equal(t, "association rejected", got.QueueMessage.ErrorMessage)

	mustRun(t, db, "tasks", "reschedule", id)
	got = decode[api.DiffTask](t, mustRun(t, db, "tasks", "get", id))
	assert.Equal(t, "SCHEDULED", got.QueueMessage.Status)
	assert.Equal(t, task.QueueMessageID, got.QueueMessageID)

	mustRun(t, db, "tasks", "reset", id)
	mustRun(t, db, "tasks", "delete", id)

	_, err := runCLI(t, db, "tasks", "get", id)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "NOT_FOUND", errorKind(err))
}

func TestBulkCancelAndSinglePurgeRound(t *testing.T) {
	db := newTestDB(t)
	for range 3 {
		submit(t, db, "--batch", "bulk")
	}

	canceled := decode[map[string]int64](t, mustRun(t, db, "cancel", "--batch", "bulk"))
	assert.Equal(t, int64(3), canceled["canceled"])

	count := decode[map[string]int64](t, mustRun(t, db, "tasks", "count", "--status", "CANCELED"))
	assert.Equal(t, int64(3), count["count"])

	purged := decode[map[string]int64](t, mustRun(t, db, "purge", "--max", "2"))
	assert.Equal(t, int64(2), purged["deleted"])

	count = decode[map[string]int64](t, mustRun(t, db, "tasks", "count"))
	assert.Equal(t, int64(1), count["count"])
}

func TestClaimWithNothingDue(t *testing.T) {
	db := newTestDB(t)

	_, err := runCLI(t, db, "tasks", "claim")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestMigrateAndReconcile(t *testing.T) {
	db := newTestDB(t)

	migrated := decode[map[string]int64](t, mustRun(t, db, "migrate"))
	assert.Positive(t, migrated["schema_version"])

	removed := decode[map[string]int64](t, mustRun(t, db, "reconcile"))
	assert.Zero(t, removed["removed"])
}

func TestFilterErrorsRejectedBeforeOpen(t *testing.T) {
	// The database path points into a missing directory, so any attempt to
	// open it would fail with a different error.
	db := filepath.Join(t.TempDir(), "missing", "diff.sqlite")
	t.Setenv("DEVICE_NAME", "test-device")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown status", []string{"tasks", "list", "--status", "bogus"}},
		{"bad range", []string{"tasks", "count", "--created", "2024-01-01"}},
		{"bad bool", []string{"batches", "list", "--check-missing", "maybe"}},
		{"bad task id", []string{"tasks", "get", "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, db, tt.args...)
			var invalid *domain.ValidationError
			require.ErrorAs(t, err, &invalid)
		})
	}
}

func TestSubmitRequiresAETitles(t *testing.T) {
	db := newTestDB(t)

	_, err := runCLI(t, db, "tasks", "submit", "--local-aet", "L")
	require.Error(t, err)
	assert.True(t, containsIgnoreCase(err.Error(), "primary-aet"))
}

func TestVersionCmd(t *testing.T) {
	out := mustRun(t, filepath.Join(t.TempDir(), "unused.sqlite"), "version")
	v := decode[map[string]string](t, out)
	assert.Equal(t, version, v["version"])
	assert.Equal(t, commit, v["commit"])
}

func TestRejectsUnknownOutputFormat(t *testing.T) {
	rootCmd := newRootCmd()
	rootCmd.SetArgs([]string{"-o", "yaml", "version"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
