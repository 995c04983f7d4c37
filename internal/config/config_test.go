package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"META_DB_PATH", "READ_POOL_SIZE", "DEVICE_NAME", "DIFF_QUEUE_NAME", "MAX_QUEUE_SIZE",
		"DELETE_FETCH_SIZE", "DRAIN_RATE", "ORPHAN_GRACE_PERIOD", "LOG_LEVEL", "ENV",
	} {
		t.Setenv(key, "")
	}
	// Empty values of these two disable a feature, so they must be unset.
	for _, key := range []string{"RECONCILE_SCHEDULE", "LISTEN_ADDR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultMetaDBPath, cfg.MetaDBPath)
	assert.Equal(t, DefaultDeviceName, cfg.DeviceName)
	assert.Equal(t, "DiffTasks", cfg.QueueName)
	assert.Equal(t, DefaultDeleteFetchSize, cfg.DeleteFetchSize)
	assert.Equal(t, DefaultReconcileSchedule, cfg.ReconcileSchedule)
	assert.Equal(t, DefaultOrphanGracePeriod, cfg.OrphanGracePeriod)
	assert.Zero(t, cfg.MaxQueueSize)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Contains(t, cfg.Warnings, "DEVICE_NAME not set, using "+DefaultDeviceName)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("META_DB_PATH", "/var/lib/arcdiff/diff.sqlite")
	t.Setenv("DEVICE_NAME", "dcm4chee-arc")
	t.Setenv("DIFF_QUEUE_NAME", "DiffTasks2")
	t.Setenv("MAX_QUEUE_SIZE", "500")
	t.Setenv("DELETE_FETCH_SIZE", "25")
	t.Setenv("DRAIN_RATE", "2.5")
	t.Setenv("ORPHAN_GRACE_PERIOD", "90s")
	t.Setenv("RECONCILE_SCHEDULE", "*/5 * * * *")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9090")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/arcdiff/diff.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "dcm4chee-arc", cfg.DeviceName)
	assert.Equal(t, "DiffTasks2", cfg.QueueName)
	assert.Equal(t, 500, cfg.MaxQueueSize)
	assert.Equal(t, 25, cfg.DeleteFetchSize)
	assert.InDelta(t, 2.5, cfg.DrainRate, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.OrphanGracePeriod)
	assert.Equal(t, "*/5 * * * *", cfg.ReconcileSchedule)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_EmptyScheduleDisablesSweep(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVICE_NAME", "arc")
	t.Setenv("RECONCILE_SCHEDULE", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.ReconcileSchedule)
	assert.Len(t, cfg.Warnings, 1)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"MAX_QUEUE_SIZE", "lots"},
		{"MAX_QUEUE_SIZE", "-1"},
		{"DELETE_FETCH_SIZE", "0"},
		{"DRAIN_RATE", "fast"},
		{"ORPHAN_GRACE_PERIOD", "5 minutes"},
		{"READ_POOL_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadFromEnv_ProductionRequiresDeviceName(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEVICE_NAME")

	t.Setenv("DEVICE_NAME", "arc")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "arcdiff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
meta-db-path: /data/diff.sqlite
device-name: from-file
max-queue-size: 10
orphan-grace-period: 1m
reconcile-schedule: ""
listen-addr: ""
log-level: warn
`), 0o600))
	t.Setenv("MAX_QUEUE_SIZE", "20")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/diff.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "from-file", cfg.DeviceName)
	assert.Equal(t, 20, cfg.MaxQueueSize, "environment wins over the file")
	assert.Equal(t, time.Minute, cfg.OrphanGracePeriod)
	assert.Empty(t, cfg.ReconcileSchedule)
	assert.Empty(t, cfg.ListenAddr, "an empty listen-addr disables the API")
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.NotContains(t, cfg.Warnings, "DEVICE_NAME not set, using "+DefaultDeviceName)
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("orphan-grace-period: soon\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan-grace-period")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.input}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")

	content := `# comment
ARCDIFF_TEST_A=value_a
ARCDIFF_TEST_B="quoted value"
ARCDIFF_TEST_C='single quoted'

ARCDIFF_TEST_EXISTING=from_file
not a pair
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Setenv("ARCDIFF_TEST_A", "")
	t.Setenv("ARCDIFF_TEST_B", "")
	t.Setenv("ARCDIFF_TEST_C", "")
	t.Setenv("ARCDIFF_TEST_EXISTING", "from_env")

	require.NoError(t, LoadDotEnv(envFile))

	assert.Equal(t, "value_a", os.Getenv("ARCDIFF_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("ARCDIFF_TEST_B"))
	assert.Equal(t, "single quoted", os.Getenv("ARCDIFF_TEST_C"))
	assert.Equal(t, "from_env", os.Getenv("ARCDIFF_TEST_EXISTING"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
