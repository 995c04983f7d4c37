// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"arcdiff/internal/domain"
)

// Defaults applied when neither the config file nor the environment sets a value.
const (
	DefaultMetaDBPath        = "arcdiff.sqlite"
	DefaultDeviceName        = "arcdiff"
	DefaultReadPoolSize      = 4
	DefaultDeleteFetchSize   = 100
	DefaultReconcileSchedule = "@every 10m"
	DefaultOrphanGracePeriod = 5 * time.Minute
	DefaultListenAddr        = ":8080"
)

// Config holds the configuration of the diff task engine.
type Config struct {
	MetaDBPath   string // path to the SQLite database holding tasks and queue messages
	ReadPoolSize int    // max open connections of the read pool (default 4)

	DeviceName   string // stamped on every queue message this process schedules
	QueueName    string // queue diff tasks are scheduled on (default "DiffTasks")
	MaxQueueSize int    // scheduled messages allowed per queue; 0 = unlimited

	DeleteFetchSize   int           // batch size of drain deletes (default 100)
	DrainRate         float64       // drain-delete rounds per second; 0 = unpaced
	ReconcileSchedule string        // cron spec of the orphan sweep; empty disables it
	OrphanGracePeriod time.Duration // minimum age of a message before the sweep may remove it

	ListenAddr string // HTTP API address of "serve"; empty disables the API

	LogLevel string // log level: debug, info, warn, error (default "info")
	Env      string // environment: "development" (default) or "production"

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// fileConfig is the YAML shape of an optional config file.
type fileConfig struct {
	MetaDBPath        string  `yaml:"meta-db-path,omitempty"`
	ReadPoolSize      int     `yaml:"read-pool-size,omitempty"`
	DeviceName        string  `yaml:"device-name,omitempty"`
	QueueName         string  `yaml:"queue-name,omitempty"`
	MaxQueueSize      int     `yaml:"max-queue-size,omitempty"`
	DeleteFetchSize   int     `yaml:"delete-fetch-size,omitempty"`
	DrainRate         float64 `yaml:"drain-rate,omitempty"`
	ReconcileSchedule *string `yaml:"reconcile-schedule,omitempty"`
	OrphanGracePeriod string  `yaml:"orphan-grace-period,omitempty"`
	ListenAddr        *string `yaml:"listen-addr,omitempty"`
	LogLevel          string  `yaml:"log-level,omitempty"`
	Env               string  `yaml:"env,omitempty"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.MetaDBPath == "" {
		return fmt.Errorf("META_DB_PATH must not be empty")
	}
	if c.ReadPoolSize <= 0 {
		return fmt.Errorf("READ_POOL_SIZE must be positive, got %d", c.ReadPoolSize)
	}
	if c.MaxQueueSize < 0 {
		return fmt.Errorf("MAX_QUEUE_SIZE must not be negative, got %d", c.MaxQueueSize)
	}
	if c.DeleteFetchSize <= 0 {
		return fmt.Errorf("DELETE_FETCH_SIZE must be positive, got %d", c.DeleteFetchSize)
	}
	if c.DrainRate < 0 {
		return fmt.Errorf("DRAIN_RATE must not be negative, got %g", c.DrainRate)
	}
	if c.OrphanGracePeriod < 0 {
		return fmt.Errorf("ORPHAN_GRACE_PERIOD must not be negative, got %s", c.OrphanGracePeriod)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables. Later sources
// win.
func Load(path string) (*Config, error) {
	cfg := &Config{
		MetaDBPath:        DefaultMetaDBPath,
		ReadPoolSize:      DefaultReadPoolSize,
		DeviceName:        DefaultDeviceName,
		QueueName:         domain.DiffQueueName,
		DeleteFetchSize:   DefaultDeleteFetchSize,
		ReconcileSchedule: DefaultReconcileSchedule,
		OrphanGracePeriod: DefaultOrphanGracePeriod,
		ListenAddr:        DefaultListenAddr,
		LogLevel:          "info",
	}
	deviceSet := false

	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		deviceSet = fc.DeviceName != ""
		if err := cfg.applyFile(fc); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	setString(&cfg.MetaDBPath, "META_DB_PATH")
	setString(&cfg.QueueName, "DIFF_QUEUE_NAME")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Env, "ENV")
	if v := os.Getenv("DEVICE_NAME"); v != "" {
		cfg.DeviceName = v
		deviceSet = true
	}
	if v, ok := os.LookupEnv("RECONCILE_SCHEDULE"); ok {
		cfg.ReconcileSchedule = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		cfg.ListenAddr = strings.TrimSpace(v)
	}

	if err := setInt(&cfg.ReadPoolSize, "READ_POOL_SIZE"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.MaxQueueSize, "MAX_QUEUE_SIZE"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.DeleteFetchSize, "DELETE_FETCH_SIZE"); err != nil {
		return nil, err
	}
	if v := os.Getenv("DRAIN_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("DRAIN_RATE: %w", err)
		}
		cfg.DrainRate = f
	}
	if v := os.Getenv("ORPHAN_GRACE_PERIOD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ORPHAN_GRACE_PERIOD: %w", err)
		}
		cfg.OrphanGracePeriod = d
	}

	if !deviceSet {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("DEVICE_NAME must be set in production (ENV=production)")
		}
		cfg.Warnings = append(cfg.Warnings, "DEVICE_NAME not set, using "+DefaultDeviceName)
	}
	if cfg.ReconcileSchedule == "" {
		cfg.Warnings = append(cfg.Warnings, "RECONCILE_SCHEDULE is empty, orphan queue messages are not swept")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

func (c *Config) applyFile(fc *fileConfig) error {
	if fc.MetaDBPath != "" {
		c.MetaDBPath = fc.MetaDBPath
	}
	if fc.ReadPoolSize != 0 {
		c.ReadPoolSize = fc.ReadPoolSize
	}
	if fc.DeviceName != "" {
		c.DeviceName = fc.DeviceName
	}
	if fc.QueueName != "" {
		c.QueueName = fc.QueueName
	}
	if fc.MaxQueueSize != 0 {
		c.MaxQueueSize = fc.MaxQueueSize
	}
	if fc.DeleteFetchSize != 0 {
		c.DeleteFetchSize = fc.DeleteFetchSize
	}
	if fc.DrainRate != 0 {
		c.DrainRate = fc.DrainRate
	}
	if fc.ReconcileSchedule != nil {
		c.ReconcileSchedule = strings.TrimSpace(*fc.ReconcileSchedule)
	}
	if fc.OrphanGracePeriod != "" {
		d, err := time.ParseDuration(fc.OrphanGracePeriod)
		if err != nil {
			return fmt.Errorf("orphan-grace-period: %w", err)
		}
		c.OrphanGracePeriod = d
	}
	if fc.ListenAddr != nil {
		c.ListenAddr = strings.TrimSpace(*fc.ListenAddr)
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Env != "" {
		c.Env = fc.Env
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
