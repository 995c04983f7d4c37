package cli

import (
	"fmt"
	"log/slog"
	"os"

	"arcdiff/internal/app"
	"arcdiff/internal/config"
	internaldb "arcdiff/internal/db"
	"arcdiff/internal/domain"
)

// rootOptions holds the persistent flag values shared by all commands.
type rootOptions struct {
	configPath string
	envFile    string
	dbPath     string
	output     string
	logLevel   string
}

// runtime is an opened database plus the wired application.
type runtime struct {
	cfg    *config.Config
	pools  *internaldb.Pools
	app    *app.App
	logger *slog.Logger
}

// open loads configuration, opens and migrates the store, and wires the
// application. Callers must Close the returned runtime.
func (o *rootOptions) open() (*runtime, error) {
	if o.envFile != "" {
		if err := config.LoadDotEnv(o.envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.dbPath != "" {
		cfg.MetaDBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	pools, err := internaldb.OpenPools(cfg.MetaDBPath, cfg.ReadPoolSize)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := internaldb.RunMigrations(pools.Write); err != nil {
		_ = pools.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a, err := app.New(app.Deps{
		Cfg:     cfg,
		WriteDB: pools.Write,
		ReadDB:  pools.Read,
		Logger:  logger,
	})
	if err != nil {
		_ = pools.Close()
		return nil, err
	}
	return &runtime{cfg: cfg, pools: pools, app: a, logger: logger}, nil
}

// Close releases the database pools.
func (r *runtime) Close() error {
	return r.pools.Close()
}

// eventLogger reports queue lifecycle events through the runtime logger.
func (r *runtime) eventLogger() domain.EventSink {
	return domain.EventSinkFunc(func(ev domain.QueueEvent) {
		if ev.Err != nil {
			r.logger.Warn("queue operation failed", "op", ev.Operation, "msg_id", ev.MessageID, "error", ev.Err)
			return
		}
		r.logger.Debug("queue operation", "op", ev.Operation, "msg_id", ev.MessageID, "status", ev.Status)
	})
}
