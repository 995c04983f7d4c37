// Package app provides application-level wiring and dependency injection
// for the diff task engine.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	"arcdiff/internal/config"
	"arcdiff/internal/db/repository"
	"arcdiff/internal/service/diff"
	"arcdiff/internal/service/queue"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// Services groups the service pointers the CLI commands need.
type Services struct {
	Diff  *diff.Service
	Queue *queue.Manager
}

// App holds the fully-wired application.
type App struct {
	Services   Services
	Reconciler *diff.Reconciler

	cfg    *config.Config
	logger *slog.Logger
}

// New wires all repositories and services from the provided deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if deps.WriteDB == nil {
		return nil, fmt.Errorf("app: write database is required")
	}
	readDB := deps.ReadDB
	if readDB == nil {
		readDB = deps.WriteDB
	}

	// === Repositories ===
	msgRepo := repository.NewQueueMessageRepo(deps.WriteDB)
	taskRepo := repository.NewDiffTaskRepo(deps.WriteDB, readDB)
	batchRepo := repository.NewDiffBatchRepo(readDB)

	// === Services ===
	queueMgr := queue.NewManager(msgRepo, cfg.DeviceName, cfg.MaxQueueSize, deps.Logger)
	diffSvc := diff.NewService(taskRepo, batchRepo, queueMgr, cfg.QueueName, deps.Logger)
	diffSvc.SetDrainRate(cfg.DrainRate)

	reconciler := diff.NewReconciler(taskRepo, queueMgr, cfg.QueueName, cfg.OrphanGracePeriod, deps.Logger)

	return &App{
		Services: Services{
			Diff:  diffSvc,
			Queue: queueMgr,
		},
		Reconciler: reconciler,
		cfg:        cfg,
		logger:     deps.Logger,
	}, nil
}

// StartBackground starts the orphan sweep when a schedule is configured.
func (a *App) StartBackground() error {
	if a.cfg.ReconcileSchedule == "" {
		a.logger.Info("orphan sweep disabled")
		return nil
	}
	return a.Reconciler.Start(a.cfg.ReconcileSchedule)
}

// StopBackground stops background jobs started by StartBackground.
func (a *App) StopBackground() {
	a.Reconciler.Stop()
}
