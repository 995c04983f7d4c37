package diff

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"arcdiff/internal/domain"
)

// orphanSweepBatch bounds how many orphan message IDs one sweep round loads.
const orphanSweepBatch = 100

// Reconciler removes queue messages on the diff queue that no task
// references. Such messages are left behind when Submit obtains a message
// but fails to persist the task.
type Reconciler struct {
	tasks     domain.DiffTaskRepository
	queue     domain.QueueGateway
	queueName string
	grace     time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReconciler creates a Reconciler. Messages younger than grace are never
// touched so an in-flight Submit is not raced.
func NewReconciler(tasks domain.DiffTaskRepository, queue domain.QueueGateway, queueName string, grace time.Duration, logger *slog.Logger) *Reconciler {
	if queueName == "" {
		queueName = domain.DiffQueueName
	}
	return &Reconciler{
		tasks:     tasks,
		queue:     queue,
		queueName: queueName,
		grace:     grace,
		logger:    logger.With("component", "reconciler"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sweep deletes all current orphan messages and returns how many it removed.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.grace)
	removed := 0
	for {
		ids, err := r.tasks.ListOrphanMessageIDs(ctx, r.queueName, cutoff, orphanSweepBatch)
		if err != nil {
			return removed, err
		}
		for _, id := range ids {
			ok, err := r.queue.Delete(ctx, id, nil)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}
		if len(ids) < orphanSweepBatch {
			break
		}
	}
	if removed > 0 {
		r.logger.Info("orphan messages removed", "count", removed)
	}
	return removed, nil
}

// Start runs Sweep on the cron schedule until Stop is called.
func (r *Reconciler) Start(schedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := r.Sweep(context.Background()); err != nil {
			r.logger.Warn("orphan sweep failed", "error", err)
		}
	}); err != nil {
		return domain.ErrValidation("invalid reconcile schedule %q: %v", schedule, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("reconciler started", "schedule", schedule, "grace", r.grace)
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.cron = nil
	r.logger.Info("reconciler stopped")
}
