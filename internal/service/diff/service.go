// Package diff implements scheduling, lifecycle and reporting of diff tasks.
package diff

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"golang.org/x/time/rate"

	"arcdiff/internal/domain"
)

// Service is the public entry point for diff tasks. It keeps the durable
// task record and its queue message consistent.
type Service struct {
	tasks     domain.DiffTaskRepository
	batches   domain.DiffBatchRepository
	queue     domain.QueueGateway
	queueName string
	logger    *slog.Logger
	drain     *rate.Limiter
}

// NewService creates a new Service scheduling on queueName.
func NewService(
	tasks domain.DiffTaskRepository,
	batches domain.DiffBatchRepository,
	queue domain.QueueGateway,
	queueName string,
	logger *slog.Logger,
) *Service {
	if queueName == "" {
		queueName = domain.DiffQueueName
	}
	return &Service{
		tasks:     tasks,
		batches:   batches,
		queue:     queue,
		queueName: queueName,
		logger:    logger.With("component", "diff"),
		drain:     rate.NewLimiter(rate.Inf, 1),
	}
}

// SetDrainRate limits DrainDelete to perSecond rounds per second. Zero or
// negative removes the limit.
func (s *Service) SetDrainRate(perSecond float64) {
	if perSecond <= 0 {
		s.drain = rate.NewLimiter(rate.Inf, 1)
		return
	}
	s.drain = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// === Scheduling ===

// Submit schedules a queue message for req and persists a task referencing
// it. The message is requested first; if persisting the task then fails the
// message is left without a task until the reconciler removes it.
func (s *Service) Submit(ctx context.Context, req domain.DiffRequest) (*domain.DiffTask, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	priority := req.Priority
	if priority == 0 {
		priority = domain.DefaultPriority
	}

	msg := s.queue.CreateMessage(priority)
	msg.SetString(domain.PropLocalAET, req.LocalAET)
	msg.SetString(domain.PropPrimaryAET, req.PrimaryAET)
	msg.SetString(domain.PropSecondaryAET, req.SecondaryAET)
	msg.SetInt(domain.PropPriority, priority)
	msg.SetString(domain.PropQueryString, req.QueryString)
	req.RequestInfo.CopyTo(msg)

	qm, err := s.queue.Submit(ctx, s.queueName, msg, priority, req.BatchID, 0)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.Create(ctx, &domain.DiffTask{
		LocalAET:       req.LocalAET,
		PrimaryAET:     req.PrimaryAET,
		SecondaryAET:   req.SecondaryAET,
		QueryString:    req.QueryString,
		CheckMissing:   req.CheckMissing,
		CheckDifferent: req.CheckDifferent,
		CompareFields:  req.CompareFields,
		QueueMessageID: &qm.MessageID,
	})
	if err != nil {
		s.logger.Warn("diff task not persisted; message left for reconciliation",
			"msg_id", qm.MessageID,
			"error", err,
		)
		return nil, err
	}
	s.logger.Info("diff task scheduled", "task_id", task.ID, "msg_id", qm.MessageID, "batch_id", req.BatchID)
	return task, nil
}

// === Result recording ===
//
// A task deleted concurrently with its execution is not an error for these
// calls: the result simply has nowhere to go.

// Reset clears the result counters and all snapshots of a task.
func (s *Service) Reset(ctx context.Context, id int64) error {
	return ignoreNotFound(s.tasks.Reset(ctx, id))
}

// AppendSnapshot attaches one opaque payload to a task.
func (s *Service) AppendSnapshot(ctx context.Context, id int64, payload []byte) error {
	return ignoreNotFound(s.tasks.AppendAttributes(ctx, id, payload))
}

// RecordResult overwrites the result counters of a task.
func (s *Service) RecordResult(ctx context.Context, id int64, matches, missing, different int64) error {
	if matches < 0 || missing < 0 || different < 0 {
		return domain.ErrValidation("result counters must not be negative")
	}
	return ignoreNotFound(s.tasks.UpdateResult(ctx, id, matches, missing, different))
}

// === Lookup ===

// Get returns a task joined with its queue message.
func (s *Service) Get(ctx context.Context, id int64) (*domain.DiffTask, error) {
	return s.tasks.GetByID(ctx, id)
}

// FindDeviceName returns the device owning a task. ok is false when the
// task does not exist.
func (s *Service) FindDeviceName(ctx context.Context, id int64) (string, bool, error) {
	return s.tasks.FindDeviceNameByID(ctx, id)
}

// CountTasksOfBatch counts all tasks carrying batchID, regardless of status.
func (s *Service) CountTasksOfBatch(ctx context.Context, batchID string) (int64, error) {
	return s.tasks.CountByBatchID(ctx, batchID)
}

// === Lifecycle ===

// Delete removes a task and its message. Returns false if the task does not
// exist.
func (s *Service) Delete(ctx context.Context, id int64, sink domain.EventSink) (bool, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if task.QueueMessageID != nil {
		// Removing the message cascades to the task and its snapshots.
		if _, err := s.queue.Delete(ctx, *task.QueueMessageID, sink); err != nil {
			return false, err
		}
	}
	if err := ignoreNotFound(s.tasks.Delete(ctx, id)); err != nil {
		return false, err
	}
	s.logger.Info("diff task deleted", "task_id", id)
	return true, nil
}

// BulkDelete deletes up to maxCount tasks matching the filter through the
// queue gateway and returns how many were deleted. Use DrainDelete to
// remove a large selection.
func (s *Service) BulkDelete(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, maxCount int) (int, error) {
	_, deleted, err := s.deleteRound(ctx, qf, tf, maxCount)
	return deleted, err
}

// deleteRound selects up to maxCount matching message IDs and deletes them.
// selected may exceed deleted when a concurrent caller removed some of the
// rows first.
func (s *Service) deleteRound(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, maxCount int) (selected, deleted int, err error) {
	if maxCount <= 0 {
		return 0, 0, domain.ErrValidation("bulk delete size must be positive")
	}
	ids, err := s.tasks.ListMessageIDs(ctx, qf, tf, maxCount)
	if err != nil {
		return 0, 0, err
	}
	for _, msgID := range ids {
		ok, err := s.queue.Delete(ctx, msgID, nil)
		if err != nil {
			return len(ids), deleted, err
		}
		if ok {
			deleted++
		}
	}
	return len(ids), deleted, nil
}

// DrainDelete deletes matching tasks in rounds of batchSize until a round
// selects fewer than batchSize, pacing rounds by the drain rate.
func (s *Service) DrainDelete(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, batchSize int) (int, error) {
	total := 0
	for {
		selected, deleted, err := s.deleteRound(ctx, qf, tf, batchSize)
		total += deleted
		if err != nil {
			return total, err
		}
		if selected < batchSize {
			s.logger.Info("drain delete finished", "deleted", total)
			return total, nil
		}
		if err := s.drain.Wait(ctx); err != nil {
			return total, err
		}
	}
}

// Cancel cancels the message of a task. Returns false if the task does not
// exist and *domain.IllegalStateError if it was never scheduled.
func (s *Service) Cancel(ctx context.Context, id int64, sink domain.EventSink) (bool, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if task.QueueMessageID == nil {
		return false, domain.ErrIllegalState("diff task %d has no queue message", id)
	}
	return s.queue.Cancel(ctx, *task.QueueMessageID, sink)
}

// BulkCancel cancels every scheduled or in-process task matching the filter.
func (s *Service) BulkCancel(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error) {
	return s.queue.BulkCancel(ctx, qf, tf)
}

// Reschedule re-submits the message of a task, keeping its identity. An
// unknown task is a no-op.
func (s *Service) Reschedule(ctx context.Context, id int64, sink domain.EventSink) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return ignoreNotFound(err)
	}
	if task.QueueMessageID == nil {
		return domain.ErrIllegalState("diff task %d has no queue message", id)
	}
	return s.RescheduleMessage(ctx, *task.QueueMessageID, sink)
}

// RescheduleMessage re-submits a message by ID on the diff queue.
func (s *Service) RescheduleMessage(ctx context.Context, msgID string, sink domain.EventSink) error {
	return s.queue.Reschedule(ctx, msgID, s.queueName, sink)
}

// === Listing ===

// ListDeviceNames returns the distinct devices owning matching tasks.
func (s *Service) ListDeviceNames(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) ([]string, error) {
	return s.tasks.ListDistinctDeviceNames(ctx, qf, tf)
}

// ListQueueMessageIDs returns up to limit message IDs of matching tasks.
func (s *Service) ListQueueMessageIDs(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, limit int) ([]string, error) {
	return s.tasks.ListMessageIDs(ctx, qf, tf, limit)
}

// ListSnapshots pages through the snapshots of one task in insertion order.
func (s *Service) ListSnapshots(ctx context.Context, id int64, offset, limit int) ([][]byte, error) {
	return s.tasks.ListAttributes(ctx, id, domain.Page{Offset: offset, Limit: limit})
}

// ListSnapshotsByFilter pages through the snapshots of all matching tasks.
func (s *Service) ListSnapshotsByFilter(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, offset, limit int) ([][]byte, error) {
	return s.tasks.ListAttributesByFilter(ctx, qf, tf, domain.Page{Offset: offset, Limit: limit})
}

// ListTasks lazily yields matching tasks. orderBy overrides tf.OrderBy when
// set. The sequence is forward-only; re-issue the call to restart it.
func (s *Service) ListTasks(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, offset, limit int, orderBy string) iter.Seq2[*domain.DiffTask, error] {
	if orderBy != "" {
		tf.OrderBy = orderBy
	}
	return s.tasks.List(ctx, qf, tf, domain.Page{Offset: offset, Limit: limit})
}

// CountTasks counts matching tasks.
func (s *Service) CountTasks(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error) {
	return s.tasks.Count(ctx, qf, tf)
}

// ListBatches aggregates matching tasks by batch ID. offset and limit count
// batches.
func (s *Service) ListBatches(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, offset, limit int, orderBy string) ([]domain.DiffBatch, error) {
	if orderBy != "" {
		tf.OrderBy = orderBy
	}
	return s.batches.List(ctx, qf, tf, domain.Page{Offset: offset, Limit: limit})
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}

func ignoreNotFound(err error) error {
	if isNotFound(err) {
		return nil
	}
	return err
}
