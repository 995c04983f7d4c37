// Package queue implements the queue gateway on top of the queue_msg table.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"arcdiff/internal/domain"
)

var _ domain.QueueGateway = (*Manager)(nil)

// Manager schedules queue messages and drives their lifecycle. Storage
// failures that are not domain errors are surfaced as *domain.TransportError.
type Manager struct {
	repo         domain.QueueMessageRepository
	deviceName   string
	maxQueueSize int
	logger       *slog.Logger
	now          func() time.Time
}

// NewManager creates a Manager that stamps deviceName on every message.
// maxQueueSize <= 0 disables the capacity limit.
func NewManager(repo domain.QueueMessageRepository, deviceName string, maxQueueSize int, logger *slog.Logger) *Manager {
	return &Manager{
		repo:         repo,
		deviceName:   deviceName,
		maxQueueSize: maxQueueSize,
		logger:       logger.With("component", "queue"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateMessage allocates an empty envelope.
func (m *Manager) CreateMessage(priority int) *domain.OutgoingMessage {
	return &domain.OutgoingMessage{Priority: priority, Properties: make(map[string]string)}
}

// Submit enqueues msg on queueName, due after delay.
func (m *Manager) Submit(ctx context.Context, queueName string, msg *domain.OutgoingMessage, priority int, batchID string, delay time.Duration) (*domain.QueueMessage, error) {
	if queueName == "" {
		return nil, domain.ErrValidation("queue name is required")
	}
	if msg == nil {
		return nil, domain.ErrValidation("message is required")
	}
	qm := &domain.QueueMessage{
		QueueName:     queueName,
		DeviceName:    m.deviceName,
		Status:        domain.QueueStatusScheduled,
		Priority:      priority,
		Properties:    maps.Clone(msg.Properties),
		ScheduledTime: m.now().Add(delay),
	}
	if batchID != "" {
		qm.BatchID = &batchID
	}
	var (
		out *domain.QueueMessage
		err error
	)
	if m.maxQueueSize > 0 {
		out, err = m.repo.InsertWithinLimit(ctx, qm, m.maxQueueSize)
	} else {
		out, err = m.repo.Insert(ctx, qm)
	}
	if err != nil {
		return nil, transport("submit", err)
	}
	m.logger.Debug("message scheduled", "queue", queueName, "msg_id", out.MessageID, "batch_id", batchID)
	return out, nil
}

// Get returns a message by ID.
func (m *Manager) Get(ctx context.Context, messageID string) (*domain.QueueMessage, error) {
	msg, err := m.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, transport("get", err)
	}
	return msg, nil
}

// Cancel cancels a SCHEDULED or IN_PROCESS message. Returns false when the
// message does not exist, and *domain.IllegalStateError when it already
// reached a final status.
func (m *Manager) Cancel(ctx context.Context, messageID string, sink domain.EventSink) (bool, error) {
	msg, err := m.repo.GetByID(ctx, messageID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, transport("cancel", err)
	}
	if !msg.Status.Cancelable() {
		return false, domain.ErrIllegalState("cannot cancel message %s in status %s", messageID, msg.Status)
	}

	ok, err := m.repo.MarkCanceled(ctx, messageID)
	if err != nil {
		err = transport("cancel", err)
		emit(sink, domain.QueueEvent{Operation: domain.QueueOpCancel, MessageID: messageID, Status: msg.Status, Err: err})
		return false, err
	}
	if !ok {
		// Finished or deleted between the read and the update.
		return false, nil
	}
	emit(sink, domain.QueueEvent{Operation: domain.QueueOpCancel, MessageID: messageID, Status: domain.QueueStatusCanceled})
	m.logger.Info("message canceled", "msg_id", messageID)
	return true, nil
}

// Delete removes a message together with the diff task referencing it.
func (m *Manager) Delete(ctx context.Context, messageID string, sink domain.EventSink) (bool, error) {
	ok, err := m.repo.Delete(ctx, messageID)
	if err != nil {
		err = transport("delete", err)
		emit(sink, domain.QueueEvent{Operation: domain.QueueOpDelete, MessageID: messageID, Err: err})
		return false, err
	}
	if ok {
		emit(sink, domain.QueueEvent{Operation: domain.QueueOpDelete, MessageID: messageID})
		m.logger.Debug("message deleted", "msg_id", messageID)
	}
	return ok, nil
}

// Reschedule puts a message back into SCHEDULED, due now, keeping its ID.
// An empty queueName keeps the message's current queue.
func (m *Manager) Reschedule(ctx context.Context, messageID, queueName string, sink domain.EventSink) error {
	if queueName == "" {
		msg, err := m.repo.GetByID(ctx, messageID)
		if err != nil {
			return transport("reschedule", err)
		}
		queueName = msg.QueueName
	}
	ok, err := m.repo.Reschedule(ctx, messageID, queueName, m.now())
	if err != nil {
		err = transport("reschedule", err)
		emit(sink, domain.QueueEvent{Operation: domain.QueueOpReschedule, MessageID: messageID, Err: err})
		return err
	}
	if !ok {
		return domain.ErrNotFound("queue message %q not found", messageID)
	}
	emit(sink, domain.QueueEvent{Operation: domain.QueueOpReschedule, MessageID: messageID, Status: domain.QueueStatusScheduled})
	m.logger.Info("message rescheduled", "msg_id", messageID, "queue", queueName)
	return nil
}

// BulkCancel cancels every cancelable message whose diff task matches the
// two-sided filter.
func (m *Manager) BulkCancel(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error) {
	n, err := m.repo.CancelMatching(ctx, qf, tf)
	if err != nil {
		return 0, transport("bulk cancel", err)
	}
	if n > 0 {
		m.logger.Info("messages canceled", "count", n)
	}
	return n, nil
}

// Claim moves the next due message on queueName to IN_PROCESS. Returns nil
// when nothing is due.
func (m *Manager) Claim(ctx context.Context, queueName string) (*domain.QueueMessage, error) {
	msg, err := m.repo.ClaimNext(ctx, queueName)
	if err != nil {
		return nil, transport("claim", err)
	}
	return msg, nil
}

// Complete finishes an IN_PROCESS message as COMPLETED, or WARNING when
// warning is set, recording outcome.
func (m *Manager) Complete(ctx context.Context, messageID, outcome string, warning bool) error {
	status := domain.QueueStatusCompleted
	if warning {
		status = domain.QueueStatusWarning
	}
	return m.finish(ctx, messageID, status, &outcome, nil)
}

// Fail finishes an IN_PROCESS message as FAILED.
func (m *Manager) Fail(ctx context.Context, messageID string, cause error) error {
	var errMsg *string
	if cause != nil {
		s := cause.Error()
		errMsg = &s
	}
	return m.finish(ctx, messageID, domain.QueueStatusFailed, nil, errMsg)
}

func (m *Manager) finish(ctx context.Context, messageID string, status domain.QueueStatus, outcome, errMsg *string) error {
	ok, err := m.repo.Finish(ctx, messageID, status, outcome, errMsg)
	if err != nil {
		return transport("finish", err)
	}
	if !ok {
		return domain.ErrIllegalState("message %s is not in process", messageID)
	}
	m.logger.Info("message finished", "msg_id", messageID, "status", status)
	return nil
}

func emit(sink domain.EventSink, ev domain.QueueEvent) {
	if sink != nil {
		sink.OnQueueEvent(ev)
	}
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}

// transport passes domain errors through and wraps everything else.
func transport(op string, err error) error {
	var (
		nf       *domain.NotFoundError
		invalid  *domain.ValidationError
		conflict *domain.ConflictError
		illegal  *domain.IllegalStateError
		capacity *domain.CapacityExceededError
		te       *domain.TransportError
	)
	switch {
	case errors.As(err, &nf), errors.As(err, &invalid), errors.As(err, &conflict),
		errors.As(err, &illegal), errors.As(err, &capacity), errors.As(err, &te):
		return err
	}
	return domain.ErrTransport(op, err)
}
