package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"arcdiff/internal/db/mapper"
	"arcdiff/internal/db/match"
	"arcdiff/internal/domain"
)

var _ domain.QueueMessageRepository = (*QueueMessageRepo)(nil)

const queueMessageColumns = `q.msg_id, q.queue_name, q.device_name, q.status, q.priority, q.batch_id, q.msg_props,
	q.num_failures, q.error_msg, q.outcome_msg, q.scheduled_time, q.proc_start_time, q.proc_end_time,
	q.created_time, q.updated_time`

// QueueMessageRepo stores queue messages in the queue_msg table.
type QueueMessageRepo struct {
	db  *sql.DB
	now clock
}

// NewQueueMessageRepo creates a new QueueMessageRepo on the write pool.
func NewQueueMessageRepo(db *sql.DB) *QueueMessageRepo {
	return &QueueMessageRepo{db: db, now: systemClock}
}

// Insert stores a new message. MessageID, CreatedTime and UpdatedTime are
// assigned when unset.
func (r *QueueMessageRepo) Insert(ctx context.Context, msg *domain.QueueMessage) (*domain.QueueMessage, error) {
	return r.insert(ctx, msg, 0)
}

// InsertWithinLimit stores msg only while its queue holds fewer than limit
// SCHEDULED messages. The check and the insert are one statement, so
// concurrent callers cannot overshoot the limit. A full queue yields
// *domain.CapacityExceededError.
func (r *QueueMessageRepo) InsertWithinLimit(ctx context.Context, msg *domain.QueueMessage, limit int) (*domain.QueueMessage, error) {
	if limit <= 0 {
		return nil, domain.ErrValidation("queue limit must be positive")
	}
	return r.insert(ctx, msg, limit)
}

func (r *QueueMessageRepo) insert(ctx context.Context, msg *domain.QueueMessage, limit int) (*domain.QueueMessage, error) {
	if msg == nil {
		return nil, domain.ErrValidation("queue message is required")
	}
	if msg.MessageID == "" {
		msg.MessageID = domain.NewID()
	}
	now := r.now()
	if msg.CreatedTime.IsZero() {
		msg.CreatedTime = now
	}
	msg.UpdatedTime = now
	if msg.ScheduledTime.IsZero() {
		msg.ScheduledTime = now
	}
	props, err := mapper.PropertiesToJSON(msg.Properties)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO queue_msg (msg_id, queue_name, device_name, status, priority, batch_id, msg_props,
		                       scheduled_time, created_time, updated_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{msg.MessageID, msg.QueueName, msg.DeviceName, string(msg.Status), msg.Priority,
		mapper.NullStrFromPtr(msg.BatchID), props,
		mapper.Millis(msg.ScheduledTime), mapper.Millis(msg.CreatedTime), mapper.Millis(msg.UpdatedTime)}
	if limit > 0 {
		query = `
		INSERT INTO queue_msg (msg_id, queue_name, device_name, status, priority, batch_id, msg_props,
		                       scheduled_time, created_time, updated_time)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE (SELECT count(*) FROM queue_msg WHERE queue_name = ? AND status = ?) < ?`
		args = append(args, msg.QueueName, string(domain.QueueStatusScheduled), limit)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	if limit > 0 {
		n, err := res.RowsAffected()
		if err != nil {
			return nil, mapDBError(err)
		}
		if n == 0 {
			held, err := r.CountByStatus(ctx, msg.QueueName, domain.QueueStatusScheduled)
			if err != nil {
				return nil, err
			}
			return nil, domain.ErrCapacityExceeded("queue %s holds %d scheduled messages (limit %d)", msg.QueueName, held, limit)
		}
	}
	return r.GetByID(ctx, msg.MessageID)
}

// GetByID returns a message by ID.
func (r *QueueMessageRepo) GetByID(ctx context.Context, id string) (*domain.QueueMessage, error) {
	msg, err := scanQueueMessage(r.db.QueryRowContext(ctx,
		`SELECT `+queueMessageColumns+` FROM queue_msg q WHERE q.msg_id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("queue message %q not found", id)
		}
		return nil, mapDBError(err)
	}
	return msg, nil
}

// CountByStatus counts messages on a queue in the given status.
func (r *QueueMessageRepo) CountByStatus(ctx context.Context, queueName string, status domain.QueueStatus) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM queue_msg WHERE queue_name = ? AND status = ?`, queueName, string(status)).Scan(&n)
	if err != nil {
		return 0, mapDBError(err)
	}
	return n, nil
}

// MarkCanceled cancels a SCHEDULED or IN_PROCESS message. Returns false when
// the message does not exist or is in any other status.
func (r *QueueMessageRepo) MarkCanceled(ctx context.Context, id string) (bool, error) {
	now := mapper.Millis(r.now())
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_msg
		SET status = ?, proc_end_time = ?, updated_time = ?
		WHERE msg_id = ? AND status IN (?, ?)
	`, string(domain.QueueStatusCanceled), now, now, id,
		string(domain.QueueStatusScheduled), string(domain.QueueStatusInProcess))
	if err != nil {
		return false, mapDBError(err)
	}
	return affected(res)
}

// CancelMatching cancels every cancelable message whose diff task matches
// the two-sided filter, in one statement.
func (r *QueueMessageRepo) CancelMatching(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error) {
	where, args := match.DiffTasks(qf, tf).Where()
	now := mapper.Millis(r.now())

	stmt := `
		UPDATE queue_msg
		SET status = ?, proc_end_time = ?, updated_time = ?
		WHERE status IN (?, ?)
		  AND msg_id IN (SELECT q.msg_id FROM ` + match.DiffTaskJoin + where + `)`
	execArgs := append([]any{
		string(domain.QueueStatusCanceled), now, now,
		string(domain.QueueStatusScheduled), string(domain.QueueStatusInProcess),
	}, args...)

	res, err := r.db.ExecContext(ctx, stmt, execArgs...)
	if err != nil {
		return 0, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Delete removes a message. Its diff task and the task's attribute rows are
// removed by the foreign-key cascade in the same statement.
func (r *QueueMessageRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM queue_msg WHERE msg_id = ?`, id)
	if err != nil {
		return false, mapDBError(err)
	}
	return affected(res)
}

// Reschedule puts a message back into SCHEDULED on queueName at
// scheduledAt, clearing processing state but keeping its ID.
func (r *QueueMessageRepo) Reschedule(ctx context.Context, id, queueName string, scheduledAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_msg
		SET queue_name = ?, status = ?, scheduled_time = ?, proc_start_time = NULL, proc_end_time = NULL,
		    error_msg = NULL, outcome_msg = NULL, updated_time = ?
		WHERE msg_id = ?
	`, queueName, string(domain.QueueStatusScheduled), mapper.Millis(scheduledAt), mapper.Millis(r.now()), id)
	if err != nil {
		return false, mapDBError(err)
	}
	return affected(res)
}

// ClaimNext moves the highest-priority due message on queueName from
// SCHEDULED to IN_PROCESS and returns it, or nil when none is due.
func (r *QueueMessageRepo) ClaimNext(ctx context.Context, queueName string) (*domain.QueueMessage, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := mapper.Millis(r.now())
	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT msg_id FROM queue_msg
		WHERE queue_name = ? AND status = ? AND scheduled_time <= ?
		ORDER BY priority, scheduled_time, msg_id
		LIMIT 1
	`, queueName, string(domain.QueueStatusScheduled), now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapDBError(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE queue_msg SET status = ?, proc_start_time = ?, proc_end_time = NULL, updated_time = ?
		WHERE msg_id = ?
	`, string(domain.QueueStatusInProcess), now, now, id); err != nil {
		return nil, mapDBError(err)
	}

	msg, err := scanQueueMessage(tx.QueryRowContext(ctx,
		`SELECT `+queueMessageColumns+` FROM queue_msg q WHERE q.msg_id = ?`, id))
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return msg, nil
}

// Finish records the terminal status of an IN_PROCESS message. Returns
// false when the message does not exist or is not in process.
func (r *QueueMessageRepo) Finish(ctx context.Context, id string, status domain.QueueStatus, outcome, errMsg *string) (bool, error) {
	now := mapper.Millis(r.now())
	failures := 0
	if status == domain.QueueStatusFailed {
		failures = 1
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_msg
		SET status = ?, outcome_msg = ?, error_msg = ?, num_failures = num_failures + ?,
		    proc_end_time = ?, updated_time = ?
		WHERE msg_id = ? AND status = ?
	`, string(status), mapper.NullStrFromPtr(outcome), mapper.NullStrFromPtr(errMsg), failures,
		now, now, id, string(domain.QueueStatusInProcess))
	if err != nil {
		return false, mapDBError(err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func scanQueueMessage(row rowScanner) (*domain.QueueMessage, error) {
	var (
		msg                         domain.QueueMessage
		status, props               string
		batchID, errMsg, outcomeMsg sql.NullString
		scheduled, created, updated int64
		procStart, procEnd          sql.NullInt64
	)
	if err := row.Scan(
		&msg.MessageID, &msg.QueueName, &msg.DeviceName, &status, &msg.Priority, &batchID, &props,
		&msg.NumFailures, &errMsg, &outcomeMsg, &scheduled, &procStart, &procEnd, &created, &updated,
	); err != nil {
		return nil, err
	}

	properties, err := mapper.PropertiesFromJSON(props)
	if err != nil {
		return nil, err
	}
	msg.Status = domain.QueueStatus(status)
	msg.Properties = properties
	msg.BatchID = mapper.PtrFromNullStr(batchID)
	msg.ErrorMessage = mapper.PtrFromNullStr(errMsg)
	msg.OutcomeMessage = mapper.PtrFromNullStr(outcomeMsg)
	msg.ScheduledTime = mapper.TimeFromMillis(scheduled)
	msg.ProcessingStartTime = mapper.TimePtrFromNullMillis(procStart)
	msg.ProcessingEndTime = mapper.TimePtrFromNullMillis(procEnd)
	msg.CreatedTime = mapper.TimeFromMillis(created)
	msg.UpdatedTime = mapper.TimeFromMillis(updated)
	return &msg, nil
}
