package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"arcdiff/internal/db/mapper"
	"arcdiff/internal/db/match"
	"arcdiff/internal/domain"
)

var _ domain.DiffTaskRepository = (*DiffTaskRepo)(nil)

const diffTaskColumns = `t.pk, t.local_aet, t.primary_aet, t.secondary_aet, t.query_str, t.check_missing,
	t.check_different, t.compare_fields, t.matches, t.missing, t.different, t.created_time, t.updated_time,
	t.queue_msg_id`

// DiffTaskRepo stores diff tasks and their attribute snapshots. Mutations
// run on the write pool; listings and projections on the read pool.
type DiffTaskRepo struct {
	db   *sql.DB
	read *sql.DB
	now  clock
}

// NewDiffTaskRepo creates a new DiffTaskRepo. readDB may be nil, in which
// case all queries use writeDB.
func NewDiffTaskRepo(writeDB, readDB *sql.DB) *DiffTaskRepo {
	if readDB == nil {
		readDB = writeDB
	}
	return &DiffTaskRepo{db: writeDB, read: readDB, now: systemClock}
}

// Create inserts a new diff task and returns it with its assigned ID.
func (r *DiffTaskRepo) Create(ctx context.Context, task *domain.DiffTask) (*domain.DiffTask, error) {
	if task == nil {
		return nil, domain.ErrValidation("diff task is required")
	}
	now := mapper.Millis(r.now())

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO diff_task (local_aet, primary_aet, secondary_aet, query_str, check_missing, check_different,
		                       compare_fields, created_time, updated_time, queue_msg_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.LocalAET, task.PrimaryAET, task.SecondaryAET, task.QueryString,
		mapper.BoolToInt(task.CheckMissing), mapper.BoolToInt(task.CheckDifferent),
		mapper.NullStrFromStr(domain.JoinCompareFields(task.CompareFields)),
		now, now, mapper.NullStrFromPtr(task.QueueMessageID))
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.get(ctx, r.db, id)
}

// GetByID returns a diff task with its queue message, if any.
func (r *DiffTaskRepo) GetByID(ctx context.Context, id int64) (*domain.DiffTask, error) {
	return r.get(ctx, r.read, id)
}

func (r *DiffTaskRepo) get(ctx context.Context, db *sql.DB, id int64) (*domain.DiffTask, error) {
	task, err := scanDiffTask(db.QueryRowContext(ctx, `
		SELECT `+diffTaskColumns+`, `+queueMessageColumns+`
		FROM diff_task t LEFT JOIN queue_msg q ON q.msg_id = t.queue_msg_id
		WHERE t.pk = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("diff task %d not found", id)
		}
		return nil, mapDBError(err)
	}
	return task, nil
}

// Reset zeroes the result counters and deletes all attribute snapshots in
// one transaction.
func (r *DiffTaskRepo) Reset(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE diff_task SET matches = 0, missing = 0, different = 0, updated_time = ?
		WHERE pk = ?
	`, mapper.Millis(r.now()), id)
	if err != nil {
		return mapDBError(err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return domain.ErrNotFound("diff task %d not found", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM diff_task_attrs WHERE diff_task_fk = ?`, id); err != nil {
		return mapDBError(err)
	}
	return tx.Commit()
}

// AppendAttributes appends one attribute snapshot to a task.
func (r *DiffTaskRepo) AppendAttributes(ctx context.Context, id int64, payload []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := mapper.Millis(r.now())
	res, err := tx.ExecContext(ctx, `UPDATE diff_task SET updated_time = ? WHERE pk = ?`, now, id)
	if err != nil {
		return mapDBError(err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return domain.ErrNotFound("diff task %d not found", id)
	}

	if payload == nil {
		payload = []byte{}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO diff_task_attrs (diff_task_fk, encoded_attrs, created_time) VALUES (?, ?, ?)
	`, id, payload, now); err != nil {
		return mapDBError(err)
	}
	return tx.Commit()
}

// UpdateResult overwrites the three result counters.
func (r *DiffTaskRepo) UpdateResult(ctx context.Context, id int64, matches, missing, different int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE diff_task SET matches = ?, missing = ?, different = ?, updated_time = ?
		WHERE pk = ?
	`, matches, missing, different, mapper.Millis(r.now()), id)
	if err != nil {
		return mapDBError(err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return domain.ErrNotFound("diff task %d not found", id)
	}
	return nil
}

// Delete removes a task row and, by cascade, its attribute snapshots.
func (r *DiffTaskRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM diff_task WHERE pk = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return domain.ErrNotFound("diff task %d not found", id)
	}
	return nil
}

// FindDeviceNameByID returns the device owning the task's queue message.
// ok is false when the task does not exist or was never scheduled.
func (r *DiffTaskRepo) FindDeviceNameByID(ctx context.Context, id int64) (string, bool, error) {
	var name string
	err := r.read.QueryRowContext(ctx,
		`SELECT q.device_name FROM `+match.DiffTaskJoin+` WHERE t.pk = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, mapDBError(err)
	}
	return name, true, nil
}

// CountByBatchID counts the tasks whose message carries batchID.
func (r *DiffTaskRepo) CountByBatchID(ctx context.Context, batchID string) (int64, error) {
	return r.count(ctx, match.Conditions{{SQL: "q.batch_id = ?", Args: []any{batchID}}})
}

// Count counts the tasks matching the two-sided filter.
func (r *DiffTaskRepo) Count(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error) {
	return r.count(ctx, match.DiffTasks(qf, tf))
}

func (r *DiffTaskRepo) count(ctx context.Context, cs match.Conditions) (int64, error) {
	where, args := cs.Where()
	var n sql.NullInt64
	if err := r.read.QueryRowContext(ctx, `SELECT count(*) FROM `+match.DiffTaskJoin+where, args...).Scan(&n); err != nil {
		return 0, mapDBError(err)
	}
	return n.Int64, nil
}

// List streams the tasks matching the two-sided filter, joined with their
// message, ordered by tf.OrderBy. Rows are read lazily and released when
// the caller stops iterating.
func (r *DiffTaskRepo) List(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) iter.Seq2[*domain.DiffTask, error] {
	return func(yield func(*domain.DiffTask, error) bool) {
		order, err := match.DiffTaskOrder(tf.OrderBy)
		if err != nil {
			yield(nil, err)
			return
		}
		where, args := match.DiffTasks(qf, tf).Where()
		limit, limitArgs := limitOffset(page)

		rows, err := r.read.QueryContext(ctx,
			`SELECT `+diffTaskColumns+`, `+queueMessageColumns+` FROM `+match.DiffTaskJoin+where+order+limit,
			append(args, limitArgs...)...)
		if err != nil {
			yield(nil, mapDBError(err))
			return
		}
		defer rows.Close() //nolint:errcheck

		for rows.Next() {
			task, err := scanDiffTask(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(task, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// ListMessageIDs returns up to limit message IDs of matching tasks, oldest
// task first. limit <= 0 means no limit.
func (r *DiffTaskRepo) ListMessageIDs(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, limit int) ([]string, error) {
	where, args := match.DiffTasks(qf, tf).Where()
	lim, limArgs := limitOffset(domain.Page{Limit: limit})
	return queryStrings(ctx, r.read,
		`SELECT q.msg_id FROM `+match.DiffTaskJoin+where+` ORDER BY t.pk`+lim, append(args, limArgs...)...)
}

// ListDistinctDeviceNames returns the distinct device names of matching tasks.
func (r *DiffTaskRepo) ListDistinctDeviceNames(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) ([]string, error) {
	where, args := match.DiffTasks(qf, tf).Where()
	return queryStrings(ctx, r.read,
		`SELECT DISTINCT q.device_name FROM `+match.DiffTaskJoin+where+` ORDER BY q.device_name`, args...)
}

// ListAttributes returns a task's snapshots in insertion order.
func (r *DiffTaskRepo) ListAttributes(ctx context.Context, id int64, page domain.Page) ([][]byte, error) {
	lim, limArgs := limitOffset(page)
	return queryBlobs(ctx, r.read,
		`SELECT encoded_attrs FROM diff_task_attrs WHERE diff_task_fk = ? ORDER BY pk`+lim,
		append([]any{id}, limArgs...)...)
}

// ListAttributesByFilter returns the snapshots of all matching tasks, task
// by task, each task's snapshots in insertion order.
func (r *DiffTaskRepo) ListAttributesByFilter(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) ([][]byte, error) {
	where, args := match.DiffTasks(qf, tf).Where()
	lim, limArgs := limitOffset(page)
	return queryBlobs(ctx, r.read, `
		SELECT a.encoded_attrs
		FROM `+match.DiffTaskJoin+` JOIN diff_task_attrs a ON a.diff_task_fk = t.pk`+where+`
		ORDER BY t.pk, a.pk`+lim, append(args, limArgs...)...)
}

// ListOrphanMessageIDs returns messages on queueName created before
// createdBefore that no diff task references.
func (r *DiffTaskRepo) ListOrphanMessageIDs(ctx context.Context, queueName string, createdBefore time.Time, limit int) ([]string, error) {
	lim, limArgs := limitOffset(domain.Page{Limit: limit})
	return queryStrings(ctx, r.read, `
		SELECT q.msg_id
		FROM queue_msg q LEFT JOIN diff_task t ON t.queue_msg_id = q.msg_id
		WHERE t.pk IS NULL AND q.queue_name = ? AND q.created_time < ?
		ORDER BY q.created_time`+lim,
		append([]any{queueName, mapper.Millis(createdBefore)}, limArgs...)...)
}

func queryStrings(ctx context.Context, db *sql.DB, stmt string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	out := []string{}
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s.Valid {
			out = append(out, s.String)
		}
	}
	return out, rows.Err()
}

func queryBlobs(ctx context.Context, db *sql.DB, stmt string, args ...any) ([][]byte, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	out := [][]byte{}
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// scanDiffTask scans diffTaskColumns followed by queueMessageColumns. The
// message columns may all be NULL (LEFT JOIN on an unscheduled task).
func scanDiffTask(row rowScanner) (*domain.DiffTask, error) {
	var (
		task                                 domain.DiffTask
		checkMissing, checkDifferent         int64
		compareFields, queueMsgID            sql.NullString
		created, updated                     int64
		msgID, queueName, deviceName, status sql.NullString
		priority, numFailures                sql.NullInt64
		batchID, props, errMsg, outcomeMsg   sql.NullString
		scheduled, procStart, procEnd        sql.NullInt64
		msgCreated, msgUpdated               sql.NullInt64
	)
	if err := row.Scan(
		&task.ID, &task.LocalAET, &task.PrimaryAET, &task.SecondaryAET, &task.QueryString,
		&checkMissing, &checkDifferent, &compareFields, &task.Matches, &task.Missing, &task.Different,
		&created, &updated, &queueMsgID,
		&msgID, &queueName, &deviceName, &status, &priority, &batchID, &props,
		&numFailures, &errMsg, &outcomeMsg, &scheduled, &procStart, &procEnd, &msgCreated, &msgUpdated,
	); err != nil {
		return nil, err
	}

	task.CheckMissing = checkMissing != 0
	task.CheckDifferent = checkDifferent != 0
	task.CompareFields = domain.SplitCompareFields(compareFields.String)
	task.CreatedTime = mapper.TimeFromMillis(created)
	task.UpdatedTime = mapper.TimeFromMillis(updated)
	task.QueueMessageID = mapper.PtrFromNullStr(queueMsgID)

	if msgID.Valid {
		properties, err := mapper.PropertiesFromJSON(props.String)
		if err != nil {
			return nil, err
		}
		task.QueueMessage = &domain.QueueMessage{
			MessageID:           msgID.String,
			QueueName:           queueName.String,
			DeviceName:          deviceName.String,
			Status:              domain.QueueStatus(status.String),
			Priority:            int(priority.Int64),
			BatchID:             mapper.PtrFromNullStr(batchID),
			Properties:          properties,
			NumFailures:         int(numFailures.Int64),
			ErrorMessage:        mapper.PtrFromNullStr(errMsg),
			OutcomeMessage:      mapper.PtrFromNullStr(outcomeMsg),
			ScheduledTime:       mapper.TimeFromMillis(scheduled.Int64),
			ProcessingStartTime: mapper.TimePtrFromNullMillis(procStart),
			ProcessingEndTime:   mapper.TimePtrFromNullMillis(procEnd),
			CreatedTime:         mapper.TimeFromMillis(msgCreated.Int64),
			UpdatedTime:         mapper.TimeFromMillis(msgUpdated.Int64),
		}
	}
	return &task, nil
}
