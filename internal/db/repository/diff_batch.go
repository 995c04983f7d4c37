package repository

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"arcdiff/internal/db/mapper"
	"arcdiff/internal/db/match"
	"arcdiff/internal/domain"
)

var _ domain.DiffBatchRepository = (*DiffBatchRepo)(nil)

// defaultBatchLookupConcurrency bounds the per-batch supplemental lookups
// in flight at once.
const defaultBatchLookupConcurrency = 4

// DiffBatchRepo derives batch aggregates from diff tasks grouped by the
// batch ID of their queue message.
type DiffBatchRepo struct {
	db          *sql.DB
	concurrency int
}

// NewDiffBatchRepo creates a new DiffBatchRepo, normally on the read pool.
func NewDiffBatchRepo(db *sql.DB) *DiffBatchRepo {
	return &DiffBatchRepo{db: db, concurrency: defaultBatchLookupConcurrency}
}

// List computes one DiffBatch per batch ID among the tasks matching the
// two-sided filter. Offset and limit count batches, not tasks.
//
// Time spans and sums come from one grouped pass. Descriptive sets and
// per-status counts need one scalar set per batch, so each batch gets its
// own follow-up lookups keyed by batch ID alone.
func (r *DiffBatchRepo) List(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) ([]domain.DiffBatch, error) {
	order, err := match.DiffBatchOrder(tf.OrderBy)
	if err != nil {
		return nil, err
	}
	batches, err := r.aggregate(ctx, qf, tf, page, order)
	if err != nil {
		return nil, err
	}

	// The grouped rows are fully read and closed before fanning out, so a
	// single-connection pool cannot deadlock here.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range batches {
		b := &batches[i]
		g.Go(func() error { return r.describe(gctx, b) })
		g.Go(func() error { return r.countStatuses(gctx, b) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *DiffBatchRepo) aggregate(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page, order string) ([]domain.DiffBatch, error) {
	where, args := match.DiffBatches(qf, tf).Where()
	limit, limitArgs := limitOffset(page)

	rows, err := r.db.QueryContext(ctx, `
		SELECT q.batch_id,
		       MIN(q.scheduled_time), MAX(q.scheduled_time),
		       MIN(q.proc_start_time), MAX(q.proc_start_time),
		       MIN(q.proc_end_time), MAX(q.proc_end_time),
		       MIN(t.created_time), MAX(t.created_time),
		       MIN(t.updated_time), MAX(t.updated_time),
		       SUM(t.matches), SUM(t.missing), SUM(t.different)
		FROM `+match.DiffTaskJoin+where+`
		GROUP BY q.batch_id`+order+limit, append(args, limitArgs...)...)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	batches := []domain.DiffBatch{}
	for rows.Next() {
		var (
			b                                  domain.DiffBatch
			schedMin, schedMax                 sql.NullInt64
			startMin, startMax, endMin, endMax sql.NullInt64
			createdMin, createdMax             sql.NullInt64
			updatedMin, updatedMax             sql.NullInt64
			matches, missing, different        sql.NullInt64
		)
		if err := rows.Scan(&b.BatchID,
			&schedMin, &schedMax, &startMin, &startMax, &endMin, &endMax,
			&createdMin, &createdMax, &updatedMin, &updatedMax,
			&matches, &missing, &different,
		); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.ScheduledTime = timeSpan(schedMin, schedMax)
		b.ProcessingStartTime = timeSpan(startMin, startMax)
		b.ProcessingEndTime = timeSpan(endMin, endMax)
		b.CreatedTime = timeSpan(createdMin, createdMax)
		b.UpdatedTime = timeSpan(updatedMin, updatedMax)
		b.Matches = matches.Int64
		b.Missing = missing.Int64
		b.Different = different.Int64
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func timeSpan(lo, hi sql.NullInt64) domain.TimeSpan {
	return domain.TimeSpan{
		Min: mapper.TimePtrFromNullMillis(lo),
		Max: mapper.TimePtrFromNullMillis(hi),
	}
}

// describe fills the distinct descriptive sets of one batch.
func (r *DiffBatchRepo) describe(ctx context.Context, b *domain.DiffBatch) error {
	var err error
	if b.DeviceNames, err = r.distinct(ctx, "q.device_name", b.BatchID); err != nil {
		return err
	}
	if b.LocalAETs, err = r.distinct(ctx, "t.local_aet", b.BatchID); err != nil {
		return err
	}
	if b.PrimaryAETs, err = r.distinct(ctx, "t.primary_aet", b.BatchID); err != nil {
		return err
	}
	if b.SecondaryAETs, err = r.distinct(ctx, "t.secondary_aet", b.BatchID); err != nil {
		return err
	}
	lists, err := r.distinct(ctx, "t.compare_fields", b.BatchID)
	if err != nil {
		return err
	}
	b.CompareFields = make([][]string, 0, len(lists))
	for _, l := range lists {
		b.CompareFields = append(b.CompareFields, domain.SplitCompareFields(l))
	}
	if b.CheckMissing, err = r.distinctFlags(ctx, "t.check_missing", b.BatchID); err != nil {
		return err
	}
	if b.CheckDifferent, err = r.distinctFlags(ctx, "t.check_different", b.BatchID); err != nil {
		return err
	}
	return nil
}

// countStatuses fills the six per-status counts of one batch. A status with
// no rows counts zero.
func (r *DiffBatchRepo) countStatuses(ctx context.Context, b *domain.DiffBatch) error {
	for _, status := range domain.QueueStatuses {
		var n sql.NullInt64
		err := r.db.QueryRowContext(ctx,
			`SELECT count(*) FROM `+match.DiffTaskJoin+` WHERE q.batch_id = ? AND q.status = ?`,
			b.BatchID, string(status)).Scan(&n)
		if err != nil {
			return mapDBError(err)
		}
		b.SetCount(status, n.Int64)
	}
	return nil
}

// column is always one of the fixed expressions passed by describe.
func (r *DiffBatchRepo) distinct(ctx context.Context, column, batchID string) ([]string, error) {
	return queryStrings(ctx, r.db,
		`SELECT DISTINCT `+column+` FROM `+match.DiffTaskJoin+` WHERE q.batch_id = ? ORDER BY 1`, batchID)
}

func (r *DiffBatchRepo) distinctFlags(ctx context.Context, column, batchID string) ([]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM `+match.DiffTaskJoin+` WHERE q.batch_id = ? ORDER BY 1`, batchID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	out := []bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v != 0)
	}
	return out, rows.Err()
}
