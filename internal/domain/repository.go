package domain

import (
	"context"
	"iter"
	"time"
)

// DiffTaskRepository provides persistence for diff tasks and their
// attribute snapshots.
type DiffTaskRepository interface {
	Create(ctx context.Context, task *DiffTask) (*DiffTask, error)
	GetByID(ctx context.Context, id int64) (*DiffTask, error)
	Reset(ctx context.Context, id int64) error
	AppendAttributes(ctx context.Context, id int64, payload []byte) error
	UpdateResult(ctx context.Context, id int64, matches, missing, different int64) error
	Delete(ctx context.Context, id int64) error

	FindDeviceNameByID(ctx context.Context, id int64) (string, bool, error)
	CountByBatchID(ctx context.Context, batchID string) (int64, error)

	List(ctx context.Context, qf QueueFilter, tf DiffTaskFilter, page Page) iter.Seq2[*DiffTask, error]
	Count(ctx context.Context, qf QueueFilter, tf DiffTaskFilter) (int64, error)
	ListMessageIDs(ctx context.Context, qf QueueFilter, tf DiffTaskFilter, limit int) ([]string, error)
	ListDistinctDeviceNames(ctx context.Context, qf QueueFilter, tf DiffTaskFilter) ([]string, error)
	ListAttributes(ctx context.Context, id int64, page Page) ([][]byte, error)
	ListAttributesByFilter(ctx context.Context, qf QueueFilter, tf DiffTaskFilter, page Page) ([][]byte, error)

	ListOrphanMessageIDs(ctx context.Context, queueName string, createdBefore time.Time, limit int) ([]string, error)
}

// DiffBatchRepository aggregates diff tasks by batch ID.
type DiffBatchRepository interface {
	List(ctx context.Context, qf QueueFilter, tf DiffTaskFilter, page Page) ([]DiffBatch, error)
}

// QueueMessageRepository persists queue messages for the SQLite-backed
// queue gateway.
type QueueMessageRepository interface {
	Insert(ctx context.Context, msg *QueueMessage) (*QueueMessage, error)
	InsertWithinLimit(ctx context.Context, msg *QueueMessage, limit int) (*QueueMessage, error)
	GetByID(ctx context.Context, id string) (*QueueMessage, error)
	CountByStatus(ctx context.Context, queueName string, status QueueStatus) (int64, error)
	MarkCanceled(ctx context.Context, id string) (bool, error)
	CancelMatching(ctx context.Context, qf QueueFilter, tf DiffTaskFilter) (int64, error)
	Delete(ctx context.Context, id string) (bool, error)
	Reschedule(ctx context.Context, id, queueName string, scheduledAt time.Time) (bool, error)
	ClaimNext(ctx context.Context, queueName string) (*QueueMessage, error)
	Finish(ctx context.Context, id string, status QueueStatus, outcome, errMsg *string) (bool, error)
}
