// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"iter"
	"time"

	"arcdiff/internal/domain"
)

// === Queue Message Repository Mock ===

// MockQueueMessageRepo implements domain.QueueMessageRepository for testing.
type MockQueueMessageRepo struct {
	InsertFn            func(ctx context.Context, msg *domain.QueueMessage) (*domain.QueueMessage, error)
	InsertWithinLimitFn func(ctx context.Context, msg *domain.QueueMessage, limit int) (*domain.QueueMessage, error)
	GetByIDFn           func(ctx context.Context, id string) (*domain.QueueMessage, error)
	CountByStatusFn     func(ctx context.Context, queueName string, status domain.QueueStatus) (int64, error)
	MarkCanceledFn      func(ctx context.Context, id string) (bool, error)
	CancelMatchingFn    func(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error)
	DeleteFn            func(ctx context.Context, id string) (bool, error)
	RescheduleFn        func(ctx context.Context, id, queueName string, scheduledAt time.Time) (bool, error)
	ClaimNextFn         func(ctx context.Context, queueName string) (*domain.QueueMessage, error)
	FinishFn            func(ctx context.Context, id string, status domain.QueueStatus, outcome, errMsg *string) (bool, error)
}

// Insert implements the interface method for testing.
func (m *MockQueueMessageRepo) Insert(ctx context.Context, msg *domain.QueueMessage) (*domain.QueueMessage, error) {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, msg)
	}
	panic("unexpected call to MockQueueMessageRepo.Insert")
}

// InsertWithinLimit implements the interface method for testing.
func (m *MockQueueMessageRepo) InsertWithinLimit(ctx context.Context, msg *domain.QueueMessage, limit int) (*domain.QueueMessage, error) {
	if m.InsertWithinLimitFn != nil {
		return m.InsertWithinLimitFn(ctx, msg, limit)
	}
	panic("unexpected call to MockQueueMessageRepo.InsertWithinLimit")
}

// GetByID implements the interface method for testing.
func (m *MockQueueMessageRepo) GetByID(ctx context.Context, id string) (*domain.QueueMessage, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	panic("unexpected call to MockQueueMessageRepo.GetByID")
}

// CountByStatus implements the interface method for testing.
func (m *MockQueueMessageRepo) CountByStatus(ctx context.Context, queueName string, status domain.QueueStatus) (int64, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx, queueName, status)
	}
	panic("unexpected call to MockQueueMessageRepo.CountByStatus")
}

// MarkCanceled implements the interface method for testing.
func (m *MockQueueMessageRepo) MarkCanceled(ctx context.Context, id string) (bool, error) {
	if m.MarkCanceledFn != nil {
		return m.MarkCanceledFn(ctx, id)
	}
	panic("unexpected call to MockQueueMessageRepo.MarkCanceled")
}

// CancelMatching implements the interface method for testing.
func (m *MockQueueMessageRepo) CancelMatching(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error) {
	if m.CancelMatchingFn != nil {
		return m.CancelMatchingFn(ctx, qf, tf)
	}
	panic("unexpected call to MockQueueMessageRepo.CancelMatching")
}

// Delete implements the interface method for testing.
func (m *MockQueueMessageRepo) Delete(ctx context.Context, id string) (bool, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	panic("unexpected call to MockQueueMessageRepo.Delete")
}

// Reschedule implements the interface method for testing.
func (m *MockQueueMessageRepo) Reschedule(ctx context.Context, id, queueName string, scheduledAt time.Time) (bool, error) {
	if m.RescheduleFn != nil {
		return m.RescheduleFn(ctx, id, queueName, scheduledAt)
	}
	panic("unexpected call to MockQueueMessageRepo.Reschedule")
}

// ClaimNext implements the interface method for testing.
func (m *MockQueueMessageRepo) ClaimNext(ctx context.Context, queueName string) (*domain.QueueMessage, error) {
	if m.ClaimNextFn != nil {
		return m.ClaimNextFn(ctx, queueName)
	}
	panic("unexpected call to MockQueueMessageRepo.ClaimNext")
}

// Finish implements the interface method for testing.
func (m *MockQueueMessageRepo) Finish(ctx context.Context, id string, status domain.QueueStatus, outcome, errMsg *string) (bool, error) {
	if m.FinishFn != nil {
		return m.FinishFn(ctx, id, status, outcome, errMsg)
	}
	panic("unexpected call to MockQueueMessageRepo.Finish")
}

// === Queue Gateway Mock ===

// MockQueueGateway implements domain.QueueGateway for testing.
type MockQueueGateway struct {
	SubmitFn     func(ctx context.Context, queueName string, msg *domain.OutgoingMessage, priority int, batchID string, delay time.Duration) (*domain.QueueMessage, error)
	CancelFn     func(ctx context.Context, messageID string, sink domain.EventSink) (bool, error)
	DeleteFn     func(ctx context.Context, messageID string, sink domain.EventSink) (bool, error)
	RescheduleFn func(ctx context.Context, messageID, queueName string, sink domain.EventSink) error
	BulkCancelFn func(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error)

	Deleted []string // message IDs passed to Delete, for assertions
}

// CreateMessage implements the interface method for testing.
func (m *MockQueueGateway) CreateMessage(priority int) *domain.OutgoingMessage {
	return &domain.OutgoingMessage{Priority: priority, Properties: make(map[string]string)}
}

// Submit implements the interface method for testing.
func (m *MockQueueGateway) Submit(ctx context.Context, queueName string, msg *domain.OutgoingMessage, priority int, batchID string, delay time.Duration) (*domain.QueueMessage, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, queueName, msg, priority, batchID, delay)
	}
	panic("unexpected call to MockQueueGateway.Submit")
}

// Cancel implements the interface method for testing.
func (m *MockQueueGateway) Cancel(ctx context.Context, messageID string, sink domain.EventSink) (bool, error) {
	if m.CancelFn != nil {
		return m.CancelFn(ctx, messageID, sink)
	}
	panic("unexpected call to MockQueueGateway.Cancel")
}

// Delete implements the interface method for testing.
func (m *MockQueueGateway) Delete(ctx context.Context, messageID string, sink domain.EventSink) (bool, error) {
	m.Deleted = append(m.Deleted, messageID)
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, messageID, sink)
	}
	panic("unexpected call to MockQueueGateway.Delete")
}

// Reschedule implements the interface method for testing.
func (m *MockQueueGateway) Reschedule(ctx context.Context, messageID, queueName string, sink domain.EventSink) error {
	if m.RescheduleFn != nil {
		return m.RescheduleFn(ctx, messageID, queueName, sink)
	}
	panic("unexpected call to MockQueueGateway.Reschedule")
}

// BulkCancel implements the interface method for testing.
func (m *MockQueueGateway) BulkCancel(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error) {
	if m.BulkCancelFn != nil {
		return m.BulkCancelFn(ctx, qf, tf)
	}
	panic("unexpected call to MockQueueGateway.BulkCancel")
}

// === Diff Task Repository Mock ===

// MockDiffTaskRepo implements domain.DiffTaskRepository for testing.
type MockDiffTaskRepo struct {
	CreateFn                  func(ctx context.Context, task *domain.DiffTask) (*domain.DiffTask, error)
	GetByIDFn                 func(ctx context.Context, id int64) (*domain.DiffTask, error)
	ResetFn                   func(ctx context.Context, id int64) error
	AppendAttributesFn        func(ctx context.Context, id int64, payload []byte) error
	UpdateResultFn            func(ctx context.Context, id int64, matches, missing, different int64) error
	DeleteFn                  func(ctx context.Context, id int64) error
	FindDeviceNameByIDFn      func(ctx context.Context, id int64) (string, bool, error)
	CountByBatchIDFn          func(ctx context.Context, batchID string) (int64, error)
	ListFn                    func(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) iter.Seq2[*domain.DiffTask, error]
	CountFn                   func(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error)
	ListMessageIDsFn          func(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, limit int) ([]string, error)
	ListDistinctDeviceNamesFn func(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) ([]string, error)
	ListAttributesFn          func(ctx context.Context, id int64, page domain.Page) ([][]byte, error)
	ListAttributesByFilterFn  func(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) ([][]byte, error)
	ListOrphanMessageIDsFn    func(ctx context.Context, queueName string, createdBefore time.Time, limit int) ([]string, error)
}

// Create implements the interface method for testing.
func (m *MockDiffTaskRepo) Create(ctx context.Context, task *domain.DiffTask) (*domain.DiffTask, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	panic("unexpected call to MockDiffTaskRepo.Create")
}

// GetByID implements the interface method for testing.
func (m *MockDiffTaskRepo) GetByID(ctx context.Context, id int64) (*domain.DiffTask, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	panic("unexpected call to MockDiffTaskRepo.GetByID")
}

// Reset implements the interface method for testing.
func (m *MockDiffTaskRepo) Reset(ctx context.Context, id int64) error {
	if m.ResetFn != nil {
		return m.ResetFn(ctx, id)
	}
	panic("unexpected call to MockDiffTaskRepo.Reset")
}

// AppendAttributes implements the interface method for testing.
func (m *MockDiffTaskRepo) AppendAttributes(ctx context.Context, id int64, payload []byte) error {
	if m.AppendAttributesFn != nil {
		return m.AppendAttributesFn(ctx, id, payload)
	}
	panic("unexpected call to MockDiffTaskRepo.AppendAttributes")
}

// UpdateResult implements the interface method for testing.
func (m *MockDiffTaskRepo) UpdateResult(ctx context.Context, id int64, matches, missing, different int64) error {
	if m.UpdateResultFn != nil {
		return m.UpdateResultFn(ctx, id, matches, missing, different)
	}
	panic("unexpected call to MockDiffTaskRepo.UpdateResult")
}

// Delete implements the interface method for testing.
func (m *MockDiffTaskRepo) Delete(ctx context.Context, id int64) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	panic("unexpected call to MockDiffTaskRepo.Delete")
}

// FindDeviceNameByID implements the interface method for testing.
func (m *MockDiffTaskRepo) FindDeviceNameByID(ctx context.Context, id int64) (string, bool, error) {
	if m.FindDeviceNameByIDFn != nil {
		return m.FindDeviceNameByIDFn(ctx, id)
	}
	panic("unexpected call to MockDiffTaskRepo.FindDeviceNameByID")
}

// CountByBatchID implements the interface method for testing.
func (m *MockDiffTaskRepo) CountByBatchID(ctx context.Context, batchID string) (int64, error) {
	if m.CountByBatchIDFn != nil {
		return m.CountByBatchIDFn(ctx, batchID)
	}
	panic("unexpected call to MockDiffTaskRepo.CountByBatchID")
}

// List implements the interface method for testing.
func (m *MockDiffTaskRepo) List(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) iter.Seq2[*domain.DiffTask, error] {
	if m.ListFn != nil {
		return m.ListFn(ctx, qf, tf, page)
	}
	panic("unexpected call to MockDiffTaskRepo.List")
}

// Count implements the interface method for testing.
func (m *MockDiffTaskRepo) Count(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) (int64, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, qf, tf)
	}
	panic("unexpected call to MockDiffTaskRepo.Count")
}

// ListMessageIDs implements the interface method for testing.
func (m *MockDiffTaskRepo) ListMessageIDs(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, limit int) ([]string, error) {
	if m.ListMessageIDsFn != nil {
		return m.ListMessageIDsFn(ctx, qf, tf, limit)
	}
	panic("unexpected call to MockDiffTaskRepo.ListMessageIDs")
}

// ListDistinctDeviceNames implements the interface method for testing.
func (m *MockDiffTaskRepo) ListDistinctDeviceNames(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter) ([]string, error) {
	if m.ListDistinctDeviceNamesFn != nil {
		return m.ListDistinctDeviceNamesFn(ctx, qf, tf)
	}
	panic("unexpected call to MockDiffTaskRepo.ListDistinctDeviceNames")
}

// ListAttributes implements the interface method for testing.
func (m *MockDiffTaskRepo) ListAttributes(ctx context.Context, id int64, page domain.Page) ([][]byte, error) {
	if m.ListAttributesFn != nil {
		return m.ListAttributesFn(ctx, id, page)
	}
	panic("unexpected call to MockDiffTaskRepo.ListAttributes")
}

// ListAttributesByFilter implements the interface method for testing.
func (m *MockDiffTaskRepo) ListAttributesByFilter(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) ([][]byte, error) {
	if m.ListAttributesByFilterFn != nil {
		return m.ListAttributesByFilterFn(ctx, qf, tf, page)
	}
	panic("unexpected call to MockDiffTaskRepo.ListAttributesByFilter")
}

// ListOrphanMessageIDs implements the interface method for testing.
func (m *MockDiffTaskRepo) ListOrphanMessageIDs(ctx context.Context, queueName string, createdBefore time.Time, limit int) ([]string, error) {
	if m.ListOrphanMessageIDsFn != nil {
		return m.ListOrphanMessageIDsFn(ctx, queueName, createdBefore, limit)
	}
	panic("unexpected call to MockDiffTaskRepo.ListOrphanMessageIDs")
}

// === Diff Batch Repository Mock ===

// MockDiffBatchRepo implements domain.DiffBatchRepository for testing.
type MockDiffBatchRepo struct {
	ListFn func(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) ([]domain.DiffBatch, error)
}

// List implements the interface method for testing.
func (m *MockDiffBatchRepo) List(ctx context.Context, qf domain.QueueFilter, tf domain.DiffTaskFilter, page domain.Page) ([]domain.DiffBatch, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, qf, tf, page)
	}
	panic("unexpected call to MockDiffBatchRepo.List")
}

// Compile-time interface checks.
var (
	_ domain.QueueMessageRepository = (*MockQueueMessageRepo)(nil)
	_ domain.QueueGateway           = (*MockQueueGateway)(nil)
	_ domain.DiffTaskRepository     = (*MockDiffTaskRepo)(nil)
	_ domain.DiffBatchRepository    = (*MockDiffBatchRepo)(nil)
)
