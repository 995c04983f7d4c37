package domain

import (
	"context"
	"time"
)

// QueueGateway schedules work items and manages their queue messages.
// Implemented by queue.Manager.
type QueueGateway interface {
	// CreateMessage allocates an envelope to attach properties to.
	CreateMessage(priority int) *OutgoingMessage
	// Submit enqueues msg. Returns *CapacityExceededError when the queue is full.
	Submit(ctx context.Context, queueName string, msg *OutgoingMessage, priority int, batchID string, delay time.Duration) (*QueueMessage, error)
	// Cancel cancels a scheduled or in-process message. Returns false if unknown.
	Cancel(ctx context.Context, messageID string, sink EventSink) (bool, error)
	// Delete removes a message. Returns false if unknown.
	Delete(ctx context.Context, messageID string, sink EventSink) (bool, error)
	// Reschedule re-submits an existing message, keeping its ID.
	Reschedule(ctx context.Context, messageID, queueName string, sink EventSink) error
	// BulkCancel cancels every cancelable message whose diff task matches
	// the two-sided filter.
	BulkCancel(ctx context.Context, qf QueueFilter, tf DiffTaskFilter) (int64, error)
}
