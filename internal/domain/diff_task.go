package domain

import (
	"fmt"
	"strings"
	"time"
)

// DiffQueueName is the default queue diff tasks are scheduled on.
const DiffQueueName = "DiffTasks"

// compareFieldsSeparator joins compare fields into their persisted form.
const compareFieldsSeparator = `\`

// DiffTask is the durable record of one scheduled comparison between a
// primary and a secondary source.
type DiffTask struct {
	ID             int64
	LocalAET       string
	PrimaryAET     string
	SecondaryAET   string
	QueryString    string
	CheckMissing   bool
	CheckDifferent bool
	CompareFields  []string
	Matches        int64
	Missing        int64
	Different      int64
	CreatedTime    time.Time
	UpdatedTime    time.Time

	// QueueMessageID is nil only for tasks that were never scheduled.
	QueueMessageID *string
	// QueueMessage is populated by reads that join the queue record.
	QueueMessage *QueueMessage
}

// Status returns the task's externally visible status, read through its
// queue message. ok is false for a task without one.
func (t *DiffTask) Status() (status QueueStatus, ok bool) {
	if t.QueueMessage == nil {
		return "", false
	}
	return t.QueueMessage.Status, true
}

func (t *DiffTask) String() string {
	msgID := "-"
	if t.QueueMessageID != nil {
		msgID = *t.QueueMessageID
	}
	return fmt.Sprintf("DiffTask[pk=%d, msg=%s, %s->%s]", t.ID, msgID, t.PrimaryAET, t.SecondaryAET)
}

// JoinCompareFields encodes compare fields for storage.
func JoinCompareFields(fields []string) string {
	return strings.Join(fields, compareFieldsSeparator)
}

// SplitCompareFields decodes the stored compare-field string.
func SplitCompareFields(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, compareFieldsSeparator)
}

// DiffRequest describes a comparison to schedule.
type DiffRequest struct {
	LocalAET       string
	PrimaryAET     string
	SecondaryAET   string
	QueryString    string
	Priority       int
	BatchID        string
	CheckMissing   bool
	CheckDifferent bool
	CompareFields  []string
	RequestInfo    *RequestInfo
}

// Validate checks required fields.
func (r *DiffRequest) Validate() error {
	if strings.TrimSpace(r.LocalAET) == "" {
		return ErrValidation("local AE title is required")
	}
	if strings.TrimSpace(r.PrimaryAET) == "" {
		return ErrValidation("primary AE title is required")
	}
	if strings.TrimSpace(r.SecondaryAET) == "" {
		return ErrValidation("secondary AE title is required")
	}
	for _, f := range r.CompareFields {
		if strings.Contains(f, compareFieldsSeparator) {
			return ErrValidation("compare field %q must not contain %q", f, compareFieldsSeparator)
		}
	}
	return nil
}

// TimeSpan is the min/max of one timestamp family across a batch. Both ends
// are nil when no task in the batch has that timestamp set.
type TimeSpan struct {
	Min *time.Time
	Max *time.Time
}

// DiffBatch aggregates all diff tasks sharing a batch ID. It is derived on
// every query and never persisted.
type DiffBatch struct {
	BatchID string

	ScheduledTime       TimeSpan
	ProcessingStartTime TimeSpan
	ProcessingEndTime   TimeSpan
	CreatedTime         TimeSpan
	UpdatedTime         TimeSpan

	Matches   int64
	Missing   int64
	Different int64

	DeviceNames    []string
	LocalAETs      []string
	PrimaryAETs    []string
	SecondaryAETs  []string
	CompareFields  [][]string // distinct lists, each as submitted
	CheckMissing   []bool
	CheckDifferent []bool

	Scheduled int64
	InProcess int64
	Completed int64
	Warning   int64
	Failed    int64
	Canceled  int64
}

// SetCount stores the population count for status.
func (b *DiffBatch) SetCount(status QueueStatus, n int64) {
	switch status {
	case QueueStatusScheduled:
		b.Scheduled = n
	case QueueStatusInProcess:
		b.InProcess = n
	case QueueStatusCompleted:
		b.Completed = n
	case QueueStatusWarning:
		b.Warning = n
	case QueueStatusFailed:
		b.Failed = n
	case QueueStatusCanceled:
		b.Canceled = n
	}
}

// Total returns the sum of the per-status counts.
func (b *DiffBatch) Total() int64 {
	return b.Scheduled + b.InProcess + b.Completed + b.Warning + b.Failed + b.Canceled
}
