package api

import (
	"time"

	"arcdiff/internal/domain"
)

// QueueMessage is the JSON form of a queue message.
type QueueMessage struct {
	MessageID           string            `json:"message_id"`
	QueueName           string            `json:"queue_name"`
	DeviceName          string            `json:"device_name"`
	Status              string            `json:"status"`
	Priority            int               `json:"priority"`
	BatchID             string            `json:"batch_id,omitempty"`
	Properties          map[string]string `json:"properties,omitempty"`
	NumFailures         int               `json:"num_failures"`
	ErrorMessage        string            `json:"error_message,omitempty"`
	OutcomeMessage      string            `json:"outcome_message,omitempty"`
	ScheduledTime       string            `json:"scheduled_time"`
	ProcessingStartTime string            `json:"processing_start_time,omitempty"`
	ProcessingEndTime   string            `json:"processing_end_time,omitempty"`
	CreatedTime         string            `json:"created_time"`
	UpdatedTime         string            `json:"updated_time"`
}

// DiffTask is the JSON form of a diff task, with its queue message when
// the read joined it.
type DiffTask struct {
	ID             int64         `json:"id"`
	LocalAET       string        `json:"local_aet"`
	PrimaryAET     string        `json:"primary_aet"`
	SecondaryAET   string        `json:"secondary_aet"`
	QueryString    string        `json:"query_string,omitempty"`
	CheckMissing   bool          `json:"check_missing"`
	CheckDifferent bool          `json:"check_different"`
	CompareFields  []string      `json:"compare_fields,omitempty"`
	Matches        int64         `json:"matches"`
	Missing        int64         `json:"missing"`
	Different      int64         `json:"different"`
	CreatedTime    string        `json:"created_time"`
	UpdatedTime    string        `json:"updated_time"`
	QueueMessageID string        `json:"queue_message_id,omitempty"`
	QueueMessage   *QueueMessage `json:"queue_message,omitempty"`
}

// TimeSpan is the JSON form of a min/max timestamp pair.
type TimeSpan struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// DiffBatch is the JSON form of a batch aggregate.
type DiffBatch struct {
	BatchID             string     `json:"batch_id"`
	ScheduledTime       TimeSpan   `json:"scheduled_time"`
	ProcessingStartTime TimeSpan   `json:"processing_start_time"`
	ProcessingEndTime   TimeSpan   `json:"processing_end_time"`
	CreatedTime         TimeSpan   `json:"created_time"`
	UpdatedTime         TimeSpan   `json:"updated_time"`
	Matches             int64      `json:"matches"`
	Missing             int64      `json:"missing"`
	Different           int64      `json:"different"`
	DeviceNames         []string   `json:"device_names"`
	LocalAETs           []string   `json:"local_aets"`
	PrimaryAETs         []string   `json:"primary_aets"`
	SecondaryAETs       []string   `json:"secondary_aets"`
	CompareFields       [][]string `json:"compare_fields"`
	CheckMissing        []bool     `json:"check_missing"`
	CheckDifferent      []bool     `json:"check_different"`
	Scheduled           int64      `json:"scheduled"`
	InProcess           int64      `json:"in_process"`
	Completed           int64      `json:"completed"`
	Warning             int64      `json:"warning"`
	Failed              int64      `json:"failed"`
	Canceled            int64      `json:"canceled"`
}

// PaginatedDiffTasks is one page of GET /v1/diff/tasks.
type PaginatedDiffTasks struct {
	Data          []DiffTask `json:"data"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

// PaginatedDiffBatches is one page of GET /v1/diff/batches.
type PaginatedDiffBatches struct {
	Data          []DiffBatch `json:"data"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// QueueMessageToAPI converts a queue message; nil stays nil.
func QueueMessageToAPI(m *domain.QueueMessage) *QueueMessage {
	if m == nil {
		return nil
	}
	return &QueueMessage{
		MessageID:           m.MessageID,
		QueueName:           m.QueueName,
		DeviceName:          m.DeviceName,
		Status:              string(m.Status),
		Priority:            m.Priority,
		BatchID:             deref(m.BatchID),
		Properties:          m.Properties,
		NumFailures:         m.NumFailures,
		ErrorMessage:        deref(m.ErrorMessage),
		OutcomeMessage:      deref(m.OutcomeMessage),
		ScheduledTime:       formatTime(m.ScheduledTime),
		ProcessingStartTime: formatTimePtr(m.ProcessingStartTime),
		ProcessingEndTime:   formatTimePtr(m.ProcessingEndTime),
		CreatedTime:         formatTime(m.CreatedTime),
		UpdatedTime:         formatTime(m.UpdatedTime),
	}
}

// DiffTaskToAPI converts a diff task.
func DiffTaskToAPI(t *domain.DiffTask) DiffTask {
	return DiffTask{
		ID:             t.ID,
		LocalAET:       t.LocalAET,
		PrimaryAET:     t.PrimaryAET,
		SecondaryAET:   t.SecondaryAET,
		QueryString:    t.QueryString,
		CheckMissing:   t.CheckMissing,
		CheckDifferent: t.CheckDifferent,
		CompareFields:  t.CompareFields,
		Matches:        t.Matches,
		Missing:        t.Missing,
		Different:      t.Different,
		CreatedTime:    formatTime(t.CreatedTime),
		UpdatedTime:    formatTime(t.UpdatedTime),
		QueueMessageID: deref(t.QueueMessageID),
		QueueMessage:   QueueMessageToAPI(t.QueueMessage),
	}
}

func timeSpanToAPI(s domain.TimeSpan) TimeSpan {
	return TimeSpan{Min: formatTimePtr(s.Min), Max: formatTimePtr(s.Max)}
}

// DiffBatchToAPI converts a batch aggregate.
func DiffBatchToAPI(b domain.DiffBatch) DiffBatch {
	return DiffBatch{
		BatchID:             b.BatchID,
		ScheduledTime:       timeSpanToAPI(b.ScheduledTime),
		ProcessingStartTime: timeSpanToAPI(b.ProcessingStartTime),
		ProcessingEndTime:   timeSpanToAPI(b.ProcessingEndTime),
		CreatedTime:         timeSpanToAPI(b.CreatedTime),
		UpdatedTime:         timeSpanToAPI(b.UpdatedTime),
		Matches:             b.Matches,
		Missing:             b.Missing,
		Different:           b.Different,
		DeviceNames:         b.DeviceNames,
		LocalAETs:           b.LocalAETs,
		PrimaryAETs:         b.PrimaryAETs,
		SecondaryAETs:       b.SecondaryAETs,
		CompareFields:       b.CompareFields,
		CheckMissing:        b.CheckMissing,
		CheckDifferent:      b.CheckDifferent,
		Scheduled:           b.Scheduled,
		InProcess:           b.InProcess,
		Completed:           b.Completed,
		Warning:             b.Warning,
		Failed:              b.Failed,
		Canceled:            b.Canceled,
	}
}
