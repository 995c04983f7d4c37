package cli

import (
	"strconv"
	"strings"
	"time"

	"arcdiff/internal/domain"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func taskStatus(t *domain.DiffTask) string {
	if s, ok := t.Status(); ok {
		return string(s)
	}
	return "-"
}

func taskRow(t *domain.DiffTask) []string {
	batch := "-"
	if t.QueueMessage != nil && t.QueueMessage.BatchID != nil {
		batch = *t.QueueMessage.BatchID
	}
	return []string{
		strconv.FormatInt(t.ID, 10),
		taskStatus(t),
		t.LocalAET,
		t.PrimaryAET,
		t.SecondaryAET,
		strconv.FormatInt(t.Matches, 10),
		strconv.FormatInt(t.Missing, 10),
		strconv.FormatInt(t.Different, 10),
		batch,
		formatTime(t.UpdatedTime),
	}
}

func taskDetail(t *domain.DiffTask) map[string]string {
	fields := map[string]string{
		"id":              strconv.FormatInt(t.ID, 10),
		"status":          taskStatus(t),
		"local_aet":       t.LocalAET,
		"primary_aet":     t.PrimaryAET,
		"secondary_aet":   t.SecondaryAET,
		"query_string":    t.QueryString,
		"check_missing":   strconv.FormatBool(t.CheckMissing),
		"check_different": strconv.FormatBool(t.CheckDifferent),
		"compare_fields":  strings.Join(t.CompareFields, ","),
		"matches":         strconv.FormatInt(t.Matches, 10),
		"missing":         strconv.FormatInt(t.Missing, 10),
		"different":       strconv.FormatInt(t.Different, 10),
		"created_time":    formatTime(t.CreatedTime),
		"updated_time":    formatTime(t.UpdatedTime),
		"queue_message":   deref(t.QueueMessageID),
	}
	if m := t.QueueMessage; m != nil {
		fields["batch_id"] = deref(m.BatchID)
		fields["device_name"] = m.DeviceName
		fields["priority"] = strconv.Itoa(m.Priority)
	}
	return fields
}

func batchRow(b domain.DiffBatch) []string {
	return []string{
		b.BatchID,
		strconv.FormatInt(b.Total(), 10),
		strconv.FormatInt(b.Scheduled, 10),
		strconv.FormatInt(b.InProcess, 10),
		strconv.FormatInt(b.Completed, 10),
		strconv.FormatInt(b.Warning, 10),
		strconv.FormatInt(b.Failed, 10),
		strconv.FormatInt(b.Canceled, 10),
		strconv.FormatInt(b.Matches, 10),
		strconv.FormatInt(b.Missing, 10),
		strconv.FormatInt(b.Different, 10),
		strings.Join(b.DeviceNames, ","),
	}
}

func messageDetail(m *domain.QueueMessage) map[string]string {
	return map[string]string{
		"message_id":      m.MessageID,
		"queue_name":      m.QueueName,
		"device_name":     m.DeviceName,
		"status":          string(m.Status),
		"priority":        strconv.Itoa(m.Priority),
		"batch_id":        deref(m.BatchID),
		"num_failures":    strconv.Itoa(m.NumFailures),
		"error_message":   deref(m.ErrorMessage),
		"outcome_message": deref(m.OutcomeMessage),
		"scheduled_time":  formatTime(m.ScheduledTime),
		"updated_time":    formatTime(m.UpdatedTime),
	}
}
