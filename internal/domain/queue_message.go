package domain

import (
	"strconv"
	"strings"
	"time"
)

// QueueStatus represents the lifecycle state of a queue message.
type QueueStatus string

// Queue message statuses.
const (
	QueueStatusScheduled QueueStatus = "SCHEDULED"
	QueueStatusInProcess QueueStatus = "IN_PROCESS"
	QueueStatusCompleted QueueStatus = "COMPLETED"
	QueueStatusWarning   QueueStatus = "WARNING"
	QueueStatusFailed    QueueStatus = "FAILED"
	QueueStatusCanceled  QueueStatus = "CANCELED"
)

// DefaultPriority is used for submissions that do not set a priority.
// Lower values are claimed first.
const DefaultPriority = 4

// QueueStatuses lists every status in lifecycle order.
var QueueStatuses = []QueueStatus{
	QueueStatusScheduled,
	QueueStatusInProcess,
	QueueStatusCompleted,
	QueueStatusWarning,
	QueueStatusFailed,
	QueueStatusCanceled,
}

// Valid reports whether s is one of the known statuses.
func (s QueueStatus) Valid() bool {
	for _, known := range QueueStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Cancelable reports whether a message in this status may still be canceled.
func (s QueueStatus) Cancelable() bool {
	return s == QueueStatusScheduled || s == QueueStatusInProcess
}

// ParseQueueStatus parses a status name case-insensitively.
func ParseQueueStatus(s string) (QueueStatus, error) {
	status := QueueStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", ErrValidation("unknown queue status %q", s)
	}
	return status, nil
}

// QueueMessage is the queue-side record tracking execution of one unit of
// work. It is owned by the queue gateway; diff tasks only reference it.
type QueueMessage struct {
	MessageID           string
	QueueName           string
	DeviceName          string
	Status              QueueStatus
	Priority            int
	BatchID             *string
	Properties          map[string]string
	NumFailures         int
	ErrorMessage        *string
	OutcomeMessage      *string
	ScheduledTime       time.Time
	ProcessingStartTime *time.Time
	ProcessingEndTime   *time.Time
	CreatedTime         time.Time
	UpdatedTime         time.Time
}

// Message property names attached to diff task submissions.
const (
	PropLocalAET     = "LocalAET"
	PropPrimaryAET   = "PrimaryAET"
	PropSecondaryAET = "SecondaryAET"
	PropPriority     = "Priority"
	PropQueryString  = "QueryString"

	PropRequestURI = "RequestURI"
	PropRemoteUser = "RemoteUser"
	PropRemoteHost = "RemoteHost"
	PropLocalHost  = "LocalHost"
)

// OutgoingMessage is an envelope allocated by the gateway. Callers attach
// properties before handing it back to Submit.
type OutgoingMessage struct {
	Priority   int
	Properties map[string]string
}

// SetString sets a string property.
func (m *OutgoingMessage) SetString(name, value string) {
	if m.Properties == nil {
		m.Properties = make(map[string]string)
	}
	m.Properties[name] = value
}

// SetInt sets an integer property.
func (m *OutgoingMessage) SetInt(name string, value int) {
	m.SetString(name, strconv.Itoa(value))
}

// QueueOperation names a lifecycle operation reported to an EventSink.
type QueueOperation string

// Queue lifecycle operations.
const (
	QueueOpCancel     QueueOperation = "CANCEL"
	QueueOpDelete     QueueOperation = "DELETE"
	QueueOpReschedule QueueOperation = "RESCHEDULE"
)

// QueueEvent describes the outcome of a lifecycle operation on one message.
type QueueEvent struct {
	Operation QueueOperation
	MessageID string
	Status    QueueStatus
	Err       error
}

// EventSink receives queue lifecycle events. A nil sink is allowed wherever
// one is accepted.
type EventSink interface {
	OnQueueEvent(ev QueueEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev QueueEvent)

// OnQueueEvent implements EventSink.
func (f EventSinkFunc) OnQueueEvent(ev QueueEvent) { f(ev) }

// RequestInfo carries caller context copied verbatim onto a queue message.
type RequestInfo struct {
	RequestURI string
	RemoteUser string
	RemoteHost string
	LocalHost  string
}

// CopyTo attaches the non-empty request fields as message properties.
func (r *RequestInfo) CopyTo(msg *OutgoingMessage) {
	if r == nil {
		return
	}
	for name, value := range map[string]string{
		PropRequestURI: r.RequestURI,
		PropRemoteUser: r.RemoteUser,
		PropRemoteHost: r.RemoteHost,
		PropLocalHost:  r.LocalHost,
	} {
		if value != "" {
			msg.SetString(name, value)
		}
	}
}
