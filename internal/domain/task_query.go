package domain

import (
	"strings"
	"time"
)

// TimeRange is a closed interval; either end may be nil (unbounded).
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether the range has no bounds.
func (r TimeRange) IsZero() bool { return r.From == nil && r.To == nil }

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102150405"
)

// ParseTimeRange parses a DICOM-style range "FROM-TO" where each side is
// YYYYMMDD or YYYYMMDDhhmmss (UTC) and may be omitted: "20240101-",
// "-20240131", "20240101". A date-only upper bound covers the whole day.
func ParseTimeRange(s string) (TimeRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeRange{}, nil
	}
	from, to, isRange := strings.Cut(s, "-")
	if !isRange {
		to = from
	}

	var r TimeRange
	if from != "" {
		t, _, err := parseRangeBound(from)
		if err != nil {
			return TimeRange{}, err
		}
		r.From = &t
	}
	if to != "" {
		t, dateOnly, err := parseRangeBound(to)
		if err != nil {
			return TimeRange{}, err
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		r.To = &t
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return TimeRange{}, ErrValidation("time range %q ends before it starts", s)
	}
	return r, nil
}

func parseRangeBound(s string) (time.Time, bool, error) {
	switch len(s) {
	case len(dateLayout):
		t, err := time.ParseInLocation(dateLayout, s, time.UTC)
		if err != nil {
			return time.Time{}, false, ErrValidation("invalid date %q", s)
		}
		return t, true, nil
	case len(dateTimeLayout):
		t, err := time.ParseInLocation(dateTimeLayout, s, time.UTC)
		if err != nil {
			return time.Time{}, false, ErrValidation("invalid date-time %q", s)
		}
		return t, false, nil
	default:
		return time.Time{}, false, ErrValidation("invalid time bound %q: want YYYYMMDD or YYYYMMDDhhmmss", s)
	}
}

// QueueFilter selects on fields of the queue message side of the join.
type QueueFilter struct {
	Statuses            []QueueStatus
	DeviceName          string
	BatchID             string
	ScheduledTime       TimeRange
	ProcessingStartTime TimeRange
	ProcessingEndTime   TimeRange
	UpdatedTime         TimeRange
}

// DiffTaskFilter selects on fields of the diff task side of the join.
// OrderBy is a comma-separated list of logical field names, each optionally
// prefixed with "-" for descending order.
type DiffTaskFilter struct {
	LocalAET       string
	PrimaryAET     string
	SecondaryAET   string
	QueryString    string // substring match
	CheckMissing   *bool
	CheckDifferent *bool
	CompareFields  string // exact match on the persisted form
	CreatedTime    TimeRange
	UpdatedTime    TimeRange
	OrderBy        string
}
