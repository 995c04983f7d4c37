package api

import (
	"fmt"
	"net/url"
	"strings"

	"arcdiff/internal/domain"
)

// Filter parameter names. The HTTP query parameters and the CLI flags share
// these names.
const (
	ParamStatus          = "status"
	ParamDevice          = "device"
	ParamBatch           = "batch"
	ParamScheduled       = "scheduled"
	ParamProcessingStart = "processing-start"
	ParamProcessingEnd   = "processing-end"
	ParamMsgUpdated      = "msg-updated"
	ParamLocalAET        = "local-aet"
	ParamPrimaryAET      = "primary-aet"
	ParamSecondaryAET    = "secondary-aet"
	ParamQuery           = "query"
	ParamCheckMissing    = "check-missing"
	ParamCheckDifferent  = "check-different"
	ParamCompareFields   = "compare-fields"
	ParamCreated         = "created"
	ParamUpdated         = "updated"
)

// FilterParams holds the raw, unparsed values of a two-sided task filter.
// Time ranges use the YYYYMMDD[hhmmss]-YYYYMMDD[hhmmss] form; boolean
// filters accept "true", "false" or "" (unset).
type FilterParams struct {
	Statuses        []string
	DeviceName      string
	BatchID         string
	Scheduled       string
	ProcessingStart string
	ProcessingEnd   string
	MsgUpdated      string
	LocalAET        string
	PrimaryAET      string
	SecondaryAET    string
	QueryString     string
	CheckMissing    string
	CheckDifferent  string
	CompareFields   string
	Created         string
	Updated         string
}

// FilterParamsFromQuery reads filter parameters from URL query values.
// "status" may repeat or hold a comma-separated list.
func FilterParamsFromQuery(q url.Values) FilterParams {
	var statuses []string
	for _, v := range q[ParamStatus] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
	}
	return FilterParams{
		Statuses:        statuses,
		DeviceName:      q.Get(ParamDevice),
		BatchID:         q.Get(ParamBatch),
		Scheduled:       q.Get(ParamScheduled),
		ProcessingStart: q.Get(ParamProcessingStart),
		ProcessingEnd:   q.Get(ParamProcessingEnd),
		MsgUpdated:      q.Get(ParamMsgUpdated),
		LocalAET:        q.Get(ParamLocalAET),
		PrimaryAET:      q.Get(ParamPrimaryAET),
		SecondaryAET:    q.Get(ParamSecondaryAET),
		QueryString:     q.Get(ParamQuery),
		CheckMissing:    q.Get(ParamCheckMissing),
		CheckDifferent:  q.Get(ParamCheckDifferent),
		CompareFields:   q.Get(ParamCompareFields),
		Created:         q.Get(ParamCreated),
		Updated:         q.Get(ParamUpdated),
	}
}

// Build parses the parameters into the queue-side and task-side filters.
// Every parse failure is a *domain.ValidationError naming the parameter.
func (p FilterParams) Build() (domain.QueueFilter, domain.DiffTaskFilter, error) {
	var (
		qf  domain.QueueFilter
		tf  domain.DiffTaskFilter
		err error
	)
	for _, s := range p.Statuses {
		status, err := domain.ParseQueueStatus(s)
		if err != nil {
			return qf, tf, err
		}
		qf.Statuses = append(qf.Statuses, status)
	}
	qf.DeviceName = p.DeviceName
	qf.BatchID = p.BatchID

	ranges := []struct {
		name  string
		value string
		dst   *domain.TimeRange
	}{
		{ParamScheduled, p.Scheduled, &qf.ScheduledTime},
		{ParamProcessingStart, p.ProcessingStart, &qf.ProcessingStartTime},
		{ParamProcessingEnd, p.ProcessingEnd, &qf.ProcessingEndTime},
		{ParamMsgUpdated, p.MsgUpdated, &qf.UpdatedTime},
		{ParamCreated, p.Created, &tf.CreatedTime},
		{ParamUpdated, p.Updated, &tf.UpdatedTime},
	}
	for _, r := range ranges {
		if *r.dst, err = domain.ParseTimeRange(r.value); err != nil {
			return qf, tf, fmt.Errorf("%s: %w", r.name, err)
		}
	}

	tf.LocalAET = p.LocalAET
	tf.PrimaryAET = p.PrimaryAET
	tf.SecondaryAET = p.SecondaryAET
	tf.QueryString = p.QueryString
	tf.CompareFields = p.CompareFields
	if tf.CheckMissing, err = parseOptionalBool(ParamCheckMissing, p.CheckMissing); err != nil {
		return qf, tf, err
	}
	if tf.CheckDifferent, err = parseOptionalBool(ParamCheckDifferent, p.CheckDifferent); err != nil {
		return qf, tf, err
	}
	return qf, tf, nil
}

func parseOptionalBool(name, value string) (*bool, error) {
	switch strings.ToLower(value) {
	case "":
		return nil, nil
	case "true":
		b := true
		return &b, nil
	case "false":
		b := false
		return &b, nil
	default:
		return nil, domain.ErrValidation("%s must be true or false, got %q", name, value)
	}
}
