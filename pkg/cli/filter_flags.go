package cli

import (
	"github.com/spf13/pflag"

	"arcdiff/internal/api"
	"arcdiff/internal/domain"
)

func addFilterFlags(fs *pflag.FlagSet, f *api.FilterParams) {
	fs.StringSliceVar(&f.Statuses, api.ParamStatus, nil, "Queue status (repeatable): SCHEDULED, IN_PROCESS, COMPLETED, WARNING, FAILED, CANCELED")
	fs.StringVar(&f.DeviceName, api.ParamDevice, "", "Device name of the queue message")
	fs.StringVar(&f.BatchID, api.ParamBatch, "", "Batch ID")
	fs.StringVar(&f.Scheduled, api.ParamScheduled, "", "Scheduled time range (YYYYMMDD[hhmmss]-YYYYMMDD[hhmmss])")
	fs.StringVar(&f.ProcessingStart, api.ParamProcessingStart, "", "Processing start time range")
	fs.StringVar(&f.ProcessingEnd, api.ParamProcessingEnd, "", "Processing end time range")
	fs.StringVar(&f.MsgUpdated, api.ParamMsgUpdated, "", "Queue message updated time range")
	fs.StringVar(&f.LocalAET, api.ParamLocalAET, "", "Local AE title")
	fs.StringVar(&f.PrimaryAET, api.ParamPrimaryAET, "", "Primary AE title")
	fs.StringVar(&f.SecondaryAET, api.ParamSecondaryAET, "", "Secondary AE title")
	fs.StringVar(&f.QueryString, api.ParamQuery, "", "Substring of the query string")
	fs.StringVar(&f.CheckMissing, api.ParamCheckMissing, "", "Filter on the check-missing flag (true|false)")
	fs.StringVar(&f.CheckDifferent, api.ParamCheckDifferent, "", "Filter on the check-different flag (true|false)")
	fs.StringVar(&f.CompareFields, api.ParamCompareFields, "", "Exact persisted compare-field string")
	fs.StringVar(&f.Created, api.ParamCreated, "", "Task created time range")
	fs.StringVar(&f.Updated, api.ParamUpdated, "", "Task updated time range")
}

// pageFlags holds the offset/limit/order-by flags of listing commands.
type pageFlags struct {
	offset  int
	limit   int
	orderBy string
}

func addPageFlags(fs *pflag.FlagSet, p *pageFlags) {
	fs.IntVar(&p.offset, "offset", 0, "Number of rows to skip")
	fs.IntVar(&p.limit, "limit", domain.DefaultPageSize, "Maximum number of rows (0 = no limit)")
	fs.StringVar(&p.orderBy, "order-by", "", "Comma-separated sort fields, '-' prefix for descending")
}
