package match

import (
	"strings"

	"arcdiff/internal/domain"
)

// Logical sort keys accepted for task listings, mapped to column expressions.
var diffTaskOrderFields = map[string]string{
	"pk":                  "t.pk",
	"createdtime":         "t.created_time",
	"updatedtime":         "t.updated_time",
	"localaet":            "t.local_aet",
	"primaryaet":          "t.primary_aet",
	"secondaryaet":        "t.secondary_aet",
	"querystring":         "t.query_str",
	"matches":             "t.matches",
	"missing":             "t.missing",
	"different":           "t.different",
	"status":              "q.status",
	"batchid":             "q.batch_id",
	"devicename":          "q.device_name",
	"scheduledtime":       "q.scheduled_time",
	"processingstarttime": "q.proc_start_time",
	"processingendtime":   "q.proc_end_time",
}

// Logical sort keys accepted for batch listings. Each maps to an expression
// valid after GROUP BY q.batch_id.
var diffBatchOrderFields = map[string]string{
	"batchid":             "q.batch_id",
	"scheduledtime":       "MIN(q.scheduled_time)",
	"processingstarttime": "MIN(q.proc_start_time)",
	"processingendtime":   "MAX(q.proc_end_time)",
	"createdtime":         "MIN(t.created_time)",
	"updatedtime":         "MAX(t.updated_time)",
	"matches":             "SUM(t.matches)",
	"missing":             "SUM(t.missing)",
	"different":           "SUM(t.different)",
}

// DiffTaskOrder resolves orderBy (e.g. "-createdTime,localAET") into an
// ORDER BY clause for task queries. t.pk is always the final tie-breaker so
// offset paging is stable.
func DiffTaskOrder(orderBy string) (string, error) {
	return resolveOrder(orderBy, diffTaskOrderFields, "t.pk")
}

// DiffBatchOrder resolves orderBy into an ORDER BY clause for batch
// aggregation, with q.batch_id as the final tie-breaker.
func DiffBatchOrder(orderBy string) (string, error) {
	return resolveOrder(orderBy, diffBatchOrderFields, "q.batch_id")
}

func resolveOrder(orderBy string, allowed map[string]string, tieBreaker string) (string, error) {
	var terms []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(orderBy, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		dir := "ASC"
		if strings.HasPrefix(name, "-") {
			dir = "DESC"
			name = strings.TrimSpace(name[1:])
		}
		expr, ok := allowed[strings.ToLower(name)]
		if !ok {
			return "", domain.ErrValidation("unsupported order field %q", name)
		}
		if seen[expr] {
			continue
		}
		seen[expr] = true
		terms = append(terms, expr+" "+dir)
	}
	if !seen[tieBreaker] {
		terms = append(terms, tieBreaker+" ASC")
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}
