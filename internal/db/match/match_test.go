package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcdiff/internal/domain"
)

func boolPtr(b bool) *bool { return &b }

func TestDiffTasks_EmptyFilterMatchesAll(t *testing.T) {
	cs := DiffTasks(domain.QueueFilter{}, domain.DiffTaskFilter{})

	where, args := cs.Where()
	assert.Empty(t, cs)
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestDiffTasks_BothSides(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := DiffTasks(
		domain.QueueFilter{
			Statuses:      []domain.QueueStatus{domain.QueueStatusCompleted, domain.QueueStatusWarning},
			DeviceName:    "arc",
			BatchID:       "B1",
			ScheduledTime: domain.TimeRange{From: &from},
		},
		domain.DiffTaskFilter{
			PrimaryAET:   "PACS_A",
			CheckMissing: boolPtr(true),
			CreatedTime:  domain.TimeRange{To: &from},
		},
	)

	where, args := cs.Where()
	assert.Equal(t,
		" WHERE q.status IN (?, ?) AND q.device_name = ? AND q.batch_id = ? AND q.scheduled_time >= ?"+
			" AND t.primary_aet = ? AND t.check_missing = ? AND t.created_time <= ?",
		where)
	assert.Equal(t, []any{"COMPLETED", "WARNING", "arc", "B1", from.UnixMilli(), "PACS_A", int64(1), from.UnixMilli()}, args)
}

func TestDiffTasks_QueryStringIsEscapedSubstring(t *testing.T) {
	cs := DiffTasks(domain.QueueFilter{}, domain.DiffTaskFilter{QueryString: `100%_a\b`})

	require.Len(t, cs, 1)
	assert.Equal(t, `t.query_str LIKE ? ESCAPE '\'`, cs[0].SQL)
	assert.Equal(t, []any{`%100\%\_a\\b%`}, cs[0].Args)
}

func TestDiffBatches_RequiresBatchID(t *testing.T) {
	cs := DiffBatches(domain.QueueFilter{DeviceName: "arc"}, domain.DiffTaskFilter{})

	where, args := cs.Where()
	assert.Equal(t, " WHERE q.batch_id IS NOT NULL AND q.device_name = ?", where)
	assert.Equal(t, []any{"arc"}, args)
}

func TestConditions_AndDoesNotAlias(t *testing.T) {
	base := make(Conditions, 1, 4)
	base[0] = Condition{SQL: "a = ?", Args: []any{1}}

	left := base.And(Condition{SQL: "b = ?", Args: []any{2}})
	right := base.And(Condition{SQL: "c = ?", Args: []any{3}})

	assert.Equal(t, "b = ?", left[1].SQL)
	assert.Equal(t, "c = ?", right[1].SQL)
}

func TestDiffTaskOrder(t *testing.T) {
	tests := []struct {
		name    string
		orderBy string
		want    string
	}{
		{"default", "", " ORDER BY t.pk ASC"},
		{"descending", "-createdTime", " ORDER BY t.created_time DESC, t.pk ASC"},
		{"case insensitive and multiple", "PrimaryAET, -scheduledtime", " ORDER BY t.primary_aet ASC, q.scheduled_time DESC, t.pk ASC"},
		{"explicit pk", "-pk", " ORDER BY t.pk DESC"},
		{"duplicates collapse", "matches,-matches", " ORDER BY t.matches ASC, t.pk ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiffTaskOrder(tt.orderBy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiffTaskOrder_RejectsUnknownField(t *testing.T) {
	for _, orderBy := range []string{"t.pk; DROP TABLE diff_task", "random()", "-encoded_attrs"} {
		_, err := DiffTaskOrder(orderBy)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr, orderBy)
	}
}

func TestDiffBatchOrder(t *testing.T) {
	got, err := DiffBatchOrder("-updatedTime")
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY MAX(t.updated_time) DESC, q.batch_id ASC", got)

	got, err = DiffBatchOrder("")
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY q.batch_id ASC", got)

	_, err = DiffBatchOrder("localAET")
	require.Error(t, err)
}
