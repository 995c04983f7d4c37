package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     DiffRequest
		wantErr string
	}{
		{
			name: "valid",
			req:  DiffRequest{LocalAET: "L", PrimaryAET: "P", SecondaryAET: "S", CompareFields: []string{"PatientName"}},
		},
		{
			name:    "missing local",
			req:     DiffRequest{PrimaryAET: "P", SecondaryAET: "S"},
			wantErr: "local AE title is required",
		},
		{
			name:    "blank primary",
			req:     DiffRequest{LocalAET: "L", PrimaryAET: "  ", SecondaryAET: "S"},
			wantErr: "primary AE title is required",
		},
		{
			name:    "missing secondary",
			req:     DiffRequest{LocalAET: "L", PrimaryAET: "P"},
			wantErr: "secondary AE title is required",
		},
		{
			name:    "separator in compare field",
			req:     DiffRequest{LocalAET: "L", PrimaryAET: "P", SecondaryAET: "S", CompareFields: []string{`a\b`}},
			wantErr: "must not contain",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompareFieldsRoundTrip(t *testing.T) {
	fields := []string{"PatientName", "StudyDate", "AccessionNumber"}
	joined := JoinCompareFields(fields)
	assert.Equal(t, `PatientName\StudyDate\AccessionNumber`, joined)
	assert.Equal(t, fields, SplitCompareFields(joined))

	assert.Empty(t, JoinCompareFields(nil))
	assert.Nil(t, SplitCompareFields(""))
}

func TestDiffTaskStatus(t *testing.T) {
	task := &DiffTask{ID: 3}
	_, ok := task.Status()
	assert.False(t, ok)
	assert.Equal(t, "DiffTask[pk=3, msg=-, ->]", task.String())

	id := "m1"
	task.QueueMessageID = &id
	task.QueueMessage = &QueueMessage{MessageID: id, Status: QueueStatusWarning}
	status, ok := task.Status()
	assert.True(t, ok)
	assert.Equal(t, QueueStatusWarning, status)
	assert.Contains(t, task.String(), "msg=m1")
}

func TestDiffBatchCounts(t *testing.T) {
	var b DiffBatch
	for i, status := range QueueStatuses {
		b.SetCount(status, int64(i+1))
	}
	assert.Equal(t, int64(1), b.Scheduled)
	assert.Equal(t, int64(2), b.InProcess)
	assert.Equal(t, int64(3), b.Completed)
	assert.Equal(t, int64(4), b.Warning)
	assert.Equal(t, int64(5), b.Failed)
	assert.Equal(t, int64(6), b.Canceled)
	assert.Equal(t, int64(21), b.Total())

	b.SetCount(QueueStatus("UNKNOWN"), 100)
	assert.Equal(t, int64(21), b.Total())
}

func TestParseTaskID(t *testing.T) {
	id, err := ParseTaskID(TaskIDToString(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseTaskID("4x")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestNewID_Unique(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
