package api

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcdiff/internal/domain"
)

func TestFilterParamsFromQuery(t *testing.T) {
	q, err := url.ParseQuery("status=scheduled,%20in_process&status=failed&batch=b1&device=arc" +
		"&local-aet=L&primary-aet=P&secondary-aet=S&query=PatientID%3D1&compare-fields=PatientName" +
		"&check-missing=TRUE&check-different=false&created=20240101-20240131&scheduled=20240105")
	require.NoError(t, err)

	qf, tf, err := FilterParamsFromQuery(q).Build()
	require.NoError(t, err)

	assert.Equal(t, []domain.QueueStatus{
		domain.QueueStatusScheduled, domain.QueueStatusInProcess, domain.QueueStatusFailed,
	}, qf.Statuses)
	assert.Equal(t, "b1", qf.BatchID)
	assert.Equal(t, "arc", qf.DeviceName)
	require.NotNil(t, qf.ScheduledTime.From)
	require.NotNil(t, qf.ScheduledTime.To)
	assert.Equal(t, "20240105", qf.ScheduledTime.From.Format("20060102"))
	assert.Equal(t, "20240105", qf.ScheduledTime.To.Format("20060102"))

	assert.Equal(t, "L", tf.LocalAET)
	assert.Equal(t, "P", tf.PrimaryAET)
	assert.Equal(t, "S", tf.SecondaryAET)
	assert.Equal(t, "PatientID=1", tf.QueryString)
	assert.Equal(t, "PatientName", tf.CompareFields)
	require.NotNil(t, tf.CheckMissing)
	assert.True(t, *tf.CheckMissing)
	require.NotNil(t, tf.CheckDifferent)
	assert.False(t, *tf.CheckDifferent)
	require.NotNil(t, tf.CreatedTime.From)
	assert.Nil(t, tf.UpdatedTime.From)
}

func TestFilterParamsBuild_Empty(t *testing.T) {
	qf, tf, err := FilterParams{}.Build()
	require.NoError(t, err)
	assert.Empty(t, qf.Statuses)
	assert.Nil(t, tf.CheckMissing)
	assert.Nil(t, tf.CheckDifferent)
	assert.Nil(t, qf.ScheduledTime.From)
}

func TestFilterParamsBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params FilterParams
		want   string
	}{
		{"status", FilterParams{Statuses: []string{"DONE"}}, "unknown queue status"},
		{"processing end", FilterParams{ProcessingEnd: "2024"}, "processing-end: "},
		{"inverted range", FilterParams{Updated: "20240201-20240101"}, "ends before it starts"},
		{"bool", FilterParams{CheckMissing: "yes"}, "check-missing must be true or false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.params.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var validation *domain.ValidationError
			assert.True(t, errors.As(err, &validation))
		})
	}
}
