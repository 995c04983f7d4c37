package cli

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcdiff/internal/api"
	"arcdiff/internal/domain"
)

func parseFilter(t *testing.T, args ...string) (domain.QueueFilter, domain.DiffTaskFilter, error) {
	t.Helper()
	var f api.FilterParams
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addFilterFlags(fs, &f)
	require.NoError(t, fs.Parse(args))
	return f.Build()
}

func TestFilterFlags_Build(t *testing.T) {
	qf, tf, err := parseFilter(t,
		"--status", "scheduled,in_process",
		"--status", "FAILED",
		"--device", "arc",
		"--batch", "b1",
		"--scheduled", "20240101-20240131",
		"--processing-end", "20240102120000-",
		"--local-aet", "L",
		"--primary-aet", "P",
		"--secondary-aet", "S",
		"--query", "StudyDate",
		"--check-missing", "true",
		"--check-different", "false",
		"--compare-fields", `PatientName\StudyDate`,
		"--created", "-20240630",
	)
	require.NoError(t, err)

	assert.Equal(t, []domain.QueueStatus{
		domain.QueueStatusScheduled, domain.QueueStatusInProcess, domain.QueueStatusFailed,
	}, qf.Statuses)
	assert.Equal(t, "arc", qf.DeviceName)
	assert.Equal(t, "b1", qf.BatchID)
	require.NotNil(t, qf.ScheduledTime.From)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *qf.ScheduledTime.From)
	require.NotNil(t, qf.ProcessingEndTime.From)
	assert.Nil(t, qf.ProcessingEndTime.To)
	assert.True(t, qf.ProcessingStartTime.IsZero())

	assert.Equal(t, "L", tf.LocalAET)
	assert.Equal(t, "P", tf.PrimaryAET)
	assert.Equal(t, "S", tf.SecondaryAET)
	assert.Equal(t, "StudyDate", tf.QueryString)
	require.NotNil(t, tf.CheckMissing)
	assert.True(t, *tf.CheckMissing)
	require.NotNil(t, tf.CheckDifferent)
	assert.False(t, *tf.CheckDifferent)
	assert.Equal(t, `PatientName\StudyDate`, tf.CompareFields)
	assert.Nil(t, tf.CreatedTime.From)
	require.NotNil(t, tf.CreatedTime.To)
}

func TestFilterFlags_Empty(t *testing.T) {
	qf, tf, err := parseFilter(t)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueFilter{}, qf)
	assert.Equal(t, domain.DiffTaskFilter{}, tf)
}

func TestFilterFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"status", []string{"--status", "DONE"}, "unknown queue status"},
		{"range", []string{"--updated", "yesterday"}, "updated: "},
		{"inverted range", []string{"--scheduled", "20240201-20240101"}, "ends before it starts"},
		{"bool", []string{"--check-different", "yes"}, "check-different must be true or false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseFilter(t, tt.args...)
			var invalid *domain.ValidationError
			require.ErrorAs(t, err, &invalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
