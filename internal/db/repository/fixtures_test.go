package repository

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	internaldb "arcdiff/internal/db"
	"arcdiff/internal/domain"
)

type testRepos struct {
	pools   *internaldb.Pools
	msgs    *QueueMessageRepo
	tasks   *DiffTaskRepo
	batches *DiffBatchRepo
}

func setupRepos(t *testing.T) *testRepos {
	t.Helper()
	pools := internaldb.OpenTestSQLite(t)
	return &testRepos{
		pools:   pools,
		msgs:    NewQueueMessageRepo(pools.Write),
		tasks:   NewDiffTaskRepo(pools.Write, pools.Read),
		batches: NewDiffBatchRepo(pools.Read),
	}
}

// fixedClock returns a clock that advances by one second per call.
func fixedClock(start time.Time) clock {
	cur := start.Add(-time.Second)
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func strPtr(s string) *string { return &s }

type taskSpec struct {
	device    string
	batchID   string
	primary   string
	secondary string
	query     string
	fields    []string
	missing   bool
}

// scheduleTask inserts a message and a task referencing it.
func scheduleTask(t *testing.T, r *testRepos, spec taskSpec) *domain.DiffTask {
	t.Helper()
	ctx := context.Background()

	if spec.device == "" {
		spec.device = "arc"
	}
	if spec.primary == "" {
		spec.primary = "PACS_A"
	}
	if spec.secondary == "" {
		spec.secondary = "PACS_B"
	}
	msg := &domain.QueueMessage{
		QueueName:  domain.DiffQueueName,
		DeviceName: spec.device,
		Status:     domain.QueueStatusScheduled,
		Priority:   4,
	}
	if spec.batchID != "" {
		msg.BatchID = strPtr(spec.batchID)
	}
	msg, err := r.msgs.Insert(ctx, msg)
	require.NoError(t, err)

	task, err := r.tasks.Create(ctx, &domain.DiffTask{
		LocalAET:       "ARCDIFF",
		PrimaryAET:     spec.primary,
		SecondaryAET:   spec.secondary,
		QueryString:    spec.query,
		CheckMissing:   spec.missing,
		CheckDifferent: true,
		CompareFields:  spec.fields,
		QueueMessageID: &msg.MessageID,
	})
	require.NoError(t, err)
	return task
}

func setStatus(t *testing.T, r *testRepos, msgID string, status domain.QueueStatus) {
	t.Helper()
	_, err := r.pools.Write.Exec(`UPDATE queue_msg SET status = ? WHERE msg_id = ?`, string(status), msgID)
	require.NoError(t, err)
}

func collect(t *testing.T, seq iter.Seq2[*domain.DiffTask, error]) []*domain.DiffTask {
	t.Helper()
	var out []*domain.DiffTask
	for task, err := range seq {
		require.NoError(t, err)
		out = append(out, task)
	}
	return out
}
