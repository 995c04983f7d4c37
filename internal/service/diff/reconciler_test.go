package diff

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcdiff/internal/domain"
	"arcdiff/internal/testutil"
)

func TestReconciler_SweepPagesThroughOrphans(t *testing.T) {
	var orphans []string
	for i := range orphanSweepBatch + 5 {
		orphans = append(orphans, fmt.Sprintf("m%d", i))
	}
	var gotCutoff time.Time
	tasks := &testutil.MockDiffTaskRepo{
		ListOrphanMessageIDsFn: func(_ context.Context, queueName string, createdBefore time.Time, limit int) ([]string, error) {
			assert.Equal(t, domain.DiffQueueName, queueName)
			gotCutoff = createdBefore
			return slices.Clone(orphans[:min(limit, len(orphans))]), nil
		},
	}
	gw := &testutil.MockQueueGateway{
		DeleteFn: func(_ context.Context, id string, _ domain.EventSink) (bool, error) {
			for i, o := range orphans {
				if o == id {
					orphans = append(orphans[:i], orphans[i+1:]...)
					return true, nil
				}
			}
			return false, nil
		},
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := NewReconciler(tasks, gw, "", 10*time.Minute, discardLogger())
	rec.now = func() time.Time { return now }

	removed, err := rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orphanSweepBatch+5, removed)
	assert.Empty(t, orphans)
	assert.Equal(t, now.Add(-10*time.Minute), gotCutoff)
	assert.Len(t, gw.Deleted, orphanSweepBatch+5)
}

func TestReconciler_SweepStopsOnError(t *testing.T) {
	boom := errors.New("queue unavailable")
	tasks := &testutil.MockDiffTaskRepo{
		ListOrphanMessageIDsFn: func(context.Context, string, time.Time, int) ([]string, error) {
			return []string{"a", "b"}, nil
		},
	}
	gw := &testutil.MockQueueGateway{
		DeleteFn: func(_ context.Context, id string, _ domain.EventSink) (bool, error) {
			if id == "b" {
				return false, boom
			}
			return true, nil
		},
	}
	rec := NewReconciler(tasks, gw, "", 0, discardLogger())

	removed, err := rec.Sweep(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, removed)
}

func TestReconciler_StartRejectsInvalidSchedule(t *testing.T) {
	rec := NewReconciler(&testutil.MockDiffTaskRepo{}, &testutil.MockQueueGateway{}, "", time.Minute, discardLogger())

	err := rec.Start("not a schedule")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)

	// Stop without a running schedule is a no-op.
	rec.Stop()
}

func TestReconciler_StartStop(t *testing.T) {
	swept := make(chan struct{}, 1)
	tasks := &testutil.MockDiffTaskRepo{
		ListOrphanMessageIDsFn: func(context.Context, string, time.Time, int) ([]string, error) {
			select {
			case swept <- struct{}{}:
			default:
			}
			return nil, nil
		},
	}
	rec := NewReconciler(tasks, &testutil.MockQueueGateway{}, "", time.Minute, discardLogger())

	require.NoError(t, rec.Start("@every 1s"))
	defer rec.Stop()

	select {
	case <-swept:
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not sweep")
	}
}
