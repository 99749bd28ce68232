package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/txengine/internal/jobs"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var handled atomic.Int32
	require.NoError(t, q.Start(ctx, func(_ context.Context, job jobs.Job) error {
		assert.Equal(t, jobs.JobTypeImportCSV, job.GetType())
		handled.Add(1)
		return nil
	}))

	job := &jobs.ImportCSVJob{UserID: "user-1", AccountID: "acc-1", Payload: []byte("date,amount,description\n")}
	require.NoError(t, q.PublishImportCSV(ctx, job))
	require.NotEmpty(t, job.JobID)

	waitFor(t, 2*time.Second, func() bool {
		stored, err := store.GetJob(ctx, job.JobID)
		return err == nil && stored.Status == jobs.JobStatusCompleted
	})
	assert.Equal(t, int32(1), handled.Load())
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	require.NoError(t, q.Start(ctx, func(_ context.Context, _ jobs.Job) error {
		return errors.New("boom")
	}))

	job := &jobs.ImportCSVJob{UserID: "user-1", MaxRetries: 1}
	require.NoError(t, q.PublishImportCSV(ctx, job))

	waitFor(t, 5*time.Second, func() bool {
		stored, err := store.GetJob(ctx, job.JobID)
		return err == nil && stored.Status == jobs.JobStatusFailed
	})

	stored, err := store.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "boom", stored.Error)
}

func TestQueue_PublishAfterCloseFails(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Close())

	err := q.PublishImportCSV(context.Background(), &jobs.ImportCSVJob{})
	assert.Error(t, err)
}

func TestStore_ListJobsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	base := time.Now()
	for i, userID := range []string{"user-1", "user-1", "user-2"} {
		job := &jobs.ImportCSVJob{
			JobID:     string(rune('a' + i)),
			UserID:    userID,
			Status:    jobs.JobStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveJob(ctx, job))
	}

	mine, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	// Newest first.
	assert.Equal(t, "b", mine[0].JobID)

	none, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, none)

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
