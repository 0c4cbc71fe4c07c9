package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-planner/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ReminderJob {
	t.Helper()
	var job *jobs.ReminderJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_DeliversDueJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	delivered := make(chan string, 1)
	require.NoError(t, q.Start(ctx, func(_ context.Context, job jobs.Job) error {
		delivered <- job.GetID()
		return nil
	}))

	require.NoError(t, q.PublishReminder(ctx, &jobs.ReminderJob{
		JobID:     "p1-one-day",
		PaymentID: "p1",
		FireAt:    time.Now().Add(-time.Minute),
	}))

	select {
	case id := <-delivered:
		assert.Equal(t, "p1-one-day", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}
	waitForStatus(t, store, "p1-one-day", jobs.JobStatusCompleted)
}

func TestQueue_CancelPayment(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(context.Context, jobs.Job) error {
		calls.Add(1)
		return nil
	}))

	future := time.Now().Add(time.Hour)
	require.NoError(t, q.PublishReminder(ctx, &jobs.ReminderJob{JobID: "a-one-week", PaymentID: "a", FireAt: future}))
	require.NoError(t, q.PublishReminder(ctx, &jobs.ReminderJob{JobID: "a-one-day", PaymentID: "a", FireAt: future}))
	require.NoError(t, q.PublishReminder(ctx, &jobs.ReminderJob{JobID: "b-one-day", PaymentID: "b", FireAt: future}))
	assert.Equal(t, 3, q.Pending())

	dropped, err := q.CancelPayment(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, q.Pending())

	job, err := store.GetJob(ctx, "a-one-day")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCancelled, job.Status)

	list, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusScheduled})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b-one-day", list[0].JobID)
	assert.Zero(t, calls.Load())
}

func TestQueue_RepublishReplaces(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(10, 1, NewStore())
	defer q.Close()

	require.NoError(t, q.PublishReminder(ctx, &jobs.ReminderJob{JobID: "x", PaymentID: "p", FireAt: time.Now().Add(time.Hour)}))
	require.NoError(t, q.PublishReminder(ctx, &jobs.ReminderJob{JobID: "x", PaymentID: "p", FireAt: time.Now().Add(2 * time.Hour)}))
	assert.Equal(t, 1, q.Pending())
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, 1, store)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(context.Context, jobs.Job) error {
		attempts.Add(1)
		return errors.New("push service down")
	}))

	require.NoError(t, q.PublishReminder(ctx, &jobs.ReminderJob{
		JobID: "r", PaymentID: "p", FireAt: time.Now(), MaxRetries: 2,
	}))

	job := waitForStatus(t, store, "r", jobs.JobStatusFailed)
	assert.Equal(t, 2, job.RetryCount)
	assert.Equal(t, "push service down", job.Error)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestQueue_ClosedRejectsPublish(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Close())
	err := q.PublishReminder(context.Background(), &jobs.ReminderJob{JobID: "x", FireAt: time.Now()})
	assert.Error(t, err)
	assert.Error(t, q.Start(context.Background(), func(context.Context, jobs.Job) error { return nil }))
}
