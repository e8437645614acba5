package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
}

func TestJobsRunSequentially(t *testing.T) {
	var running, maxRunning, done atomic.Int32
	bq := New(10, 1, BuilderFunc(func(context.Context, *BuildJob) error {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		done.Add(1)
		return nil
	}))
	ctx := context.Background()
	bq.Start(ctx)
	defer bq.Stop(ctx)

	for range 3 {
		require.NoError(t, bq.Enqueue(NewJob(BuildTypeChange)))
	}
	waitFor(t, func() bool { return done.Load() == 3 })
	require.Equal(t, int32(1), maxRunning.Load())

	waitFor(t, func() bool { return len(bq.History()) == 3 })
	for _, j := range bq.History() {
		require.Equal(t, BuildStatusCompleted, j.Status)
		require.NotNil(t, j.CompletedAt)
	}
}

func TestQueueFullCoalesces(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bq := New(1, 1, BuilderFunc(func(context.Context, *BuildJob) error {
		started <- struct{}{}
		<-release
		return nil
	}))
	ctx := context.Background()
	bq.Start(ctx)
	defer bq.Stop(ctx)

	require.NoError(t, bq.Enqueue(NewJob(BuildTypeManual)))
	<-started
	require.NoError(t, bq.Enqueue(NewJob(BuildTypeChange)))
	require.ErrorIs(t, bq.Enqueue(NewJob(BuildTypeChange)), ErrQueueFull)
	require.Len(t, bq.GetActiveJobs(), 1)

	close(release)
	<-started
	waitFor(t, func() bool { return len(bq.History()) == 2 })
}

func TestFailedAndCanceledJobs(t *testing.T) {
	bq := New(2, 1, BuilderFunc(func(ctx context.Context, job *BuildJob) error {
		if job.Type == BuildTypeInterval {
			<-ctx.Done()
			return ctx.Err()
		}
		return errors.New("boom")
	}))
	ctx := context.Background()
	bq.Start(ctx)

	failed := NewJob(BuildTypeManual)
	require.NoError(t, bq.Enqueue(failed))
	waitFor(t, func() bool {
		j, ok := bq.JobSnapshot(failed.ID)
		return ok && j.Status == BuildStatusFailed
	})
	j, _ := bq.JobSnapshot(failed.ID)
	require.Equal(t, "boom", j.Error)

	blocked := NewJob(BuildTypeInterval)
	require.NoError(t, bq.Enqueue(blocked))
	waitFor(t, func() bool { return len(bq.GetActiveJobs()) == 1 })

	bq.Stop(ctx)
	j, ok := bq.JobSnapshot(blocked.ID)
	require.True(t, ok)
	require.Equal(t, BuildStatusCanceled, j.Status)

	require.ErrorIs(t, bq.Enqueue(NewJob(BuildTypeManual)), ErrStopped)
}

func TestEnqueueValidation(t *testing.T) {
	bq := New(1, 1, BuilderFunc(func(context.Context, *BuildJob) error { return nil }))
	require.Error(t, bq.Enqueue(nil))
	require.Error(t, bq.Enqueue(&BuildJob{}))
	require.Panics(t, func() { New(1, 1, nil) })
}
