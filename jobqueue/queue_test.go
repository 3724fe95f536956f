package jobqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvhen/go-fetch/internal/model"
	"github.com/arvhen/go-fetch/jobqueue"
)

// drain dispatches until n jobs have been delivered or the test times out.
func drain(t *testing.T, q *jobqueue.Queue, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	got := 0
	for got < n {
		got += q.Dispatch()
		if time.Now().After(deadline) {
			t.Fatalf("dispatched %d of %d jobs", got, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubmitAndDispatch(t *testing.T) {
	q := jobqueue.New(nil)
	defer q.Shutdown()

	var completed, cleaned int
	var gotUser any
	id, err := q.Submit(func(ctx context.Context) *model.Result {
		return &model.Result{Status: 200, Body: "ok"}
	}, func(res *model.Result, userData any) {
		completed++
		gotUser = userData
		assert.Equal(t, 200, res.Status)
	}, func(*model.Result) {
		cleaned++
		assert.Equal(t, 1, completed, "cleanup must run after completion")
	}, "ctx-token")
	require.NoError(t, err)
	assert.NotEqual(t, jobqueue.ID{}, id)

	drain(t, q, 1)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, cleaned)
	assert.Equal(t, "ctx-token", gotUser)
}

func TestResultIsDeepCopied(t *testing.T) {
	q := jobqueue.New(nil)
	defer q.Shutdown()

	workerOwned := &model.Result{Status: 200, Raw: []byte("payload")}
	var crossed *model.Result
	_, err := q.Submit(func(ctx context.Context) *model.Result {
		return workerOwned
	}, func(res *model.Result, _ any) {
		crossed = res
	}, nil, nil)
	require.NoError(t, err)
	drain(t, q, 1)

	require.NotNil(t, crossed)
	assert.NotSame(t, workerOwned, crossed)
	workerOwned.Raw[0] = 'X' // scribbling on the worker's copy
	assert.Equal(t, "payload", string(crossed.Raw))
}

func TestNilWorkerResultBecomesFailure(t *testing.T) {
	q := jobqueue.New(nil)
	defer q.Shutdown()

	var got *model.Result
	_, err := q.Submit(func(ctx context.Context) *model.Result {
		return nil
	}, func(res *model.Result, _ any) {
		got = res
	}, nil, nil)
	require.NoError(t, err)
	drain(t, q, 1)

	require.NotNil(t, got)
	assert.Equal(t, -1, got.Status)
	assert.Empty(t, got.Headers)
	assert.Empty(t, got.Body)
}

func TestCancelTripsWorkerContext(t *testing.T) {
	q := jobqueue.New(nil)
	defer q.Shutdown()

	started := make(chan struct{})
	id, err := q.Submit(func(ctx context.Context) *model.Result {
		close(started)
		<-ctx.Done()
		return model.Failure()
	}, nil, nil, nil)
	require.NoError(t, err)

	<-started
	assert.True(t, q.Cancel(id))
	drain(t, q, 1)
	assert.False(t, q.Cancel(id), "finished job is unknown to Cancel")
}

func TestShutdownRunsCleanupWithoutCompletion(t *testing.T) {
	q := jobqueue.New(nil)

	var completed, cleaned int
	_, err := q.Submit(func(ctx context.Context) *model.Result {
		<-ctx.Done()
		return model.Failure()
	}, func(*model.Result, any) {
		completed++
	}, func(*model.Result) {
		cleaned++
	}, nil)
	require.NoError(t, err)

	q.Shutdown()
	assert.Equal(t, 0, completed, "completion is skipped during shutdown")
	assert.Equal(t, 1, cleaned, "cleanup still runs exactly once")

	_, err = q.Submit(func(ctx context.Context) *model.Result { return nil }, nil, nil, nil)
	assert.ErrorIs(t, err, jobqueue.ErrClosed)
}

func TestOutstanding(t *testing.T) {
	q := jobqueue.New(nil)
	defer q.Shutdown()

	release := make(chan struct{})
	_, err := q.Submit(func(ctx context.Context) *model.Result {
		<-release
		return model.Failure()
	}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Outstanding())
	close(release)
	drain(t, q, 1)
	assert.Equal(t, 0, q.Outstanding())
}
