// Package jobqueue runs fetch workers on background goroutines and marshals
// their results back to a single owning goroutine.
//
// A worker's Result never crosses the goroutine boundary; the queue clones
// it and only the clone is visible to Dispatch. A job leaves the ready list
// exactly once, so its cleanup runs exactly once, whether or not its
// completion ran.
package jobqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/arvhen/go-fetch/internal/model"
	"github.com/arvhen/go-fetch/logging"
)

// ID identifies one submitted job.
type ID = uuid.UUID

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("fetch: job queue closed")

// Worker executes on a background goroutine and returns the result it owns.
type Worker func(ctx context.Context) *model.Result

// OnComplete receives the deep-copied result on the owning goroutine.
type OnComplete func(res *model.Result, userData any)

// OnCleanup always runs on the owning goroutine, exactly once per job,
// even when the completion is skipped during shutdown.
type OnCleanup func(res *model.Result)

type job struct {
	id       ID
	cancel   context.CancelFunc
	complete OnComplete
	cleanup  OnCleanup
	userData any
	result   *model.Result // deep copy; owned by the dispatching goroutine
}

// Queue schedules one goroutine per job. It holds no shared mutable state
// between workers; the mutex only guards the bookkeeping maps.
type Queue struct {
	log *slog.Logger

	mu     sync.Mutex
	jobs   map[ID]*job // submitted, worker still running
	ready  []*job      // finished, waiting for Dispatch
	closed bool
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Queue{log: logger, jobs: map[ID]*job{}}
}

// Submit schedules worker on its own goroutine and returns the job ID.
func (q *Queue) Submit(worker Worker, onComplete OnComplete, onCleanup OnCleanup, userData any) (ID, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return uuid.Nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:       uuid.New(),
		cancel:   cancel,
		complete: onComplete,
		cleanup:  onCleanup,
		userData: userData,
	}
	q.jobs[j.id] = j
	q.wg.Add(1)
	q.mu.Unlock()
	q.log.Debug("job submitted", "id", j.id)

	go func() {
		defer q.wg.Done()
		defer cancel()
		res := worker(ctx)
		if res == nil {
			res = model.Failure()
		}
		j.result = res.Clone() // the only value that crosses goroutines
		q.mu.Lock()
		delete(q.jobs, j.id)
		q.ready = append(q.ready, j)
		q.mu.Unlock()
	}()
	return j.id, nil
}

// Cancel trips the job's context. The worker observes it at its next poll
// and unwinds through its normal cleanup path.
func (q *Queue) Cancel(id ID) bool {
	q.mu.Lock()
	j := q.jobs[id]
	q.mu.Unlock()
	if j == nil {
		return false
	}
	j.cancel()
	return true
}

// Dispatch delivers pending completions on the calling goroutine — the
// single owner of every result copy — and returns how many jobs it handled.
func (q *Queue) Dispatch() int {
	q.mu.Lock()
	ready := q.ready
	q.ready = nil
	closed := q.closed
	q.mu.Unlock()

	for _, j := range ready {
		if j.complete != nil && !closed {
			j.complete(j.result, j.userData)
		}
		if j.cleanup != nil {
			j.cleanup(j.result)
		}
		q.log.Debug("job dispatched", "id", j.id)
	}
	return len(ready)
}

// Outstanding reports how many workers have not finished yet.
func (q *Queue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Shutdown cancels outstanding jobs, waits for their workers and runs the
// remaining cleanups without completions. Submit fails afterwards.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	for _, j := range q.jobs {
		j.cancel()
	}
	q.mu.Unlock()
	q.wg.Wait()
	q.Dispatch()
}
