// Package jobqueue provides a bounded-concurrency asynchronous job runner
// with per-job lifecycle tracking.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/minibank/ledger-api/internal/domain"
)

var (
	// ErrQueueClosed indicates that the queue no longer accepts jobs.
	ErrQueueClosed = errors.New("job queue is closed")
	// ErrUnknownJobType indicates that no handler is registered for the job type.
	ErrUnknownJobType = errors.New("unknown job type")
)

// Handler executes one job and returns its result.
type Handler func(ctx context.Context, payload any) (any, error)

// Queue runs at most concurrency jobs simultaneously and queues the rest in
// FIFO order. Job state survives for the lifetime of the process, capped by
// the retention limit: once the registry exceeds it, the oldest terminal jobs
// are evicted; pending and processing jobs are never evicted.
type Queue struct {
	logger      zerolog.Logger
	concurrency int
	retention   int

	mu       sync.Mutex
	handlers map[string]Handler
	jobs     map[string]*domain.Job
	order    []string // submission order, registry eviction source
	backlog  []string // pending job ids waiting for a worker slot
	running  int
	closed   bool

	wg sync.WaitGroup
}

// New creates a queue. Concurrency below 1 is raised to 1; retention below 1
// disables eviction.
func New(logger zerolog.Logger, concurrency, retention int) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Queue{
		logger:      logger.With().Str("component", "jobqueue").Logger(),
		concurrency: concurrency,
		retention:   retention,
		handlers:    make(map[string]Handler),
		jobs:        make(map[string]*domain.Job),
	}
}

// Register binds a handler to a job type. Jobs submitted with an unbound type
// fail at execution time rather than crashing the scheduler.
func (q *Queue) Register(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[jobType] = h
}

// Submit creates a pending job, appends it to the backlog and triggers the
// scheduler. It returns a snapshot of the job immediately; callers poll Get
// for later states.
func (q *Queue) Submit(jobType string, payload any) (domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return domain.Job{}, ErrQueueClosed
	}

	now := time.Now()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   payload,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.backlog = append(q.backlog, job.ID)

	// Snapshot before dispatch so the caller sees the pending state even when
	// a free worker slot picks the job up immediately.
	snapshot := *job

	q.evictLocked()
	q.dispatchLocked()

	q.logger.Info().Str("job_id", job.ID).Str("job_type", jobType).Msg("job submitted")

	return snapshot, nil
}

// Get returns a snapshot of the job with the given id.
func (q *Queue) Get(id string) (domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}

	return *job, nil
}

// List returns snapshots of all retained jobs in submission order.
func (q *Queue) List() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]domain.Job, 0, len(q.order))

	for _, id := range q.order {
		if job, ok := q.jobs[id]; ok {
			jobs = append(jobs, *job)
		}
	}

	return jobs
}

// Shutdown stops intake and waits until in-flight and queued jobs finish or
// ctx expires.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})

	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchLocked drains the backlog while worker slots are free.
// Callers must hold q.mu.
func (q *Queue) dispatchLocked() {
	for q.running < q.concurrency && len(q.backlog) > 0 {
		id := q.backlog[0]
		q.backlog = q.backlog[1:]

		job, ok := q.jobs[id]
		if !ok {
			continue
		}

		job.Status = domain.JobProcessing
		job.UpdatedAt = time.Now()

		q.running++
		q.wg.Add(1)

		go q.run(id, job.Type, job.Payload)
	}
}

// run executes a single job and records its terminal state. Failures never
// cross the queue boundary: panics are recovered and the drain step always
// runs afterwards so one crashing job cannot starve the backlog.
func (q *Queue) run(id, jobType string, payload any) {
	defer q.wg.Done()

	q.mu.Lock()
	handler := q.handlers[jobType]
	q.mu.Unlock()

	q.logger.Info().Str("job_id", id).Str("job_type", jobType).Msg("job started")

	var (
		result any
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()

		if handler == nil {
			err = fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
			return
		}

		result, err = handler(context.Background(), payload)
	}()

	q.mu.Lock()
	if job, ok := q.jobs[id]; ok {
		if err != nil {
			job.Status = domain.JobFailed
			job.Error = err.Error()
		} else {
			job.Status = domain.JobCompleted
			job.Result = result
		}

		job.UpdatedAt = time.Now()
	}

	q.running--
	q.evictLocked()
	q.dispatchLocked()
	q.mu.Unlock()

	if err != nil {
		q.logger.Error().Err(err).Str("job_id", id).Str("job_type", jobType).Msg("job failed")
	} else {
		q.logger.Info().Str("job_id", id).Str("job_type", jobType).Msg("job completed")
	}
}

// evictLocked drops the oldest terminal jobs while the registry exceeds the
// retention cap. Callers must hold q.mu.
func (q *Queue) evictLocked() {
	if q.retention < 1 || len(q.order) <= q.retention {
		return
	}

	kept := q.order[:0]
	excess := len(q.order) - q.retention

	for _, id := range q.order {
		job, ok := q.jobs[id]
		if !ok {
			continue
		}

		if excess > 0 && job.Status.Terminal() {
			delete(q.jobs, id)
			excess--

			continue
		}

		kept = append(kept, id)
	}

	q.order = kept
}
