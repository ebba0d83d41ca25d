package jobqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/minibank/ledger-api/internal/domain"
)

const (
	waitTimeout = 2 * time.Second
	pollTick    = 2 * time.Millisecond
)

func testQueue(t *testing.T, concurrency, retention int) *Queue {
	t.Helper()

	q := New(zerolog.Nop(), concurrency, retention)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()

		if err := q.Shutdown(ctx); err != nil {
			t.Fatalf("q.Shutdown() returned error: %v", err)
		}
	})

	return q
}

func waitForStatus(t *testing.T, q *Queue, id string, want domain.JobStatus) domain.Job {
	t.Helper()

	var got domain.Job

	require.Eventually(t, func() bool {
		job, err := q.Get(id)
		if err != nil {
			return false
		}
		got = job

		return job.Status == want
	}, waitTimeout, pollTick, "job %s never reached status %s", id, want)

	return got
}

func TestSubmitReturnsPendingJob(t *testing.T) {
	q := testQueue(t, 1, 0)
	q.Register("noop", func(ctx context.Context, payload any) (any, error) {
		return nil, nil
	})

	job, err := q.Submit("noop", nil)
	require.NoError(t, err)

	require.NotEmpty(t, job.ID)
	require.Equal(t, "noop", job.Type)
	require.Equal(t, domain.JobPending, job.Status)
	require.False(t, job.CreatedAt.IsZero())
	require.False(t, job.UpdatedAt.IsZero())

	waitForStatus(t, q, job.ID, domain.JobCompleted)
}

func TestCompletedJobKeepsResult(t *testing.T) {
	q := testQueue(t, 1, 0)
	q.Register("noop", func(ctx context.Context, payload any) (any, error) {
		return domain.RecalculateResult{UpdatedCount: 7}, nil
	})

	job, err := q.Submit("noop", nil)
	require.NoError(t, err)

	got := waitForStatus(t, q, job.ID, domain.JobCompleted)
	require.Equal(t, domain.RecalculateResult{UpdatedCount: 7}, got.Result)
	require.Empty(t, got.Error)
	require.True(t, !got.UpdatedAt.Before(got.CreatedAt))
}

func TestConcurrencyBound(t *testing.T) {
	const concurrency = 2

	q := testQueue(t, concurrency, 0)

	var (
		active  int32
		maxSeen int32
	)

	release := make(chan struct{})

	q.Register("blocking", func(ctx context.Context, payload any) (any, error) {
		n := atomic.AddInt32(&active, 1)

		for {
			seen := atomic.LoadInt32(&maxSeen)
			if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
				break
			}
		}

		<-release
		atomic.AddInt32(&active, -1)

		return nil, nil
	})

	ids := make([]string, 0, 6)

	for i := 0; i < 6; i++ {
		job, err := q.Submit("blocking", nil)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&active) == concurrency
	}, waitTimeout, pollTick)

	// The other four stay queued while both slots are busy.
	processing := 0
	for _, job := range q.List() {
		if job.Status == domain.JobProcessing {
			processing++
		}
	}
	require.Equal(t, concurrency, processing)

	close(release)

	for _, id := range ids {
		waitForStatus(t, q, id, domain.JobCompleted)
	}

	require.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(concurrency))
}

func TestFIFOOrder(t *testing.T) {
	q := testQueue(t, 1, 0)

	var (
		mu      sync.Mutex
		started []string
	)

	gate := make(chan struct{})

	q.Register("ordered", func(ctx context.Context, payload any) (any, error) {
		<-gate

		mu.Lock()
		started = append(started, payload.(string))
		mu.Unlock()

		return nil, nil
	})

	var last domain.Job

	for _, name := range []string{"J1", "J2", "J3"} {
		job, err := q.Submit("ordered", name)
		require.NoError(t, err)
		last = job
	}

	close(gate)
	waitForStatus(t, q, last.ID, domain.JobCompleted)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"J1", "J2", "J3"}, started)
}

func TestFailureIsolation(t *testing.T) {
	q := testQueue(t, 1, 0)

	q.Register("flaky", func(ctx context.Context, payload any) (any, error) {
		if payload.(string) == "J2" {
			return nil, errors.New("storage unavailable")
		}

		return "ok", nil
	})

	j1, err := q.Submit("flaky", "J1")
	require.NoError(t, err)
	j2, err := q.Submit("flaky", "J2")
	require.NoError(t, err)
	j3, err := q.Submit("flaky", "J3")
	require.NoError(t, err)

	waitForStatus(t, q, j1.ID, domain.JobCompleted)

	failed := waitForStatus(t, q, j2.ID, domain.JobFailed)
	require.Equal(t, "storage unavailable", failed.Error)
	require.Nil(t, failed.Result)

	waitForStatus(t, q, j3.ID, domain.JobCompleted)
}

func TestPanicIsolation(t *testing.T) {
	q := testQueue(t, 1, 0)

	q.Register("panicky", func(ctx context.Context, payload any) (any, error) {
		panic("boom")
	})
	q.Register("noop", func(ctx context.Context, payload any) (any, error) {
		return nil, nil
	})

	bad, err := q.Submit("panicky", nil)
	require.NoError(t, err)
	good, err := q.Submit("noop", nil)
	require.NoError(t, err)

	failed := waitForStatus(t, q, bad.ID, domain.JobFailed)
	require.Contains(t, failed.Error, "boom")

	waitForStatus(t, q, good.ID, domain.JobCompleted)
}

func TestUnknownJobType(t *testing.T) {
	q := testQueue(t, 1, 0)

	job, err := q.Submit("unregistered", nil)
	require.NoError(t, err)

	failed := waitForStatus(t, q, job.ID, domain.JobFailed)
	require.Contains(t, failed.Error, "unknown job type")
}

func TestGetUnknownJob(t *testing.T) {
	q := testQueue(t, 1, 0)

	_, err := q.Get("no-such-job")
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestListSubmissionOrder(t *testing.T) {
	q := testQueue(t, 1, 0)
	q.Register("noop", func(ctx context.Context, payload any) (any, error) {
		return nil, nil
	})

	want := make([]string, 0, 5)

	var last domain.Job

	for i := 0; i < 5; i++ {
		job, err := q.Submit("noop", nil)
		require.NoError(t, err)
		want = append(want, job.ID)
		last = job
	}

	waitForStatus(t, q, last.ID, domain.JobCompleted)

	got := make([]string, 0, 5)
	for _, job := range q.List() {
		got = append(got, job.ID)
	}

	require.Equal(t, want, got)
}

func TestRetentionEvictsOldestTerminal(t *testing.T) {
	q := testQueue(t, 1, 3)
	q.Register("noop", func(ctx context.Context, payload any) (any, error) {
		return nil, nil
	})

	var first domain.Job

	for i := 0; i < 3; i++ {
		job, err := q.Submit("noop", nil)
		require.NoError(t, err)

		if i == 0 {
			first = job
		}

		waitForStatus(t, q, job.ID, domain.JobCompleted)
	}

	// A fourth job pushes the registry over the cap.
	job, err := q.Submit("noop", nil)
	require.NoError(t, err)
	waitForStatus(t, q, job.ID, domain.JobCompleted)

	require.Len(t, q.List(), 3)

	_, err = q.Get(first.ID)
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRetentionNeverEvictsActiveJobs(t *testing.T) {
	q := testQueue(t, 1, 1)

	release := make(chan struct{})

	q.Register("blocking", func(ctx context.Context, payload any) (any, error) {
		<-release
		return nil, nil
	})

	_, err := q.Submit("blocking", nil)
	require.NoError(t, err)
	_, err = q.Submit("blocking", nil)
	require.NoError(t, err)
	j3, err := q.Submit("blocking", nil)
	require.NoError(t, err)

	// Registry is over the cap but nothing is terminal, so all three survive.
	require.Len(t, q.List(), 3)

	close(release)

	// Once everything drains, eviction trims the registry down to the cap,
	// keeping the newest job.
	waitForStatus(t, q, j3.ID, domain.JobCompleted)
	require.Eventually(t, func() bool {
		return len(q.List()) == 1
	}, waitTimeout, pollTick)
}

func TestShutdownRejectsNewJobs(t *testing.T) {
	q := New(zerolog.Nop(), 1, 0)
	q.Register("noop", func(ctx context.Context, payload any) (any, error) {
		return nil, nil
	})

	job, err := q.Submit("noop", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	_, err = q.Submit("noop", nil)
	require.ErrorIs(t, err, ErrQueueClosed)

	// The job submitted before shutdown still reached a terminal state.
	got, err := q.Get(job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobCompleted, got.Status)
}
