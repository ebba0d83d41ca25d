package domain

import (
	"errors"
	"time"
)

var (
	// ErrJobNotFound indicates that the job is not found.
	ErrJobNotFound = errors.New("job not found")
)

// JobStatus describes the lifecycle state of a job. Transitions are
// forward-only: pending -> processing -> completed or failed.
type JobStatus string

const (
	// JobPending means the job is queued and not yet started.
	JobPending JobStatus = "pending"
	// JobProcessing means a worker is executing the job.
	JobProcessing JobStatus = "processing"
	// JobCompleted means the job finished successfully.
	JobCompleted JobStatus = "completed"
	// JobFailed means the job finished with an error.
	JobFailed JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobTypeRecalculateBalances identifies the downstream balance recalculation job.
const JobTypeRecalculateBalances = "recalculateBalances"

// Job is one asynchronous unit of work with observable lifecycle state.
// A job is immutable once it reaches a terminal status; retries are new jobs.
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// RecalculatePayload carries the edited transaction id and the signed balance
// delta already applied to its own balance.
type RecalculatePayload struct {
	TransactionID int64  `json:"transaction_id"`
	BalanceChange string `json:"balance_change"`
}

// RecalculateResult reports how many downstream transactions were updated.
type RecalculateResult struct {
	UpdatedCount int `json:"updated_count"`
}
