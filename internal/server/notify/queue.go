package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueClosed is returned by a MemoryQueue after Close.
	ErrQueueClosed = errors.New("queue closed")
	// ErrQueueFull is returned when a MemoryQueue has no room for a ready job.
	ErrQueueFull = errors.New("queue full")
)

// Queue is the producer side used by the request path. Enqueue must not
// wait for a consumer.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Backend is the full queue contract a Dispatcher consumes.
type Backend interface {
	Queue
	// Dequeue blocks up to wait for the next ready job. It returns
	// (nil, nil) when nothing arrived in time.
	Dequeue(ctx context.Context, wait time.Duration) (*Job, error)
	// Ack releases a dequeued job that completed.
	Ack(ctx context.Context, job Job) error
	// Retry releases a dequeued job and schedules it to become ready again
	// at the given time.
	Retry(ctx context.Context, job Job, at time.Time) error
	// Fail releases a dequeued job and parks it in the failed set.
	Fail(ctx context.Context, job Job, reason string) error
	// PromoteDue moves scheduled jobs whose time has come to the ready
	// queue, together with dequeued jobs that were never released.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}

// FailedJob is a job that exhausted its attempts.
type FailedJob struct {
	Job      Job       `json:"job"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

type delayedJob struct {
	job Job
	at  time.Time
}

// MemoryQueue is an in-process Backend used when no Redis is configured and
// in tests. Jobs do not survive a restart.
type MemoryQueue struct {
	ready chan Job

	mu      sync.Mutex
	delayed []delayedJob
	failed  []FailedJob
	closed  bool
}

// NewMemoryQueue returns a queue holding up to capacity ready jobs.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{ready: make(chan Job, capacity)}
}

// Enqueue adds job to the ready queue, failing with ErrQueueFull instead of
// waiting when it is at capacity.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.ready <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case job := <-q.ready:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op: a MemoryQueue forgets a job once it is dequeued.
func (q *MemoryQueue) Ack(context.Context, Job) error {
	return nil
}

func (q *MemoryQueue) Retry(_ context.Context, job Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, delayedJob{job: job, at: at})
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, job Job, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, FailedJob{Job: job, Reason: reason, FailedAt: time.Now().UTC()})
	return nil
}

// PromoteDue moves due jobs to the ready queue. Jobs it could not move stay
// scheduled for the next call.
func (q *MemoryQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	var due []delayedJob
	kept := make([]delayedJob, 0, len(q.delayed))
	for _, d := range q.delayed {
		if !d.at.After(now) {
			due = append(due, d)
			continue
		}
		kept = append(kept, d)
	}
	q.delayed = kept
	q.mu.Unlock()

	for i, d := range due {
		if err := q.Enqueue(ctx, d.job); err != nil {
			q.mu.Lock()
			q.delayed = append(q.delayed, due[i:]...)
			q.mu.Unlock()
			return i, err
		}
	}
	return len(due), nil
}

// Failed returns a snapshot of jobs that exhausted their attempts.
func (q *MemoryQueue) Failed() []FailedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]FailedJob(nil), q.failed...)
}

// Pending reports how many jobs are ready or scheduled.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) + len(q.delayed)
}

// Close makes further Enqueue calls fail.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
