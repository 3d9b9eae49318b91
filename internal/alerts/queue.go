// Package alerts holds the intruder alert queue and the single background
// worker that delivers queued alerts one at a time.
package alerts

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job references an intruder artifact awaiting delivery.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Path       string    `json:"path"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DepthRecorder receives the queue length after every change.
type DepthRecorder interface {
	SetQueueDepth(n int)
}

// Queue is an unbounded FIFO of jobs with a single consumer. The lock is
// held only for slice operations.
type Queue struct {
	mu    sync.Mutex
	jobs  []Job
	ready chan struct{}
	depth DepthRecorder
	now   func() time.Time
}

// NewQueue creates an empty queue. depth may be nil.
func NewQueue(depth DepthRecorder) *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		depth: depth,
		now:   time.Now,
	}
}

// Enqueue appends a job for path and wakes the worker. It never blocks on
// the consumer.
func (q *Queue) Enqueue(path string) Job {
	job := Job{ID: uuid.New(), Path: path, EnqueuedAt: q.now()}

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	n := len(q.jobs)
	q.mu.Unlock()

	q.record(n)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return job
}

// Pop removes and returns the oldest job.
func (q *Queue) Pop() (Job, bool) {
	q.mu.Lock()
	if len(q.jobs) == 0 {
		q.mu.Unlock()
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs[0] = Job{}
	q.jobs = q.jobs[1:]
	n := len(q.jobs)
	if n == 0 {
		// let the backing array go
		q.jobs = nil
	}
	q.mu.Unlock()

	q.record(n)
	return job, true
}

// Len returns the number of waiting jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Ready is signalled after an enqueue. A single signal may stand for
// several jobs, so consumers drain with Pop until it reports empty.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) record(n int) {
	if q.depth != nil {
		q.depth.SetQueueDepth(n)
	}
}
