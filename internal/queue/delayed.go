package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one scheduled delivery. Key identifies the logical target (one
// folder gets at most one pending job).
type Job struct {
	Key     string
	Payload any
	FireAt  time.Time
}

// Handler is the worker callback invoked when a job's delay elapses.
type Handler func(ctx context.Context, job Job)

// DelayedQueue is an in-process delayed-job queue with replace-on-duplicate
// semantics: enqueueing an existing key cancels the pending fire and
// schedules the new one. There is no separate cancel API; rescheduling is
// the only way to displace a pending job.
type DelayedQueue struct {
	mu      sync.Mutex
	pending map[string]*pendingJob
	handler Handler
	logger  *zap.Logger
	stopped bool
}

type pendingJob struct {
	timer *time.Timer
	job   Job
}

func NewDelayedQueue(handler Handler, logger *zap.Logger) *DelayedQueue {
	return &DelayedQueue{
		pending: make(map[string]*pendingJob),
		handler: handler,
		logger:  logger,
	}
}

// Enqueue schedules a job. A pending job with the same key is replaced.
func (q *DelayedQueue) Enqueue(key string, payload any, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}

	if existing, ok := q.pending[key]; ok {
		existing.timer.Stop()
		q.logger.Debug("delayed job replaced", zap.String("key", key))
	}

	job := Job{Key: key, Payload: payload, FireAt: time.Now().Add(delay)}
	q.pending[key] = &pendingJob{
		job: job,
		timer: time.AfterFunc(delay, func() {
			q.fire(key)
		}),
	}
}

func (q *DelayedQueue) fire(key string) {
	q.mu.Lock()
	p, ok := q.pending[key]
	if ok {
		delete(q.pending, key)
	}
	stopped := q.stopped
	q.mu.Unlock()

	if !ok || stopped {
		return
	}
	q.handler(context.Background(), p.job)
}

// Len returns the number of pending jobs.
func (q *DelayedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stop cancels every pending job. The queue accepts no work afterwards.
func (q *DelayedQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	for key, p := range q.pending {
		p.timer.Stop()
		delete(q.pending, key)
	}
}
