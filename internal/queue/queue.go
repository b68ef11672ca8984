package queue

import (
	"context"
	"sync"

	"github.com/notifyhub/pusha/internal/domain"
)

// DefaultCapacity bounds memory and the burst handed to one push service path.
const DefaultCapacity = 100

// Queue is a bounded FIFO of jobs between many producers and one worker.
//
// Producers suspend in Enqueue while the buffer is full (backpressure, no
// dropping). Close is the only termination signal for the consumer: after it,
// Dequeue keeps returning buffered jobs and then reports closed-and-empty.
// The buffer itself is never observed except through these methods.
type Queue struct {
	items chan *domain.Job
	done  chan struct{}

	// mu guards close(items) against in-flight sends: producers hold the
	// read lock while sending, Close takes the write lock after waking them.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New returns a queue holding up to capacity jobs; capacity < 1 means DefaultCapacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{
		items: make(chan *domain.Job, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue blocks until the job is accepted, ctx is done, or the queue is closed.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.ErrQueueClosed
	}

	select {
	case q.items <- job:
		return nil
	case <-q.done:
		return domain.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue is the non-blocking variant: it fails with ErrQueueFull instead
// of suspending the caller.
func (q *Queue) TryEnqueue(job *domain.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.ErrQueueClosed
	}

	select {
	case q.items <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job is available. It returns (nil, false) once the
// queue is closed and every buffered job has been handed out.
func (q *Queue) Dequeue() (*domain.Job, bool) {
	job, ok := <-q.items
	return job, ok
}

// DequeueContext is Dequeue with an additional way out for callers that must
// stop waiting before the queue is closed.
func (q *Queue) DequeueContext(ctx context.Context) (*domain.Job, bool) {
	select {
	case job, ok := <-q.items:
		return job, ok
	case <-ctx.Done():
		return nil, false
	}
}

// Close stops accepting jobs. Producers blocked in Enqueue return
// ErrQueueClosed; already buffered jobs remain for the consumer. Safe to call
// more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.items)
		q.mu.Unlock()
	})
}

// Len is the number of buffered jobs; for metrics only.
func (q *Queue) Len() int { return len(q.items) }

// Cap is the fixed capacity.
func (q *Queue) Cap() int { return cap(q.items) }
