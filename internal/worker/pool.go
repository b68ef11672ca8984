package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/pusha/internal/domain"
	"github.com/notifyhub/pusha/internal/queue"
)

// MetricHooks carries the metric callbacks injected by main.
type MetricHooks struct {
	OnResolved  func(outcome domain.Outcome)
	OnDequeued  func(wait time.Duration)
	OnRecovered func()
}

func (h MetricHooks) withDefaults() MetricHooks {
	if h.OnResolved == nil {
		h.OnResolved = func(domain.Outcome) {}
	}
	if h.OnDequeued == nil {
		h.OnDequeued = func(time.Duration) {}
	}
	if h.OnRecovered == nil {
		h.OnRecovered = func() {}
	}
	return h
}

// Pool runs one worker per queue shard. Each shard keeps its own FIFO order;
// different shards deliver in parallel.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates a worker for every queue in shards.
func NewPool(shards []*queue.Queue, deps Deps, logger *zap.Logger, hooks MetricHooks) *Pool {
	workers := make([]*Worker, len(shards))
	for i, q := range shards {
		workers[i] = NewWorker(i, q, deps, logger.With(zap.Int("worker_id", i)), hooks)
	}
	return &Pool{workers: workers}
}

// Start launches all workers. ctx bounds in-flight deliveries; the workers
// themselves stop when their queues are closed and drained.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has drained its queue and returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// WaitTimeout is Wait bounded by d. It reports whether all workers finished.
func (p *Pool) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }
