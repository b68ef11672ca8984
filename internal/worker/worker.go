package worker

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/pusha/internal/domain"
	"github.com/notifyhub/pusha/internal/ece"
	"github.com/notifyhub/pusha/internal/provider"
	"github.com/notifyhub/pusha/internal/queue"
	"github.com/notifyhub/pusha/internal/ratelimiter"
	"github.com/notifyhub/pusha/internal/repository"
)

// DefaultPushTimeout bounds one delivery attempt when Deps.PushTimeout is zero.
const DefaultPushTimeout = 10 * time.Second

// Signer authenticates a built message for the push service at audience.
// *vapid.Signer satisfies it.
type Signer interface {
	Authorize(msg *domain.SignedMessage, audience string) error
}

// Deps are the collaborators shared by every worker in a pool.
type Deps struct {
	Signer   Signer
	Provider provider.Provider
	// Limiter and Repo are optional.
	Limiter     *ratelimiter.OriginLimiters
	Repo        repository.DeliveryRepository
	PushTimeout time.Duration
}

// Worker is the single consumer of one dispatch queue. It processes exactly
// one job end to end before taking the next, so jobs reach the push service
// in queue order.
type Worker struct {
	id     int
	q      *queue.Queue
	deps   Deps
	logger *zap.Logger
	hooks  MetricHooks
}

// NewWorker constructs a worker. Nil hooks are no-ops.
func NewWorker(id int, q *queue.Queue, deps Deps, logger *zap.Logger, hooks MetricHooks) *Worker {
	if deps.PushTimeout <= 0 {
		deps.PushTimeout = DefaultPushTimeout
	}
	return &Worker{id: id, q: q, deps: deps, logger: logger, hooks: hooks.withDefaults()}
}

// Run blocks until the queue is closed and drained. ctx bounds in-flight
// deliveries; cancelling it fails the current and remaining jobs quickly but
// every job still gets an outcome.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		job, ok := w.q.Dequeue()
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *domain.Job) {
	start := time.Now()
	w.hooks.OnDequeued(start.Sub(job.EnqueuedAt))

	log := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("endpoint_origin", job.Subscription.Origin()),
	)

	outcome := w.dispatch(ctx, job, log)
	outcome.Latency = time.Since(start)
	outcome.CompletedAt = time.Now().UTC()

	// The receipt is final before any waiter wakes up.
	if w.deps.Repo != nil {
		if err := w.deps.Repo.Complete(context.WithoutCancel(ctx), job.ID, outcome); err != nil {
			log.Warn("failed to record delivery outcome", zap.Error(err))
		}
	}
	job.Resolve(outcome)
	w.hooks.OnResolved(outcome)

	if outcome.OK() {
		log.Info("push delivered",
			zap.Int("status_code", outcome.StatusCode),
			zap.Duration("latency", outcome.Latency),
		)
		return
	}
	log.Warn("push not delivered",
		zap.String("status", string(outcome.Status)),
		zap.Int("status_code", outcome.StatusCode),
		zap.Error(outcome.Err),
	)
}

// dispatch runs build, sign, throttle and send. Every failure, including a
// panic in a collaborator, is turned into the job's outcome.
func (w *Worker) dispatch(ctx context.Context, job *domain.Job, log *zap.Logger) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			w.hooks.OnRecovered()
			log.Error("recovered panic while processing job", zap.Any("panic", r))
			outcome = failed(errors.Newf("panic while processing job: %v", r))
		}
	}()

	msg, err := ece.Build(job)
	if err != nil {
		return failed(err)
	}

	origin := job.Subscription.Origin()
	if err := w.deps.Signer.Authorize(msg, origin); err != nil {
		return failed(err)
	}

	if err := w.deps.Limiter.Wait(ctx, origin); err != nil {
		return failed(errors.Wrap(err, "rate limiter wait"))
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.deps.PushTimeout)
	defer cancel()

	resp, err := w.deps.Provider.Send(sendCtx, msg)
	if err != nil {
		return failed(err)
	}
	return domain.Outcome{
		Status:     domain.StatusAccepted,
		StatusCode: resp.StatusCode,
		MessageID:  resp.MessageID,
	}
}

func failed(err error) domain.Outcome {
	o := domain.Outcome{Status: domain.Classify(err), Err: err}
	var se *provider.StatusError
	if errors.As(err, &se) {
		o.StatusCode = se.StatusCode
		o.RetryAfter = se.RetryAfter
	}
	return o
}
