package service

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/pusha/internal/domain"
	"github.com/notifyhub/pusha/internal/ece"
	"github.com/notifyhub/pusha/internal/queue"
	"github.com/notifyhub/pusha/internal/repository"
)

// SubmitRequest is one push to deliver.
type SubmitRequest struct {
	Subscription domain.Subscription
	Payload      []byte
	Options      domain.JobOptions
}

// Config sizes the dispatcher.
type Config struct {
	// Shards is the number of queue/worker pairs. Jobs for the same endpoint
	// always land on the same shard, so per-subscriber order is kept.
	Shards        int
	QueueCapacity int
	// DefaultTTL is applied to requests without a TTL. Nil leaves it unset,
	// which lets the push service use its own default.
	DefaultTTL *int
}

// ShardDepth is a point-in-time view of one queue.
type ShardDepth struct {
	Shard    int `json:"shard"`
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
}

// Dispatcher is the inbound side of the pipeline. HTTP handlers submit
// through it; workers consume the shards it owns.
type Dispatcher struct {
	shards      []*queue.Queue
	repo        repository.DeliveryRepository
	defaultTTL  *int
	logger      *zap.Logger
	onSubmitted func()
}

func NewDispatcher(cfg Config, repo repository.DeliveryRepository, logger *zap.Logger) *Dispatcher {
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	shards := make([]*queue.Queue, cfg.Shards)
	for i := range shards {
		shards[i] = queue.New(cfg.QueueCapacity)
	}

	var ttl *int
	if cfg.DefaultTTL != nil {
		v := *cfg.DefaultTTL
		ttl = &v
	}

	return &Dispatcher{
		shards:      shards,
		repo:        repo,
		defaultTTL:  ttl,
		logger:      logger,
		onSubmitted: func() {},
	}
}

// OnSubmitted registers a callback fired for every accepted job.
func (d *Dispatcher) OnSubmitted(fn func()) {
	if fn != nil {
		d.onSubmitted = fn
	}
}

// Shards returns the queues for the worker pool. Callers must only dequeue.
func (d *Dispatcher) Shards() []*queue.Queue { return d.shards }

// Submit validates req, records a receipt and enqueues the job, suspending
// while the target shard is full. The returned Completion may be awaited or
// ignored.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*domain.Completion, error) {
	return d.submit(ctx, req, func(q *queue.Queue, j *domain.Job) error { return q.Enqueue(ctx, j) })
}

// TrySubmit is Submit without suspension: a full shard yields ErrQueueFull.
func (d *Dispatcher) TrySubmit(ctx context.Context, req SubmitRequest) (*domain.Completion, error) {
	return d.submit(ctx, req, func(q *queue.Queue, j *domain.Job) error { return q.TryEnqueue(j) })
}

func (d *Dispatcher) submit(
	ctx context.Context,
	req SubmitRequest,
	enqueue func(*queue.Queue, *domain.Job) error,
) (*domain.Completion, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	opts := req.Options
	if opts.TTL == nil {
		opts.TTL = d.defaultTTL
	}
	job := domain.NewJob(req.Subscription, req.Payload, opts)
	log := d.logger.With(zap.String("job_id", job.ID), zap.String("endpoint_origin", job.Subscription.Origin()))

	// The receipt is written before enqueueing so the worker always finds it.
	if d.repo != nil {
		if err := d.repo.Create(ctx, domain.NewDelivery(job)); err != nil {
			log.Warn("failed to record delivery receipt", zap.Error(err))
		}
	}

	shard := d.shardFor(job.Subscription.Endpoint())
	if err := enqueue(d.shards[shard], job); err != nil {
		d.abandon(job, err, log)
		return nil, err
	}

	d.onSubmitted()
	log.Debug("job queued", zap.Int("shard", shard))
	return job.Completion(), nil
}

// abandon finalises the receipt of a job that never made it into a queue.
func (d *Dispatcher) abandon(job *domain.Job, err error, log *zap.Logger) {
	o := domain.Outcome{Status: domain.Classify(err), Err: err, CompletedAt: time.Now().UTC()}
	if d.repo != nil {
		if cerr := d.repo.Complete(context.Background(), job.ID, o); cerr != nil && !errors.Is(cerr, domain.ErrNotFound) {
			log.Warn("failed to finalise abandoned receipt", zap.Error(cerr))
		}
	}
	job.Resolve(o)
}

func validate(req SubmitRequest) error {
	if req.Subscription.IsZero() {
		return domain.ErrInvalidEndpoint
	}
	if len(req.Payload) == 0 {
		return domain.ErrEmptyPayload
	}
	if len(req.Payload) > ece.MaxPayloadSize {
		return errors.Wrapf(domain.ErrPayloadTooLarge, "%d bytes, limit %d", len(req.Payload), ece.MaxPayloadSize)
	}
	return req.Options.Validate()
}

func (d *Dispatcher) shardFor(endpoint string) int {
	return int(xxhash.Sum64String(endpoint) % uint64(len(d.shards)))
}

// Close stops accepting jobs. Workers drain what is already queued.
func (d *Dispatcher) Close() {
	for _, q := range d.shards {
		q.Close()
	}
}

// Depths reports the current depth of every shard.
func (d *Dispatcher) Depths() []ShardDepth {
	out := make([]ShardDepth, len(d.shards))
	for i, q := range d.shards {
		out[i] = ShardDepth{Shard: i, Depth: q.Len(), Capacity: q.Cap()}
	}
	return out
}

// Depth is the depth of one shard; used by the queue depth gauge.
func (d *Dispatcher) Depth(shard int) int { return d.shards[shard].Len() }

// ---- receipts ----

// GetDelivery looks a receipt up by job ID. Job IDs are UUIDs, so anything
// else is reported as not found before reaching the store.
func (d *Dispatcher) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	if d.repo == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.Wrapf(domain.ErrNotFound, "delivery %q", id)
	}
	return d.repo.GetByID(ctx, id)
}

func (d *Dispatcher) ListDeliveries(ctx context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error) {
	if d.repo == nil {
		return nil, nil
	}
	return d.repo.List(ctx, f)
}

func (d *Dispatcher) DeliveryCounts(ctx context.Context) (map[domain.Status]int, error) {
	if d.repo == nil {
		return map[domain.Status]int{}, nil
	}
	return d.repo.CountByStatus(ctx)
}
