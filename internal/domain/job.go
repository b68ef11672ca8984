package domain

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Urgency is the RFC 8030 Urgency header value.
type Urgency string

const (
	UrgencyVeryLow Urgency = "very-low"
	UrgencyLow     Urgency = "low"
	UrgencyNormal  Urgency = "normal"
	UrgencyHigh    Urgency = "high"
)

// IsValid accepts the four RFC 8030 levels and the empty value (header omitted).
func (u Urgency) IsValid() bool {
	switch u {
	case "", UrgencyVeryLow, UrgencyLow, UrgencyNormal, UrgencyHigh:
		return true
	}
	return false
}

var topicPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// JobOptions carries the optional per-message delivery hints.
type JobOptions struct {
	TTL     *int
	Urgency Urgency
	Topic   string
}

// Validate checks the hints without touching the payload or subscription.
func (o JobOptions) Validate() error {
	if o.TTL != nil && *o.TTL < 0 {
		return ErrInvalidTTL
	}
	if !o.Urgency.IsValid() {
		return ErrInvalidUrgency
	}
	if o.Topic != "" && !topicPattern.MatchString(o.Topic) {
		return ErrInvalidTopic
	}
	return nil
}

// Job is one unit of work flowing through the dispatch queue.
// It is created by a producer, consumed by exactly one worker, and its
// Completion is resolved exactly once.
type Job struct {
	ID           string
	Payload      []byte
	Subscription Subscription
	Options      JobOptions
	EnqueuedAt   time.Time

	completion *Completion
}

// NewJob copies payload so the producer may reuse its buffer.
func NewJob(sub Subscription, payload []byte, opts JobOptions) *Job {
	if opts.TTL != nil {
		ttl := *opts.TTL
		opts.TTL = &ttl
	}
	id := uuid.New().String()
	c := NewCompletion()
	c.jobID = id
	return &Job{
		ID:           id,
		Payload:      append([]byte(nil), payload...),
		Subscription: sub,
		Options:      opts,
		EnqueuedAt:   time.Now().UTC(),
		completion:   c,
	}
}

// Completion returns the handle the submitter waits on.
func (j *Job) Completion() *Completion { return j.completion }

// Resolve delivers the outcome to the submitter. Only the first call wins.
func (j *Job) Resolve(o Outcome) bool {
	o.JobID = j.ID
	return j.completion.resolve(o)
}

// Completion is a single-resolution handle carrying one Job's Outcome back to
// its submitter. Resolving never blocks, so a submitter that stops waiting
// does not hold up the worker. Any number of readers may wait on it.
type Completion struct {
	jobID   string
	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) resolve(o Outcome) bool {
	resolved := false
	c.once.Do(func() {
		c.outcome = o
		close(c.done)
		resolved = true
	})
	return resolved
}

// JobID identifies the job this handle belongs to.
func (c *Completion) JobID() string { return c.jobID }

// Done is closed once the outcome is available.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Outcome returns the outcome without blocking; ok is false until resolved.
func (c *Completion) Outcome() (Outcome, bool) {
	select {
	case <-c.done:
		return c.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the outcome is available or ctx is done.
func (c *Completion) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
