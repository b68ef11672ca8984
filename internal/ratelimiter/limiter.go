package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// OriginLimiters holds one token bucket per push service origin
// (e.g. https://fcm.googleapis.com), created on first use.
// Burst equals the rate so no saved-up burst exceeds the per-second maximum.
// A rate of zero disables limiting.
type OriginLimiters struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates OriginLimiters allowing ratePerSec sends per second per origin.
func New(ratePerSec int) *OriginLimiters {
	return &OriginLimiters{
		limit:    rate.Limit(ratePerSec),
		burst:    ratePerSec,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the origin's limiter grants a token.
// Called by the worker immediately before handing a message to the provider.
// Returns a non-nil error only if ctx is done while waiting.
func (ol *OriginLimiters) Wait(ctx context.Context, origin string) error {
	if ol == nil || ol.limit <= 0 {
		return nil
	}
	return ol.get(origin).Wait(ctx)
}

func (ol *OriginLimiters) get(origin string) *rate.Limiter {
	ol.mu.Lock()
	defer ol.mu.Unlock()
	l, ok := ol.limiters[origin]
	if !ok {
		l = rate.NewLimiter(ol.limit, ol.burst)
		ol.limiters[origin] = l
	}
	return l
}

// Origins reports how many origins have been seen.
func (ol *OriginLimiters) Origins() int {
	if ol == nil {
		return 0
	}
	ol.mu.Lock()
	defer ol.mu.Unlock()
	return len(ol.limiters)
}
