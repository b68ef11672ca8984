package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/notifyhub/pusha/internal/domain"
)

// SendResponse is what the push service told us about an accepted message.
type SendResponse struct {
	StatusCode int
	// MessageID is the push message resource from the Location header, if any.
	MessageID string
}

// Provider abstracts delivery to a push service.
// Implementations mark failures with domain.ErrGone, domain.ErrRateLimited or
// domain.ErrTransport so the worker can classify them.
// Mocking this interface in tests gives full control over push service
// behaviour without making real HTTP calls.
type Provider interface {
	Send(ctx context.Context, msg *domain.SignedMessage) (*SendResponse, error)
}

// StatusError carries the push service's HTTP response for a failed send.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push service responded %d", e.StatusCode)
	}
	return fmt.Sprintf("push service responded %d: %s", e.StatusCode, e.Body)
}
