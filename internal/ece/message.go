package ece

import (
	"github.com/notifyhub/pusha/internal/domain"
)

// Build turns a job into an encrypted, not yet signed, push message.
// Validation failures are reported before any key material is touched.
func Build(job *domain.Job) (*domain.SignedMessage, error) {
	if job.Subscription.IsZero() {
		return nil, domain.ErrInvalidEndpoint
	}
	if err := job.Options.Validate(); err != nil {
		return nil, err
	}

	body, err := Encrypt(job.Payload, job.Subscription)
	if err != nil {
		return nil, err
	}

	return &domain.SignedMessage{
		Endpoint:        job.Subscription.Endpoint(),
		Body:            body,
		ContentEncoding: ContentEncoding,
		TTL:             job.Options.TTL,
		Urgency:         job.Options.Urgency,
		Topic:           job.Options.Topic,
	}, nil
}
