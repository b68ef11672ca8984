package domain

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Sentinel errors used throughout the application.
// Components wrap them with context; handlers and the worker classify them
// with errors.Is, so every message here must stay unique.
var (
	// validation
	ErrInvalidEndpoint = errors.New("subscription endpoint must be an absolute http(s) URL")
	ErrInvalidP256dh   = errors.New("subscription p256dh must be a base64url P-256 public key")
	ErrInvalidAuth     = errors.New("subscription auth must be a base64url 16-byte secret")
	ErrEmptyPayload    = errors.New("payload must not be empty")
	ErrPayloadTooLarge = errors.New("payload exceeds the maximum push message size")
	ErrInvalidTTL      = errors.New("ttl must be a non-negative number of seconds")
	ErrInvalidUrgency  = errors.New("urgency must be very-low, low, normal, or high")
	ErrInvalidTopic    = errors.New("topic must be at most 32 base64url characters")

	// encryption
	ErrEncryption = errors.New("content encryption failed")

	// signature
	ErrSignature         = errors.New("vapid signature failed")
	ErrInvalidSigningKey = errors.New("vapid signing key must be a P-256 private key")
	ErrInvalidExpiry     = errors.New("vapid expiry must be in the future and within 24h")

	// delivery
	ErrGone            = errors.New("subscription is no longer valid")
	ErrRateLimited     = errors.New("push service rate limited the request")
	ErrTransport       = errors.New("push service delivery failed")
	ErrDeliveryTimeout = errors.New("push service delivery timed out")

	// queue
	ErrQueueClosed = errors.New("dispatch queue is closed")
	ErrQueueFull   = errors.New("dispatch queue is at capacity, try again later")

	ErrNotFound = errors.New("not found")
)

// ResubscribeHint is attached to ErrGone so the HTTP layer can tell the
// client what to do about a dead subscription.
const ResubscribeHint = "subscription invalid, please resubscribe"

// IsValidation reports whether err is caused by malformed input rather than
// by a failure further down the pipeline.
func IsValidation(err error) bool {
	return errors.IsAny(err,
		ErrInvalidEndpoint,
		ErrInvalidP256dh,
		ErrInvalidAuth,
		ErrEmptyPayload,
		ErrPayloadTooLarge,
		ErrInvalidTTL,
		ErrInvalidUrgency,
		ErrInvalidTopic,
	)
}

// Classify maps a processing error to the outcome status reported to the
// submitter. A nil error is an accepted delivery.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusAccepted
	case IsValidation(err):
		return StatusRejected
	case errors.Is(err, ErrEncryption):
		return StatusEncryptionError
	case errors.IsAny(err, ErrSignature, ErrInvalidSigningKey, ErrInvalidExpiry):
		return StatusSignatureError
	case errors.Is(err, ErrGone):
		return StatusGone
	case errors.Is(err, ErrRateLimited):
		return StatusRateLimited
	case errors.IsAny(err, ErrDeliveryTimeout, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusTransportError
	}
}
