package domain

import "time"

// Status is the classified result of one dispatch attempt.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusAccepted        Status = "accepted"
	StatusGone            Status = "gone"
	StatusRateLimited     Status = "rate_limited"
	StatusTransportError  Status = "transport_error"
	StatusTimeout         Status = "timeout"
	StatusRejected        Status = "rejected"
	StatusEncryptionError Status = "encryption_error"
	StatusSignatureError  Status = "signature_error"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusAccepted, StatusGone, StatusRateLimited, StatusTransportError,
		StatusTimeout, StatusRejected, StatusEncryptionError, StatusSignatureError:
		return true
	}
	return false
}

// IsFinal is false only for receipts whose job has not been processed yet.
func (s Status) IsFinal() bool { return s != StatusQueued }

// Outcome is delivered exactly once through a Job's Completion.
type Outcome struct {
	JobID       string
	Status      Status
	StatusCode  int
	MessageID   string
	RetryAfter  time.Duration
	Err         error
	Latency     time.Duration
	CompletedAt time.Time
}

func (o Outcome) OK() bool { return o.Status == StatusAccepted }

// SignedMessage is the encrypted, authenticated request for one dispatch
// attempt. It only lives for the duration of that attempt.
type SignedMessage struct {
	Endpoint        string
	Body            []byte
	ContentEncoding string
	Authorization   string
	TTL             *int
	Urgency         Urgency
	Topic           string
}
