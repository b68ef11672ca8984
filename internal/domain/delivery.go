package domain

import "time"

// Delivery is the stored receipt of a job, kept so fire-and-forget callers
// can look the result up later. The payload itself is never stored.
type Delivery struct {
	ID           string     `json:"id"`
	Origin       string     `json:"origin"`
	Endpoint     string     `json:"endpoint"`
	Status       Status     `json:"status"`
	StatusCode   *int       `json:"status_code,omitempty"`
	MessageID    *string    `json:"message_id,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	LatencyMS    *int64     `json:"latency_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewDelivery builds the queued receipt for a freshly submitted job.
func NewDelivery(j *Job) *Delivery {
	return &Delivery{
		ID:        j.ID,
		Origin:    j.Subscription.Origin(),
		Endpoint:  j.Subscription.Endpoint(),
		Status:    StatusQueued,
		CreatedAt: j.EnqueuedAt,
	}
}

// Apply copies a final outcome onto the receipt.
func (d *Delivery) Apply(o Outcome) {
	d.Status = o.Status
	if o.StatusCode != 0 {
		code := o.StatusCode
		d.StatusCode = &code
	}
	if o.MessageID != "" {
		id := o.MessageID
		d.MessageID = &id
	}
	if o.Err != nil {
		msg := o.Err.Error()
		d.ErrorMessage = &msg
	}
	ms := o.Latency.Milliseconds()
	d.LatencyMS = &ms
	at := o.CompletedAt
	d.CompletedAt = &at
}

// DeliveryFilter holds query parameters for delivery listing.
type DeliveryFilter struct {
	Status *Status
	Origin string
	Limit  int
}
