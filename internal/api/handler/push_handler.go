package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/pusha/internal/domain"
	"github.com/notifyhub/pusha/internal/service"
)

// Submitter is the slice of the dispatcher the push endpoint needs.
type Submitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*domain.Completion, error)
}

// PushHandler accepts push requests and hands them to the dispatch queue.
type PushHandler struct {
	svc         Submitter
	waitTimeout time.Duration
	logger      *zap.Logger
}

func NewPushHandler(svc Submitter, waitTimeout time.Duration, logger *zap.Logger) *PushHandler {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &PushHandler{svc: svc, waitTimeout: waitTimeout, logger: logger}
}

// pushRequest is a browser PushSubscription plus the text to show.
// expiration_time is accepted and ignored.
type pushRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	Sentence string `json:"sentence"`
	TTL      *int   `json:"ttl,omitempty"`
	Urgency  string `json:"urgency,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

type pushResponse struct {
	Status     domain.Status `json:"status"`
	JobID      string        `json:"job_id"`
	StatusCode int           `json:"status_code,omitempty"`
	MessageID  string        `json:"message_id,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Push handles POST /push and POST /api/v1/push
//
// By default the job is queued and 202 is returned immediately. With
// ?wait=true the handler waits for the delivery outcome.
//
// @Summary  Send a push notification
// @Tags     push
// @Accept   json
// @Produce  json
// @Param    body  body   pushRequest  true   "Browser subscription and the text to show"
// @Param    wait  query  bool         false  "wait for the delivery outcome"
// @Success  200  {object}  pushResponse
// @Success  202  {object}  pushResponse
// @Failure  410  {object}  map[string]string
// @Failure  422  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /api/v1/push [post]
func (h *PushHandler) Push(w http.ResponseWriter, r *http.Request) {
	var body pushRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := domain.NewSubscription(body.Endpoint, body.Keys.P256dh, body.Keys.Auth)
	if err != nil {
		mapError(w, err)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	// Enqueueing may suspend while the shard is full; never longer than waitTimeout.
	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()

	completion, err := h.svc.Submit(ctx, service.SubmitRequest{
		Subscription: sub,
		Payload:      []byte(body.Sentence),
		Options: domain.JobOptions{
			TTL:     body.TTL,
			Urgency: domain.Urgency(body.Urgency),
			Topic:   body.Topic,
		},
	})
	if err != nil {
		// Still waiting for room when the deadline hit or the client left.
		if errors.IsAny(err, context.DeadlineExceeded, context.Canceled) {
			mapError(w, errors.Mark(err, domain.ErrQueueFull))
			return
		}
		mapError(w, err)
		return
	}

	if !wait {
		respondJSON(w, http.StatusAccepted, pushResponse{Status: domain.StatusQueued, JobID: completion.JobID()})
		return
	}

	outcome, err := completion.Wait(ctx)
	if err != nil {
		// The job is still queued or in flight; the receipt will have the result.
		respondJSON(w, http.StatusGatewayTimeout, pushResponse{Status: domain.StatusQueued, JobID: completion.JobID()})
		return
	}
	h.respondOutcome(w, outcome)
}

func (h *PushHandler) respondOutcome(w http.ResponseWriter, o domain.Outcome) {
	resp := pushResponse{
		Status:     o.Status,
		JobID:      o.JobID,
		StatusCode: o.StatusCode,
		MessageID:  o.MessageID,
	}

	switch {
	case o.OK():
	case o.Status == domain.StatusGone:
		resp.Error = resubscribeMessage(o.Err)
	case o.Status == domain.StatusRejected:
		resp.Error = o.Err.Error()
	default:
		h.logger.Warn("push delivery failed", zap.String("job_id", o.JobID), zap.Error(o.Err))
		resp.Error = "push delivery failed"
	}

	if o.Status == domain.StatusRateLimited {
		setRetryAfter(w, o)
	}
	respondJSON(w, outcomeHTTPStatus(o.Status), resp)
}
