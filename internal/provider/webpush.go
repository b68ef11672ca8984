package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/pusha/internal/domain"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// WebPushProvider delivers encrypted messages to the subscription endpoint
// over the RFC 8030 HTTP push protocol.
type WebPushProvider struct {
	httpClient *http.Client
}

// NewWebPushProvider builds a provider whose client gives up after timeout.
// The worker applies its own per-job deadline on top through ctx.
func NewWebPushProvider(timeout time.Duration) *WebPushProvider {
	return NewWebPushProviderWithClient(&http.Client{Timeout: timeout})
}

func NewWebPushProviderWithClient(c *http.Client) *WebPushProvider {
	return &WebPushProvider{httpClient: c}
}

// Send POSTs the message and expects 201 Created (200/202 are tolerated).
func (p *WebPushProvider) Send(ctx context.Context, msg *domain.SignedMessage) (*SendResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.Endpoint, bytes.NewReader(msg.Body))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create request"), domain.ErrTransport)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Encoding", msg.ContentEncoding)
	if msg.Authorization != "" {
		req.Header.Set("Authorization", msg.Authorization)
	}
	if msg.TTL != nil {
		req.Header.Set("TTL", strconv.Itoa(*msg.TTL))
	}
	if msg.Urgency != "" {
		req.Header.Set("Urgency", string(msg.Urgency))
	}
	if msg.Topic != "" {
		req.Header.Set("Topic", msg.Topic)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, errors.Mark(errors.Wrap(err, "send request"), domain.ErrDeliveryTimeout)
		}
		return nil, errors.Mark(errors.Wrap(err, "send request"), domain.ErrTransport)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK, http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &SendResponse{StatusCode: resp.StatusCode, MessageID: resp.Header.Get("Location")}, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		Body:       strings.TrimSpace(string(body)),
	}

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return nil, errors.WithHint(errors.Mark(se, domain.ErrGone), domain.ResubscribeHint)
	case http.StatusTooManyRequests:
		return nil, errors.Mark(se, domain.ErrRateLimited)
	default:
		return nil, errors.Mark(se, domain.ErrTransport)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// parseRetryAfter understands both delay-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// compile-time check that WebPushProvider implements Provider
var _ Provider = (*WebPushProvider)(nil)
