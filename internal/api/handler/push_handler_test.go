package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/notifyhub/pusha/internal/domain"
	"github.com/notifyhub/pusha/internal/service"
)

type submitFunc func(ctx context.Context, req service.SubmitRequest) (*domain.Completion, error)

func (f submitFunc) Submit(ctx context.Context, req service.SubmitRequest) (*domain.Completion, error) {
	return f(ctx, req)
}

// Keys from RFC 8291 Appendix A.
const pushBody = `{
	"endpoint": "https://push.example.net/send/abc",
	"keys": {
		"p256dh": "BCVxsr7N_eNgVRqvHtD0zTZsEc6-VV-JvLexhqUzORcxaOzi6-AYWXvTBHm4bjyPjs7Vd8pZGH6SRpkNtoIAiw4",
		"auth": "BTBZMqHH6r4Tts7J_aSIgg"
	},
	"sentence": "hello"
}`

func servePush(ctx context.Context, h *PushHandler, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/push"+query, strings.NewReader(pushBody)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Push(rec, req)
	return rec
}

func TestPush_SubmitInterrupted(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"client went away", errors.Wrap(context.Canceled, "enqueue")},
		{"wait deadline", errors.Wrap(context.DeadlineExceeded, "enqueue")},
		{"queue full", domain.ErrQueueFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPushHandler(submitFunc(func(context.Context, service.SubmitRequest) (*domain.Completion, error) {
				return nil, tt.err
			}), time.Second, zap.NewNop())

			rec := servePush(context.Background(), h, "")
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPush_ClientDisconnectWhileQueueFull(t *testing.T) {
	h := NewPushHandler(submitFunc(func(ctx context.Context, _ service.SubmitRequest) (*domain.Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := servePush(ctx, h, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestPush_QueuedResponse(t *testing.T) {
	var got service.SubmitRequest
	c := domain.NewCompletion()
	h := NewPushHandler(submitFunc(func(_ context.Context, req service.SubmitRequest) (*domain.Completion, error) {
		got = req
		return c, nil
	}), time.Second, zap.NewNop())

	rec := servePush(context.Background(), h, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"queued"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if string(got.Payload) != "hello" || got.Subscription.Endpoint() != "https://push.example.net/send/abc" {
		t.Errorf("unexpected submit request %+v", got)
	}
}
