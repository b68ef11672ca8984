package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/pusha/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, ""},
		{"validation", errors.Wrap(domain.ErrInvalidP256dh, "decode"), http.StatusUnprocessableEntity, ""},
		{"too large", domain.ErrPayloadTooLarge, http.StatusUnprocessableEntity, ""},
		{"queue full", domain.ErrQueueFull, http.StatusServiceUnavailable, ""},
		{"queue closed", domain.ErrQueueClosed, http.StatusServiceUnavailable, ""},
		{"gone", errors.WithHint(domain.ErrGone, "come back later"), http.StatusGone, "come back later"},
		{"gone without hint", domain.ErrGone, http.StatusGone, domain.ResubscribeHint},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapError(rec, tt.err)

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if tt.message != "" && body["error"] != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, body["error"])
			}
		})
	}
}

func TestOutcomeHTTPStatus(t *testing.T) {
	want := map[domain.Status]int{
		domain.StatusAccepted:        http.StatusOK,
		domain.StatusGone:            http.StatusGone,
		domain.StatusRateLimited:     http.StatusTooManyRequests,
		domain.StatusTimeout:         http.StatusGatewayTimeout,
		domain.StatusRejected:        http.StatusUnprocessableEntity,
		domain.StatusTransportError:  http.StatusBadGateway,
		domain.StatusEncryptionError: http.StatusInternalServerError,
		domain.StatusSignatureError:  http.StatusInternalServerError,
	}
	for s, code := range want {
		if got := outcomeHTTPStatus(s); got != code {
			t.Errorf("%s: expected %d, got %d", s, code, got)
		}
	}
}
