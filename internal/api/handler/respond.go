package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/pusha/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case domain.IsValidation(err):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrGone):
		respondError(w, http.StatusGone, resubscribeMessage(err))
	case errors.IsAny(err, domain.ErrQueueFull, domain.ErrQueueClosed):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// outcomeHTTPStatus picks the response code for a finished job.
func outcomeHTTPStatus(s domain.Status) int {
	switch s {
	case domain.StatusAccepted:
		return http.StatusOK
	case domain.StatusGone:
		return http.StatusGone
	case domain.StatusRateLimited:
		return http.StatusTooManyRequests
	case domain.StatusTimeout:
		return http.StatusGatewayTimeout
	case domain.StatusRejected:
		return http.StatusUnprocessableEntity
	case domain.StatusTransportError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func resubscribeMessage(err error) string {
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		return hints[0]
	}
	return domain.ResubscribeHint
}

func setRetryAfter(w http.ResponseWriter, o domain.Outcome) {
	if o.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(o.RetryAfter.Seconds())))
	}
}
