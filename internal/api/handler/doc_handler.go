package handler

import (
	"io"
	"net/http"
)

// APIDocHandler serves the OpenAPI document generated by swag from the
// annotations on these handlers.
type APIDocHandler struct {
	read func() string
}

func NewAPIDocHandler(read func() string) *APIDocHandler {
	return &APIDocHandler{read: read}
}

// Document handles GET /api/spec/v2
func (h *APIDocHandler) Document(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, h.read())
}
