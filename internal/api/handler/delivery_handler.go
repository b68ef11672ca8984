package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyhub/pusha/internal/domain"
)

// DeliveryReader exposes stored receipts.
type DeliveryReader interface {
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	ListDeliveries(ctx context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error)
}

// DeliveryHandler lets fire-and-forget callers look up what happened to a job.
type DeliveryHandler struct {
	svc    DeliveryReader
	logger *zap.Logger
}

func NewDeliveryHandler(svc DeliveryReader, logger *zap.Logger) *DeliveryHandler {
	return &DeliveryHandler{svc: svc, logger: logger}
}

// GetByID handles GET /api/v1/deliveries/{id}
//
// @Summary  Get a delivery receipt
// @Tags     deliveries
// @Produce  json
// @Param    id   path  string  true  "Job ID"
// @Success  200  {object}  domain.Delivery
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/deliveries/{id} [get]
func (h *DeliveryHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// List handles GET /api/v1/deliveries?status=&origin=&limit=
//
// @Summary  List recent delivery receipts
// @Tags     deliveries
// @Produce  json
// @Param    status  query  string  false  "Filter by outcome status"
// @Param    origin  query  string  false  "Filter by push service origin"
// @Param    limit   query  int     false  "Max results (default 50, max 500)"
// @Success  200  {object}  map[string]any
// @Failure  400  {object}  map[string]string
// @Router   /api/v1/deliveries [get]
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f domain.DeliveryFilter

	if v := q.Get("status"); v != "" {
		s := domain.Status(v)
		if !s.IsValid() {
			respondError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		f.Status = &s
	}
	f.Origin = q.Get("origin")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	items, err := h.svc.ListDeliveries(r.Context(), f)
	if err != nil {
		h.logger.Error("list deliveries", zap.Error(err))
		mapError(w, err)
		return
	}
	if items == nil {
		items = []*domain.Delivery{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": items, "count": len(items)})
}
