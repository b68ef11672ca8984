package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/notifyhub/pusha/internal/domain"
	"github.com/notifyhub/pusha/internal/service"
)

// QueueInspector reports pipeline state for the JSON snapshot.
type QueueInspector interface {
	Depths() []service.ShardDepth
	DeliveryCounts(ctx context.Context) (map[domain.Status]int, error)
}

// MetricsHandler serves a human-readable JSON snapshot of the dispatch
// queues. Raw Prometheus metrics are served separately at /metrics.
type MetricsHandler struct {
	svc    QueueInspector
	logger *zap.Logger
}

func NewMetricsHandler(svc QueueInspector, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{svc: svc, logger: logger}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	shards := h.svc.Depths()
	total := 0
	for _, s := range shards {
		total += s.Depth
	}

	counts, err := h.svc.DeliveryCounts(r.Context())
	if err != nil {
		h.logger.Warn("count deliveries", zap.Error(err))
		counts = map[domain.Status]int{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": map[string]any{
			"shards": shards,
			"total":  total,
		},
		"deliveries": counts,
	})
}
