package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/notifyhub/pusha/docs"
	"github.com/notifyhub/pusha/internal/api/handler"
	apimw "github.com/notifyhub/pusha/internal/api/middleware"
	"github.com/notifyhub/pusha/internal/service"
)

// Options are the non-service inputs of the HTTP surface.
type Options struct {
	VAPIDPublicKey string
	StaticDir      string
	WaitTimeout    time.Duration
	Workers        int
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.Dispatcher,
	opts Options,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.RequestID)
	r.Use(apimw.RequestLogger(logger))

	ph := handler.NewPushHandler(svc, opts.WaitTimeout, logger)
	dh := handler.NewDeliveryHandler(svc, logger)
	vh := handler.NewVAPIDHandler(opts.VAPIDPublicKey)
	mh := handler.NewMetricsHandler(svc, logger)
	hh := handler.NewHealthHandler(opts.Workers)
	doc := handler.NewAPIDocHandler(docs.SwaggerInfo.ReadDoc)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Kept at the root for clients of the original service.
	r.Post("/push", ph.Push)

	r.Get("/api/spec/v2", doc.Document)
	r.Get("/api/docs/*", httpSwagger.Handler(httpSwagger.URL("/api/spec/v2")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/push", ph.Push)
		r.Get("/deliveries", dh.List)
		r.Get("/deliveries/{id}", dh.GetByID)
		r.Get("/vapid/public-key", vh.PublicKey)
		r.Get("/metrics", mh.GetMetrics)
	})

	if opts.StaticDir != "" {
		r.Get("/*", handler.NewStaticHandler(opts.StaticDir).ServeHTTP)
	}

	return r
}
