package main

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notifyhub/pusha/internal/api"
	"github.com/notifyhub/pusha/internal/config"
	"github.com/notifyhub/pusha/internal/db"
	"github.com/notifyhub/pusha/internal/metrics"
	"github.com/notifyhub/pusha/internal/provider"
	"github.com/notifyhub/pusha/internal/ratelimiter"
	"github.com/notifyhub/pusha/internal/repository"
	"github.com/notifyhub/pusha/internal/service"
	"github.com/notifyhub/pusha/internal/vapid"
	"github.com/notifyhub/pusha/internal/worker"
)

//go:generate swag init --dir ../../ --generalInfo cmd/server/main.go --output ../../docs --outputTypes go,json --parseInternal

// @title        pusha
// @version      1.0
// @description  Accepts Web Push requests, encrypts them for the subscriber (RFC 8291), signs them with VAPID (RFC 8292) and delivers them from a bounded queue.
// @BasePath     /
func main() {
	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	// ---- signing key ----
	key, err := loadSigningKey(cfg)
	if err != nil {
		logger.Fatal("failed to load VAPID private key", zap.Error(err))
	}
	signer, err := vapid.NewSigner(key, vapid.Config{
		Subject:    cfg.VAPIDSubject,
		Claims:     cfg.Claims(),
		Expiration: cfg.VAPIDExpiration,
	})
	if err != nil {
		logger.Fatal("failed to create VAPID signer", zap.Error(err))
	}
	logger.Info("vapid signer ready", zap.String("public_key", signer.PublicKey()))

	// ---- receipts ----
	ctx := context.Background()
	var repo repository.DeliveryRepository
	if cfg.DatabaseURL != "" {
		pgPool, err := db.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pgPool.Close()

		if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
		repo = repository.NewPgDeliveryRepository(pgPool)
	} else {
		logger.Info("DATABASE_URL not set, keeping delivery receipts in memory")
		repo = repository.NewMemoryDeliveryRepository(0)
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	defaultTTL := cfg.DefaultTTL
	dispatcher := service.NewDispatcher(service.Config{
		Shards:        cfg.DispatchWorkers,
		QueueCapacity: cfg.QueueCapacity,
		DefaultTTL:    &defaultTTL,
	}, repo, logger)
	dispatcher.OnSubmitted(m.JobsSubmitted.Inc)
	metrics.RegisterQueueDepth(reg, cfg.DispatchWorkers, dispatcher.Depth)

	// ---- worker pool ----
	// Cancelled only when draining overruns SHUTDOWN_TIMEOUT.
	deliveryCtx, cancelDeliveries := context.WithCancel(ctx)
	defer cancelDeliveries()

	onResolved, onDequeued, onRecovered := m.WorkerHooks()
	workers := worker.NewPool(dispatcher.Shards(), worker.Deps{
		Signer:      signer,
		Provider:    provider.NewWebPushProvider(cfg.PushTimeout),
		Limiter:     ratelimiter.New(cfg.RateLimitPerOrigin),
		Repo:        repo,
		PushTimeout: cfg.PushTimeout,
	}, logger, worker.MetricHooks{
		OnResolved:  onResolved,
		OnDequeued:  onDequeued,
		OnRecovered: onRecovered,
	})
	workers.Start(deliveryCtx)

	// ---- HTTP server ----
	router := api.NewRouter(dispatcher, api.Options{
		VAPIDPublicKey: signer.PublicKey(),
		StaticDir:      cfg.StaticDir,
		WaitTimeout:    cfg.WaitTimeout,
		Workers:        workers.Size(),
	}, reg, logger)
	srv := &http.Server{
		Addr:         cfg.Host,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.Int("workers", workers.Size()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Close the queues; workers drain what is already buffered.
	dispatcher.Close()

	// 3. Give the drain until the deadline, then fail remaining deliveries fast.
	if !workers.WaitTimeout(cfg.ShutdownTimeout) {
		logger.Warn("drain deadline exceeded, cancelling in-flight deliveries")
		cancelDeliveries()
		workers.Wait()
	}

	logger.Info("server stopped cleanly")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "LOG_LEVEL %q", level)
	}

	zcfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func loadSigningKey(cfg *config.Config) (*ecdsa.PrivateKey, error) {
	if cfg.VAPIDPrivateKey != "" {
		return vapid.ParsePrivateKey(cfg.VAPIDPrivateKey)
	}
	return vapid.LoadPrivateKeyFile(cfg.VAPIDPrivateKeyFile)
}
