package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	webAdapter "logistics-backend/internal/adapters/web"
	"logistics-backend/internal/app"
	"logistics-backend/internal/config"
	"logistics-backend/internal/core"
	"logistics-backend/internal/db"
	"logistics-backend/internal/logging"
	"logistics-backend/internal/notify"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	// Without REDIS_URL notifications are delivered inline on the request goroutine.
	var queue notify.Queue
	if cfg.RedisURL != "" {
		client, err := notify.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer client.Close()
		queue = notify.NewRedisQueue(client, cfg.NotifyQueue)
	}

	notifications := core.NewNotificationService(pool)
	dispatcher := notify.NewDispatcher(notifications, queue, nil, logger.Named("notify"))

	audit := core.NewActionLogger(pool, logger.Named("audit"))
	shipments := core.NewShipmentService(pool, audit, notify.NewShipmentNotifier(dispatcher, logger), logger, cfg.StockLockTimeout)
	svc := app.NewAppService(
		core.NewUserService(pool),
		core.NewCatalogService(pool),
		core.NewInventoryService(pool, audit, logger, cfg.StockLockTimeout),
		core.NewTransferService(pool, audit, logger, cfg.StockLockTimeout),
		shipments,
		core.NewContainerService(pool, audit, logger, cfg.StockLockTimeout),
		core.NewDeliveryService(pool, audit, shipments, notify.NewDeliveryNotifier(dispatcher, logger), logger, cfg.StockLockTimeout),
		audit,
		notifications,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(svc, logger.Named("http"), cfg.AllowedOrigins, cfg.JWTSecret, proxies),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.Bool("notify_queue", queue != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if queue != nil {
		g.Go(func() error { return dispatcher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
