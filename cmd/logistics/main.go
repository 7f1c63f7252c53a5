package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"logistics-backend/internal/adapters/cli"
	"logistics-backend/internal/app"
	"logistics-backend/internal/config"
	"logistics-backend/internal/core"
	"logistics-backend/internal/db"
	"logistics-backend/internal/logging"
	"logistics-backend/internal/notify"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, cli.ErrUsage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	notifications := core.NewNotificationService(pool)
	dispatcher := notify.NewDispatcher(notifications, nil, nil, logger.Named("notify"))
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

	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}
