package main

import (
	"context"
	"log"
	"time"

	"logistics-backend/internal/config"
	"logistics-backend/internal/db"
	"logistics-backend/internal/logging"
	"logistics-backend/migrations"

	"go.uber.org/zap"
)

func main() {
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
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := db.NewPool(connCtx, cfg.DatabaseURL, 2)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.FS, logger)
	if err != nil {
		logger.Fatal("migrate", zap.Int("applied", applied), zap.Error(err))
	}
	logger.Info("all migrations processed", zap.Int("applied", applied))
}
