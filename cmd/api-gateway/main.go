package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	_ "github.com/noah-isme/lessonsync-api/api/swagger"
	"github.com/noah-isme/lessonsync-api/internal/bootstrap"
	"github.com/noah-isme/lessonsync-api/internal/server"
	"github.com/noah-isme/lessonsync-api/pkg/config"
	"github.com/noah-isme/lessonsync-api/pkg/logger"
)

// @title LessonSync API
// @version 1.0.0
// @description Coordinates cancellations and postponements of recurring group lessons.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api-gateway")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to build dependencies", zap.Error(err))
	}

	applied, err := deps.Migrate(ctx)
	if err != nil {
		deps.Close()
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}
	logr.Info("schema ready", zap.Int("applied", applied))

	if err := server.New(deps).Run(ctx); err != nil {
		logr.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}
