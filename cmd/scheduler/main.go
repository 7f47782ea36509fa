package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/insightloop/reportd/internal/pkg/config"
	"github.com/insightloop/reportd/internal/pkg/logger"
	"github.com/insightloop/reportd/internal/repository"
	"github.com/insightloop/reportd/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	zap.L().Info("Starting report scheduler")

	// Initialize database
	store, err := repository.Open(cfg.Database.Path)
	if err != nil {
		zap.L().Fatal("Failed to initialize database",
			zap.Error(err))
	}
	defer store.Close()

	executor := service.NewHTTPRunExecutor(cfg.Collaborators.ExecutorURL, cfg.CollaboratorTimeout())
	lifecycle := service.NewLifecycle(store, executor, cfg.Location(), cfg.CollaboratorTimeout())
	scheduler := service.NewScheduler(lifecycle, cfg.SchedulerInterval())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Run(ctx)
}
