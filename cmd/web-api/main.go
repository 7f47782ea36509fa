package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/insightloop/reportd/internal/api"
	"github.com/insightloop/reportd/internal/pkg/config"
	"github.com/insightloop/reportd/internal/pkg/jwt"
	"github.com/insightloop/reportd/internal/pkg/logger"
	"github.com/insightloop/reportd/internal/pkg/redis"
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

	zap.L().Info("Starting report service web API")

	// Initialize database
	store, err := repository.Open(cfg.Database.Path)
	if err != nil {
		zap.L().Fatal("Failed to initialize database",
			zap.Error(err))
	}
	defer store.Close()

	// Initialize Redis (optional)
	var limiter *redis.Limiter
	if cfg.RedisService.Enabled {
		limiter, err = redis.NewLimiter(cfg)
		if err != nil {
			zap.L().Warn("Redis initialization failed, falling back to in-process throttling",
				zap.Error(err))
			limiter = nil
		} else {
			defer limiter.Close()
		}
	}

	// Build services
	tokens := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.ExpireHours)
	executor := service.NewHTTPRunExecutor(cfg.Collaborators.ExecutorURL, cfg.CollaboratorTimeout())
	assistant := service.NewHTTPAssistant(cfg.Collaborators.AssistantURL, cfg.CollaboratorTimeout())

	deps := api.Deps{
		Auth:          service.NewAuth(store, tokens),
		Lifecycle:     service.NewLifecycle(store, executor, cfg.Location(), cfg.CollaboratorTimeout()),
		Publisher:     service.NewPublisher(store),
		Conversations: service.NewConversations(assistant, cfg.CollaboratorTimeout()),
		Tokens:        tokens,
		Limiter:       limiter,
		Throttle:      service.NewAccessThrottle(cfg.AccessWindow(), cfg.AccessLimits.MaxAttempts),
	}

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	// Setup routes
	api.SetupRouter(r, deps)

	// Print startup info
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("📊 Starting Report Service Web API")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("🌐 URL: http://%s\n", cfg.GetWebServiceAddr())
	fmt.Printf("💾 Database: %s\n", cfg.Database.Path)
	fmt.Println(strings.Repeat("=", 60))

	// Start server
	if err := r.Run(cfg.GetWebServiceAddr()); err != nil {
		zap.L().Fatal("Failed to start server",
			zap.Error(err))
	}
}
