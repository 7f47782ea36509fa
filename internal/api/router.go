package api

import (
	"github.com/gin-gonic/gin"

	authapi "github.com/insightloop/reportd/internal/api/auth"
	publicapi "github.com/insightloop/reportd/internal/api/public"
	publicationapi "github.com/insightloop/reportd/internal/api/publication"
	reportapi "github.com/insightloop/reportd/internal/api/report"
	sessionapi "github.com/insightloop/reportd/internal/api/session"
	"github.com/insightloop/reportd/internal/pkg/jwt"
	"github.com/insightloop/reportd/internal/pkg/redis"
	"github.com/insightloop/reportd/internal/service"
)

// Deps carries the constructed services into the router.
type Deps struct {
	Auth          *service.Auth
	Lifecycle     *service.Lifecycle
	Publisher     *service.Publisher
	Conversations *service.Conversations
	Tokens        *jwt.Manager
	Limiter       *redis.Limiter // nil when redis is not configured
	Throttle      *service.AccessThrottle
}

// SetupRouter configures all routes
func SetupRouter(r *gin.Engine, deps Deps) {
	r.Use(CORSMiddleware())

	authHandler := authapi.NewHandler(deps.Auth, deps.Tokens)
	reportHandler := reportapi.NewHandler(deps.Lifecycle)
	publicationHandler := publicationapi.NewHandler(deps.Publisher)
	sessionHandler := sessionapi.NewHandler(deps.Conversations, deps.Lifecycle)
	publicHandler := publicapi.NewHandler(deps.Publisher, deps.Limiter, deps.Throttle)

	// Health check
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Report service is running",
			"version": "1.0.0",
		})
	})

	// Anonymous access to published reports
	r.POST("/p/:slug/access", publicHandler.Access)

	// Auth routes (no authentication required)
	authRoutes := r.Group("/api/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/me", authHandler.Middleware(), authHandler.Me)
	}

	// API routes that require authentication
	api := r.Group("/api")
	api.Use(authHandler.Middleware())
	{
		// Report lifecycle
		reportGroup := api.Group("/reports")
		{
			reportGroup.POST("", reportHandler.Create)
			reportGroup.GET("", reportHandler.List)
			reportGroup.GET("/:report_id", reportHandler.Get)
			reportGroup.PUT("/:report_id/schedule", reportHandler.UpdateSchedule)
			reportGroup.PUT("/:report_id/queries", reportHandler.UpdateQueries)
			reportGroup.POST("/:report_id/pin", reportHandler.TogglePin)
			reportGroup.POST("/:report_id/run", reportHandler.Run)
			reportGroup.GET("/:report_id/runs", reportHandler.ListRuns)
			reportGroup.DELETE("/:report_id", reportHandler.Delete)
		}
		api.GET("/runs/:run_id", reportHandler.GetRun)

		// Publications and the link graph
		pubGroup := api.Group("/publications")
		{
			pubGroup.POST("", publicationHandler.Publish)
			pubGroup.GET("", publicationHandler.List)
			pubGroup.GET("/:pub_id", publicationHandler.Get)
			pubGroup.POST("/:pub_id/rotate-password", publicationHandler.RotatePassword)
			pubGroup.PUT("/:pub_id/active", publicationHandler.SetActive)
			pubGroup.DELETE("/:pub_id", publicationHandler.Delete)
			pubGroup.POST("/:pub_id/links", publicationHandler.AddLink)
			pubGroup.GET("/:pub_id/links", publicationHandler.ListLinks)
			pubGroup.DELETE("/:pub_id/links/:link_id", publicationHandler.RemoveLink)
		}

		// Authoring sessions
		sessionGroup := api.Group("/sessions")
		{
			sessionGroup.POST("/messages", sessionHandler.SendMessage)
			sessionGroup.GET("/:session_id", sessionHandler.Get)
			sessionGroup.POST("/:session_id/save", sessionHandler.Save)
		}
	}
}

// CORSMiddleware provides CORS support
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
