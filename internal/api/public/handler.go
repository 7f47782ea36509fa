package public

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/insightloop/reportd/internal/api/respond"
	"github.com/insightloop/reportd/internal/pkg/redis"
	"github.com/insightloop/reportd/internal/service"
)

// Handler serves the anonymous secret-gated read path.
type Handler struct {
	publisher *service.Publisher
	limiter   *redis.Limiter        // nil when redis is not configured
	throttle  *service.AccessThrottle
}

// NewHandler creates the public access handler
func NewHandler(publisher *service.Publisher, limiter *redis.Limiter, throttle *service.AccessThrottle) *Handler {
	return &Handler{publisher: publisher, limiter: limiter, throttle: throttle}
}

type accessRequest struct {
	Password string `json:"password" binding:"required"`
}

// Access verifies a slug/password pair and returns the publication. Attempts
// are throttled per client to slow down password guessing.
func (h *Handler) Access(c *gin.Context) {
	slug := c.Param("slug")

	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if !h.allow(c, c.ClientIP()+":"+slug) {
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "too many attempts, try again later"})
		return
	}

	pub, err := h.publisher.VerifyAccess(slug, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slug":        pub.Slug,
		"title":       pub.Title,
		"description": pub.Description,
		"report_id":   pub.ReportID,
	})
}

// allow prefers the shared redis limiter and falls back to the in-process one
func (h *Handler) allow(c *gin.Context, key string) bool {
	if h.limiter != nil {
		ok, err := h.limiter.Allow(c.Request.Context(), key)
		if err == nil {
			return ok
		}
		zap.L().Warn("Redis limiter unavailable, using in-process throttle",
			zap.Error(err))
	}
	if h.throttle != nil {
		return h.throttle.Allow(key)
	}
	return true
}
