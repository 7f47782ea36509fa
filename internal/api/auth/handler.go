package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insightloop/reportd/internal/api/respond"
	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/pkg/jwt"
	"github.com/insightloop/reportd/internal/service"
)

// Handler serves registration, login and the current-user endpoint.
type Handler struct {
	svc    *service.Auth
	tokens *jwt.Manager
}

// NewHandler creates the auth handler
func NewHandler(svc *service.Auth, tokens *jwt.Manager) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

// Register creates a new account
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	resp, err := h.svc.Register(req.Username, req.Password, req.Email)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Login authenticates an account
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	resp, err := h.svc.Login(req.Username, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user
func (h *Handler) Me(c *gin.Context) {
	userID := c.GetInt64("user_id")

	user, err := h.svc.GetUser(userID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, model.UserInfo{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

// Middleware validates the bearer token and sets user_id/username on the
// request context
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := jwt.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": err.Error()})
			return
		}

		claims, err := h.tokens.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": err.Error()})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}
