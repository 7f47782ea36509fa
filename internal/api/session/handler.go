package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insightloop/reportd/internal/api/respond"
	"github.com/insightloop/reportd/internal/service"
)

// Handler serves the report-authoring dialogue.
type Handler struct {
	conversations *service.Conversations
	lifecycle     *service.Lifecycle
}

// NewHandler creates the session handler
func NewHandler(conversations *service.Conversations, lifecycle *service.Lifecycle) *Handler {
	return &Handler{conversations: conversations, lifecycle: lifecycle}
}

type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// SendMessage forwards one user message to the assistant. Omitting session_id
// starts a new dialogue.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	session, err := h.conversations.SendMessage(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Get returns the current state of a session
func (h *Handler) Get(c *gin.Context) {
	session, err := h.conversations.Get(c.Param("session_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Save persists the completed session's preview as a report and discards the
// session
func (h *Handler) Save(c *gin.Context) {
	userID := c.GetInt64("user_id")
	sessionID := c.Param("session_id")

	preview, err := h.conversations.Preview(sessionID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	report, err := h.lifecycle.Create(userID, *preview)
	if err != nil {
		respond.Error(c, err)
		return
	}

	h.conversations.Discard(sessionID)

	c.JSON(http.StatusCreated, report)
}
