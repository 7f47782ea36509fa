package publication

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/insightloop/reportd/internal/api/respond"
	"github.com/insightloop/reportd/internal/service"
)

// Handler serves publication management and the link graph.
type Handler struct {
	publisher *service.Publisher
}

// NewHandler creates the publication handler
func NewHandler(publisher *service.Publisher) *Handler {
	return &Handler{publisher: publisher}
}

type publishRequest struct {
	ReportID    int64  `json:"report_id" binding:"required"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Publish creates a published artifact from a report. The response is the one
// place the issued password appears in plaintext for the owner.
func (h *Handler) Publish(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	pub, err := h.publisher.Publish(userID, req.ReportID, req.Title, req.Description)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"publication": pub,
		"password":    pub.Password,
	})
}

// List returns one page of the user's publications
func (h *Handler) List(c *gin.Context) {
	userID := c.GetInt64("user_id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	pubs, err := h.publisher.List(userID, page, perPage)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"publications": pubs})
}

// Get returns one publication
func (h *Handler) Get(c *gin.Context) {
	userID := c.GetInt64("user_id")
	pubID, ok := pathID(c, "pub_id")
	if !ok {
		return
	}

	pub, err := h.publisher.Get(userID, pubID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, pub)
}

// RotatePassword replaces the publication's secret and returns the new one
func (h *Handler) RotatePassword(c *gin.Context) {
	userID := c.GetInt64("user_id")
	pubID, ok := pathID(c, "pub_id")
	if !ok {
		return
	}

	password, err := h.publisher.RotatePassword(userID, pubID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"password": password})
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetActive toggles the soft-disable flag
func (h *Handler) SetActive(c *gin.Context) {
	userID := c.GetInt64("user_id")
	pubID, ok := pathID(c, "pub_id")
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	pub, err := h.publisher.SetActive(userID, pubID, *req.IsActive)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, pub)
}

// Delete removes a publication and every link touching it
func (h *Handler) Delete(c *gin.Context) {
	userID := c.GetInt64("user_id")
	pubID, ok := pathID(c, "pub_id")
	if !ok {
		return
	}

	if err := h.publisher.Delete(userID, pubID); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Publication deleted successfully"})
}

type addLinkRequest struct {
	TargetID int64  `json:"target_id" binding:"required"`
	Label    string `json:"label"`
}

// AddLink creates a navigation link to another publication
func (h *Handler) AddLink(c *gin.Context) {
	userID := c.GetInt64("user_id")
	pubID, ok := pathID(c, "pub_id")
	if !ok {
		return
	}

	var req addLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	link, err := h.publisher.AddLink(userID, pubID, req.TargetID, req.Label)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// RemoveLink deletes a navigation link
func (h *Handler) RemoveLink(c *gin.Context) {
	userID := c.GetInt64("user_id")
	pubID, ok := pathID(c, "pub_id")
	if !ok {
		return
	}
	linkID, ok := pathID(c, "link_id")
	if !ok {
		return
	}

	if err := h.publisher.RemoveLink(userID, pubID, linkID); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link removed successfully"})
}

// ListLinks returns the publication's outbound links in sort order
func (h *Handler) ListLinks(c *gin.Context) {
	userID := c.GetInt64("user_id")
	pubID, ok := pathID(c, "pub_id")
	if !ok {
		return
	}

	links, err := h.publisher.ListLinks(userID, pubID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid " + name})
		return 0, false
	}
	return id, true
}
