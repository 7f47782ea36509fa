package report

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/insightloop/reportd/internal/api/respond"
	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/schedule"
	"github.com/insightloop/reportd/internal/service"
)

// Handler serves report CRUD, schedule management and run triggering.
type Handler struct {
	lifecycle *service.Lifecycle
}

// NewHandler creates the report handler
func NewHandler(lifecycle *service.Lifecycle) *Handler {
	return &Handler{lifecycle: lifecycle}
}

// Create saves a new report from a definition
func (h *Handler) Create(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var def model.ReportDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	report, err := h.lifecycle.Create(userID, def)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

// List returns the user's reports
func (h *Handler) List(c *gin.Context) {
	userID := c.GetInt64("user_id")

	reports, err := h.lifecycle.List(userID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Get returns one report
func (h *Handler) Get(c *gin.Context) {
	userID := c.GetInt64("user_id")
	reportID, ok := pathID(c, "report_id")
	if !ok {
		return
	}

	report, err := h.lifecycle.Get(userID, reportID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

type updateScheduleRequest struct {
	ScheduleType   string         `json:"schedule_type" binding:"required"`
	ScheduleConfig *schedule.Spec `json:"schedule_config"`
	Status         *string        `json:"status"`
}

// UpdateSchedule replaces a report's schedule and optionally its status
func (h *Handler) UpdateSchedule(c *gin.Context) {
	userID := c.GetInt64("user_id")
	reportID, ok := pathID(c, "report_id")
	if !ok {
		return
	}

	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	scheduleType, err := schedule.ParseType(req.ScheduleType)
	if err != nil {
		respond.Error(c, err)
		return
	}

	var status *model.ReportStatus
	if req.Status != nil {
		parsed, err := model.ParseReportStatus(*req.Status)
		if err != nil {
			respond.Error(c, err)
			return
		}
		status = &parsed
	}

	report, err := h.lifecycle.UpdateSchedule(userID, reportID, scheduleType, req.ScheduleConfig, status)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

type updateQueriesRequest struct {
	SQLQueries []model.QuerySpec `json:"sql_queries" binding:"required"`
	UserPrompt string            `json:"user_prompt"`
}

// UpdateQueries replaces a report's query list. Malformed input is rejected
// with a validation error, never silently dropped.
func (h *Handler) UpdateQueries(c *gin.Context) {
	userID := c.GetInt64("user_id")
	reportID, ok := pathID(c, "report_id")
	if !ok {
		return
	}

	var req updateQueriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	report, err := h.lifecycle.UpdateQueries(userID, reportID, req.SQLQueries, req.UserPrompt)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// TogglePin flips the pin flag
func (h *Handler) TogglePin(c *gin.Context) {
	userID := c.GetInt64("user_id")
	reportID, ok := pathID(c, "report_id")
	if !ok {
		return
	}

	report, err := h.lifecycle.TogglePin(userID, reportID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Run triggers a manual run and waits for its outcome
func (h *Handler) Run(c *gin.Context) {
	userID := c.GetInt64("user_id")
	reportID, ok := pathID(c, "report_id")
	if !ok {
		return
	}

	run, err := h.lifecycle.TriggerManualRun(c.Request.Context(), userID, reportID)
	if err != nil {
		// the failed run record is persisted; include it so the caller can
		// show what was recorded
		if run != nil {
			c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error(), "run": run})
			return
		}
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListRuns returns one page of a report's run history, newest first
func (h *Handler) ListRuns(c *gin.Context) {
	userID := c.GetInt64("user_id")
	reportID, ok := pathID(c, "report_id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	runs, total, err := h.lifecycle.ListRuns(userID, reportID, page, perPage)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":     runs,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// GetRun returns one run record
func (h *Handler) GetRun(c *gin.Context) {
	userID := c.GetInt64("user_id")
	runID, ok := pathID(c, "run_id")
	if !ok {
		return
	}

	run, err := h.lifecycle.GetRun(userID, runID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// Delete removes a report and its run history
func (h *Handler) Delete(c *gin.Context) {
	userID := c.GetInt64("user_id")
	reportID, ok := pathID(c, "report_id")
	if !ok {
		return
	}

	if err := h.lifecycle.Delete(userID, reportID); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Report deleted successfully"})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid " + name})
		return 0, false
	}
	return id, true
}
