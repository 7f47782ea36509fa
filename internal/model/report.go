package model

import (
	"time"

	"github.com/insightloop/reportd/internal/pkg/apperr"
	"github.com/insightloop/reportd/internal/schedule"
)

// ReportStatus represents a report lifecycle state
type ReportStatus string

const (
	StatusDraft  ReportStatus = "draft"
	StatusActive ReportStatus = "active"
	StatusPaused ReportStatus = "paused"
	StatusError  ReportStatus = "error"
)

// ParseReportStatus parses a report status token
func ParseReportStatus(s string) (ReportStatus, error) {
	switch ReportStatus(s) {
	case StatusDraft, StatusActive, StatusPaused, StatusError:
		return ReportStatus(s), nil
	default:
		return "", apperr.Validationf("unknown report status %q", s)
	}
}

// QuerySpec is one query in a report definition
type QuerySpec struct {
	Purpose string `json:"purpose"`
	Query   string `json:"query"`
}

// Report represents a saved report
type Report struct {
	ID           int64          `json:"id" db:"id"`
	UserID       int64          `json:"user_id" db:"user_id"`
	Title        string         `json:"title" db:"title"`
	Description  string         `json:"description,omitempty" db:"description"`
	Status       ReportStatus   `json:"status" db:"status"`
	ScheduleType schedule.Type  `json:"schedule_type" db:"schedule_type"`
	ScheduleSpec *schedule.Spec `json:"schedule_config,omitempty" db:"schedule_config"`
	SQLQueries   []QuerySpec    `json:"sql_queries" db:"sql_queries"`
	UserPrompt   string         `json:"user_prompt,omitempty" db:"user_prompt"`
	IsPinned     bool           `json:"is_pinned" db:"is_pinned"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty" db:"last_run_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// ReportDefinition is the material a report is created from, either typed in
// directly or produced by a completed authoring session.
type ReportDefinition struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	SQLQueries  []QuerySpec `json:"sql_queries"`
	UserPrompt  string      `json:"user_prompt,omitempty"`
}
