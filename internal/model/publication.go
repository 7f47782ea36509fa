package model

import "time"

// PublishedReport is a password-protected public snapshot of a report
type PublishedReport struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	ReportID    int64     `json:"report_id" db:"report_id"`
	Slug        string    `json:"slug" db:"slug"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	SourceTitle string    `json:"source_title" db:"source_title"`
	Password    string    `json:"-" db:"password"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PublishedReportLink is a directed cross-navigation edge between two
// published reports
type PublishedReportLink struct {
	ID                int64  `json:"id" db:"id"`
	PublishedReportID int64  `json:"published_report_id" db:"published_report_id"`
	TargetID          int64  `json:"target_id" db:"target_published_report_id"`
	Label             string `json:"label,omitempty" db:"label"`
	SortOrder         int    `json:"sort_order" db:"sort_order"`
}
