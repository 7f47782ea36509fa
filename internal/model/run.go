package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents a run execution state
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// TriggerType records how a run was started
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
)

// QueryExecution is the per-query record inside a run. A single query may fail
// while the others succeed; the run's own status reflects the aggregate.
type QueryExecution struct {
	Purpose   string `json:"purpose"`
	Query     string `json:"query"`
	RowCount  int    `json:"row_count"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// ReportRun is one immutable execution record of a report
type ReportRun struct {
	ID              int64            `json:"id" db:"id"`
	ReportID        int64            `json:"report_id" db:"report_id"`
	Status          RunStatus        `json:"status" db:"status"`
	TriggerType     TriggerType      `json:"trigger_type" db:"trigger_type"`
	QueriesExecuted []QueryExecution `json:"sql_queries_executed,omitempty" db:"sql_queries_executed"`
	ResultMarkdown  string           `json:"result_markdown,omitempty" db:"result_markdown"`
	ResultData      json.RawMessage  `json:"result_data,omitempty" db:"result_data"`
	ErrorMessage    string           `json:"error_message,omitempty" db:"error_message"`
	LLMPrompt       string           `json:"llm_prompt,omitempty" db:"llm_prompt"`
	DurationMS      *int64           `json:"duration_ms,omitempty" db:"duration_ms"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}
