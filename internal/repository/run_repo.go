package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/insightloop/reportd/internal/model"
)

const runColumns = `id, report_id, status, trigger_type, sql_queries_executed,
	result_markdown, result_data, error_message, llm_prompt, duration_ms, created_at`

// CreateRun appends a new run record and returns its id
func (s *Store) CreateRun(reportID int64, trigger model.TriggerType) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO report_runs (report_id, status, trigger_type, created_at)
		VALUES (?, ?, ?, ?)
	`, reportID, string(model.RunPending), string(trigger), formatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// MarkRunRunning transitions a pending run to running
func (s *Store) MarkRunRunning(runID int64) error {
	_, err := s.db.Exec(`UPDATE report_runs SET status = ? WHERE id = ? AND status = ?`,
		string(model.RunRunning), runID, string(model.RunPending))
	return err
}

// FinishRun writes a run's terminal state and outcome. Terminal rows are never
// rewritten: the guard clause refuses to touch a run that already finished.
func (s *Store) FinishRun(run *model.ReportRun) error {
	queriesJSON, err := json.Marshal(run.QueriesExecuted)
	if err != nil {
		return err
	}

	var resultData interface{}
	if len(run.ResultData) > 0 {
		resultData = string(run.ResultData)
	}

	_, err = s.db.Exec(`
		UPDATE report_runs
		SET status = ?, sql_queries_executed = ?, result_markdown = ?, result_data = ?,
			error_message = ?, llm_prompt = ?, duration_ms = ?
		WHERE id = ? AND status NOT IN (?, ?)
	`,
		string(run.Status), string(queriesJSON), run.ResultMarkdown, resultData,
		run.ErrorMessage, run.LLMPrompt, run.DurationMS,
		run.ID, string(model.RunCompleted), string(model.RunFailed))
	return err
}

// GetRun returns a run by id, or nil when absent
func (s *Store) GetRun(runID int64) (*model.ReportRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM report_runs WHERE id = ?`, runID)
	return scanRun(row)
}

// ListRunsByReport returns one page of a report's runs, newest first
func (s *Store) ListRunsByReport(reportID int64, page, perPage int) ([]model.ReportRun, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	rows, err := s.db.Query(`
		SELECT `+runColumns+` FROM report_runs WHERE report_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, reportID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.ReportRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}

	return runs, rows.Err()
}

// CountRunsByReport returns the total number of runs for a report
func (s *Store) CountRunsByReport(reportID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM report_runs WHERE report_id = ?`, reportID).Scan(&count)
	return count, err
}

func scanRun(row rowScanner) (*model.ReportRun, error) {
	r := &model.ReportRun{}
	var queries, markdown, data, errMsg, prompt sql.NullString
	var status, trigger, createdAt string
	var durationMS sql.NullInt64

	err := row.Scan(
		&r.ID, &r.ReportID, &status, &trigger, &queries,
		&markdown, &data, &errMsg, &prompt, &durationMS, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Status = model.RunStatus(status)
	r.TriggerType = model.TriggerType(trigger)
	r.ResultMarkdown = markdown.String
	r.ErrorMessage = errMsg.String
	r.LLMPrompt = prompt.String
	r.CreatedAt = parseTime(createdAt)

	if queries.Valid && queries.String != "" {
		json.Unmarshal([]byte(queries.String), &r.QueriesExecuted)
	}
	if data.Valid && data.String != "" {
		r.ResultData = json.RawMessage(data.String)
	}
	if durationMS.Valid {
		d := durationMS.Int64
		r.DurationMS = &d
	}

	return r, nil
}
