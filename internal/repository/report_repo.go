package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/schedule"
)

const reportColumns = `id, user_id, title, description, status, schedule_type, schedule_config,
	sql_queries, user_prompt, is_pinned, last_run_at, created_at, updated_at`

// CreateReport inserts a new report and returns it with its assigned id
func (s *Store) CreateReport(r *model.Report) (*model.Report, error) {
	now := formatTime(time.Now())
	queriesJSON, err := json.Marshal(r.SQLQueries)
	if err != nil {
		return nil, err
	}

	var configJSON interface{}
	if r.ScheduleSpec != nil {
		b, err := json.Marshal(r.ScheduleSpec)
		if err != nil {
			return nil, err
		}
		configJSON = string(b)
	}

	query := `
		INSERT INTO reports (user_id, title, description, status, schedule_type, schedule_config,
			sql_queries, user_prompt, is_pinned, last_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		r.UserID, r.Title, r.Description, string(r.Status), string(r.ScheduleType), configJSON,
		string(queriesJSON), r.UserPrompt, boolToInt(r.IsPinned), nullTime(r.LastRunAt), now, now)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return s.GetReport(id)
}

// GetReport returns a report by id, or nil when absent
func (s *Store) GetReport(id int64) (*model.Report, error) {
	row := s.db.QueryRow(`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	return scanReport(row)
}

// GetUserReport returns a report owned by the given user, or nil when absent
func (s *Store) GetUserReport(userID, id int64) (*model.Report, error) {
	row := s.db.QueryRow(`SELECT `+reportColumns+` FROM reports WHERE id = ? AND user_id = ?`, id, userID)
	return scanReport(row)
}

// ListReports returns all reports for a user, pinned first then newest first
func (s *Store) ListReports(userID int64) ([]model.Report, error) {
	rows, err := s.db.Query(`
		SELECT `+reportColumns+` FROM reports WHERE user_id = ?
		ORDER BY is_pinned DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}

	return reports, rows.Err()
}

// ListActiveScheduled returns every active report with a recurring schedule
func (s *Store) ListActiveScheduled() ([]model.Report, error) {
	rows, err := s.db.Query(`
		SELECT `+reportColumns+` FROM reports
		WHERE status = ? AND schedule_type != ?
	`, string(model.StatusActive), string(schedule.TypeOnce))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}

	return reports, rows.Err()
}

// UpdateReportSchedule replaces a report's schedule and optionally its status
func (s *Store) UpdateReportSchedule(id int64, scheduleType schedule.Type, spec *schedule.Spec, status *model.ReportStatus) error {
	var configJSON interface{}
	if spec != nil {
		b, err := json.Marshal(spec)
		if err != nil {
			return err
		}
		configJSON = string(b)
	}

	now := formatTime(time.Now())
	if status != nil {
		_, err := s.db.Exec(`
			UPDATE reports SET schedule_type = ?, schedule_config = ?, status = ?, updated_at = ?
			WHERE id = ?
		`, string(scheduleType), configJSON, string(*status), now, id)
		return err
	}

	_, err := s.db.Exec(`
		UPDATE reports SET schedule_type = ?, schedule_config = ?, updated_at = ?
		WHERE id = ?
	`, string(scheduleType), configJSON, now, id)
	return err
}

// UpdateReportStatus sets a report's lifecycle status
func (s *Store) UpdateReportStatus(id int64, status model.ReportStatus) error {
	_, err := s.db.Exec(`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	return err
}

// UpdateReportQueries replaces a report's queries and regeneration prompt
func (s *Store) UpdateReportQueries(id int64, queries []model.QuerySpec, userPrompt string) error {
	queriesJSON, err := json.Marshal(queries)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE reports SET sql_queries = ?, user_prompt = ?, updated_at = ? WHERE id = ?`,
		string(queriesJSON), userPrompt, formatTime(time.Now()), id)
	return err
}

// SetReportPinned sets the pin flag
func (s *Store) SetReportPinned(id int64, pinned bool) error {
	_, err := s.db.Exec(`UPDATE reports SET is_pinned = ?, updated_at = ? WHERE id = ?`,
		boolToInt(pinned), formatTime(time.Now()), id)
	return err
}

// TouchReportLastRun records a successful run instant
func (s *Store) TouchReportLastRun(id int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE reports SET last_run_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(time.Now()), id)
	return err
}

// DeleteReport removes a report; its runs go with it via the FK cascade
func (s *Store) DeleteReport(id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*model.Report, error) {
	r := &model.Report{}
	var description, scheduleConfig, queries, userPrompt, lastRunAt sql.NullString
	var status, scheduleType, createdAt, updatedAt string
	var pinned int

	err := row.Scan(
		&r.ID, &r.UserID, &r.Title, &description, &status, &scheduleType, &scheduleConfig,
		&queries, &userPrompt, &pinned, &lastRunAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Description = description.String
	r.Status = model.ReportStatus(status)
	r.ScheduleType = schedule.Type(scheduleType)
	r.UserPrompt = userPrompt.String
	r.IsPinned = pinned != 0
	r.LastRunAt = scanNullTime(lastRunAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)

	if scheduleConfig.Valid && scheduleConfig.String != "" {
		spec := &schedule.Spec{}
		if err := json.Unmarshal([]byte(scheduleConfig.String), spec); err == nil {
			r.ScheduleSpec = spec
		}
	}
	if queries.Valid && queries.String != "" {
		json.Unmarshal([]byte(queries.String), &r.SQLQueries)
	}

	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
