package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/insightloop/reportd/internal/model"
)

const publicationColumns = `id, user_id, report_id, slug, title, description, source_title,
	password, is_active, created_at`

// CreatePublication inserts a published report. Returns ErrSlugTaken when the
// slug collides with an existing row so the caller can retry with a new slug.
func (s *Store) CreatePublication(p *model.PublishedReport) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO published_reports (user_id, report_id, slug, title, description, source_title,
			password, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.UserID, p.ReportID, p.Slug, p.Title, p.Description, p.SourceTitle,
		p.Password, boolToInt(p.IsActive), formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrSlugTaken
		}
		return 0, err
	}
	return result.LastInsertId()
}

// GetPublication returns a published report by id, or nil when absent
func (s *Store) GetPublication(id int64) (*model.PublishedReport, error) {
	row := s.db.QueryRow(`SELECT `+publicationColumns+` FROM published_reports WHERE id = ?`, id)
	return scanPublication(row)
}

// GetPublicationBySlug returns a published report by slug, or nil when absent
func (s *Store) GetPublicationBySlug(slug string) (*model.PublishedReport, error) {
	row := s.db.QueryRow(`SELECT `+publicationColumns+` FROM published_reports WHERE slug = ?`, slug)
	return scanPublication(row)
}

// ListPublications returns one page of a user's published reports, newest first
func (s *Store) ListPublications(userID int64, page, perPage int) ([]model.PublishedReport, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	rows, err := s.db.Query(`
		SELECT `+publicationColumns+` FROM published_reports WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pubs []model.PublishedReport
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, *p)
	}

	return pubs, rows.Err()
}

// UpdatePublicationPassword replaces the stored secret
func (s *Store) UpdatePublicationPassword(id int64, password string) error {
	_, err := s.db.Exec(`UPDATE published_reports SET password = ? WHERE id = ?`, password, id)
	return err
}

// SetPublicationActive toggles the soft-disable flag
func (s *Store) SetPublicationActive(id int64, active bool) error {
	_, err := s.db.Exec(`UPDATE published_reports SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	return err
}

// DeletePublication removes a published report; inbound and outbound links
// go with it via the FK cascades
func (s *Store) DeletePublication(id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM published_reports WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateLink inserts a directed link between two published reports. Returns
// ErrLinkExists when the (owner, target) pair is already linked.
func (s *Store) CreateLink(ownerID, targetID int64, label string, sortOrder int) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO published_report_links (published_report_id, target_published_report_id, label, sort_order)
		VALUES (?, ?, ?, ?)
	`, ownerID, targetID, label, sortOrder)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrLinkExists
		}
		return 0, err
	}
	return result.LastInsertId()
}

// GetLink returns a link by owner and link id, or nil when absent
func (s *Store) GetLink(ownerID, linkID int64) (*model.PublishedReportLink, error) {
	row := s.db.QueryRow(`
		SELECT id, published_report_id, target_published_report_id, label, sort_order
		FROM published_report_links WHERE id = ? AND published_report_id = ?
	`, linkID, ownerID)
	return scanLink(row)
}

// DeleteLink removes a link owned by the given published report
func (s *Store) DeleteLink(ownerID, linkID int64) (bool, error) {
	result, err := s.db.Exec(`
		DELETE FROM published_report_links WHERE id = ? AND published_report_id = ?
	`, linkID, ownerID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListLinks returns a published report's outbound links ordered by sort order
func (s *Store) ListLinks(ownerID int64) ([]model.PublishedReportLink, error) {
	rows, err := s.db.Query(`
		SELECT id, published_report_id, target_published_report_id, label, sort_order
		FROM published_report_links WHERE published_report_id = ?
		ORDER BY sort_order ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.PublishedReportLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}

	return links, rows.Err()
}

// NextLinkSortOrder returns the sort order for a new link at the end
func (s *Store) NextLinkSortOrder(ownerID int64) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`
		SELECT MAX(sort_order) FROM published_report_links WHERE published_report_id = ?
	`, ownerID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

func scanPublication(row rowScanner) (*model.PublishedReport, error) {
	p := &model.PublishedReport{}
	var description sql.NullString
	var active int
	var createdAt string

	err := row.Scan(
		&p.ID, &p.UserID, &p.ReportID, &p.Slug, &p.Title, &description, &p.SourceTitle,
		&p.Password, &active, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.Description = description.String
	p.IsActive = active != 0
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func scanLink(row rowScanner) (*model.PublishedReportLink, error) {
	l := &model.PublishedReportLink{}
	var label sql.NullString

	err := row.Scan(&l.ID, &l.PublishedReportID, &l.TargetID, &label, &l.SortOrder)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	l.Label = label.String
	return l, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
