package repository

import (
	"database/sql"
	"time"

	"github.com/insightloop/reportd/internal/model"
)

// CreateUser inserts a new user and returns its id
func (s *Store) CreateUser(username, passwordHash, email string) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO users (username, password_hash, email, created_at)
		VALUES (?, ?, ?, ?)
	`, username, passwordHash, email, formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return result.LastInsertId()
}

// GetUserByID returns a user by id, or nil when absent
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, password_hash, email, created_at FROM users WHERE id = ?
	`, id))
}

// GetUserByUsername returns a user by username, or nil when absent
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, password_hash, email, created_at FROM users WHERE username = ?
	`, username))
}

func (s *Store) scanUser(row *sql.Row) (*model.User, error) {
	u := &model.User{}
	var email sql.NullString

	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	return u, nil
}
