package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store wraps the sqlite database. All repositories hang off it so callers
// get the whole persistence surface from one constructor.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures the
// schema exists. Paths starting with "file:" are passed through untouched so
// tests can use shared in-memory databases.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	zap.L().Info("Database initialized successfully",
		zap.String("path", path))

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates all tables if they don't exist
func (s *Store) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			email TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,

		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			schedule_type TEXT NOT NULL,
			schedule_config TEXT,
			sql_queries TEXT NOT NULL,
			user_prompt TEXT,
			is_pinned INTEGER NOT NULL DEFAULT 0,
			last_run_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_user_id ON reports(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status)`,

		`CREATE TABLE IF NOT EXISTS report_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			report_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			trigger_type TEXT NOT NULL,
			sql_queries_executed TEXT,
			result_markdown TEXT,
			result_data TEXT,
			error_message TEXT,
			llm_prompt TEXT,
			duration_ms INTEGER,
			created_at TEXT NOT NULL,
			FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_runs_report_id ON report_runs(report_id)`,

		`CREATE TABLE IF NOT EXISTS published_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			report_id INTEGER NOT NULL,
			slug TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			source_title TEXT NOT NULL,
			password TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_published_reports_slug ON published_reports(slug)`,
		`CREATE INDEX IF NOT EXISTS idx_published_reports_user_id ON published_reports(user_id)`,

		`CREATE TABLE IF NOT EXISTS published_report_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			published_report_id INTEGER NOT NULL,
			target_published_report_id INTEGER NOT NULL,
			label TEXT,
			sort_order INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (published_report_id) REFERENCES published_reports(id) ON DELETE CASCADE,
			FOREIGN KEY (target_published_report_id) REFERENCES published_reports(id) ON DELETE CASCADE,
			UNIQUE (published_report_id, target_published_report_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_published_report_links_owner ON published_report_links(published_report_id)`,
	}

	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", table, err)
		}
	}

	return nil
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
