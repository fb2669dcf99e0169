package store

import "fmt"

// migrate creates all tables if they don't exist. The schema is small enough
// that idempotent CREATE IF NOT EXISTS statements cover evolution for now.
func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS courses (
			course_id  TEXT PRIMARY KEY,
			department TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS enrollments (
			course_id  TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (course_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_enrollments_user ON enrollments(user_id)`,
		`CREATE TABLE IF NOT EXISTS category_mapping (
			course_id      TEXT PRIMARY KEY,
			category_label TEXT NOT NULL,
			assigned_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
