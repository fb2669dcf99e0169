// Package store provides the SQLite persistence layer for the course
// clustering service: tracked courses and their metadata, user enrollments,
// and the last-known course→category mapping.
//
// Course and user IDs are stored as TEXT (platform snowflakes); the
// clustering engine normalizes them to integers per cycle and rejects
// anything unparsable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.coursecluster/coursecluster.db"

// Config holds configuration for Open.
type Config struct {
	DBPath string
}

// SQLiteStore is the SQLite-backed store. Pass ":memory:" as the path for
// in-memory databases (testing).
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the database and runs migrations.
func Open(cfg Config) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	cfg.DBPath = ExpandPath(cfg.DBPath)

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetDB exposes the underlying handle for diagnostic tooling.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// Path returns the expanded filesystem path of the database.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Stats summarizes store contents for observability.
type Stats struct {
	Courses       int64 `json:"courses"`
	Enrollments   int64 `json:"enrollments"`
	DistinctUsers int64 `json:"distinct_users"`
	MappedCourses int64 `json:"mapped_courses"`
	DBSizeBytes   int64 `json:"db_size_bytes"`
}

// Stats reports row counts and the database file size.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		dst   *int64
		query string
	}{
		{&stats.Courses, `SELECT COUNT(*) FROM courses`},
		{&stats.Enrollments, `SELECT COUNT(*) FROM enrollments`},
		{&stats.DistinctUsers, `SELECT COUNT(DISTINCT user_id) FROM enrollments`},
		{&stats.MappedCourses, `SELECT COUNT(*) FROM category_mapping`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}
	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = info.Size()
		}
	}
	return stats, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
