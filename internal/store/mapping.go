package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/privacywhen/coursecluster/internal/cluster"
)

// FetchMetadata returns the department attribute for every tracked course,
// keyed by raw course ID. Implements the clustering engine's MetadataSource.
func (s *SQLiteStore) FetchMetadata(ctx context.Context) (map[string]cluster.CourseMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id, department FROM courses WHERE department != ''`)
	if err != nil {
		return nil, fmt.Errorf("fetching course metadata: %w", err)
	}
	defer rows.Close()

	metadata := make(map[string]cluster.CourseMeta)
	for rows.Next() {
		var courseID, department string
		if err := rows.Scan(&courseID, &department); err != nil {
			return nil, fmt.Errorf("scanning course metadata: %w", err)
		}
		metadata[courseID] = cluster.CourseMeta{Department: department}
	}
	return metadata, rows.Err()
}

// SaveMapping replaces the stored course→category mapping in one
// transaction. The mapping is always written whole: a cycle either persists
// a complete mapping or leaves the previous one untouched.
func (s *SQLiteStore) SaveMapping(ctx context.Context, mapping map[cluster.CourseID]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mapping transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_mapping`); err != nil {
		return fmt.Errorf("clearing category mapping: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO category_mapping (course_id, category_label) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing mapping insert: %w", err)
	}
	defer stmt.Close()

	for courseID, label := range mapping {
		if _, err := stmt.ExecContext(ctx, strconv.FormatInt(int64(courseID), 10), label); err != nil {
			return fmt.Errorf("inserting mapping for course %d: %w", courseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing category mapping: %w", err)
	}
	return nil
}

// MappingEntry is one persisted course→category assignment.
type MappingEntry struct {
	CourseID      string `json:"course_id"`
	CategoryLabel string `json:"category_label"`
}

// GetMapping returns the last persisted mapping ordered by course ID.
func (s *SQLiteStore) GetMapping(ctx context.Context) ([]MappingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id, category_label FROM category_mapping ORDER BY CAST(course_id AS INTEGER)`)
	if err != nil {
		return nil, fmt.Errorf("fetching category mapping: %w", err)
	}
	defer rows.Close()

	entries := make([]MappingEntry, 0, 64)
	for rows.Next() {
		var e MappingEntry
		if err := rows.Scan(&e.CourseID, &e.CategoryLabel); err != nil {
			return nil, fmt.Errorf("scanning mapping entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
