package store

import (
	"context"
	"fmt"
	"strings"
)

// Course is a tracked course and its static metadata.
type Course struct {
	CourseID   string `json:"course_id"`
	Department string `json:"department"`
	Title      string `json:"title"`
}

// UpsertCourse registers a course or refreshes its metadata. A course can be
// tracked before anyone enrolls; it then appears in snapshots with an empty
// member set.
func (s *SQLiteStore) UpsertCourse(ctx context.Context, c Course) error {
	if strings.TrimSpace(c.CourseID) == "" {
		return fmt.Errorf("course ID must not be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (course_id, department, title, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(course_id) DO UPDATE SET
		   department = excluded.department,
		   title = excluded.title,
		   updated_at = CURRENT_TIMESTAMP`,
		c.CourseID, c.Department, c.Title,
	)
	if err != nil {
		return fmt.Errorf("upserting course %s: %w", c.CourseID, err)
	}
	return nil
}

// ListCourses returns all tracked courses ordered by ID.
func (s *SQLiteStore) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id, department, title FROM courses ORDER BY course_id`)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	defer rows.Close()

	courses := make([]Course, 0, 64)
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.CourseID, &c.Department, &c.Title); err != nil {
			return nil, fmt.Errorf("scanning course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// RecordEnrollment marks a user as enrolled in a course. Idempotent: the
// (course, user) pair is deduplicated by the primary key.
func (s *SQLiteStore) RecordEnrollment(ctx context.Context, courseID, userID string) error {
	if strings.TrimSpace(courseID) == "" || strings.TrimSpace(userID) == "" {
		return fmt.Errorf("course and user IDs must not be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (course_id, user_id)
		 VALUES (?, ?)
		 ON CONFLICT(course_id, user_id) DO NOTHING`,
		courseID, userID,
	)
	if err != nil {
		return fmt.Errorf("recording enrollment %s/%s: %w", courseID, userID, err)
	}
	return nil
}

// RemoveEnrollment drops a user's enrollment in a course.
func (s *SQLiteStore) RemoveEnrollment(ctx context.Context, courseID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM enrollments WHERE course_id = ? AND user_id = ?`,
		courseID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing enrollment %s/%s: %w", courseID, userID, err)
	}
	return nil
}

// FetchMembership returns the current enrollment snapshot: every tracked
// course mapped to its enrolled user IDs. Courses with no enrollments appear
// with an empty slice so they survive into the overlap graph as isolated
// nodes. Implements the clustering engine's MembershipSource.
func (s *SQLiteStore) FetchMembership(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.course_id, e.user_id
		 FROM courses c
		 LEFT JOIN enrollments e ON e.course_id = c.course_id
		 ORDER BY c.course_id`)
	if err != nil {
		return nil, fmt.Errorf("fetching membership snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string][]string)
	for rows.Next() {
		var courseID string
		var userID *string
		if err := rows.Scan(&courseID, &userID); err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		if _, ok := snapshot[courseID]; !ok {
			snapshot[courseID] = []string{}
		}
		if userID != nil {
			snapshot[courseID] = append(snapshot[courseID], *userID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enrollments: %w", err)
	}

	// Enrollments can exist for courses that were never registered in the
	// courses table; include them too.
	extra, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT course_id, user_id FROM enrollments
		 WHERE course_id NOT IN (SELECT course_id FROM courses)`)
	if err != nil {
		return nil, fmt.Errorf("fetching unregistered enrollments: %w", err)
	}
	defer extra.Close()
	for extra.Next() {
		var courseID, userID string
		if err := extra.Scan(&courseID, &userID); err != nil {
			return nil, fmt.Errorf("scanning unregistered enrollment: %w", err)
		}
		snapshot[courseID] = append(snapshot[courseID], userID)
	}
	return snapshot, extra.Err()
}
