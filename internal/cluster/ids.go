// Package cluster implements the course-channel clustering engine.
//
// The pipeline is: normalize raw identifiers, compute pairwise member
// overlaps, build a weighted undirected graph, detect communities, score the
// partition, and map communities to capacity-bounded category labels. The
// engine recomputes the full mapping from a fresh membership snapshot each
// cycle; nothing is updated incrementally.
package cluster

import (
	"fmt"
	"strconv"
)

// CourseID is the canonical, totally-ordered key for a clusterable course.
type CourseID int64

// UserID identifies a member. User IDs only exist long enough to count
// overlap; they are never retained past the overlap step.
type UserID int64

// Membership maps each course to its deduplicated set of members. A course
// with an empty member set is legal and still appears as an isolated node.
type Membership map[CourseID]map[UserID]struct{}

// CourseMeta is the optional static attribute record for a course. Only the
// department is consulted, to rescue pairs with zero observed overlap.
type CourseMeta struct {
	Department string
}

// Metadata maps normalized course IDs to their attribute records.
type Metadata map[CourseID]CourseMeta

// NormalizationError reports a raw identifier that could not be converted to
// its canonical integer form. It aborts the whole clustering cycle: a cycle
// either produces a total mapping or no mapping at all.
type NormalizationError struct {
	Kind string // "course" or "user"
	Raw  string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s ID %q is not convertible to an integer", e.Kind, e.Raw)
}

// NormalizeMembership converts raw string-keyed membership data (snowflake
// IDs) into canonical integer form, deduplicating each member set.
func NormalizeMembership(raw map[string][]string) (Membership, error) {
	normalized := make(Membership, len(raw))
	for course, users := range raw {
		courseID, err := parseID(course)
		if err != nil {
			return nil, &NormalizationError{Kind: "course", Raw: course}
		}
		members := make(map[UserID]struct{}, len(users))
		for _, user := range users {
			userID, err := parseID(user)
			if err != nil {
				return nil, &NormalizationError{Kind: "user", Raw: user}
			}
			members[UserID(userID)] = struct{}{}
		}
		normalized[CourseID(courseID)] = members
	}
	return normalized, nil
}

// NormalizeMetadata converts raw string-keyed course metadata to canonical
// integer keys. Attribute values pass through untouched.
func NormalizeMetadata(raw map[string]CourseMeta) (Metadata, error) {
	if raw == nil {
		return nil, nil
	}
	normalized := make(Metadata, len(raw))
	for course, meta := range raw {
		courseID, err := parseID(course)
		if err != nil {
			return nil, &NormalizationError{Kind: "course", Raw: course}
		}
		normalized[CourseID(courseID)] = meta
	}
	return normalized, nil
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
