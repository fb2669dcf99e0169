package cluster

import "sort"

// Pair is an unordered course pair in canonical order (A < B). Storing pairs
// this way avoids duplicate/reverse entries.
type Pair struct {
	A, B CourseID
}

func makePair(a, b CourseID) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Overlaps holds the computed pairwise co-occurrence weights. Real and
// rescued weights are kept apart: rescued pairs carry a synthetic weight,
// bypass edge thresholding, and never feed the adaptive median.
type Overlaps struct {
	Real    map[Pair]int
	Rescued map[Pair]int
}

// computeOverlapsInverted counts shared members per course pair via an
// inverted member→courses index. Cost is proportional to the sum of
// C(k,2) over member degrees k, which beats the pairwise method whenever
// membership is sparse relative to the number of course pairs.
func computeOverlapsInverted(membership Membership) map[Pair]int {
	userCourses := make(map[UserID][]CourseID)
	for course, users := range membership {
		for user := range users {
			userCourses[user] = append(userCourses[user], course)
		}
	}

	overlaps := make(map[Pair]int)
	for _, courses := range userCourses {
		if len(courses) < 2 {
			continue
		}
		sort.Slice(courses, func(i, j int) bool { return courses[i] < courses[j] })
		for i := 0; i < len(courses)-1; i++ {
			for j := i + 1; j < len(courses); j++ {
				overlaps[Pair{A: courses[i], B: courses[j]}]++
			}
		}
	}
	return overlaps
}

// computeOverlapsPairwise intersects every unordered course pair directly.
// Reference implementation: must produce weights identical to the inverted
// index for any input.
func computeOverlapsPairwise(membership Membership) map[Pair]int {
	courses := sortedCourses(membership)
	overlaps := make(map[Pair]int)
	for i := 0; i < len(courses)-1; i++ {
		for j := i + 1; j < len(courses); j++ {
			count := intersectionSize(membership[courses[i]], membership[courses[j]])
			if count > 0 {
				overlaps[Pair{A: courses[i], B: courses[j]}] = count
			}
		}
	}
	return overlaps
}

// rescueSparsePairs assigns a fixed synthetic weight to pairs with zero
// observed overlap whose courses share a non-empty department. This keeps
// cold-start or sparse populations from fragmenting into singletons.
func rescueSparsePairs(membership Membership, real map[Pair]int, metadata Metadata, sparseOverlap int) map[Pair]int {
	if metadata == nil {
		return nil
	}
	courses := sortedCourses(membership)
	rescued := make(map[Pair]int)
	for i := 0; i < len(courses)-1; i++ {
		for j := i + 1; j < len(courses); j++ {
			pair := Pair{A: courses[i], B: courses[j]}
			if _, ok := real[pair]; ok {
				continue
			}
			dept1 := metadata[pair.A].Department
			dept2 := metadata[pair.B].Department
			if dept1 != "" && dept1 == dept2 {
				rescued[pair] = sparseOverlap
			}
		}
	}
	return rescued
}

func intersectionSize(a, b map[UserID]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	count := 0
	for user := range a {
		if _, ok := b[user]; ok {
			count++
		}
	}
	return count
}

func sortedCourses(membership Membership) []CourseID {
	courses := make([]CourseID, 0, len(membership))
	for course := range membership {
		courses = append(courses, course)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i] < courses[j] })
	return courses
}
