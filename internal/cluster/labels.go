package cluster

import (
	"fmt"
	"sort"
)

// MapToLabels assigns every course in the given partition to a category
// label holding at most maxCapacity courses. Oversized communities are split
// into consecutive chunks.
//
// The result is deterministic for identical input:
//   - communities are ordered by descending size, ties broken by the
//     community's minimum course ID, so the busiest community keeps the
//     earliest label indices;
//   - members within a community are ordered ascending before chunking;
//   - the bare prefix is used iff exactly one chunk exists overall, otherwise
//     every chunk gets "prefix-N" with N starting at 1.
// A maxCapacity below 1 is clamped to 1.
func MapToLabels(clusters []Community, maxCapacity int, prefix string) map[CourseID]string {
	if maxCapacity < 1 {
		maxCapacity = 1
	}
	ordered := make([][]CourseID, 0, len(clusters))
	totalChunks := 0
	for _, c := range clusters {
		if len(c) == 0 {
			continue
		}
		members := append([]CourseID(nil), c...)
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		ordered = append(ordered, members)
		totalChunks += (len(members) + maxCapacity - 1) / maxCapacity
	}

	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i][0] < ordered[j][0]
	})

	useSuffix := totalChunks > 1
	mapping := make(map[CourseID]string)
	chunkIndex := 1
	for _, members := range ordered {
		for start := 0; start < len(members); start += maxCapacity {
			end := start + maxCapacity
			if end > len(members) {
				end = len(members)
			}
			label := prefix
			if useSuffix {
				label = fmt.Sprintf("%s-%d", prefix, chunkIndex)
			}
			for _, course := range members[start:end] {
				mapping[course] = label
			}
			chunkIndex++
		}
	}
	return mapping
}
