package cluster

import (
	"reflect"
	"testing"
)

func TestMapToLabelsSingleChunkKeepsBarePrefix(t *testing.T) {
	mapping := MapToLabels([]Community{{3, 1, 2}}, 50, "COURSES")
	want := map[CourseID]string{1: "COURSES", 2: "COURSES", 3: "COURSES"}
	if !reflect.DeepEqual(mapping, want) {
		t.Fatalf("got %v, want %v", mapping, want)
	}
}

func TestMapToLabelsSplitsOversizedCluster(t *testing.T) {
	// One community of 5 with capacity 2: chunks [1,2],[3,4],[5], three
	// chunks overall, so every chunk is suffixed starting at 1.
	mapping := MapToLabels([]Community{{5, 3, 1, 4, 2}}, 2, "COURSES")
	want := map[CourseID]string{
		1: "COURSES-1", 2: "COURSES-1",
		3: "COURSES-2", 4: "COURSES-2",
		5: "COURSES-3",
	}
	if !reflect.DeepEqual(mapping, want) {
		t.Fatalf("got %v, want %v", mapping, want)
	}
}

func TestMapToLabelsOrdersClustersBySizeDescending(t *testing.T) {
	// The larger community takes the earlier label index even though its
	// minimum course ID is higher.
	mapping := MapToLabels([]Community{{1}, {10, 11, 12}}, 50, "COURSES")
	want := map[CourseID]string{
		10: "COURSES-1", 11: "COURSES-1", 12: "COURSES-1",
		1: "COURSES-2",
	}
	if !reflect.DeepEqual(mapping, want) {
		t.Fatalf("got %v, want %v", mapping, want)
	}
}

func TestMapToLabelsBreaksSizeTiesByMinimumID(t *testing.T) {
	mapping := MapToLabels([]Community{{20, 21}, {5, 30}}, 50, "COURSES")
	want := map[CourseID]string{
		5: "COURSES-1", 30: "COURSES-1",
		20: "COURSES-2", 21: "COURSES-2",
	}
	if !reflect.DeepEqual(mapping, want) {
		t.Fatalf("got %v, want %v", mapping, want)
	}
}

func TestMapToLabelsRespectsCapacity(t *testing.T) {
	clusters := []Community{
		{1, 2, 3, 4, 5, 6, 7},
		{10, 11, 12},
		{20},
	}
	const capacity = 3
	mapping := MapToLabels(clusters, capacity, "COURSES")

	perLabel := make(map[string]int)
	for _, label := range mapping {
		perLabel[label]++
	}
	for label, count := range perLabel {
		if count > capacity {
			t.Fatalf("label %q holds %d courses, capacity is %d", label, count, capacity)
		}
	}

	total := 0
	for _, c := range clusters {
		total += len(c)
	}
	if len(mapping) != total {
		t.Fatalf("mapping covers %d courses, want %d", len(mapping), total)
	}
}

func TestMapToLabelsIsDeterministic(t *testing.T) {
	clusters := []Community{{7, 3, 9}, {2, 8}, {1, 4, 6, 5}}
	first := MapToLabels(clusters, 2, "GRP")
	for i := 0; i < 10; i++ {
		if again := MapToLabels(clusters, 2, "GRP"); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, again, first)
		}
	}
}

func TestMapToLabelsClampsNonPositiveCapacity(t *testing.T) {
	// Direct calls bypass engine option validation; capacity must be
	// clamped to 1 rather than dividing by zero.
	for _, capacity := range []int{0, -3} {
		mapping := MapToLabels([]Community{{2, 1}}, capacity, "COURSES")
		want := map[CourseID]string{1: "COURSES-1", 2: "COURSES-2"}
		if !reflect.DeepEqual(mapping, want) {
			t.Fatalf("capacity %d: got %v, want %v", capacity, mapping, want)
		}
	}
}

func TestMapToLabelsSkipsEmptyCommunities(t *testing.T) {
	mapping := MapToLabels([]Community{{}, {1, 2}}, 50, "COURSES")
	want := map[CourseID]string{1: "COURSES", 2: "COURSES"}
	if !reflect.DeepEqual(mapping, want) {
		t.Fatalf("got %v, want %v", mapping, want)
	}
}
