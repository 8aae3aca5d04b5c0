// Package lanes packs a day's appointments into side-by-side display lanes so
// that overlapping appointments never share a lane.
package lanes

import (
	"sort"
	"time"
)

type Interval struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Placement is an appointment's lane within its overlap cluster.
type Placement struct {
	Lane       int `json:"lane"`
	TotalLanes int `json:"total_lanes"`
}

// Overlaps uses half-open intervals: [a.Start,a.End) overlaps [b.Start,b.End)
// iff a.Start < b.End && b.Start < a.End, so back-to-back appointments do not.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Allocate sorts by start (ties keep input order), sweeps the list into maximal
// overlap clusters, and gives each member of a cluster its own lane.
func Allocate(items []Interval) map[string]Placement {
	sorted := make([]Interval, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return sweep(sorted)
}

// AllocateByID breaks start-time ties by id instead of input order, so the
// result does not depend on how the API happened to order the list.
func AllocateByID(items []Interval) map[string]Placement {
	sorted := make([]Interval, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sweep(sorted)
}

func sweep(sorted []Interval) map[string]Placement {
	out := make(map[string]Placement, len(sorted))
	var cluster []Interval
	var clusterEnd time.Time

	flush := func() {
		for i, it := range cluster {
			out[it.ID] = Placement{Lane: i, TotalLanes: len(cluster)}
		}
		cluster = cluster[:0]
	}

	for _, it := range sorted {
		if len(cluster) > 0 && !it.Start.Before(clusterEnd) {
			flush()
		}
		if len(cluster) == 0 || it.End.After(clusterEnd) {
			clusterEnd = it.End
		}
		cluster = append(cluster, it)
	}
	flush()
	return out
}
