// Package clustering implements density-based grouping of face embeddings.
// Groups are the transitive closure of eps-neighborhoods, so the number of
// people never has to be known up front.
package clustering

import (
	"sort"

	"github.com/lumeo/lumeo/internal/database"
)

// MinSamples = 1 means every embedding, including singletons, ends up in
// some cluster instead of being discarded as noise. Raise it via tuning.yaml
// to suppress spurious singletons from blurry faces.
const (
	DefaultEps        = 0.6
	DefaultMinSamples = 1
)

// Point is one embedding to cluster, identified by its stored face id.
type Point struct {
	ID     int64
	Vector []float32
}

// Options controls the density clustering pass.
type Options struct {
	// Eps is the maximum Euclidean distance between two neighbors.
	Eps float64
	// MinSamples is the minimum neighborhood size (the point itself
	// included) for a point to seed or extend a group.
	MinSamples int
}

// Result is one full clustering pass over the entire embedding set.
// Group order and in-group order are deterministic: groups appear in order
// of their lowest member id, members ordered by id.
type Result struct {
	// Groups holds the face ids of each density-connected group.
	Groups [][]int64
	// Noise holds face ids that did not reach any group. Always empty with
	// MinSamples = 1.
	Noise []int64
}

// point labels during the scan
const (
	labelUnvisited = -2
	labelNoise     = -1
)

// Cluster partitions the points into density-connected groups. The full set
// is re-clustered every call; pairwise distances make this O(n²), which is
// fine at the target scale of thousands of faces.
func Cluster(points []Point, opts Options) Result {
	if opts.Eps <= 0 {
		opts.Eps = DefaultEps
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultMinSamples
	}

	n := len(points)
	if n == 0 {
		return Result{}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = labelUnvisited
	}

	nextGroup := 0
	for i := range n {
		if labels[i] != labelUnvisited {
			continue
		}

		neighbors := regionQuery(points, i, opts.Eps)
		if len(neighbors) < opts.MinSamples {
			labels[i] = labelNoise
			continue
		}

		labels[i] = nextGroup
		expandGroup(points, labels, neighbors, nextGroup, opts)
		nextGroup++
	}

	return collect(points, labels, nextGroup)
}

// expandGroup grows a group from a seed point's neighborhood, following
// density-reachable chains breadth-first.
func expandGroup(points []Point, labels []int, seeds []int, group int, opts Options) {
	for k := 0; k < len(seeds); k++ {
		j := seeds[k]

		if labels[j] == labelNoise {
			// Border point: reachable but not dense enough to expand.
			labels[j] = group
			continue
		}
		if labels[j] != labelUnvisited {
			continue
		}
		labels[j] = group

		neighbors := regionQuery(points, j, opts.Eps)
		if len(neighbors) >= opts.MinSamples {
			seeds = append(seeds, neighbors...)
		}
	}
}

// regionQuery returns the indexes of all points within eps of points[i],
// the point itself included.
func regionQuery(points []Point, i int, eps float64) []int {
	var neighbors []int
	for j := range points {
		if database.EuclideanDistance(points[i].Vector, points[j].Vector) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// collect turns scan labels into the deterministic Result shape. Groups are
// sorted by lowest member id rather than left in discovery order: a point
// first labeled noise can be absorbed as a border point into a group
// discovered later, handing that group a lower member id than an earlier one.
func collect(points []Point, labels []int, groups int) Result {
	result := Result{Groups: make([][]int64, groups)}
	for i, label := range labels {
		if label == labelNoise {
			result.Noise = append(result.Noise, points[i].ID)
			continue
		}
		result.Groups[label] = append(result.Groups[label], points[i].ID)
	}

	for _, group := range result.Groups {
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
	}
	sort.Slice(result.Groups, func(i, j int) bool { return result.Groups[i][0] < result.Groups[j][0] })
	sort.Slice(result.Noise, func(i, j int) bool { return result.Noise[i] < result.Noise[j] })
	return result
}
