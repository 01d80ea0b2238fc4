// Package simplot computes the leaf ordering of a single-linkage
// dendrogram over a similarity matrix, the one piece of
// original_source/plot-comparison.py's behavior (scipy's
// `sch.linkage(D, method='single')` + `sch.dendrogram(...)`) this module
// supplements: the numeric ordering a comparison-matrix plot would use to
// group similar sketches together, without the rendering itself (plot
// rendering is out of scope).
package simplot

import "fmt"

// merge is one step of an agglomerative clustering: combine clusters a and
// b (by cluster id — see IDs below) at the given distance into a new
// cluster.
type merge struct {
	a, b     int
	distance float64
}

// Linkage runs single-linkage agglomerative clustering over a distance
// matrix (n x n, symmetric, zero diagonal) and returns, for each of the
// n-1 merge steps, which two clusters combined. Cluster ids 0..n-1 are the
// original leaves; ids n..2n-2 are the clusters created by merge step
// (id - n), mirroring scipy's linkage-matrix numbering.
func Linkage(dist [][]float64) ([]merge, error) {
	n := len(dist)
	if n == 0 {
		return nil, nil
	}
	for i, row := range dist {
		if len(row) != n {
			return nil, fmt.Errorf("simplot: distance matrix must be square, row %d has %d columns, want %d", i, len(row), n)
		}
	}

	// active holds, for every live cluster id, its member leaf indices —
	// needed to recompute single-linkage (minimum pairwise) distance to
	// every other live cluster after a merge.
	active := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		active[i] = []int{i}
	}

	merges := make([]merge, 0, n-1)
	nextID := n

	for len(active) > 1 {
		ids := make([]int, 0, len(active))
		for id := range active {
			ids = append(ids, id)
		}

		bestI, bestJ := -1, -1
		best := 0.0
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				d := clusterDistance(dist, active[ids[i]], active[ids[j]])
				if bestI == -1 || d < best {
					bestI, bestJ, best = i, j, d
				}
			}
		}

		a, b := ids[bestI], ids[bestJ]
		merges = append(merges, merge{a: a, b: b, distance: best})

		members := append(append([]int{}, active[a]...), active[b]...)
		delete(active, a)
		delete(active, b)
		active[nextID] = members
		nextID++
	}
	return merges, nil
}

// clusterDistance is the single-linkage (nearest-neighbor) distance
// between two clusters: the minimum distance between any member of x and
// any member of y.
func clusterDistance(dist [][]float64, x, y []int) float64 {
	best := dist[x[0]][y[0]]
	for _, i := range x {
		for _, j := range y {
			if dist[i][j] < best {
				best = dist[i][j]
			}
		}
	}
	return best
}

// LeafOrder computes the left-to-right leaf ordering a dendrogram of dist
// would display: the order that groups the most similar leaves adjacent
// to one another, derived from single-linkage clustering (the same method
// the reference comparison plot uses).
func LeafOrder(dist [][]float64) ([]int, error) {
	n := len(dist)
	if n == 0 {
		return nil, nil
	}
	if n == 1 {
		return []int{0}, nil
	}

	merges, err := Linkage(dist)
	if err != nil {
		return nil, err
	}

	// order maps a cluster id (leaf or merged) to its ordered leaf
	// sequence, built bottom-up the way scipy's dendrogram walks the
	// linkage matrix: a merge's order is its first child's order followed
	// by its second child's.
	order := make(map[int][]int, 2*n-1)
	for i := 0; i < n; i++ {
		order[i] = []int{i}
	}
	nextID := n
	for _, m := range merges {
		combined := append(append([]int{}, order[m.a]...), order[m.b]...)
		order[nextID] = combined
		nextID++
	}
	return order[nextID-1], nil
}
