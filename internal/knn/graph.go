package knn

import (
	"math"
	"sort"

	"github.com/mapfold/regiongraph-cli/internal/model"
)

// DefaultK is the neighbor count used when the configuration does not
// override it.
const DefaultK = 5

// GraphConfig controls graph construction.
type GraphConfig struct {
	// K is the number of nearest neighbors considered per centroid.
	K int

	// Mutual selects strict mutual k-NN semantics: an edge is kept only
	// when both endpoints list each other in their top-k. The default
	// (false) is union semantics: an edge exists when either endpoint
	// lists the other. The two policies are never mixed; see DESIGN.md
	// for the choice of default.
	Mutual bool
}

// NeighborSearcher finds the k nearest centroids for one centroid.
// The brute-force implementation is O(n) per query; a spatial index
// (k-d tree, R-tree) can replace it without touching edge-building or
// dedup logic.
type NeighborSearcher interface {
	// Nearest returns the indices of the k centroids nearest to
	// centroids[idx], ascending by planar Euclidean distance, excluding
	// idx itself. Exact distance ties break by ascending input-order
	// index so results are reproducible across runs.
	Nearest(centroids []model.Centroid, idx, k int) []int
}

// BruteForce returns the O(n²) neighbor searcher. Fine at city scale
// (hundreds of regions).
func BruteForce() NeighborSearcher {
	return bruteForceSearcher{}
}

type bruteForceSearcher struct{}

type candidate struct {
	idx  int
	dist float64
}

func (bruteForceSearcher) Nearest(centroids []model.Centroid, idx, k int) []int {
	if k <= 0 {
		return nil
	}

	c := centroids[idx]
	candidates := make([]candidate, 0, len(centroids)-1)
	for i, other := range centroids {
		if i == idx {
			// Distance to self is treated as infinite: no self-loops.
			continue
		}
		candidates = append(candidates, candidate{
			idx:  i,
			dist: math.Hypot(other.X-c.X, other.Y-c.Y),
		})
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].dist != candidates[b].dist {
			return candidates[a].dist < candidates[b].dist
		}
		return candidates[a].idx < candidates[b].idx
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].idx
	}
	return out
}

// BuildGraph constructs the deduplicated undirected edge list over the
// centroid set.
//
// Union semantics (default): for each centroid, its k nearest
// neighbors each contribute the unordered edge {c, n} unless that pair
// is already present. Mutual semantics: per-node top-k sets are
// computed first and only pairs present in both directions survive.
//
// With fewer than k+1 centroids every other centroid is a neighbor;
// that is degradation, not an error. Edges are emitted with A as the
// endpoint earlier in input order, iterating centroids in input order
// and each node's neighbors in ascending distance, so the output is
// byte-stable for a given input.
func BuildGraph(centroids []model.Centroid, cfg GraphConfig, searcher NeighborSearcher) []model.Edge {
	k := cfg.K
	if k <= 0 {
		k = DefaultK
	}
	if searcher == nil {
		searcher = BruteForce()
	}
	if len(centroids) < 2 {
		return nil
	}

	neighbors := make([][]int, len(centroids))
	for i := range centroids {
		neighbors[i] = searcher.Nearest(centroids, i, k)
	}

	listed := make([]map[int]bool, len(centroids))
	if cfg.Mutual {
		for i, ns := range neighbors {
			listed[i] = make(map[int]bool, len(ns))
			for _, n := range ns {
				listed[i][n] = true
			}
		}
	}

	type pairKey struct{ lo, hi int }
	seen := make(map[pairKey]bool)
	var edges []model.Edge

	for i, ns := range neighbors {
		for _, n := range ns {
			if cfg.Mutual && !listed[n][i] {
				continue
			}

			lo, hi := i, n
			if lo > hi {
				lo, hi = hi, lo
			}
			key := pairKey{lo, hi}
			if seen[key] {
				continue
			}
			seen[key] = true

			a, b := centroids[lo], centroids[hi]
			edges = append(edges, model.Edge{
				A: a.RegionID, B: b.RegionID,
				AX: a.X, AY: a.Y,
				BX: b.X, BY: b.Y,
			})
		}
	}
	return edges
}
