// Package aggregate derives per-region event counts from the labeled
// point set.
package aggregate

import "github.com/mapfold/regiongraph-cli/internal/model"

// CountByRegion counts labeled points per region identifier.
//
// Every identifier in validIDs is present in the result, zero-floored,
// so regions with no events are still reported rather than absent.
// Points whose RegionID is empty or unknown are silently excluded;
// that is expected for edge-of-boundary or out-of-area events, not an
// error. The sum of all counts plus the unassigned/unknown remainder
// therefore always equals the input point count.
func CountByRegion(points []model.Point, validIDs []string) map[string]int {
	counts := make(map[string]int, len(validIDs))
	for _, id := range validIDs {
		counts[id] = 0
	}
	for _, p := range points {
		if p.RegionID == "" {
			continue
		}
		if _, ok := counts[p.RegionID]; ok {
			counts[p.RegionID]++
		}
	}
	return counts
}
