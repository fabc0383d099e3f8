package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// RingContains reports whether pt lies inside the ring using a
// ray-casting parity test.
//
// Boundary policy: the test is half-open. A point exactly on an edge
// lands inside exactly one of the two rings sharing that edge (never
// both), so a coordinate on a shared region boundary is assigned at
// most once. Joins are allowed to be approximate at shared boundaries.
func RingContains(ring orb.Ring, pt orb.Point) bool {
	if len(ring) < 3 {
		return false
	}

	x, y := pt.X(), pt.Y()
	inside := false

	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := ring[i].X(), ring[i].Y()
		xj, yj := ring[j].X(), ring[j].Y()

		if (yi > y) != (yj > y) {
			crossX := xi + (y-yi)/(yj-yi)*(xj-xi)
			if x < crossX {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// MultiPolygonContains applies the even-odd rule across every ring of
// every member polygon: a point inside an odd number of rings is
// inside the region. Holes therefore exclude naturally, since a point
// in a hole is inside both the outer ring and the hole ring.
func MultiPolygonContains(mp orb.MultiPolygon, pt orb.Point) bool {
	crossings := 0
	for _, poly := range mp {
		for _, ring := range poly {
			if RingContains(ring, pt) {
				crossings++
			}
		}
	}
	return crossings%2 == 1
}

// ringCentroidArea returns the area-weighted centroid and signed area
// of a single ring via the shoelace formula. The closing vertex may or
// may not be present; both forms are handled.
func ringCentroidArea(ring orb.Ring) (orb.Point, float64) {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	if n < 3 {
		return vertexAverage(ring), 0
	}

	var area, cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := ring[i].X()*ring[j].Y() - ring[j].X()*ring[i].Y()
		area += cross
		cx += (ring[i].X() + ring[j].X()) * cross
		cy += (ring[i].Y() + ring[j].Y()) * cross
	}
	area /= 2
	if area == 0 {
		return vertexAverage(ring), 0
	}
	return orb.Point{cx / (6 * area), cy / (6 * area)}, area
}

// vertexAverage is the fallback centroid for degenerate (zero-area)
// geometry: the plain mean of the ring's vertices, ignoring the
// duplicated closing vertex.
func vertexAverage(ring orb.Ring) orb.Point {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	if n == 0 {
		return orb.Point{math.NaN(), math.NaN()}
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += ring[i].X()
		sy += ring[i].Y()
	}
	return orb.Point{sx / float64(n), sy / float64(n)}
}

// Centroid computes the area-weighted centroid of a region geometry
// from its outer rings; holes do not contribute. Multi-part regions
// combine member centroids weighted by absolute outer-ring area.
//
// When every outer ring has zero signed area (collinear or otherwise
// degenerate geometry) the result falls back to the vertex average of
// all outer-ring vertices. The second return value is false when even
// the fallback yields a non-finite coordinate; callers must exclude
// such centroids rather than let NaN flow downstream.
func Centroid(mp orb.MultiPolygon) (orb.Point, bool) {
	var totalArea, sx, sy float64
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		c, area := ringCentroidArea(poly[0])
		w := math.Abs(area)
		if w == 0 {
			continue
		}
		sx += c.X() * w
		sy += c.Y() * w
		totalArea += w
	}

	var out orb.Point
	if totalArea > 0 {
		out = orb.Point{sx / totalArea, sy / totalArea}
	} else {
		// Degenerate fallback: average all outer-ring vertices.
		var flat orb.Ring
		for _, poly := range mp {
			if len(poly) > 0 {
				flat = append(flat, poly[0]...)
			}
		}
		out = vertexAverage(flat)
	}

	if !isFinite(out) {
		return out, false
	}
	return out, true
}

func isFinite(p orb.Point) bool {
	return !math.IsNaN(p.X()) && !math.IsInf(p.X(), 0) &&
		!math.IsNaN(p.Y()) && !math.IsInf(p.Y(), 0)
}

// IsFinite reports whether both coordinates of p are finite numbers.
func IsFinite(p orb.Point) bool {
	return isFinite(p)
}
