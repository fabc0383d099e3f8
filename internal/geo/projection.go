// Package geo implements the planar geometry primitives the pipeline is
// built on: a fixed spherical-Mercator projection fitted to a viewport,
// an even-odd point-in-polygon test, and area-weighted centroids.
//
// All functions are pure. Projection parameters are an explicit value
// computed once per run and threaded through every call; nothing in
// this package holds state.
package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// maxMercatorLat is the latitude cutoff of the spherical Mercator
// projection. Latitudes beyond it are clamped to keep y finite.
const maxMercatorLat = 85.05112878

// ErrNoFiniteVertices is returned by FitParams when the polygon set
// contains no finite coordinates to fit against.
var ErrNoFiniteVertices = errors.New("geo: polygon set has no finite vertices")

// Params is the fixed scale-and-translate transform composed with the
// Mercator projection for a single run. It must be computed exactly
// once, before any point or centroid is projected; recomputing it
// mid-run would put earlier results in a different frame.
type Params struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`

	// Viewport the transform was fitted to, kept for export metadata.
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Padding float64 `json:"padding"`
}

// mercator maps a geographic coordinate (lon, lat in degrees) onto the
// unscaled Mercator plane. Non-finite inputs propagate to non-finite
// outputs.
func mercator(p orb.Point) orb.Point {
	lat := p.Lat()
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	} else if lat < -maxMercatorLat {
		lat = -maxMercatorLat
	}

	x := p.Lon() * math.Pi / 180
	y := math.Log(math.Tan(math.Pi/4 + lat*math.Pi/360))
	return orb.Point{x, y}
}

// Project maps a geographic coordinate into the run's planar frame.
// The frame keeps map orientation: x grows east, y grows north. A
// renderer that wants screen coordinates flips y against the viewport
// height; the pipeline itself never depends on which way is up.
func Project(p orb.Point, params Params) orb.Point {
	m := mercator(p)
	return orb.Point{
		m.X()*params.Scale + params.OffsetX,
		m.Y()*params.Scale + params.OffsetY,
	}
}

// FitParams computes the projection transform so that the Mercator
// image of every finite vertex in geoms fits centered within
// (1-padding) of the viewport. Vertices with non-finite coordinates
// are ignored for the fit; if none remain, ErrNoFiniteVertices is
// returned.
func FitParams(geoms []orb.MultiPolygon, width, height, padding float64) (Params, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	for _, mp := range geoms {
		for _, poly := range mp {
			for _, ring := range poly {
				for _, pt := range ring {
					m := mercator(pt)
					x, y := m.X(), m.Y()
					if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
						continue
					}
					if x < minX {
						minX = x
					}
					if x > maxX {
						maxX = x
					}
					if y < minY {
						minY = y
					}
					if y > maxY {
						maxY = y
					}
				}
			}
		}
	}

	if minX > maxX || minY > maxY {
		return Params{}, ErrNoFiniteVertices
	}

	usableW := width * (1 - padding)
	usableH := height * (1 - padding)
	spanX := maxX - minX
	spanY := maxY - minY

	// Degenerate extents (a single vertex, or all vertices collinear on
	// one axis) fall back to the scale of the non-degenerate axis, or
	// unit scale when both collapse.
	var scale float64
	switch {
	case spanX > 0 && spanY > 0:
		scale = math.Min(usableW/spanX, usableH/spanY)
	case spanX > 0:
		scale = usableW / spanX
	case spanY > 0:
		scale = usableH / spanY
	default:
		scale = 1
	}

	return Params{
		Scale:   scale,
		OffsetX: width/2 - scale*(minX+maxX)/2,
		OffsetY: height/2 - scale*(minY+maxY)/2,
		Width:   width,
		Height:  height,
		Padding: padding,
	}, nil
}

// ProjectRing projects every vertex of a ring into the planar frame.
func ProjectRing(ring orb.Ring, params Params) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, pt := range ring {
		out[i] = Project(pt, params)
	}
	return out
}

// ProjectMultiPolygon projects an entire region geometry into the
// planar frame, preserving ring structure.
func ProjectMultiPolygon(mp orb.MultiPolygon, params Params) orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(mp))
	for i, poly := range mp {
		projected := make(orb.Polygon, len(poly))
		for j, ring := range poly {
			projected[j] = ProjectRing(ring, params)
		}
		out[i] = projected
	}
	return out
}
