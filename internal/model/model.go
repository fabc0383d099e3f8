// Package model holds the data types shared by every stage of the
// region-assignment pipeline: input records, derived entities, and the
// artifact set handed to exporters.
package model

import (
	"time"

	"github.com/paulmach/orb"
)

// Properties is an opaque key-value payload carried on input records.
// The core never inspects it; loaders fill it and exporters write it
// back out untouched.
type Properties map[string]interface{}

// Point is a single event record located by a geographic coordinate.
// RegionID is empty until the spatial join assigns one; it stays empty
// for points outside every region, which is not an error.
type Point struct {
	Lon      float64    `json:"lon"`
	Lat      float64    `json:"lat"`
	Metadata Properties `json:"metadata,omitempty"`
	RegionID string     `json:"regionId,omitempty"`
}

// Assigned reports whether the spatial join placed this point inside a
// region.
func (p Point) Assigned() bool {
	return p.RegionID != ""
}

// Region is an administrative polygon with a unique, non-empty
// identifier. Geometry is a MultiPolygon so single- and multi-part
// regions share one representation; a plain polygon is a one-element
// MultiPolygon. Coordinates are geographic (lon, lat).
type Region struct {
	ID       string           `json:"id"`
	Geometry orb.MultiPolygon `json:"-"`
	Metadata Properties       `json:"metadata,omitempty"`
}

// Centroid is the projected representative point of one region, in the
// shared planar frame fixed for the run.
type Centroid struct {
	RegionID string  `json:"regionId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Edge is an undirected connection between two region centroids. The
// endpoint coordinates are denormalized for the renderer. A is always
// the endpoint whose centroid appeared earlier in input order, which
// keeps the output byte-stable across runs.
type Edge struct {
	A  string  `json:"a"`
	B  string  `json:"b"`
	AX float64 `json:"ax"`
	AY float64 `json:"ay"`
	BX float64 `json:"bx"`
	BY float64 `json:"by"`
}

// RunStats summarizes one pipeline run for logging and export.
type RunStats struct {
	RunID            string        `json:"runId"`
	TotalPoints      int           `json:"totalPoints"`
	AssignedPoints   int           `json:"assignedPoints"`
	UnassignedPoints int           `json:"unassignedPoints"`
	SkippedPoints    int           `json:"skippedPoints"`
	ExcludedRegions  int           `json:"excludedRegions"`
	SkippedCentroids int           `json:"skippedCentroids"`
	EdgeCount        int           `json:"edgeCount"`
	Duration         time.Duration `json:"duration"`
}

// ArtifactSet is the complete output of one run. The pipeline either
// returns a fully populated set or an error; partial sets are never
// handed to consumers.
type ArtifactSet struct {
	Points    []Point        `json:"points"`
	Counts    map[string]int `json:"counts"`
	Centroids []Centroid     `json:"centroids"`
	Edges     []Edge         `json:"edges"`
	Stats     RunStats       `json:"stats"`
}
