package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ParseWKT parses a POLYGON or MULTIPOLYGON well-known-text geometry
// into a MultiPolygon. A POLYGON becomes a one-element MultiPolygon.
//
// Only the two polygonal types are supported; the region datasets this
// tool consumes never carry anything else. Coordinates are expected as
// "lon lat" pairs, extra dimensions are rejected.
func ParseWKT(s string) (orb.MultiPolygon, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)

	switch {
	case strings.HasPrefix(upper, "MULTIPOLYGON"):
		body, err := parenBody(s[len("MULTIPOLYGON"):])
		if err != nil {
			return nil, err
		}
		return parseMultiPolygonBody(body)
	case strings.HasPrefix(upper, "POLYGON"):
		body, err := parenBody(s[len("POLYGON"):])
		if err != nil {
			return nil, err
		}
		poly, err := parsePolygonBody(body)
		if err != nil {
			return nil, err
		}
		return orb.MultiPolygon{poly}, nil
	default:
		return nil, fmt.Errorf("unsupported WKT geometry: %q", head(s))
	}
}

// parenBody strips one outer level of parentheses, validating balance.
func parenBody(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return "", fmt.Errorf("malformed WKT: expected parenthesized body, got %q", head(s))
	}
	return s[1 : len(s)-1], nil
}

// splitTopLevel splits s on commas that sit at parenthesis depth zero.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseMultiPolygonBody(body string) (orb.MultiPolygon, error) {
	var mp orb.MultiPolygon
	for _, part := range splitTopLevel(body) {
		inner, err := parenBody(part)
		if err != nil {
			return nil, err
		}
		poly, err := parsePolygonBody(inner)
		if err != nil {
			return nil, err
		}
		mp = append(mp, poly)
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("malformed WKT: empty MULTIPOLYGON")
	}
	return mp, nil
}

func parsePolygonBody(body string) (orb.Polygon, error) {
	var poly orb.Polygon
	for _, part := range splitTopLevel(body) {
		inner, err := parenBody(part)
		if err != nil {
			return nil, err
		}
		ring, err := parseRing(inner)
		if err != nil {
			return nil, err
		}
		poly = append(poly, ring)
	}
	if len(poly) == 0 {
		return nil, fmt.Errorf("malformed WKT: polygon with no rings")
	}
	return poly, nil
}

func parseRing(body string) (orb.Ring, error) {
	var ring orb.Ring
	for _, pair := range strings.Split(body, ",") {
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed WKT coordinate %q: want \"lon lat\"", strings.TrimSpace(pair))
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed WKT longitude %q: %w", fields[0], err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed WKT latitude %q: %w", fields[1], err)
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	if len(ring) < 4 {
		return nil, fmt.Errorf("malformed WKT: ring has %d coordinates, need at least 4 (closed)", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return nil, fmt.Errorf("malformed WKT: ring is not closed")
	}
	return ring, nil
}

func head(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
