// Package geodesy handles the WGS84-to-projected-CRS transform, spherical
// ring area, point-in-polygon membership, and WKT emission that the zone
// resolver needs before it can ask the road network's spatial index anything.
//
// No CRS/projection library appears anywhere in the retrieved example pack
// (the closest relative, github.com/oschwald/geoip2-golang, does IP geolocation
// lookups, not coordinate transforms), so the transform below is a from-scratch
// local tangent-plane projection rather than a wrapped third-party
// implementation — see DESIGN.md for why no ecosystem library could serve it.
package geodesy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/transitguard/zonepolicy/internal/errors"
)

// EarthRadiusMeters is the sphere radius used for area and projection math:
// the WGS84 equatorial (semi-major) radius.
const EarthRadiusMeters = 6378137.0

// Point is a WGS84 longitude/latitude pair, in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// Projected is a point in the run's metric CRS (meters, local tangent plane).
type Projected struct {
	X float64
	Y float64
}

// Ring is a closed sequence of points; by convention the first point equals
// the last. Rings[0] of a Polygon is the outer boundary, the rest are holes.
type Ring []Point

// ProjectedRing is a Ring after Transform.
type ProjectedRing []Projected

// Polygon is an outer ring plus zero or more hole rings, all in WGS84.
type Polygon struct {
	Rings []Ring
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

// ValidateRing enforces the preconditions the spec assumes are already
// checked upstream (§4.1): closed, at least 4 points. Construction callers
// use this to fail fast with KindInvalidGeometry rather than producing a
// silently wrong resolver output.
func ValidateRing(r Ring) error {
	if len(r) < 4 {
		return errors.Errorf(errors.KindInvalidGeometry, "ring has %d points, need at least 4", len(r))
	}
	first, last := r[0], r[len(r)-1]
	if first.Lon != last.Lon || first.Lat != last.Lat {
		return errors.New(errors.KindInvalidGeometry, "ring is not closed: first point != last point")
	}
	return nil
}

// RingAreaSqMeters computes the signed geodesic area of a WGS84 ring on a
// sphere of radius EarthRadiusMeters using the shoelace-on-sphere sum
// Σ(λ_{i+1}−λ_{i−1})·sin(φ_i), scaled by R²/2. The absolute value is
// returned, per spec §4.1(b).
func RingAreaSqMeters(r Ring) float64 {
	n := len(r)
	if n < 4 {
		return 0
	}
	// Drop the duplicated closing point; the sum wraps around the distinct
	// vertices regardless.
	pts := r[:n-1]
	m := len(pts)
	var sum float64
	for i := 0; i < m; i++ {
		prev := pts[(i-1+m)%m]
		next := pts[(i+1)%m]
		lam := degToRad(next.Lon) - degToRad(prev.Lon)
		sum += lam * math.Sin(degToRad(pts[i].Lat))
	}
	area := sum * EarthRadiusMeters * EarthRadiusMeters / 2
	return math.Abs(area)
}

// Centroid returns the arithmetic mean of a ring's distinct vertices (the
// closing point is excluded). The resolver does not call it: zonenet always
// projects against the caller-supplied Options.Origin.
func Centroid(r Ring) Point {
	n := len(r)
	if n < 2 {
		if n == 1 {
			return r[0]
		}
		return Point{}
	}
	pts := r[:n-1]
	var lon, lat float64
	for _, p := range pts {
		lon += p.Lon
		lat += p.Lat
	}
	m := float64(len(pts))
	return Point{Lon: lon / m, Lat: lat / m}
}

// Transform projects WGS84 rings into the run's metric CRS using an
// equirectangular local tangent-plane projection centered at origin. targetCrs
// is accepted and threaded through for downstream labeling only (per spec §6,
// "target is the run's configured metric CRS, passed through") — the core
// does not perform a true EPSG lookup.
func Transform(rings []Ring, origin Point, targetCrs string) []ProjectedRing {
	_ = targetCrs
	originLonRad := degToRad(origin.Lon)
	originLatRad := degToRad(origin.Lat)
	cosLat0 := math.Cos(originLatRad)

	out := make([]ProjectedRing, len(rings))
	for i, ring := range rings {
		pr := make(ProjectedRing, len(ring))
		for j, p := range ring {
			x := EarthRadiusMeters * (degToRad(p.Lon) - originLonRad) * cosLat0
			y := EarthRadiusMeters * (degToRad(p.Lat) - originLatRad)
			pr[j] = Projected{X: x, Y: y}
		}
		out[i] = pr
	}
	return out
}

// PointInRing reports whether p lies inside ring r using the standard
// ray-casting algorithm. Works identically on WGS84 or projected
// coordinates since it is a purely topological test.
func PointInRing(r Ring, p Point) bool {
	n := len(r)
	if n < 4 {
		return false
	}
	inside := false
	pts := r[:n-1]
	m := len(pts)
	for i, j := 0, m-1; i < m; j, i = i, i+1 {
		pi, pj := pts[i], pts[j]
		if ((pi.Lat > p.Lat) != (pj.Lat > p.Lat)) &&
			(p.Lon < (pj.Lon-pi.Lon)*(p.Lat-pi.Lat)/(pj.Lat-pi.Lat)+pi.Lon) {
			inside = !inside
		}
	}
	return inside
}

// PointInPolygon reports whether p is inside the polygon's outer ring and
// outside all of its holes.
func PointInPolygon(poly Polygon, p Point) bool {
	if len(poly.Rings) == 0 {
		return false
	}
	if !PointInRing(poly.Rings[0], p) {
		return false
	}
	for _, hole := range poly.Rings[1:] {
		if PointInRing(hole, p) {
			return false
		}
	}
	return true
}

// WKT emits a polygon as standard WKT with fixed 10-decimal precision, so
// downstream spatial-SQL predicates built from it are deterministic (§4.1(d)).
func WKT(rings []ProjectedRing) string {
	ringStrs := make([]string, len(rings))
	for i, ring := range rings {
		coords := make([]string, len(ring))
		for j, p := range ring {
			coords[j] = fmt.Sprintf("%s %s", formatFixed(p.X), formatFixed(p.Y))
		}
		ringStrs[i] = "(" + strings.Join(coords, ", ") + ")"
	}
	return "POLYGON(" + strings.Join(ringStrs, ", ") + ")"
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}
