package network

import "math"

// Point is a projected-CRS coordinate, matching geodesy.Projected's shape
// without importing geodesy here (network stays a leaf package; zonenet
// wires geodesy's output into these types at the resolver boundary).
type Point struct {
	X float64
	Y float64
}

// Ring is a closed sequence of projected points, first ring of a Polygon is
// the outer boundary.
type Ring []Point

// Polygon is an outer ring plus holes, in projected coordinates.
type Polygon struct {
	Rings []Ring
}

type bbox struct {
	minX, minY, maxX, maxY float64
}

func ringBBox(r Ring) bbox {
	b := bbox{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	for _, p := range r {
		b.minX = math.Min(b.minX, p.X)
		b.maxX = math.Max(b.maxX, p.X)
		b.minY = math.Min(b.minY, p.Y)
		b.maxY = math.Max(b.maxY, p.Y)
	}
	return b
}

func polyBBox(poly Polygon) bbox {
	if len(poly.Rings) == 0 {
		return bbox{}
	}
	return ringBBox(poly.Rings[0])
}

func (b bbox) overlaps(o bbox) bool {
	return b.minX <= o.maxX && b.maxX >= o.minX && b.minY <= o.maxY && b.maxY >= o.minY
}

type cellKey struct{ cx, cy int }

// SpatialIndex answers "which links intersect this polygon" queries the way
// a ST_Intersects predicate on a road-network table would, via a coarse
// grid bucket broad phase (grounded on the bucketed set-membership style of
// the teacher's internal/firewall/managed_lists.go) followed by an exact
// segment/polygon test.
type SpatialIndex struct {
	net      *Network
	cellSize float64
	buckets  map[cellKey][]LinkID
	linkBBox map[LinkID]bbox
	segments map[LinkID][2]Point
}

// NewSpatialIndex builds an index over every link in net, bucketed into
// cellSize x cellSize grid cells. A cellSize on the order of a zone's
// expected diameter (hundreds of meters to a few km) keeps both the number
// of buckets per link and the number of candidates per query small.
func NewSpatialIndex(net *Network, cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 500
	}
	idx := &SpatialIndex{
		net:      net,
		cellSize: cellSize,
		buckets:  make(map[cellKey][]LinkID),
		linkBBox: make(map[LinkID]bbox),
		segments: make(map[LinkID][2]Point),
	}
	for _, link := range net.Links() {
		from, to, err := net.Endpoints(link)
		if err != nil {
			continue
		}
		a := Point{X: from.X, Y: from.Y}
		b := Point{X: to.X, Y: to.Y}
		idx.segments[link.ID] = [2]Point{a, b}
		bb := bbox{
			minX: math.Min(a.X, b.X), maxX: math.Max(a.X, b.X),
			minY: math.Min(a.Y, b.Y), maxY: math.Max(a.Y, b.Y),
		}
		idx.linkBBox[link.ID] = bb
		for cy := idx.cellOf(bb.minY); cy <= idx.cellOf(bb.maxY); cy++ {
			for cx := idx.cellOf(bb.minX); cx <= idx.cellOf(bb.maxX); cx++ {
				key := cellKey{cx, cy}
				idx.buckets[key] = append(idx.buckets[key], link.ID)
			}
		}
	}
	return idx
}

func (idx *SpatialIndex) cellOf(v float64) int {
	return int(math.Floor(v / idx.cellSize))
}

// LinksIntersecting returns, in a deterministic order, the ids of every link
// whose geometry intersects poly: either endpoint lies inside poly, or the
// segment crosses poly's outer boundary (the chord case, spec §4.2 step 3).
func (idx *SpatialIndex) LinksIntersecting(poly Polygon) []LinkID {
	qbbox := polyBBox(poly)
	seen := make(map[LinkID]bool)
	var candidates []LinkID
	for cy := idx.cellOf(qbbox.minY); cy <= idx.cellOf(qbbox.maxY); cy++ {
		for cx := idx.cellOf(qbbox.minX); cx <= idx.cellOf(qbbox.maxX); cx++ {
			for _, id := range idx.buckets[cellKey{cx, cy}] {
				if !seen[id] {
					seen[id] = true
					candidates = append(candidates, id)
				}
			}
		}
	}

	var out []LinkID
	for _, id := range candidates {
		bb := idx.linkBBox[id]
		if !bb.overlaps(qbbox) {
			continue
		}
		seg := idx.segments[id]
		if SegmentIntersectsPolygon(seg[0], seg[1], poly) {
			out = append(out, id)
		}
	}
	return out
}

// PointInRing is the standard ray-casting point-in-polygon test, duplicated
// here (rather than imported from geodesy) to keep network a leaf package.
func PointInRing(r Ring, p Point) bool {
	n := len(r)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := r[i], r[j]
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}
	return inside
}

// PointInPolygon reports whether p is inside poly's outer ring and outside
// every hole.
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

func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := cross(p4, p3, p1)
	d2 := cross(p4, p3, p2)
	d3 := cross(p2, p1, p3)
	d4 := cross(p2, p1, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// SegmentIntersectsPolygon reports whether the segment (a,b) intersects
// poly: either endpoint is inside the polygon, or the segment crosses an
// edge of the outer ring.
func SegmentIntersectsPolygon(a, b Point, poly Polygon) bool {
	if PointInPolygon(poly, a) || PointInPolygon(poly, b) {
		return true
	}
	if len(poly.Rings) == 0 {
		return false
	}
	outer := poly.Rings[0]
	n := len(outer)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if segmentsIntersect(a, b, outer[j], outer[i]) {
			return true
		}
	}
	return false
}
