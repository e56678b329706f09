// Package zonenet implements the Zone Link Resolver (C2): turning a zone's
// WGS84 polygon into a disjoint, classified set of road-network link ids —
// entry gateways, exit gateways, and interior links — against a shared
// projected coordinate space.
package zonenet

import (
	"sort"

	"github.com/transitguard/zonepolicy/internal/errors"
	"github.com/transitguard/zonepolicy/internal/geodesy"
	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
)

// ZoneLinkSet is the resolver's output for one zone: disjoint (except for
// the entry/exit chord case, §4.2) classified link sets.
type ZoneLinkSet struct {
	ZoneID   string
	All      map[network.LinkID]struct{}
	Entry    map[network.LinkID]struct{}
	Exit     map[network.LinkID]struct{}
	Interior map[network.LinkID]struct{}
}

func newZoneLinkSet(zoneID string) *ZoneLinkSet {
	return &ZoneLinkSet{
		ZoneID:   zoneID,
		All:      make(map[network.LinkID]struct{}),
		Entry:    make(map[network.LinkID]struct{}),
		Exit:     make(map[network.LinkID]struct{}),
		Interior: make(map[network.LinkID]struct{}),
	}
}

// Options controls the resolver's overlap-resolution policy and the
// spatial/projection parameters it needs to query the network.
type Options struct {
	// OverlapFirstWins selects first-wins overlap resolution when true and
	// last-wins when false, which is the field's zero value.
	OverlapFirstWins bool
	// Origin is the shared local-tangent-plane origin zone polygons are
	// projected against; it must match the convention used to produce the
	// network's own node coordinates (see geodesy.Transform).
	Origin geodesy.Point
	// TargetCRS is threaded through to geodesy.Transform for labeling only.
	TargetCRS string
	// CellSize sizes the spatial index's grid buckets (meters); 0 uses the
	// index's default.
	CellSize float64
}

// Resolution carries diagnostic detail alongside the per-zone link sets:
// which links a zone's raw intersection set contained but lost to an
// earlier (or, in last-wins mode, later) zone during overlap resolution.
type Resolution struct {
	Ceded map[string][]network.LinkID
}

func toGeodesyRing(pts []zonemodel.Point) geodesy.Ring {
	ring := make(geodesy.Ring, len(pts))
	for i, p := range pts {
		ring[i] = geodesy.Point{Lon: p.Lon, Lat: p.Lat}
	}
	return ring
}

func toNetworkPolygon(rings []geodesy.ProjectedRing) network.Polygon {
	poly := network.Polygon{Rings: make([]network.Ring, len(rings))}
	for i, r := range rings {
		ring := make(network.Ring, len(r))
		for j, p := range r {
			ring[j] = network.Point{X: p.X, Y: p.Y}
		}
		poly.Rings[i] = ring
	}
	return poly
}

// Resolve runs the full C2 algorithm over zones (in the given order) against
// net, returning one ZoneLinkSet per zone in the same order plus a
// Resolution diagnostic trail.
func Resolve(zones []zonemodel.Zone, net *network.Network, opts Options) ([]ZoneLinkSet, *Resolution, error) {
	polygons := make([]network.Polygon, len(zones))
	for i, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, nil, err
		}
		projRings := make([]geodesy.Ring, len(z.Rings))
		for j, r := range z.Rings {
			ring := toGeodesyRing(r)
			if err := geodesy.ValidateRing(ring); err != nil {
				return nil, nil, errors.Attr(err, "zoneId", z.ID)
			}
			projRings[j] = ring
		}
		transformed := geodesy.Transform(projRings, opts.Origin, opts.TargetCRS)
		polygons[i] = toNetworkPolygon(transformed)
	}

	idx := network.NewSpatialIndex(net, opts.CellSize)

	raw := make([][]network.LinkID, len(zones))
	for i := range zones {
		raw[i] = idx.LinksIntersecting(polygons[i])
	}

	resolved := resolveOverlap(zones, raw, opts.OverlapFirstWins)

	sets := make([]ZoneLinkSet, len(zones))
	for i, z := range zones {
		set := newZoneLinkSet(z.ID)
		for _, linkID := range resolved.kept[i] {
			link, ok := net.Link(linkID)
			if !ok {
				return nil, nil, errors.Attr(errors.Errorf(errors.KindNetworkInconsistent,
					"resolved link %s not present in network", linkID), "zoneId", z.ID)
			}
			from, to, err := net.Endpoints(link)
			if err != nil {
				return nil, nil, errors.Attr(err, "zoneId", z.ID)
			}
			fromIn := network.PointInPolygon(polygons[i], network.Point{X: from.X, Y: from.Y})
			toIn := network.PointInPolygon(polygons[i], network.Point{X: to.X, Y: to.Y})

			set.All[linkID] = struct{}{}
			switch {
			case !fromIn && toIn:
				set.Entry[linkID] = struct{}{}
			case fromIn && !toIn:
				set.Exit[linkID] = struct{}{}
			case fromIn && toIn:
				set.Interior[linkID] = struct{}{}
			default: // chord: both endpoints outside but the segment crosses the polygon
				set.Entry[linkID] = struct{}{}
				set.Exit[linkID] = struct{}{}
			}
		}
		sets[i] = *set
	}

	return sets, &Resolution{Ceded: resolved.ceded}, nil
}

type overlapResult struct {
	kept  [][]network.LinkID
	ceded map[string][]network.LinkID
}

// resolveOverlap walks zones in the configured priority order, claiming each
// link for the first zone (in priority order) whose raw set contains it, per
// spec §4.2 step 2.
func resolveOverlap(zones []zonemodel.Zone, raw [][]network.LinkID, firstWins bool) overlapResult {
	n := len(zones)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if !firstWins {
		// Last-wins: process in reverse priority order so later zones claim
		// first; results are still assembled back into original zone order.
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	claimed := make(map[network.LinkID]string)
	kept := make([][]network.LinkID, n)
	ceded := make(map[string][]network.LinkID)

	for _, zi := range order {
		z := zones[zi]
		var own []network.LinkID
		for _, linkID := range raw[zi] {
			if _, exists := claimed[linkID]; exists {
				ceded[z.ID] = append(ceded[z.ID], linkID)
				continue
			}
			claimed[linkID] = z.ID
			own = append(own, linkID)
		}
		sort.Slice(own, func(a, b int) bool { return own[a] < own[b] })
		kept[zi] = own
	}
	return overlapResult{kept: kept, ceded: ceded}
}
