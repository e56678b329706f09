// Package disutility implements the Ban-Aware Disutility wrapper (C5): a
// least-cost-path link-cost decorator that makes banned links effectively
// unroutable without excluding them outright.
package disutility

import (
	"math"

	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
)

// BanCost is added to a banned link's base cost. Large enough that no
// plausible shortest path includes such a link unless no alternative exists
// (spec §4.5). It is finite, so one banned link's cost stays finite; two
// banned links summed along a path reach math.MaxFloat64, and a third
// overflows to +Inf.
const BanCost = math.MaxFloat64 / 2

// Index is the subset of *zonepolicy.Index this wrapper needs.
type Index interface {
	IsBanned(linkID network.LinkID, class zonemodel.VehicleClass, secOfDay int) bool
}

// Vehicle carries the class the router's vehicle argument exposes; nil is a
// valid value meaning "no vehicle attached to this query".
type Vehicle struct {
	Class zonemodel.VehicleClass
}

// CostDelegate is the base travel-cost function this wrapper decorates.
type CostDelegate interface {
	Cost(link network.Link, time int64, personID string, vehicle *Vehicle) float64
	// MinCost is the heuristic lower-bound accessor; passed through
	// unchanged by this wrapper (spec §4.5 — must remain admissible, and
	// ban status is time-dependent so can't be folded into a static bound).
	MinCost(link network.Link) float64
}

// BanAware wraps a CostDelegate, adding BanCost to any link banned for the
// query's vehicle class at the query's time.
type BanAware struct {
	delegate CostDelegate
	index    Index
}

// New builds a BanAware disutility. Per spec §4.5 the caller only installs
// this when index.HasAnyBans() is true; BanAware itself doesn't check that,
// it just answers cost queries.
func New(delegate CostDelegate, index Index) *BanAware {
	return &BanAware{delegate: delegate, index: index}
}

// Cost computes the base cost, adding BanCost if the link is banned for this
// vehicle's class at this time.
func (b *BanAware) Cost(link network.Link, time int64, personID string, vehicle *Vehicle) float64 {
	base := b.delegate.Cost(link, time, personID, vehicle)
	if vehicle == nil {
		return base
	}
	if b.index.IsBanned(link.ID, vehicle.Class, int(time%86400)) {
		return base + BanCost
	}
	return base
}

// MinCost passes through to the delegate unchanged.
func (b *BanAware) MinCost(link network.Link) float64 {
	return b.delegate.MinCost(link)
}
