// Package zonepolicy builds the immutable Zone Policy Index (C3): a dense,
// linkId-keyed lookup table of ban rules, entry-enforcement rules, and
// exit-zone sets, built once from the zone list and the parallel
// zonenet.ZoneLinkSet list. After Build returns, an *Index requires no
// synchronization — every lookup method only reads slices fixed at
// construction (spec §4.3, §5).
package zonepolicy

import (
	"github.com/transitguard/zonepolicy/internal/errors"
	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
	"github.com/transitguard/zonepolicy/internal/zonenet"
)

// Index is the immutable, per-run lookup table described in spec §4.3.
// Internally it's a dense slice-per-link-index layout (spec §9, "Arena-
// friendly layout") built from a linkId -> index map fixed at construction,
// rather than a map[linkId][]Rule per table — one map lookup resolves a
// link to its slot in all three tables, and the per-link slice headers are
// allocated together at construction.
type Index struct {
	linkIndex  map[network.LinkID]int
	bans       [][]zonemodel.BanRule
	entryRules [][]zonemodel.EnforcementRule
	exitZones  []map[string]struct{}
	hasBans    bool
}

// Build constructs the index from the zone list and the resolver's parallel
// ZoneLinkSet list (same order, same length). Only Tier2/Tier3 policies are
// indexed; Tier1 is exempt and never attached (spec §4.3 invariant).
func Build(zones []zonemodel.Zone, linkSets []zonenet.ZoneLinkSet) (*Index, error) {
	if len(zones) != len(linkSets) {
		return nil, errors.Errorf(errors.KindInternal, "zone count %d does not match link set count %d", len(zones), len(linkSets))
	}

	linkIndex := make(map[network.LinkID]int)
	addLink := func(id network.LinkID) int {
		if i, ok := linkIndex[id]; ok {
			return i
		}
		i := len(linkIndex)
		linkIndex[id] = i
		return i
	}
	for _, set := range linkSets {
		for id := range set.All {
			addLink(id)
		}
	}

	idx := &Index{
		linkIndex:  linkIndex,
		bans:       make([][]zonemodel.BanRule, len(linkIndex)),
		entryRules: make([][]zonemodel.EnforcementRule, len(linkIndex)),
		exitZones:  make([]map[string]struct{}, len(linkIndex)),
	}

	for i, zone := range zones {
		set := linkSets[i]
		for _, policy := range zone.Policies {
			if policy.Tier == zonemodel.Tier1 {
				continue // tier-1 is exempt, never indexed (spec §4.3 invariant)
			}

			if policy.Tier == zonemodel.Tier3 {
				ban := zonemodel.BanRule{VehicleClass: policy.VehicleClass, Period: policy.Period}
				for id := range set.All {
					li := linkIndex[id]
					idx.bans[li] = append(idx.bans[li], ban)
				}
				idx.hasBans = true
			}

			// tier in {2,3}: attach an EnforcementRule to every entry gateway.
			rule := zonemodel.EnforcementRule{
				ZoneID:       zone.ID,
				VehicleClass: policy.VehicleClass,
				Tier:         policy.Tier,
				Period:       policy.Period,
				Penalty:      policy.Penalty,
				IntervalSec:  policy.IntervalSec,
			}
			for id := range set.Entry {
				li := linkIndex[id]
				idx.entryRules[li] = append(idx.entryRules[li], rule)
			}

			if policy.Tier == zonemodel.Tier2 {
				for id := range set.Exit {
					li := linkIndex[id]
					if idx.exitZones[li] == nil {
						idx.exitZones[li] = make(map[string]struct{})
					}
					idx.exitZones[li][zone.ID] = struct{}{}
				}
			}
		}
	}

	return idx, nil
}

// IsBanned reports whether any BanRule on linkId matches class and whose
// period contains secOfDay.
func (idx *Index) IsBanned(linkID network.LinkID, class zonemodel.VehicleClass, secOfDay int) bool {
	li, ok := idx.linkIndex[linkID]
	if !ok {
		return false
	}
	for _, rule := range idx.bans[li] {
		if rule.Matches(class, secOfDay) {
			return true
		}
	}
	return false
}

// GetEntryRules returns the entry-gateway enforcement rules attached to
// linkId, or nil if linkId is not an entry gateway of any zone.
func (idx *Index) GetEntryRules(linkID network.LinkID) []zonemodel.EnforcementRule {
	li, ok := idx.linkIndex[linkID]
	if !ok {
		return nil
	}
	return idx.entryRules[li]
}

// GetExitZones returns the set of zone ids for which linkId is a Tier-2
// exit gateway, or nil if none.
func (idx *Index) GetExitZones(linkID network.LinkID) map[string]struct{} {
	li, ok := idx.linkIndex[linkID]
	if !ok {
		return nil
	}
	return idx.exitZones[li]
}

// HasAnyBans reports whether any Tier-3 policy was indexed anywhere. C5's
// ban-aware disutility is only installed when this is true (spec §4.5).
func (idx *Index) HasAnyBans() bool {
	return idx.hasBans
}
