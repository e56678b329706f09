// Package zonemodel holds the data types shared by every zone-policy
// component (C2 through C7): the Zone/Policy request schema, the derived
// BanRule/EnforcementRule records the policy index indexes link-ids by, and
// the MoneyEvent shape pushed back into the simulation kernel.
package zonemodel

import "github.com/transitguard/zonepolicy/internal/errors"

// VehicleClass is the emission-class tag a policy conditions on.
type VehicleClass string

const (
	ClassZeroEmission     VehicleClass = "zeroEmission"
	ClassNearZeroEmission VehicleClass = "nearZeroEmission"
	ClassLowEmission      VehicleClass = "lowEmission"
	ClassMidEmission      VehicleClass = "midEmission"
	ClassHighEmission     VehicleClass = "highEmission"
)

// Tier is the enforcement level of a Policy. Tier1 is exempt, Tier2 is
// interval-based congestion charging, Tier3 is an outright ban.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// TripMatchMode selects which part of a person's trip must touch a zone for
// the person to be pulled into the working population by C6.
type TripMatchMode string

const (
	MatchStart TripMatchMode = "start"
	MatchEnd   TripMatchMode = "end"
	MatchPass  TripMatchMode = "pass"
)

// Period is a [StartSec, EndSec) window of seconds-of-day, start < end.
type Period struct {
	StartSec int
	EndSec   int
}

// Contains reports whether secOfDay falls in [StartSec, EndSec).
func (p Period) Contains(secOfDay int) bool {
	return secOfDay >= p.StartSec && secOfDay < p.EndSec
}

// Policy is one enforcement rule attached to a Zone, per spec §3.
type Policy struct {
	VehicleClass VehicleClass
	Tier         Tier
	Period       Period

	// Tier2-only fields.
	Penalty     float64 // monetary units per interval, > 0
	IntervalSec int     // > 0
}

// Validate checks start < end for every tier and, for Tier2 only, penalty
// and interval positivity: invariants the spec assigns to upstream
// validation but that the core asserts defensively at construction (§7,
// InvalidPolicy).
func (p Policy) Validate() error {
	if p.Period.StartSec >= p.Period.EndSec {
		return errors.Errorf(errors.KindInvalidPolicy, "period start %d >= end %d", p.Period.StartSec, p.Period.EndSec)
	}
	if p.Tier == Tier2 {
		if p.Penalty <= 0 {
			return errors.Errorf(errors.KindInvalidPolicy, "tier-2 policy requires penalty > 0, got %v", p.Penalty)
		}
		if p.IntervalSec <= 0 {
			return errors.Errorf(errors.KindInvalidPolicy, "tier-2 policy requires interval > 0, got %v", p.IntervalSec)
		}
	}
	return nil
}

// Zone is a polygonal area with attached enforcement policies. Immutable
// once constructed (spec §3): "Created at request parse, immutable
// thereafter, destroyed when the run ends."
type Zone struct {
	ID          string
	Rings       [][]Point // WGS84 lon/lat; Rings[0] is the outer ring
	TripMatches []TripMatchMode
	Policies    []Policy
}

// Point is a WGS84 longitude/latitude pair. Duplicated here (rather than
// importing geodesy.Point) so zonemodel stays a leaf package that geodesy,
// zonenet, zonepolicy, and enforcement can all depend on without a cycle.
type Point struct {
	Lon float64
	Lat float64
}

// Validate checks the structural invariants of §3: at least one ring, a
// non-empty trip-match set, a non-empty ordered policy list, and that every
// contained Policy is itself valid.
func (z Zone) Validate() error {
	if z.ID == "" {
		return errors.New(errors.KindInvalidGeometry, "zone id must not be empty")
	}
	if len(z.Rings) == 0 {
		return errors.Errorf(errors.KindInvalidGeometry, "zone %s has no rings", z.ID)
	}
	if len(z.TripMatches) == 0 {
		return errors.Errorf(errors.KindInvalidPolicy, "zone %s has no trip-match modes", z.ID)
	}
	if len(z.Policies) == 0 {
		return errors.Errorf(errors.KindInvalidPolicy, "zone %s has no policies", z.ID)
	}
	for i, p := range z.Policies {
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, errors.KindInvalidPolicy, "zone %s policy[%d]", z.ID, i)
		}
	}
	return nil
}

// HasTripMatch reports whether mode is one of the zone's configured
// trip-match modes.
func (z Zone) HasTripMatch(mode TripMatchMode) bool {
	for _, m := range z.TripMatches {
		if m == mode {
			return true
		}
	}
	return false
}

// BanRule is attached to a link via the policy index; it never carries its
// zone id because spec §8.2 only asks that a ban event's person match the
// vehicle class of *some* Tier-3 policy of the referenced zone, not that
// BanRule itself recall which zone attached it (the zone id travels via
// EnforcementRule for entry-link bookkeeping, and via the ban's emitted
// MoneyEvent reference).
type BanRule struct {
	VehicleClass VehicleClass
	Period       Period
}

// Matches reports whether this BanRule applies to the given class at secOfDay.
func (b BanRule) Matches(class VehicleClass, secOfDay int) bool {
	return b.VehicleClass == class && b.Period.Contains(secOfDay)
}

// EnforcementRule is attached to a zone's entry links (Tier2 and Tier3) and,
// for Tier2, additionally reachable through the zone's exit links via the
// policy index's exit-zone set.
type EnforcementRule struct {
	ZoneID       string
	VehicleClass VehicleClass
	Tier         Tier
	Period       Period
	Penalty      float64
	IntervalSec  int
}

// Matches reports whether this rule applies to the given class at secOfDay.
func (r EnforcementRule) Matches(class VehicleClass, secOfDay int) bool {
	return r.VehicleClass == class && r.Period.Contains(secOfDay)
}

// Money event purposes, per spec §6.
const (
	PurposeZoneBan     = "zone_ban"
	PurposeZonePenalty = "zone_penalty"
)

// BanPenalty is the fixed amount (monetary units) charged on a Tier-3 ban.
// Not configurable — spec §6 is explicit that this is a literal constant.
const BanPenalty = -10000.0

// MoneyEvent is pushed back into the simulation kernel on a ban or charge.
type MoneyEvent struct {
	Time      int64
	PersonID  string
	Amount    float64
	Purpose   string
	Reference string // zoneId
}
