// Package scenario implements the Scenario Assembler (C7): the one-shot
// binding step that turns a zone list, a road network, and a policy set
// into a running enforcement handler and (conditionally) a ban-aware
// disutility, per spec §4.7.
package scenario

import (
	"github.com/transitguard/zonepolicy/internal/disutility"
	"github.com/transitguard/zonepolicy/internal/enforcement"
	"github.com/transitguard/zonepolicy/internal/geodesy"
	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/obslog"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
	"github.com/transitguard/zonepolicy/internal/zonenet"
	"github.com/transitguard/zonepolicy/internal/zonepolicy"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ModeCar is the only mode C5's ban-aware disutility is bound to (spec
// §4.7 step 5).
const ModeCar = "car"

// Request is everything the assembler needs to build a run: the network,
// zone list, and the capability bindings the spec's DI-by-interface design
// note (§9) calls for — linkLookup is implicit in *network.Network,
// emitEvent and vehicleClassOf are supplied by the caller.
type Request struct {
	Network          *network.Network
	Zones            []zonemodel.Zone
	OverlapFirstWins bool
	Origin           geodesy.Point
	TargetCRS        string
	CellSize         float64

	Emitter  enforcement.EventEmitter
	Vehicles enforcement.VehicleClassLookup

	// Metrics registry; nil uses an unregistered counter set (tests and
	// one-off CLI runs).
	Registerer prometheus.Registerer
	Logger     enforcement.Logger

	// RequestID tags this run's diagnostic log lines for correlation
	// (spec §9: "orthogonal to correctness"). A uuid-v4 is minted when
	// left empty, matching how the teacher mints correlation ids for
	// requests it can't otherwise name.
	RequestID string
}

// Assembled is C7's output: the built index, the handler ready to be
// registered against the kernel's event manager, and optionally a
// ban-aware disutility factory for mode "car".
type Assembled struct {
	Index      *zonepolicy.Index
	Handler    *enforcement.Handler
	LinkSets   []zonenet.ZoneLinkSet
	Resolution *zonenet.Resolution

	// HasBanAwareDisutility mirrors Index.HasAnyBans(); C5 is only wired
	// when true (spec §4.5, §4.7 step 5).
	HasBanAwareDisutility bool

	// RequestID is the run's diagnostic correlation tag (spec §9).
	RequestID string
}

// NewBanAwareDisutility wraps delegate with the assembled index's ban
// lookup, for installation against mode "car". Returns delegate unchanged
// if this scenario has no Tier-3 bans anywhere (spec §4.7 step 5).
func (a *Assembled) NewBanAwareDisutility(delegate disutility.CostDelegate) disutility.CostDelegate {
	if !a.HasBanAwareDisutility {
		return delegate
	}
	return disutility.New(delegate, a.Index)
}

// Assemble runs the full C7 pipeline: resolve zone link sets (C2), build
// the policy index (C3), construct the enforcement handler (C4). The
// caller is responsible for registering Handler.OnLinkEnter and
// Handler.OnVehicleEntersTraffic against the kernel's event manager, and
// for installing NewBanAwareDisutility for mode "car" if
// HasBanAwareDisutility is true — C7 itself does no kernel-specific wiring
// (spec §9: "do not replicate the source's framework-specific wiring").
func Assemble(req Request) (*Assembled, error) {
	linkSets, resolution, err := zonenet.Resolve(req.Zones, req.Network, zonenet.Options{
		OverlapFirstWins: req.OverlapFirstWins,
		Origin:           req.Origin,
		TargetCRS:        req.TargetCRS,
		CellSize:         req.CellSize,
	})
	if err != nil {
		return nil, err
	}

	index, err := zonepolicy.Build(req.Zones, linkSets)
	if err != nil {
		return nil, err
	}

	logger := req.Logger
	if logger == nil {
		logger = obslog.Discard()
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger = obslog.WithRequestID(logger, requestID)
	metrics := enforcement.NewMetrics(req.Registerer)
	handler := enforcement.New(index, req.Emitter, req.Vehicles, metrics, logger)

	return &Assembled{
		Index:                 index,
		Handler:               handler,
		LinkSets:              linkSets,
		Resolution:            resolution,
		HasBanAwareDisutility: index.HasAnyBans(),
		RequestID:             requestID,
	}, nil
}
