package scenario

import (
	"testing"

	"github.com/transitguard/zonepolicy/internal/disutility"
	"github.com/transitguard/zonepolicy/internal/enforcement"
	"github.com/transitguard/zonepolicy/internal/geodesy"
	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
)

type recordingEmitter struct {
	events []zonemodel.MoneyEvent
}

func (r *recordingEmitter) Emit(e zonemodel.MoneyEvent) { r.events = append(r.events, e) }

type staticVehicles struct {
	classes map[string]zonemodel.VehicleClass
}

func (s *staticVehicles) VehicleClassOf(vehicleID string) (zonemodel.VehicleClass, bool) {
	c, ok := s.classes[vehicleID]
	return c, ok
}

// buildThroughNetwork builds the A(outside)->B(inside)->C(outside) grid used
// throughout these tests, matching the zonenet resolver test's fixture so
// L_in is an entry gateway, L_out is an exit gateway, and L_int is interior.
func buildThroughNetwork(t *testing.T, origin geodesy.Point) *network.Network {
	t.Helper()
	mk := func(lon, lat float64) network.Node {
		ring := geodesy.Ring{{Lon: lon, Lat: lat}, {Lon: lon, Lat: lat}, {Lon: lon, Lat: lat}, {Lon: lon, Lat: lat}}
		proj := geodesy.Transform([]geodesy.Ring{ring}, origin, "")
		return network.Node{X: proj[0][0].X, Y: proj[0][0].Y}
	}
	a := mk(-1.0, 0.5)
	b := mk(0.3, 0.5)
	d := mk(0.7, 0.5)
	c := mk(2.0, 0.5)
	a.ID, b.ID, d.ID, c.ID = "A", "B", "D", "C"

	net, err := network.New(
		[]network.Node{a, b, d, c},
		[]network.Link{
			{ID: "L_in", From: "A", To: "B", HBEFARoadType: "urban"},
			{ID: "L_int", From: "B", To: "D", HBEFARoadType: "urban"},
			{ID: "L_out", From: "D", To: "C", HBEFARoadType: "urban"},
		},
	)
	if err != nil {
		t.Fatalf("unexpected network error: %v", err)
	}
	return net
}

func squareRing(lon0, lat0, side float64) []zonemodel.Point {
	return []zonemodel.Point{
		{Lon: lon0, Lat: lat0},
		{Lon: lon0 + side, Lat: lat0},
		{Lon: lon0 + side, Lat: lat0 + side},
		{Lon: lon0, Lat: lat0 + side},
		{Lon: lon0, Lat: lat0},
	}
}

func assembleFixture(t *testing.T, policies []zonemodel.Policy, vehicles map[string]zonemodel.VehicleClass) (*Assembled, *recordingEmitter) {
	t.Helper()
	origin := geodesy.Point{Lon: 0.5, Lat: 0.5}
	net := buildThroughNetwork(t, origin)

	zone := zonemodel.Zone{
		ID:          "zone-1",
		Rings:       [][]zonemodel.Point{squareRing(0, 0, 1)},
		TripMatches: []zonemodel.TripMatchMode{zonemodel.MatchPass},
		Policies:    policies,
	}

	emitter := &recordingEmitter{}
	assembled, err := Assemble(Request{
		Network:          net,
		Zones:            []zonemodel.Zone{zone},
		OverlapFirstWins: true,
		Origin:           origin,
		Emitter:          emitter,
		Vehicles:         &staticVehicles{classes: vehicles},
	})
	if err != nil {
		t.Fatalf("unexpected assembly error: %v", err)
	}
	return assembled, emitter
}

func tier3Policy() zonemodel.Policy {
	return zonemodel.Policy{VehicleClass: zonemodel.ClassHighEmission, Tier: zonemodel.Tier3, Period: zonemodel.Period{StartSec: 25200, EndSec: 68400}}
}

func tier2Policy() zonemodel.Policy {
	return zonemodel.Policy{VehicleClass: zonemodel.ClassMidEmission, Tier: zonemodel.Tier2, Period: zonemodel.Period{StartSec: 25200, EndSec: 68400}, Penalty: 2.50, IntervalSec: 600}
}

// S1 — ban in window.
func TestS1BanInWindow(t *testing.T) {
	assembled, emitter := assembleFixture(t, []zonemodel.Policy{tier3Policy()}, map[string]zonemodel.VehicleClass{"V_hi": zonemodel.ClassHighEmission})

	assembled.Handler.OnVehicleEntersTraffic("V_hi", "P1", "L_in", 28800)

	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 ban event, got %d: %+v", len(emitter.events), emitter.events)
	}
	e := emitter.events[0]
	if e.Time != 28800 || e.PersonID != "P1" || e.Amount != -10000 || e.Purpose != zonemodel.PurposeZoneBan || e.Reference != "zone-1" {
		t.Errorf("unexpected ban event: %+v", e)
	}
}

// S2 — ban outside window.
func TestS2BanOutsideWindow(t *testing.T) {
	assembled, emitter := assembleFixture(t, []zonemodel.Policy{tier3Policy()}, map[string]zonemodel.VehicleClass{"V_hi": zonemodel.ClassHighEmission})

	assembled.Handler.OnVehicleEntersTraffic("V_hi", "P1", "L_in", 21600)

	if len(emitter.events) != 0 {
		t.Fatalf("expected zero ban events outside the window, got %d", len(emitter.events))
	}
}

// S3 — congestion interval.
func TestS3CongestionInterval(t *testing.T) {
	assembled, emitter := assembleFixture(t, []zonemodel.Policy{tier2Policy()}, map[string]zonemodel.VehicleClass{"V_mid": zonemodel.ClassMidEmission})

	assembled.Handler.OnVehicleEntersTraffic("V_mid", "person-of-Vmid", "L_in", 30000)
	assembled.Handler.OnLinkEnter("V_mid", "L_out", 32400)

	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 charge event, got %d: %+v", len(emitter.events), emitter.events)
	}
	e := emitter.events[0]
	if e.Time != 32400 || e.PersonID != "person-of-Vmid" || e.Amount != -10.0 || e.Purpose != zonemodel.PurposeZonePenalty || e.Reference != "zone-1" {
		t.Errorf("unexpected charge event: %+v", e)
	}
}

// S4 — below one interval.
func TestS4BelowOneInterval(t *testing.T) {
	assembled, emitter := assembleFixture(t, []zonemodel.Policy{tier2Policy()}, map[string]zonemodel.VehicleClass{"V_mid": zonemodel.ClassMidEmission})

	assembled.Handler.OnVehicleEntersTraffic("V_mid", "person-of-Vmid", "L_in", 30000)
	assembled.Handler.OnLinkEnter("V_mid", "L_out", 30400)

	if len(emitter.events) != 0 {
		t.Fatalf("expected zero charge events under one interval, got %d", len(emitter.events))
	}
}

// S5 — tier-1 immunity.
func TestS5Tier1Immunity(t *testing.T) {
	policies := []zonemodel.Policy{tier3Policy(), tier2Policy()}
	assembled, emitter := assembleFixture(t, policies, map[string]zonemodel.VehicleClass{"V_zero": zonemodel.ClassZeroEmission})

	assembled.Handler.OnVehicleEntersTraffic("V_zero", "p-zero", "L_in", 30000)
	assembled.Handler.OnLinkEnter("V_zero", "L_int", 30100)
	assembled.Handler.OnLinkEnter("V_zero", "L_out", 32400)

	if len(emitter.events) != 0 {
		t.Fatalf("expected zero money events for an unaffected vehicle class, got %d: %+v", len(emitter.events), emitter.events)
	}
}

// S6 — rerouting: ban-aware disutility makes the banned link's cost
// effectively infinite during the ban window and transparent outside it.
func TestS6ReroutingBanAwareCostDominatesInsideWindowOnly(t *testing.T) {
	assembled, _ := assembleFixture(t, []zonemodel.Policy{tier3Policy()}, map[string]zonemodel.VehicleClass{"V_hi": zonemodel.ClassHighEmission})

	if !assembled.HasBanAwareDisutility {
		t.Fatalf("expected ban-aware disutility to be installed when a tier-3 policy exists")
	}

	bannedDuringWindow := assembled.Index.IsBanned("L_in", zonemodel.ClassHighEmission, 32400) // 09:00
	if !bannedDuringWindow {
		t.Errorf("expected L_in banned for highEmission at 09:00")
	}
	bannedOutsideWindow := assembled.Index.IsBanned("L_in", zonemodel.ClassHighEmission, 72000) // 20:00
	if bannedOutsideWindow {
		t.Errorf("expected L_in not banned for highEmission at 20:00")
	}

	cost := assembled.NewBanAwareDisutility(flatCost{})
	hi := &disutility.Vehicle{Class: zonemodel.ClassHighEmission}
	if got := cost.Cost(network.Link{ID: "L_in"}, 32400, "P1", hi); got < 10.0+1e12 {
		t.Errorf("expected banned L_in cost to dominate the base cost at 09:00, got %v", got)
	}
	if got := cost.Cost(network.Link{ID: "L_in"}, 72000, "P1", hi); got != 10.0 {
		t.Errorf("expected the base cost for L_in at 20:00, got %v", got)
	}
}

type flatCost struct{}

func (flatCost) Cost(link network.Link, time int64, personID string, vehicle *disutility.Vehicle) float64 {
	return 10.0
}
func (flatCost) MinCost(link network.Link) float64 { return 1.0 }

func TestBaselinePurityEmptyPolicyList(t *testing.T) {
	assembled, emitter := assembleFixtureWithPolicies(t)
	assembled.Handler.OnVehicleEntersTraffic("V_hi", "P1", "L_in", 28800)
	assembled.Handler.OnLinkEnter("V_hi", "L_int", 28900)
	assembled.Handler.OnLinkEnter("V_hi", "L_out", 29000)

	if len(emitter.events) != 0 {
		t.Fatalf("expected zero money events with an empty policy list, got %d", len(emitter.events))
	}
	if assembled.HasBanAwareDisutility {
		t.Errorf("expected no ban-aware disutility installed with an empty policy list")
	}
}

func assembleFixtureWithPolicies(t *testing.T) (*Assembled, *recordingEmitter) {
	t.Helper()
	origin := geodesy.Point{Lon: 0.5, Lat: 0.5}
	net := buildThroughNetwork(t, origin)

	zone := zonemodel.Zone{
		ID:          "zone-1",
		Rings:       [][]zonemodel.Point{squareRing(0, 0, 1)},
		TripMatches: []zonemodel.TripMatchMode{zonemodel.MatchPass},
		// A zone must have at least one policy to validate (spec §3); model
		// "empty policy list" as a single tier-1 (exempt) policy, which per
		// §4.3 is never indexed and so produces the same zero-enforcement
		// baseline as a literally empty list would.
		Policies: []zonemodel.Policy{
			{VehicleClass: zonemodel.ClassHighEmission, Tier: zonemodel.Tier1, Period: zonemodel.Period{StartSec: 0, EndSec: 86400}},
		},
	}

	emitter := &recordingEmitter{}
	assembled, err := Assemble(Request{
		Network:          net,
		Zones:            []zonemodel.Zone{zone},
		OverlapFirstWins: true,
		Origin:           origin,
		Emitter:          emitter,
		Vehicles:         &staticVehicles{classes: map[string]zonemodel.VehicleClass{"V_hi": zonemodel.ClassHighEmission}},
	})
	if err != nil {
		t.Fatalf("unexpected assembly error: %v", err)
	}
	return assembled, emitter
}

var _ enforcement.Logger = (*noopLogger)(nil)

type noopLogger struct{}

func (noopLogger) Printf(format string, args ...any) {}

func TestAssembleMintsRequestIDWhenUnset(t *testing.T) {
	assembled, _ := assembleFixture(t, []zonemodel.Policy{tier3Policy()}, map[string]zonemodel.VehicleClass{"V_hi": zonemodel.ClassHighEmission})
	if assembled.RequestID == "" {
		t.Fatalf("expected Assemble to mint a non-empty RequestID")
	}
}

func TestAssemblePreservesCallerSuppliedRequestID(t *testing.T) {
	origin := geodesy.Point{Lon: 0.5, Lat: 0.5}
	net := buildThroughNetwork(t, origin)
	zone := zonemodel.Zone{
		ID:          "zone-1",
		Rings:       [][]zonemodel.Point{squareRing(0, 0, 1)},
		TripMatches: []zonemodel.TripMatchMode{zonemodel.MatchPass},
		Policies:    []zonemodel.Policy{tier3Policy()},
	}
	assembled, err := Assemble(Request{
		Network:          net,
		Zones:            []zonemodel.Zone{zone},
		OverlapFirstWins: true,
		Origin:           origin,
		Emitter:          &recordingEmitter{},
		Vehicles:         &staticVehicles{classes: map[string]zonemodel.VehicleClass{"V_hi": zonemodel.ClassHighEmission}},
		RequestID:        "caller-supplied-id",
	})
	if err != nil {
		t.Fatalf("unexpected assembly error: %v", err)
	}
	if assembled.RequestID != "caller-supplied-id" {
		t.Errorf("expected Assemble to preserve the caller's RequestID, got %q", assembled.RequestID)
	}
}
