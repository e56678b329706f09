package enforcement

import (
	"testing"

	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
)

type fakeIndex struct {
	entryRules map[network.LinkID][]zonemodel.EnforcementRule
	exitZones  map[network.LinkID]map[string]struct{}
}

func (f *fakeIndex) GetEntryRules(linkID network.LinkID) []zonemodel.EnforcementRule {
	return f.entryRules[linkID]
}
func (f *fakeIndex) GetExitZones(linkID network.LinkID) map[string]struct{} {
	return f.exitZones[linkID]
}

type fakeEmitter struct {
	events []zonemodel.MoneyEvent
}

func (f *fakeEmitter) Emit(e zonemodel.MoneyEvent) { f.events = append(f.events, e) }

type fakeVehicles struct {
	classes map[string]zonemodel.VehicleClass
}

func (f *fakeVehicles) VehicleClassOf(vehicleID string) (zonemodel.VehicleClass, bool) {
	c, ok := f.classes[vehicleID]
	return c, ok
}

func TestTier3EntryEmitsBan(t *testing.T) {
	idx := &fakeIndex{entryRules: map[network.LinkID][]zonemodel.EnforcementRule{
		"L1": {{ZoneID: "zone-1", VehicleClass: zonemodel.ClassHighEmission, Tier: zonemodel.Tier3, Period: zonemodel.Period{StartSec: 0, EndSec: 86400}}},
	}}
	emitter := &fakeEmitter{}
	vehicles := &fakeVehicles{classes: map[string]zonemodel.VehicleClass{"v1": zonemodel.ClassHighEmission}}
	h := New(idx, emitter, vehicles, nil, nil)

	h.OnVehicleEntersTraffic("v1", "p1", "L1", 3600)

	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 money event, got %d", len(emitter.events))
	}
	e := emitter.events[0]
	if e.Amount != zonemodel.BanPenalty || e.Purpose != zonemodel.PurposeZoneBan || e.Reference != "zone-1" || e.PersonID != "p1" {
		t.Errorf("unexpected ban event: %+v", e)
	}
}

func TestTier3OutsideWindowDoesNotBan(t *testing.T) {
	idx := &fakeIndex{entryRules: map[network.LinkID][]zonemodel.EnforcementRule{
		"L1": {{ZoneID: "zone-1", VehicleClass: zonemodel.ClassHighEmission, Tier: zonemodel.Tier3, Period: zonemodel.Period{StartSec: 0, EndSec: 1000}}},
	}}
	emitter := &fakeEmitter{}
	vehicles := &fakeVehicles{classes: map[string]zonemodel.VehicleClass{"v1": zonemodel.ClassHighEmission}}
	h := New(idx, emitter, vehicles, nil, nil)

	h.OnVehicleEntersTraffic("v1", "p1", "L1", 5000)

	if len(emitter.events) != 0 {
		t.Fatalf("expected no money events outside the ban window, got %d", len(emitter.events))
	}
}

func TestTier2EntryThenExitChargesWholeIntervals(t *testing.T) {
	rule := zonemodel.EnforcementRule{
		ZoneID: "zone-cc", VehicleClass: zonemodel.ClassMidEmission, Tier: zonemodel.Tier2,
		Period: zonemodel.Period{StartSec: 0, EndSec: 86400}, Penalty: 5, IntervalSec: 1800,
	}
	idx := &fakeIndex{
		entryRules: map[network.LinkID][]zonemodel.EnforcementRule{"L_in": {rule}},
		exitZones:  map[network.LinkID]map[string]struct{}{"L_out": {"zone-cc": {}}},
	}
	emitter := &fakeEmitter{}
	vehicles := &fakeVehicles{classes: map[string]zonemodel.VehicleClass{"v1": zonemodel.ClassMidEmission}}
	h := New(idx, emitter, vehicles, nil, nil)

	h.OnVehicleEntersTraffic("v1", "p1", "L_in", 1000)
	h.OnLinkEnter("v1", "L_out", 1000+3600) // 2 full 1800s intervals

	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 charge event, got %d", len(emitter.events))
	}
	e := emitter.events[0]
	if e.Amount != -10 || e.Purpose != zonemodel.PurposeZonePenalty || e.Reference != "zone-cc" {
		t.Errorf("unexpected charge event: %+v", e)
	}
}

func TestChordZeroDurationNoCharge(t *testing.T) {
	rule := zonemodel.EnforcementRule{
		ZoneID: "zone-cc", VehicleClass: zonemodel.ClassMidEmission, Tier: zonemodel.Tier2,
		Period: zonemodel.Period{StartSec: 0, EndSec: 86400}, Penalty: 5, IntervalSec: 1800,
	}
	idx := &fakeIndex{
		entryRules: map[network.LinkID][]zonemodel.EnforcementRule{"L_chord": {rule}},
		exitZones:  map[network.LinkID]map[string]struct{}{"L_chord": {"zone-cc": {}}},
	}
	emitter := &fakeEmitter{}
	vehicles := &fakeVehicles{classes: map[string]zonemodel.VehicleClass{"v1": zonemodel.ClassMidEmission}}
	h := New(idx, emitter, vehicles, nil, nil)

	// Same event, same link: entry then exit fire in that order per spec §4.4,
	// duration=0, intervals=0 -> no charge.
	h.OnVehicleEntersTraffic("v1", "p1", "L_chord", 500)

	if len(emitter.events) != 0 {
		t.Fatalf("expected no charge for a zero-duration chord crossing, got %d", len(emitter.events))
	}
}

func TestBanAndChargeAreIndependent(t *testing.T) {
	banRule := zonemodel.EnforcementRule{ZoneID: "zone-1", VehicleClass: zonemodel.ClassMidEmission, Tier: zonemodel.Tier3, Period: zonemodel.Period{StartSec: 0, EndSec: 86400}}
	chargeRule := zonemodel.EnforcementRule{ZoneID: "zone-1", VehicleClass: zonemodel.ClassMidEmission, Tier: zonemodel.Tier2, Period: zonemodel.Period{StartSec: 0, EndSec: 86400}, Penalty: 5, IntervalSec: 1800}
	idx := &fakeIndex{entryRules: map[network.LinkID][]zonemodel.EnforcementRule{"L1": {banRule, chargeRule}}}
	emitter := &fakeEmitter{}
	vehicles := &fakeVehicles{classes: map[string]zonemodel.VehicleClass{"v1": zonemodel.ClassMidEmission}}
	h := New(idx, emitter, vehicles, nil, nil)

	h.OnVehicleEntersTraffic("v1", "p1", "L1", 100)

	if len(emitter.events) != 1 {
		t.Fatalf("expected exactly the ban event on entry, got %d", len(emitter.events))
	}
	if emitter.events[0].Purpose != zonemodel.PurposeZoneBan {
		t.Errorf("expected the fired event to be the ban, got %+v", emitter.events[0])
	}
}

func TestOrphanedEventIsIgnored(t *testing.T) {
	idx := &fakeIndex{entryRules: map[network.LinkID][]zonemodel.EnforcementRule{
		"L1": {{ZoneID: "zone-1", VehicleClass: zonemodel.ClassHighEmission, Tier: zonemodel.Tier3, Period: zonemodel.Period{StartSec: 0, EndSec: 86400}}},
	}}
	emitter := &fakeEmitter{}
	vehicles := &fakeVehicles{classes: map[string]zonemodel.VehicleClass{}}
	h := New(idx, emitter, vehicles, nil, nil)

	// No VehicleEntersTraffic was ever seen for "ghost" -> no person mapping.
	h.OnLinkEnter("ghost", "L1", 100)

	if len(emitter.events) != 0 {
		t.Fatalf("expected orphaned event to be dropped silently, got %d events", len(emitter.events))
	}
}

func TestResetIterationClearsEntryRecords(t *testing.T) {
	rule := zonemodel.EnforcementRule{
		ZoneID: "zone-cc", VehicleClass: zonemodel.ClassMidEmission, Tier: zonemodel.Tier2,
		Period: zonemodel.Period{StartSec: 0, EndSec: 86400}, Penalty: 5, IntervalSec: 1800,
	}
	idx := &fakeIndex{
		entryRules: map[network.LinkID][]zonemodel.EnforcementRule{"L_in": {rule}},
		exitZones:  map[network.LinkID]map[string]struct{}{"L_out": {"zone-cc": {}}},
	}
	emitter := &fakeEmitter{}
	vehicles := &fakeVehicles{classes: map[string]zonemodel.VehicleClass{"v1": zonemodel.ClassMidEmission}}
	h := New(idx, emitter, vehicles, nil, nil)

	h.OnVehicleEntersTraffic("v1", "p1", "L_in", 1000)
	h.ResetIteration()
	// Re-map v1 to p1 on a link with no rules, so the exit below is resolved
	// and only a surviving entry record could produce a charge.
	h.OnVehicleEntersTraffic("v1", "p1", "L_other", 1000+1800)
	h.OnLinkEnter("v1", "L_out", 1000+3600)

	if len(emitter.events) != 0 {
		t.Fatalf("expected reset to clear the entry record, got %d events", len(emitter.events))
	}
}
