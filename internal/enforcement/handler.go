// Package enforcement implements the Enforcement Handler (C4): the
// kernel-event subscriber that turns zone-crossing link events into
// PersonMoney ban and congestion-charge events, driven by a C3 Index.
package enforcement

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/obslog"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
)

// Index is the subset of *zonepolicy.Index the handler needs, accepted as an
// interface so the handler can be tested and composed without depending on
// zonepolicy's package directly (spec §9's capability-interface pattern).
type Index interface {
	GetEntryRules(linkID network.LinkID) []zonemodel.EnforcementRule
	GetExitZones(linkID network.LinkID) map[string]struct{}
}

// EventEmitter pushes a completed MoneyEvent back into the simulation
// kernel's event manager, the kernel's own synchronization boundary (spec
// §5); the handler never writes an event-output file itself.
type EventEmitter interface {
	Emit(zonemodel.MoneyEvent)
}

// VehicleClassLookup resolves a vehicle's class from the scenario's vehicle
// table.
type VehicleClassLookup interface {
	VehicleClassOf(vehicleID string) (zonemodel.VehicleClass, bool)
}

type entryRecord struct {
	zoneID    string
	entryTime int64
	rule      zonemodel.EnforcementRule
}

// Metrics is the handler's diagnostic counter set, grounded on the teacher's
// internal/metrics.Collector pattern (prometheus.Collector-style named
// counters rather than ad hoc package-level vars).
type Metrics struct {
	bansEmitted    prometheus.Counter
	chargesEmitted prometheus.Counter
	orphanedEvents *prometheus.CounterVec
}

// NewMetrics registers the handler's counters against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with a process-global
// default registry across parallel test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bansEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonepolicy_bans_emitted_total",
			Help: "Total zone_ban money events emitted by the enforcement handler.",
		}),
		chargesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonepolicy_charges_emitted_total",
			Help: "Total zone_penalty money events emitted by the enforcement handler.",
		}),
		orphanedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonepolicy_orphaned_events_total",
			Help: "Total kernel events dropped because the vehicle or person could not be resolved.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.bansEmitted, m.chargesEmitted, m.orphanedEvents)
	}
	return m
}

// Handler is the per-run enforcement event subscriber. Safe for concurrent
// use by multiple kernel event-dispatch goroutines (spec §5).
type Handler struct {
	index    Index
	emitter  EventEmitter
	vehicles VehicleClassLookup
	metrics  *Metrics
	log      Logger

	mu               sync.RWMutex
	vehiclePersonMap map[string]string
	entryTimestamps  map[string]map[string]entryRecord // vehicleId -> zoneId -> record
}

// Logger is the minimal logging capability the handler needs; satisfied by
// *log.Logger (see internal/obslog).
type Logger interface {
	Printf(format string, args ...any)
}

// New builds a Handler. log may be obslog.Discard() to drop diagnostics.
func New(index Index, emitter EventEmitter, vehicles VehicleClassLookup, metrics *Metrics, log Logger) *Handler {
	if log == nil {
		log = obslog.Discard()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Handler{
		index:            index,
		emitter:          emitter,
		vehicles:         vehicles,
		metrics:          metrics,
		log:              log,
		vehiclePersonMap: make(map[string]string),
		entryTimestamps:  make(map[string]map[string]entryRecord),
	}
}

// ResetIteration clears per-iteration state ahead of the next simulation
// iteration; rule tables built by C3 are untouched (spec §4.4).
func (h *Handler) ResetIteration() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vehiclePersonMap = make(map[string]string)
	h.entryTimestamps = make(map[string]map[string]entryRecord)
}

// OnVehicleEntersTraffic handles the kernel's VehicleEntersTraffic event.
// Per spec §4.4 this both records the vehicle->person mapping and is itself
// treated as a link-entry for the vehicle's starting link.
func (h *Handler) OnVehicleEntersTraffic(vehicleID, personID string, linkID network.LinkID, time int64) {
	h.mu.Lock()
	h.vehiclePersonMap[vehicleID] = personID
	h.mu.Unlock()
	h.onLinkEnter(vehicleID, linkID, time)
}

// OnLinkEnter handles the kernel's LinkEnter event.
func (h *Handler) OnLinkEnter(vehicleID string, linkID network.LinkID, time int64) {
	h.onLinkEnter(vehicleID, linkID, time)
}

func (h *Handler) onLinkEnter(vehicleID string, linkID network.LinkID, time int64) {
	personID, class, ok := h.resolveVehicle(vehicleID)
	if !ok {
		h.metrics.orphanedEvents.WithLabelValues("unknown_vehicle").Inc()
		h.log.Printf("enforcement: dropping event for unresolved vehicle %s on link %s", vehicleID, linkID)
		return
	}
	// Entry fires before exit on the same event, per the chord tie-break in
	// spec §4.4.
	h.checkEntryGateway(linkID, vehicleID, personID, class, time)
	h.checkExitGateway(linkID, vehicleID, time)
}

func (h *Handler) resolveVehicle(vehicleID string) (personID string, class zonemodel.VehicleClass, ok bool) {
	h.mu.RLock()
	personID, hasPerson := h.vehiclePersonMap[vehicleID]
	h.mu.RUnlock()
	if !hasPerson {
		return "", "", false
	}
	class, hasClass := h.vehicles.VehicleClassOf(vehicleID)
	if !hasClass {
		return "", "", false
	}
	return personID, class, true
}

func (h *Handler) checkEntryGateway(linkID network.LinkID, vehicleID, personID string, class zonemodel.VehicleClass, time int64) {
	for _, rule := range h.index.GetEntryRules(linkID) {
		if !rule.Matches(class, int(time%86400)) {
			continue
		}
		switch rule.Tier {
		case zonemodel.Tier3:
			h.emitter.Emit(zonemodel.MoneyEvent{
				Time:      time,
				PersonID:  personID,
				Amount:    zonemodel.BanPenalty,
				Purpose:   zonemodel.PurposeZoneBan,
				Reference: rule.ZoneID,
			})
			h.metrics.bansEmitted.Inc()
		case zonemodel.Tier2:
			h.mu.Lock()
			zones, ok := h.entryTimestamps[vehicleID]
			if !ok {
				zones = make(map[string]entryRecord)
				h.entryTimestamps[vehicleID] = zones
			}
			zones[rule.ZoneID] = entryRecord{zoneID: rule.ZoneID, entryTime: time, rule: rule}
			h.mu.Unlock()
		}
	}
}

func (h *Handler) checkExitGateway(linkID network.LinkID, vehicleID string, time int64) {
	zoneIDs := h.index.GetExitZones(linkID)
	if len(zoneIDs) == 0 {
		return
	}
	for zoneID := range zoneIDs {
		h.mu.Lock()
		zones, ok := h.entryTimestamps[vehicleID]
		if !ok {
			h.mu.Unlock()
			continue
		}
		rec, ok := zones[zoneID]
		if ok {
			delete(zones, zoneID)
		}
		h.mu.Unlock()
		if !ok {
			continue
		}

		duration := time - rec.entryTime
		intervals := duration / int64(rec.rule.IntervalSec)
		if intervals < 1 {
			continue // zero-duration chord crossing: no charge (spec §4.4)
		}
		personID, _, resolvedOk := h.resolveVehicle(vehicleID)
		if !resolvedOk {
			h.metrics.orphanedEvents.WithLabelValues("unresolved_at_exit").Inc()
			continue
		}
		h.emitter.Emit(zonemodel.MoneyEvent{
			Time:      time,
			PersonID:  personID,
			Amount:    -(float64(intervals) * rec.rule.Penalty),
			Purpose:   zonemodel.PurposeZonePenalty,
			Reference: zoneID,
		})
		h.metrics.chargesEmitted.Inc()
	}
}
