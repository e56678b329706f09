// Package scenarioconfig loads a demonstration scenario file (network,
// zones, vehicles, scripted events) from HCL, the way the teacher's
// internal/config package loads its own configuration (hclparse + gohcl),
// and can serialize a run's results back to HCL using hclwrite + cty,
// mirroring internal/config/hcl_serializer.go's SyncConfigToHCL approach.
package scenarioconfig

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/transitguard/zonepolicy/internal/errors"
	"github.com/transitguard/zonepolicy/internal/geodesy"
	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
)

// File is the root HCL schema for a zonesim scenario file.
type File struct {
	OriginLon        float64        `hcl:"origin_lon"`
	OriginLat        float64        `hcl:"origin_lat"`
	OverlapFirstWins bool           `hcl:"overlap_first_wins,optional"`
	TargetCRS        string         `hcl:"target_crs,optional"`
	Nodes            []NodeBlock    `hcl:"node,block"`
	Links            []LinkBlock    `hcl:"link,block"`
	Zones            []ZoneBlock    `hcl:"zone,block"`
	Vehicles         []VehicleBlock `hcl:"vehicle,block"`
	Events           []EventBlock   `hcl:"event,block"`
}

type NodeBlock struct {
	ID string  `hcl:"id,label"`
	X  float64 `hcl:"x"`
	Y  float64 `hcl:"y"`
}

type LinkBlock struct {
	ID            string   `hcl:"id,label"`
	From          string   `hcl:"from"`
	To            string   `hcl:"to"`
	Length        float64  `hcl:"length,optional"`
	Freespeed     float64  `hcl:"freespeed,optional"`
	Capacity      float64  `hcl:"capacity,optional"`
	Lanes         float64  `hcl:"lanes,optional"`
	AllowedModes  []string `hcl:"allowed_modes,optional"`
	HBEFARoadType string   `hcl:"hbefa_road_type,optional"`
}

type PointBlock struct {
	Lon float64 `hcl:"lon"`
	Lat float64 `hcl:"lat"`
}

type RingBlock struct {
	Points []PointBlock `hcl:"point,block"`
}

type PolicyBlock struct {
	VehicleClass string  `hcl:"vehicle_class"`
	Tier         int     `hcl:"tier"`
	StartSec     int     `hcl:"start_sec"`
	EndSec       int     `hcl:"end_sec"`
	Penalty      float64 `hcl:"penalty,optional"`
	IntervalSec  int     `hcl:"interval_sec,optional"`
}

type ZoneBlock struct {
	ID          string        `hcl:"id,label"`
	TripMatches []string      `hcl:"trip_matches"`
	Rings       []RingBlock   `hcl:"ring,block"`
	Policies    []PolicyBlock `hcl:"policy,block"`
}

type VehicleBlock struct {
	ID    string `hcl:"id,label"`
	Class string `hcl:"class"`
}

type EventBlock struct {
	Type      string `hcl:"type,label"` // "enters_traffic" or "link_enter"
	VehicleID string `hcl:"vehicle_id"`
	PersonID  string `hcl:"person_id,optional"`
	LinkID    string `hcl:"link_id"`
	Time      int    `hcl:"time"`
}

// Load parses a scenario file from HCL bytes.
func Load(data []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, errors.KindInvalidGeometry, "parsing scenario file %s", filename)
	}

	// overlap_first_wins is optional; an omitted attribute leaves this
	// first-wins default in place.
	f := File{OverlapFirstWins: true}
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, errors.Wrapf(diags, errors.KindInvalidGeometry, "decoding scenario file %s", filename)
	}
	return &f, nil
}

// BuildNetwork turns the file's node/link blocks into a *network.Network.
func (f *File) BuildNetwork() (*network.Network, error) {
	nodes := make([]network.Node, len(f.Nodes))
	for i, n := range f.Nodes {
		nodes[i] = network.Node{ID: network.NodeID(n.ID), X: n.X, Y: n.Y}
	}
	links := make([]network.Link, len(f.Links))
	for i, l := range f.Links {
		links[i] = network.Link{
			ID: network.LinkID(l.ID), From: network.NodeID(l.From), To: network.NodeID(l.To),
			Length: l.Length, Freespeed: l.Freespeed, Capacity: l.Capacity, Lanes: l.Lanes,
			AllowedModes: l.AllowedModes, HBEFARoadType: l.HBEFARoadType,
		}
	}
	return network.New(nodes, links)
}

// BuildZones turns the file's zone blocks into []zonemodel.Zone.
func (f *File) BuildZones() ([]zonemodel.Zone, error) {
	zones := make([]zonemodel.Zone, len(f.Zones))
	for i, zb := range f.Zones {
		rings := make([][]zonemodel.Point, len(zb.Rings))
		for j, rb := range zb.Rings {
			ring := make([]zonemodel.Point, len(rb.Points))
			for k, p := range rb.Points {
				ring[k] = zonemodel.Point{Lon: p.Lon, Lat: p.Lat}
			}
			rings[j] = ring
		}
		tripMatches := make([]zonemodel.TripMatchMode, len(zb.TripMatches))
		for j, m := range zb.TripMatches {
			tripMatches[j] = zonemodel.TripMatchMode(m)
		}
		policies := make([]zonemodel.Policy, len(zb.Policies))
		for j, pb := range zb.Policies {
			policies[j] = zonemodel.Policy{
				VehicleClass: zonemodel.VehicleClass(pb.VehicleClass),
				Tier:         zonemodel.Tier(pb.Tier),
				Period:       zonemodel.Period{StartSec: pb.StartSec, EndSec: pb.EndSec},
				Penalty:      pb.Penalty,
				IntervalSec:  pb.IntervalSec,
			}
		}
		zone := zonemodel.Zone{ID: zb.ID, Rings: rings, TripMatches: tripMatches, Policies: policies}
		if err := zone.Validate(); err != nil {
			return nil, err
		}
		zones[i] = zone
	}
	return zones, nil
}

// Origin returns the file's shared projection origin.
func (f *File) Origin() geodesy.Point {
	return geodesy.Point{Lon: f.OriginLon, Lat: f.OriginLat}
}

// VehicleClasses returns the vehicle->class map built from the file's
// vehicle blocks.
func (f *File) VehicleClasses() map[string]zonemodel.VehicleClass {
	out := make(map[string]zonemodel.VehicleClass, len(f.Vehicles))
	for _, v := range f.Vehicles {
		out[v.ID] = zonemodel.VehicleClass(v.Class)
	}
	return out
}

// WriteMoneyEventReport serializes emitted money events back to HCL,
// grounded on the teacher's hclwrite + cty attribute-writing pattern
// (internal/config/hcl_serializer.go's SyncConfigToHCL).
func WriteMoneyEventReport(events []zonemodel.MoneyEvent) []byte {
	out := hclwrite.NewEmptyFile()
	body := out.Body()
	for i, e := range events {
		block := body.AppendNewBlock("money_event", []string{fmt.Sprintf("%d", i)})
		eb := block.Body()
		eb.SetAttributeValue("time", cty.NumberIntVal(e.Time))
		eb.SetAttributeValue("person_id", cty.StringVal(e.PersonID))
		eb.SetAttributeValue("amount", cty.NumberFloatVal(e.Amount))
		eb.SetAttributeValue("purpose", cty.StringVal(e.Purpose))
		eb.SetAttributeValue("reference", cty.StringVal(e.Reference))
	}
	return out.Bytes()
}
