// zonesim is a demonstration harness for the zone-policy enforcement core:
// it loads a scenario (network, zones, vehicles, scripted events) from an
// HCL file, assembles the enforcement handler, replays the scripted events,
// and prints the resulting money events.
//
// Usage:
//
//	go run ./cmd/zonesim -scenario scenario.hcl
//	go run ./cmd/zonesim -scenario scenario.hcl -report out.hcl
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/obslog"
	"github.com/transitguard/zonepolicy/internal/scenario"
	"github.com/transitguard/zonepolicy/internal/scenarioconfig"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
)

type collectingEmitter struct {
	events []zonemodel.MoneyEvent
}

func (c *collectingEmitter) Emit(e zonemodel.MoneyEvent) {
	c.events = append(c.events, e)
}

type fileVehicles struct {
	classes map[string]zonemodel.VehicleClass
}

func (f *fileVehicles) VehicleClassOf(vehicleID string) (zonemodel.VehicleClass, bool) {
	c, ok := f.classes[vehicleID]
	return c, ok
}

func main() {
	scenarioPath := flag.String("scenario", "", "path to the HCL scenario file")
	reportPath := flag.String("report", "", "optional path to write an HCL money-event report (default: stdout summary only)")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "zonesim: -scenario is required")
		os.Exit(2)
	}

	if err := run(*scenarioPath, *reportPath); err != nil {
		fmt.Fprintf(os.Stderr, "zonesim: %v\n", err)
		os.Exit(1)
	}
}

func run(scenarioPath, reportPath string) error {
	data, err := os.ReadFile(scenarioPath)
	if err != nil {
		return fmt.Errorf("reading scenario file: %w", err)
	}

	file, err := scenarioconfig.Load(data, scenarioPath)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	net, err := file.BuildNetwork()
	if err != nil {
		return fmt.Errorf("building network: %w", err)
	}
	zones, err := file.BuildZones()
	if err != nil {
		return fmt.Errorf("building zones: %w", err)
	}

	emitter := &collectingEmitter{}
	vehicles := &fileVehicles{classes: file.VehicleClasses()}

	assembled, err := scenario.Assemble(scenario.Request{
		Network:          net,
		Zones:            zones,
		OverlapFirstWins: file.OverlapFirstWins,
		Origin:           file.Origin(),
		TargetCRS:        file.TargetCRS,
		Emitter:          emitter,
		Vehicles:         vehicles,
		Logger:           obslog.New("zonesim", os.Stderr),
	})
	if err != nil {
		return fmt.Errorf("assembling scenario: %w", err)
	}

	fmt.Fprintf(os.Stderr, "zonesim: assembled %d zone(s), ban-aware disutility installed=%v\n", len(zones), assembled.HasBanAwareDisutility)

	for _, ev := range file.Events {
		switch ev.Type {
		case "enters_traffic":
			assembled.Handler.OnVehicleEntersTraffic(ev.VehicleID, ev.PersonID, network.LinkID(ev.LinkID), int64(ev.Time))
		case "link_enter":
			assembled.Handler.OnLinkEnter(ev.VehicleID, network.LinkID(ev.LinkID), int64(ev.Time))
		default:
			fmt.Fprintf(os.Stderr, "zonesim: skipping unknown event type %q\n", ev.Type)
		}
	}

	printReport(emitter.events)

	if reportPath != "" {
		if err := os.WriteFile(reportPath, scenarioconfig.WriteMoneyEventReport(emitter.events), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	return nil
}

func printReport(events []zonemodel.MoneyEvent) {
	if len(events) == 0 {
		fmt.Println("no money events emitted")
		return
	}
	for _, e := range events {
		fmt.Printf("t=%-8d person=%-12s amount=%-10.2f purpose=%-13s zone=%s\n", e.Time, e.PersonID, e.Amount, e.Purpose, e.Reference)
	}
}
