package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/hdlgen/internal/verilog"
)

// Tables is the relational fact model of one or more compiled designs.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Designs        []DesignRow        `json:"designs"`
	Modules        []ModuleRow        `json:"modules"`
	Ports          []PortRow          `json:"ports"`
	Signals        []SignalRow        `json:"signals"`
	Memories       []MemoryRow        `json:"memories"`
	Processes      []ProcessRow       `json:"processes"`
	Instances      []InstanceRow      `json:"instances"`
	Connections    []ConnectionRow    `json:"connections"`
	Drivers        []DriverRow        `json:"drivers"`
	GeneratedWires []GeneratedWireRow `json:"generated_wires"`
}

type DesignRow struct {
	Name string `json:"name"`
	Top  string `json:"top"`
}

type ModuleRow struct {
	Design       string `json:"design"`
	Name         string `json:"name"`
	IsSimulation bool   `json:"is_simulation"`
	Level        int    `json:"level"`
}

type PortRow struct {
	Design    string `json:"design"`
	Module    string `json:"module"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Width     int    `json:"width"`
	Position  int    `json:"position"`
}

type SignalRow struct {
	Design string `json:"design"`
	Module string `json:"module"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Kind   string `json:"kind"`
}

type MemoryRow struct {
	Design string `json:"design"`
	Module string `json:"module"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Depth  int    `json:"depth"`
}

type ProcessRow struct {
	Design string `json:"design"`
	Module string `json:"module"`
	Index  int    `json:"index"`
	Mode   string `json:"mode"`
	Edge   string `json:"edge"`
	Clock  string `json:"clock"`
}

type InstanceRow struct {
	Design   string `json:"design"`
	Module   string `json:"module"`
	Name     string `json:"name"`
	Target   string `json:"target"`
	IsVendor bool   `json:"is_vendor"`
}

type ConnectionRow struct {
	Design    string `json:"design"`
	Module    string `json:"module"`
	Instance  string `json:"instance"`
	Port      string `json:"port"`
	Direction string `json:"direction"`
	Net       string `json:"net"`
}

type DriverRow struct {
	Design  string `json:"design"`
	Module  string `json:"module"`
	Target  string `json:"target"`
	Mode    string `json:"mode"`
	Process int    `json:"process"`
}

type GeneratedWireRow struct {
	Design string `json:"design"`
	Module string `json:"module"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Expr   string `json:"expr"`
}

// BuildTables flattens the report of one compiled design into fact rows.
func BuildTables(design string, res *verilog.Result) Tables {
	tables := emptyTables()
	if res == nil {
		return tables
	}
	tables.Designs = append(tables.Designs, DesignRow{Name: design, Top: res.Top})

	levels := ModuleLevels(res.Top, BuildHierarchy(res))

	for _, m := range res.Modules {
		tables.Modules = append(tables.Modules, ModuleRow{
			Design:       design,
			Name:         m.Name,
			IsSimulation: m.Simulation,
			Level:        levels[m.Name],
		})

		for i, p := range m.Ports {
			tables.Ports = append(tables.Ports, PortRow{
				Design:    design,
				Module:    m.Name,
				Name:      p.Name,
				Direction: p.Direction,
				Width:     int(p.Width),
				Position:  i,
			})
		}

		for _, s := range m.Internals {
			tables.Signals = append(tables.Signals, SignalRow{
				Design: design,
				Module: m.Name,
				Name:   s.Name,
				Width:  int(s.Width),
				Kind:   s.Kind,
			})
		}

		for _, mem := range m.Memories {
			tables.Memories = append(tables.Memories, MemoryRow{
				Design: design,
				Module: m.Name,
				Name:   mem.Name,
				Width:  int(mem.Width),
				Depth:  int(mem.Depth),
			})
		}

		for _, p := range m.Processes {
			tables.Processes = append(tables.Processes, ProcessRow{
				Design: design,
				Module: m.Name,
				Index:  p.Index,
				Mode:   p.Mode,
				Edge:   p.Edge,
				Clock:  p.Clock,
			})
		}

		for _, inst := range m.Instances {
			tables.Instances = append(tables.Instances, InstanceRow{
				Design:   design,
				Module:   m.Name,
				Name:     inst.Name,
				Target:   inst.Module,
				IsVendor: inst.Vendor,
			})
			for _, c := range inst.Connections {
				tables.Connections = append(tables.Connections, ConnectionRow{
					Design:    design,
					Module:    m.Name,
					Instance:  inst.Name,
					Port:      c.Port,
					Direction: c.Direction,
					Net:       c.Net,
				})
			}
		}

		for _, d := range m.Drivers {
			tables.Drivers = append(tables.Drivers, DriverRow{
				Design:  design,
				Module:  m.Name,
				Target:  d.Target,
				Mode:    d.Mode,
				Process: d.Index,
			})
		}

		for _, w := range m.Hoisted {
			tables.GeneratedWires = append(tables.GeneratedWires, GeneratedWireRow{
				Design: design,
				Module: m.Name,
				Name:   w.Name,
				Width:  int(w.Width),
				Expr:   w.Expr,
			})
		}
	}

	return tables
}

// Merge concatenates tables of several designs, ordering designs by name.
func Merge(all ...Tables) Tables {
	out := emptyTables()
	for _, t := range all {
		out.Designs = append(out.Designs, t.Designs...)
		out.Modules = append(out.Modules, t.Modules...)
		out.Ports = append(out.Ports, t.Ports...)
		out.Signals = append(out.Signals, t.Signals...)
		out.Memories = append(out.Memories, t.Memories...)
		out.Processes = append(out.Processes, t.Processes...)
		out.Instances = append(out.Instances, t.Instances...)
		out.Connections = append(out.Connections, t.Connections...)
		out.Drivers = append(out.Drivers, t.Drivers...)
		out.GeneratedWires = append(out.GeneratedWires, t.GeneratedWires...)
	}
	sort.SliceStable(out.Designs, func(i, j int) bool { return out.Designs[i].Name < out.Designs[j].Name })
	return out
}
