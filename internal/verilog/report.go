package verilog

// Result is the output of one compile.
type Result struct {
	Top       string          `json:"top"`
	Timescale string          `json:"timescale,omitempty"`
	Text      string          `json:"-"`
	Modules   []*ModuleReport `json:"modules"`
}

// Header is the preamble every output file starts with.
func (r *Result) Header() string {
	h := "`default_nettype none\n"
	if r.Timescale != "" {
		h += "`timescale " + r.Timescale + "\n"
	}
	return h
}

// ModuleReport summarises what the generator emitted for one module.
type ModuleReport struct {
	Name       string           `json:"name"`
	Simulation bool             `json:"simulation"`
	Ports      []PortReport     `json:"ports"`
	Internals  []SignalReport   `json:"internals"`
	Memories   []MemoryReport   `json:"memories"`
	Processes  []ProcessReport  `json:"processes"`
	Instances  []InstanceReport `json:"instances"`
	Drivers    []DriverReport   `json:"drivers"`
	Hoisted    []HoistedReport  `json:"hoisted"`
	// Text is the module ... endmodule block.
	Text       string           `json:"-"`
}

// PortReport is one port in declaration order.
type PortReport struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Width     uint   `json:"width"`
}

// SignalReport is one internal signal and the net kind it was declared as.
type SignalReport struct {
	Name  string `json:"name"`
	Width uint   `json:"width"`
	Kind  string `json:"kind"`
}

// MemoryReport is one memory array.
type MemoryReport struct {
	Name  string `json:"name"`
	Width uint   `json:"width"`
	Depth uint   `json:"depth"`
}

// ProcessReport is one always or initial block.
type ProcessReport struct {
	Index int    `json:"index"`
	Mode  string `json:"mode"`
	Edge  string `json:"edge,omitempty"`
	Clock string `json:"clock,omitempty"`
}

// InstanceReport is one submodule or vendor instance and its connections.
type InstanceReport struct {
	Name        string             `json:"name"`
	Module      string             `json:"module"`
	Vendor      bool               `json:"vendor"`
	Connections []ConnectionReport `json:"connections"`
}

// ConnectionReport is one port connection of an instance.
type ConnectionReport struct {
	Port      string `json:"port"`
	Direction string `json:"direction"`
	Net       string `json:"net"`
}

// DriverReport names the process that drives a target. Index 0 is an
// instance port.
type DriverReport struct {
	Target string `json:"target"`
	Mode   string `json:"mode"`
	Index  int    `json:"index"`
}

// HoistedReport is a generated slice wire.
type HoistedReport struct {
	Name  string `json:"name"`
	Width uint   `json:"width"`
	Expr  string `json:"expr"`
}

// Module returns the report for the named module, or nil.
func (r *Result) Module(name string) *ModuleReport {
	for _, m := range r.Modules {
		if m.Name == name {
			return m
		}
	}
	return nil
}
