package hdl

import (
	"fmt"
	"sort"
	"strings"
)

// Edge selects the clock edge of a synchronous process.
type Edge int

const (
	Posedge Edge = iota
	Negedge
)

func (e Edge) String() string {
	if e == Negedge {
		return "negedge"
	}
	return "posedge"
}

// SyncProcess is an always block triggered by one clock edge.
type SyncProcess struct {
	Edge  Edge
	Clock Expr
	Body  Block
}

// PortBinding connects a port of an instantiated module to an expression of
// the instantiating module.
type PortBinding struct {
	Port string
	Expr Expr
}

// Submodule is a named instance of another module.
type Submodule struct {
	Instance string
	Module   *Module
	// Inputs follow the submodule's input declaration order.
	Inputs []PortBinding
	// Inouts bound to a parent reference; unbound inouts get a generated wire.
	Inouts  []PortBinding
	outputs []*Signal
	bidirs  []*Signal
	// aliased instances render their outputs under the port names themselves
	// (the device under test of a simulation).
	aliased bool
}

// Output returns the instance's output port, usable as an expression in the
// instantiating module.
func (s *Submodule) Output(name string) (*Signal, error) {
	for _, sig := range s.outputs {
		if sig.name == name {
			return sig, nil
		}
	}
	return nil, &SubmoduleError{Module: s.Module.name, Instance: s.Instance, Submodule: s.Module.name, Reason: fmt.Sprintf("no output %q", name)}
}

// Bidirectional returns an unbound inout port of the instance.
func (s *Submodule) Bidirectional(name string) (*Signal, error) {
	for _, sig := range s.bidirs {
		if sig.name == name {
			return sig, nil
		}
	}
	return nil, &SubmoduleError{Module: s.Module.name, Instance: s.Instance, Submodule: s.Module.name, Reason: fmt.Sprintf("no unbound inout %q", name)}
}

// Outputs lists the instance's output ports in declaration order.
func (s *Submodule) Outputs() []*Signal { return s.outputs }

// UnboundInouts lists the inout ports that were not bound to a parent reference.
func (s *Submodule) UnboundInouts() []*Signal { return s.bidirs }

// Aliased reports whether outputs keep their port names in the parent.
func (s *Submodule) Aliased() bool { return s.aliased }

// Module is the description of one hardware module. It is rebuilt from
// scratch by Describe; nothing registered survives a second call.
type Module struct {
	name     string
	describe func(*Module) error
	sim      *Simulation
	vendor   bool

	describing bool

	names      map[string]string
	inputs     []*Signal
	outputs    []*Signal
	inouts     []*Signal
	internals  []*Signal
	memories   []*Memory
	syncs      []*SyncProcess
	combs      []Block
	submodules []*Submodule
	vendors    []*VendorInstance
}

// NewModule returns a module whose contents are produced by describe. The
// callback must register the same description every time it runs.
func NewModule(name string, describe func(*Module) error) *Module {
	return &Module{name: name, describe: describe}
}

// Name is the Verilog module name.
func (m *Module) Name() string { return m.name }

// Root lets a plain module be compiled as a top.
func (m *Module) Root() *Module { return m }

// Simulation returns the testbench this module renders, or nil.
func (m *Module) Simulation() *Simulation { return m.sim }

// IsSimulation reports whether the module is a testbench.
func (m *Module) IsSimulation() bool { return m.sim != nil }

// IsVendor reports whether the module stands for an external IP core.
func (m *Module) IsVendor() bool { return m.vendor }

func (m *Module) Inputs() []*Signal             { return m.inputs }
func (m *Module) Outputs() []*Signal            { return m.outputs }
func (m *Module) Inouts() []*Signal             { return m.inouts }
func (m *Module) Internals() []*Signal          { return m.internals }
func (m *Module) Memories() []*Memory           { return m.memories }
func (m *Module) SyncProcesses() []*SyncProcess { return m.syncs }
func (m *Module) CombProcesses() []Block        { return m.combs }
func (m *Module) Submodules() []*Submodule      { return m.submodules }
func (m *Module) Vendors() []*VendorInstance    { return m.vendors }

// Ports lists inputs, outputs and inouts in emission order.
func (m *Module) Ports() []*Signal {
	out := make([]*Signal, 0, len(m.inputs)+len(m.outputs)+len(m.inouts))
	out = append(out, m.inputs...)
	out = append(out, m.outputs...)
	return append(out, m.inouts...)
}

// Lookup finds a declared signal by name.
func (m *Module) Lookup(name string) (*Signal, bool) {
	for _, list := range [][]*Signal{m.inputs, m.outputs, m.inouts, m.internals} {
		for _, s := range list {
			if s.name == name {
				return s, true
			}
		}
	}
	return nil, false
}

// Has reports whether name is taken by a signal, memory or instance.
func (m *Module) Has(name string) bool {
	_, ok := m.names[name]
	return ok
}

// Describe clears the module and runs its describe callback. Errors passed to
// Must inside the callback are returned here.
func (m *Module) Describe() (err error) {
	if m.describing {
		return &SubmoduleError{Module: m.name, Instance: "", Submodule: m.name, Reason: "recursive instantiation"}
	}
	m.reset()
	if err := ValidIdentifier("", m.name); err != nil {
		return err
	}
	if m.describe == nil {
		return nil
	}
	m.describing = true
	defer func() { m.describing = false }()
	defer Recover(&err)
	return m.describe(m)
}

func (m *Module) reset() {
	m.names = make(map[string]string)
	m.inputs = nil
	m.outputs = nil
	m.inouts = nil
	m.internals = nil
	m.memories = nil
	m.syncs = nil
	m.combs = nil
	m.submodules = nil
	m.vendors = nil
}

func (m *Module) claim(name, kind string) error {
	if err := ValidIdentifier(m.name, name); err != nil {
		return err
	}
	if m.names == nil {
		m.names = make(map[string]string)
	}
	if prev, ok := m.names[name]; ok {
		return &NameError{Module: m.name, Name: name, Reason: fmt.Sprintf("already declared as %s", prev)}
	}
	m.names[name] = kind
	return nil
}

func (m *Module) signal(name string, width uint, dir Direction) (*Signal, error) {
	if width == 0 {
		return nil, &WidthError{Module: m.name, Signal: name, Op: dir.String() + " declaration", Expected: 1, Actual: 0}
	}
	if err := m.claim(name, dir.String()); err != nil {
		return nil, err
	}
	s := &Signal{name: name, width: width, dir: dir, module: m}
	switch dir {
	case Input:
		m.inputs = append(m.inputs, s)
	case Output:
		m.outputs = append(m.outputs, s)
	case Inout:
		m.inouts = append(m.inouts, s)
	default:
		m.internals = append(m.internals, s)
	}
	return s, nil
}

// Input declares an input port.
func (m *Module) Input(name string, width uint) (*Signal, error) { return m.signal(name, width, Input) }

// Output declares an output port.
func (m *Module) Output(name string, width uint) (*Signal, error) { return m.signal(name, width, Output) }

// Inout declares a bidirectional port.
func (m *Module) Inout(name string, width uint) (*Signal, error) { return m.signal(name, width, Inout) }

// Internal declares a signal visible only inside the module.
func (m *Module) Internal(name string, width uint) (*Signal, error) {
	return m.signal(name, width, Internal)
}

// Memory declares a depth-word array of width-bit registers.
func (m *Module) Memory(name string, width, depth uint) (*Memory, error) {
	if width == 0 || depth == 0 {
		return nil, &WidthError{Module: m.name, Signal: name, Op: "memory declaration", Expected: 1, Actual: 0}
	}
	if err := m.claim(name, "memory"); err != nil {
		return nil, err
	}
	mem := &Memory{name: name, width: width, depth: depth, module: m}
	m.memories = append(m.memories, mem)
	return mem, nil
}

// Sync registers an always block on the given clock edge.
func (m *Module) Sync(edge Edge, clock Expr, body ...Statement) error {
	if clock.Width() != 1 {
		return &WidthError{Module: m.name, Signal: label(clock), Op: "clock", Expected: 1, Actual: clock.Width()}
	}
	if !IsRef(clock) {
		return &AssignmentError{Target: label(clock), Reason: "clock must be a signal reference"}
	}
	m.syncs = append(m.syncs, &SyncProcess{Edge: edge, Clock: clock, Body: body})
	return nil
}

// Comb registers a combinational always block.
func (m *Module) Comb(body ...Statement) error {
	m.combs = append(m.combs, Block(body))
	return nil
}

// AddSubmodule instantiates sub. The ports map must name every input of sub
// exactly once and may bind inouts of sub to references of m. The submodule
// is described afresh so its outputs can be read back from the returned
// handle.
func (m *Module) AddSubmodule(instance string, sub *Module, ports map[string]Expr) (*Submodule, error) {
	if sub == nil {
		return nil, &SubmoduleError{Module: m.name, Instance: instance, Reason: "nil submodule"}
	}
	if sub.sim != nil {
		return nil, &SubmoduleError{Module: m.name, Instance: instance, Submodule: sub.name, Reason: "a simulation cannot be instantiated"}
	}
	if err := sub.Describe(); err != nil {
		return nil, fmt.Errorf("instance %s of %s: %w", instance, sub.name, err)
	}
	return m.instantiate(instance, sub, ports, false)
}

func (m *Module) instantiate(instance string, sub *Module, ports map[string]Expr, aliased bool) (*Submodule, error) {
	if err := m.claim(instance, "instance"); err != nil {
		return nil, err
	}
	inst := &Submodule{Instance: instance, Module: sub, aliased: aliased}
	used := make(map[string]bool, len(ports))
	var missing []string
	for _, in := range sub.inputs {
		e, ok := ports[in.name]
		if !ok {
			missing = append(missing, in.name)
			continue
		}
		used[in.name] = true
		if e.Width() != in.width {
			return nil, &WidthError{Module: m.name, Signal: instance + "." + in.name, Op: "port connection", Expected: in.width, Actual: e.Width()}
		}
		inst.Inputs = append(inst.Inputs, PortBinding{Port: in.name, Expr: e})
	}
	if len(missing) > 0 {
		return nil, &SubmoduleError{Module: m.name, Instance: instance, Submodule: sub.name, Reason: "missing inputs: " + strings.Join(missing, ", ")}
	}
	for _, io := range sub.inouts {
		e, ok := ports[io.name]
		if !ok {
			inst.bidirs = append(inst.bidirs, io)
			continue
		}
		used[io.name] = true
		if e.Width() != io.width {
			return nil, &WidthError{Module: m.name, Signal: instance + "." + io.name, Op: "port connection", Expected: io.width, Actual: e.Width()}
		}
		if !IsRef(e) {
			return nil, &SubmoduleError{Module: m.name, Instance: instance, Submodule: sub.name, Reason: fmt.Sprintf("inout %q must bind to a signal reference", io.name)}
		}
		inst.Inouts = append(inst.Inouts, PortBinding{Port: io.name, Expr: e})
	}
	var extra []string
	for name := range ports {
		if !used[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, &SubmoduleError{Module: m.name, Instance: instance, Submodule: sub.name, Reason: "unknown ports: " + strings.Join(extra, ", ")}
	}
	inst.outputs = append([]*Signal(nil), sub.outputs...)
	m.submodules = append(m.submodules, inst)
	return inst, nil
}
