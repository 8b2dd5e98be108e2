package verilog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/robert-at-pretension-io/hdlgen/internal/hdl"
)

// Top is anything that can be compiled: a module or a simulation.
type Top interface {
	Root() *hdl.Module
}

// Generator lowers module graphs to Verilog. A Generator holds no state
// between calls, but Build describes each module in place and writes Trace
// unsynchronized, so concurrent compiles need disjoint module graphs and their
// own Generator.
type Generator struct {
	// Trace receives one line per module phase when non-nil.
	Trace io.Writer
}

// New returns a Generator.
func New() *Generator {
	return &Generator{}
}

// Generate compiles top and returns the Verilog text.
func (g *Generator) Generate(top Top) (string, error) {
	res, err := g.Build(top)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Build compiles top and returns the text together with a per-module report.
// Nothing is returned when any module fails.
func (g *Generator) Build(top Top) (*Result, error) {
	root := top.Root()
	if root == nil {
		return nil, fmt.Errorf("nothing to compile")
	}
	r := &run{
		g:         g,
		generated: mapset.NewThreadUnsafeSet(),
		texts:     make(map[string]string),
	}
	return r.compile(root)
}

// run is the state of one compile.
type run struct {
	g         *Generator
	generated mapset.Set
	texts     map[string]string
}

func (r *run) trace(module, format string, args ...interface{}) {
	if r.g.Trace == nil {
		return
	}
	fmt.Fprintf(r.g.Trace, "[%s] %s\n", module, fmt.Sprintf(format, args...))
}

func (r *run) compile(root *hdl.Module) (*Result, error) {
	res := &Result{Top: root.Name()}
	var bodies []string
	queue := []*hdl.Module{root}
	r.generated.Add(root)
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]

		start := time.Now()
		text, report, children, err := r.module(m)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", m.Name(), err)
		}
		r.trace(m.Name(), "rendered in %s", time.Since(start))

		if prev, ok := r.texts[m.Name()]; ok {
			if prev != text {
				return nil, &hdl.SubmoduleError{
					Module:    m.Name(),
					Submodule: m.Name(),
					Reason:    "two different modules share this name",
				}
			}
		} else {
			r.texts[m.Name()] = text
			report.Text = text
			bodies = append(bodies, text)
			res.Modules = append(res.Modules, report)
		}
		for _, c := range children {
			if r.generated.Contains(c) {
				continue
			}
			r.generated.Add(c)
			queue = append(queue, c)
		}
	}

	if sim := root.Simulation(); sim != nil {
		res.Timescale = sim.Timescale()
	}
	var b strings.Builder
	b.WriteString(res.Header())
	for _, body := range bodies {
		b.WriteString("\n")
		b.WriteString(body)
	}
	res.Text = b.String()
	return res, nil
}

func shortHash(n int, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "/")))
	return hex.EncodeToString(sum[:])[:n]
}

func declRange(width uint) string {
	if width == 1 {
		return ""
	}
	return fmt.Sprintf("[%d:0] ", width-1)
}

// moduleState carries everything rendered for one module.
type moduleState struct {
	m       *hdl.Module
	ev      *Evaluator
	slices  *SliceRewrites
	drivers *DriverMap
	// outputs are the wires carrying instance outputs, in instance order.
	outputs []*hdl.Signal
	// nets are internals driven by an instance port; they are declared wire.
	nets   mapset.Set
	report *ModuleReport
}

func (r *run) module(m *hdl.Module) (string, *ModuleReport, []*hdl.Module, error) {
	r.trace(m.Name(), "describe")
	if err := m.Describe(); err != nil {
		return "", nil, nil, err
	}
	st := &moduleState{
		m:       m,
		drivers: NewDriverMap(m.Name()),
		nets:    mapset.NewThreadUnsafeSet(),
		report:  &ModuleReport{Name: m.Name(), Simulation: m.IsSimulation()},
	}
	outputs := r.outputMap(st)
	st.ev = NewEvaluator(m, outputs, nil)

	r.trace(m.Name(), "slice transform")
	slices, err := TransformSlices(m, st.ev.Resolve)
	if err != nil {
		return "", nil, nil, err
	}
	st.slices = slices
	st.ev.slices = slices

	instances, err := r.instances(st)
	if err != nil {
		return "", nil, nil, err
	}
	processes, err := r.processes(st)
	if err != nil {
		return "", nil, nil, err
	}
	if !m.IsSimulation() {
		if err := r.checkDrivers(st); err != nil {
			return "", nil, nil, err
		}
	}
	assigns, err := r.hoisted(st)
	if err != nil {
		return "", nil, nil, err
	}

	var b strings.Builder
	r.header(&b, st)
	sections := []string{r.declarations(st), assigns, instances, processes}
	first := true
	for _, s := range sections {
		if s == "" {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		b.WriteString(s)
	}
	b.WriteString("endmodule\n")

	for _, d := range st.drivers.Drivers() {
		st.report.Drivers = append(st.report.Drivers, DriverReport{Target: d.Target, Mode: d.Mode.String(), Index: d.Index})
	}

	var children []*hdl.Module
	for _, sub := range m.Submodules() {
		children = append(children, sub.Module)
	}
	return b.String(), st.report, children, nil
}

// outputMap names the wire that carries every instance output (and unbound
// instance inout) inside the parent. Names depend only on content.
func (r *run) outputMap(st *moduleState) map[*hdl.Signal]string {
	m := st.m
	out := make(map[*hdl.Signal]string)
	used := mapset.NewThreadUnsafeSet()
	name := func(instance, module, port string) string {
		for n := 6; ; n += 2 {
			candidate := fmt.Sprintf("%s_%s_%s", instance, port, shortHash(n, m.Name(), instance, module, port))
			if !used.Contains(candidate) && !m.Has(candidate) {
				used.Add(candidate)
				return candidate
			}
		}
	}
	for _, sub := range m.Submodules() {
		ports := append(append([]*hdl.Signal(nil), sub.Outputs()...), sub.UnboundInouts()...)
		for _, sig := range ports {
			if sub.Aliased() {
				out[sig] = sig.Name()
				continue
			}
			wire := hdl.NewGeneratedWire(m, name(sub.Instance, sub.Module.Name(), sig.Name()), sig.Width())
			out[sig] = wire.Name()
			st.outputs = append(st.outputs, wire)
		}
	}
	for _, v := range m.Vendors() {
		for _, sig := range v.Outputs() {
			wire := hdl.NewGeneratedWire(m, name(v.Instance, v.Core.Name, sig.Name()), sig.Width())
			out[sig] = wire.Name()
			st.outputs = append(st.outputs, wire)
		}
	}
	return out
}

func (r *run) header(b *strings.Builder, st *moduleState) {
	m := st.m
	for _, p := range m.Ports() {
		st.report.Ports = append(st.report.Ports, PortReport{Name: p.Name(), Direction: p.Direction().String(), Width: p.Width()})
	}
	if m.IsSimulation() || len(m.Ports()) == 0 {
		fmt.Fprintf(b, "module %s;\n", m.Name())
		return
	}
	fmt.Fprintf(b, "module %s (\n", m.Name())
	ports := m.Ports()
	for i, p := range ports {
		kind := "wire"
		if p.Direction() == hdl.Output {
			kind = "reg"
		}
		sep := ","
		if i == len(ports)-1 {
			sep = ""
		}
		fmt.Fprintf(b, "    %s %s %s%s%s\n", p.Direction(), kind, declRange(p.Width()), p.Name(), sep)
	}
	b.WriteString(");\n")
}

func (r *run) declarations(st *moduleState) string {
	m := st.m
	var b strings.Builder
	if sim := m.Simulation(); sim != nil {
		for _, p := range sim.Proxies() {
			fmt.Fprintf(&b, "    reg %s%s;\n", declRange(p.Width()), p.Name())
		}
		for _, ro := range sim.ReadOnlys() {
			fmt.Fprintf(&b, "    wire %s%s;\n", declRange(ro.Width()), ro.Name())
		}
	}
	for _, s := range m.Internals() {
		kind := "reg"
		if st.nets.Contains(s.Name()) {
			kind = "wire"
		}
		st.report.Internals = append(st.report.Internals, SignalReport{Name: s.Name(), Width: s.Width(), Kind: kind})
		fmt.Fprintf(&b, "    %s %s%s;\n", kind, declRange(s.Width()), s.Name())
	}
	for _, mem := range m.Memories() {
		st.report.Memories = append(st.report.Memories, MemoryReport{Name: mem.Name(), Width: mem.Width(), Depth: mem.Depth()})
		fmt.Fprintf(&b, "    reg %s%s [0:%d];\n", declRange(mem.Width()), mem.Name(), mem.Depth()-1)
	}
	for _, w := range st.slices.Wires() {
		fmt.Fprintf(&b, "    wire %s%s;\n", declRange(w.Wire.Width()), w.Wire.Name())
	}
	for _, w := range st.outputs {
		fmt.Fprintf(&b, "    wire %s%s;\n", declRange(w.Width()), w.Name())
	}
	return b.String()
}

func (r *run) hoisted(st *moduleState) (string, error) {
	var b strings.Builder
	for _, w := range st.slices.Wires() {
		text, err := st.ev.Eval(w.Root)
		if err != nil {
			return "", err
		}
		st.report.Hoisted = append(st.report.Hoisted, HoistedReport{Name: w.Wire.Name(), Width: w.Wire.Width(), Expr: text})
		fmt.Fprintf(&b, "    assign %s = %s;\n", w.Wire.Name(), text)
	}
	return b.String(), nil
}

func (r *run) instances(st *moduleState) (string, error) {
	m := st.m
	var b strings.Builder
	for _, sub := range m.Submodules() {
		rep := InstanceReport{Name: sub.Instance, Module: sub.Module.Name()}
		var conns []string
		for _, in := range sub.Inputs {
			text, err := st.ev.Eval(in.Expr)
			if err != nil {
				return "", err
			}
			conns = append(conns, fmt.Sprintf(".%s(%s)", in.Port, text))
			rep.Connections = append(rep.Connections, ConnectionReport{Port: in.Port, Direction: "input", Net: text})
		}
		for _, out := range sub.Outputs() {
			text, err := st.ev.Resolve(out)
			if err != nil {
				return "", err
			}
			conns = append(conns, fmt.Sprintf(".%s(%s)", out.Name(), text))
			rep.Connections = append(rep.Connections, ConnectionReport{Port: out.Name(), Direction: "output", Net: text})
		}
		for _, pb := range sub.Inouts {
			text, err := r.bindInout(st, pb)
			if err != nil {
				return "", err
			}
			conns = append(conns, fmt.Sprintf(".%s(%s)", pb.Port, text))
			rep.Connections = append(rep.Connections, ConnectionReport{Port: pb.Port, Direction: "inout", Net: text})
		}
		for _, sig := range sub.UnboundInouts() {
			text, err := st.ev.Resolve(sig)
			if err != nil {
				return "", err
			}
			conns = append(conns, fmt.Sprintf(".%s(%s)", sig.Name(), text))
			rep.Connections = append(rep.Connections, ConnectionReport{Port: sig.Name(), Direction: "inout", Net: text})
		}
		st.report.Instances = append(st.report.Instances, rep)
		writeInstance(&b, sub.Module.Name(), "", sub.Instance, conns)
	}
	for _, v := range m.Vendors() {
		rep := InstanceReport{Name: v.Instance, Module: v.Core.Name, Vendor: true}
		var params []string
		for _, p := range v.Core.Params {
			value := quote(p.Value.Str)
			if !p.Value.IsString() {
				value = p.Value.Const.String()
			}
			params = append(params, fmt.Sprintf(".%s(%s)", p.Name, value))
		}
		var conns []string
		for _, in := range v.Inputs {
			text, err := st.ev.Eval(in.Expr)
			if err != nil {
				return "", err
			}
			conns = append(conns, fmt.Sprintf(".%s(%s)", in.Port, text))
			rep.Connections = append(rep.Connections, ConnectionReport{Port: in.Port, Direction: "input", Net: text})
		}
		for _, out := range v.Outputs() {
			text, err := st.ev.Resolve(out)
			if err != nil {
				return "", err
			}
			conns = append(conns, fmt.Sprintf(".%s(%s)", out.Name(), text))
			rep.Connections = append(rep.Connections, ConnectionReport{Port: out.Name(), Direction: "output", Net: text})
		}
		for _, pb := range v.Inouts {
			text, err := r.bindInout(st, pb)
			if err != nil {
				return "", err
			}
			conns = append(conns, fmt.Sprintf(".%s(%s)", pb.Port, text))
			rep.Connections = append(rep.Connections, ConnectionReport{Port: pb.Port, Direction: "inout", Net: text})
		}
		st.report.Instances = append(st.report.Instances, rep)
		paramText := ""
		if len(params) > 0 {
			paramText = " #(\n        " + strings.Join(params, ",\n        ") + "\n    )"
		}
		writeInstance(&b, v.Core.Name, paramText, v.Instance, conns)
	}
	return b.String(), nil
}

func writeInstance(b *strings.Builder, module, params, instance string, conns []string) {
	fmt.Fprintf(b, "    %s%s %s (\n", module, params, instance)
	for i, c := range conns {
		sep := ","
		if i == len(conns)-1 {
			sep = ""
		}
		fmt.Fprintf(b, "        %s%s\n", c, sep)
	}
	b.WriteString("    );\n")
}

// bindInout renders a parent reference bound to an instance inout and marks
// it as driven by the instance.
func (r *run) bindInout(st *moduleState, pb hdl.PortBinding) (string, error) {
	text, err := st.ev.Eval(pb.Expr)
	if err != nil {
		return "", err
	}
	if sig, ok := pb.Expr.(*hdl.Signal); ok && sig.Module() == st.m {
		if sig.Direction() == hdl.Output || sig.Direction() == hdl.Input {
			return "", &hdl.SubmoduleError{
				Module: st.m.Name(),
				Reason: fmt.Sprintf("%s %q cannot connect to an inout port", sig.Direction(), sig.Name()),
			}
		}
		if sig.Direction() == hdl.Internal {
			st.nets.Add(sig.Name())
		}
		st.drivers.Drive(sig.Name(), 0)
	}
	return text, nil
}

func (r *run) processes(st *moduleState) (string, error) {
	m := st.m
	var b strings.Builder
	index := 0
	for _, p := range m.SyncProcesses() {
		index++
		clock, err := st.ev.Eval(p.Clock)
		if err != nil {
			return "", err
		}
		st.report.Processes = append(st.report.Processes, ProcessReport{Index: index, Mode: Synchronous.String(), Edge: p.Edge.String(), Clock: clock})
		fmt.Fprintf(&b, "    always @(%s %s) begin\n", p.Edge, clock)
		pe := NewProcessEvaluator(st.ev, st.drivers, Synchronous, index, 2)
		if err := pe.Block(p.Body); err != nil {
			return "", err
		}
		b.WriteString(pe.String())
		b.WriteString("    end\n")
	}
	for _, body := range m.CombProcesses() {
		index++
		st.report.Processes = append(st.report.Processes, ProcessReport{Index: index, Mode: Combinational.String()})
		b.WriteString("    always @(*) begin\n")
		pe := NewProcessEvaluator(st.ev, st.drivers, Combinational, index, 2)
		if err := pe.Block(body); err != nil {
			return "", err
		}
		b.WriteString(pe.String())
		b.WriteString("    end\n")
	}
	if sim := m.Simulation(); sim != nil {
		for _, c := range sim.Clocks() {
			name := c.Proxy.Name()
			fmt.Fprintf(&b, "    always #%d %s = ~%s;\n", c.Half, name, name)
		}
		index++
		st.report.Processes = append(st.report.Processes, ProcessReport{Index: index, Mode: Test.String()})
		b.WriteString("    initial begin\n")
		pe := NewProcessEvaluator(st.ev, nil, Test, index, 2)
		for _, c := range sim.Clocks() {
			zero := hdl.Must(hdl.Const(0, 1))
			if err := pe.Statement(&hdl.Assignment{LHS: c.Proxy, RHS: zero}); err != nil {
				return "", err
			}
		}
		if err := pe.Block(sim.Initial()); err != nil {
			return "", err
		}
		if err := pe.Statement(&hdl.Finish{}); err != nil {
			return "", err
		}
		b.WriteString(pe.String())
		b.WriteString("    end\n")
	}
	return b.String(), nil
}

func (r *run) checkDrivers(st *moduleState) error {
	m := st.m
	if len(m.Outputs()) == 0 && len(m.Inouts()) == 0 {
		return &hdl.MissingPortError{Module: m.Name()}
	}
	for _, list := range [][]*hdl.Signal{m.Outputs(), m.Inouts()} {
		for _, s := range list {
			if !st.drivers.Driven(s.Name()) {
				return &hdl.UndrivenSignalError{Module: m.Name(), Signal: s.Name(), Direction: s.Direction().String()}
			}
		}
	}
	return nil
}
