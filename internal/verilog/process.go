package verilog

import (
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/hdlgen/internal/hdl"
)

// Mode selects assignment syntax and driver bookkeeping for a process.
type Mode int

const (
	// Synchronous processes use non-blocking assignments.
	Synchronous Mode = iota
	// Combinational processes use blocking assignments.
	Combinational
	// Test is the testbench initial block; it does not drive anything.
	Test
)

func (m Mode) String() string {
	switch m {
	case Synchronous:
		return "sync"
	case Combinational:
		return "comb"
	}
	return "test"
}

func (m Mode) operator() string {
	if m == Synchronous {
		return "<="
	}
	return "="
}

// Driver is the first process that wrote a target.
type Driver struct {
	Target string
	Mode   Mode
	Index  int
}

// DriverMap tracks which process drives each signal of one module.
type DriverMap struct {
	module  string
	entries map[string]Driver
	order   []string
}

// NewDriverMap returns an empty map for the named module.
func NewDriverMap(module string) *DriverMap {
	return &DriverMap{module: module, entries: make(map[string]Driver)}
}

// Record notes that process index (in mode) writes target. A target already
// written by another process is a conflict; so is any procedural write to an
// inout port.
//
// This is stricter than rejecting sync/comb mixes: two sync processes, or two
// comb processes, writing the same target also conflict.
func (d *DriverMap) Record(target string, inout bool, mode Mode, index int) error {
	if mode == Test {
		return nil
	}
	if inout {
		return &hdl.BidirectionalSignalError{Module: d.module, Signal: target, Mode: mode.String()}
	}
	if prev, ok := d.entries[target]; ok {
		if prev.Index != index {
			return &hdl.MultiDriverConflictError{
				Module:       d.module,
				Signal:       target,
				FirstMode:    prev.Mode.String(),
				FirstDriver:  prev.Index,
				SecondMode:   mode.String(),
				SecondDriver: index,
			}
		}
		return nil
	}
	d.entries[target] = Driver{Target: target, Mode: mode, Index: index}
	d.order = append(d.order, target)
	return nil
}

// Drive marks target as driven by something other than a process, such as an
// instance port.
func (d *DriverMap) Drive(target string, index int) {
	if _, ok := d.entries[target]; ok {
		return
	}
	d.entries[target] = Driver{Target: target, Mode: Combinational, Index: index}
	d.order = append(d.order, target)
}

// Driven reports whether target has a driver.
func (d *DriverMap) Driven(target string) bool {
	_, ok := d.entries[target]
	return ok
}

// Lookup returns the driver of target.
func (d *DriverMap) Lookup(target string) (Driver, bool) {
	drv, ok := d.entries[target]
	return drv, ok
}

// Drivers lists entries in the order targets were first driven.
func (d *DriverMap) Drivers() []Driver {
	out := make([]Driver, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.entries[name])
	}
	return out
}

// ProcessEvaluator renders statement blocks.
type ProcessEvaluator struct {
	ev      *Evaluator
	drivers *DriverMap
	mode    Mode
	index   int
	indent  int
	b       strings.Builder
}

// NewProcessEvaluator renders blocks at the given indent level. drivers may be
// nil in Test mode.
func NewProcessEvaluator(ev *Evaluator, drivers *DriverMap, mode Mode, index, indent int) *ProcessEvaluator {
	return &ProcessEvaluator{ev: ev, drivers: drivers, mode: mode, index: index, indent: indent}
}

func (p *ProcessEvaluator) push() { p.indent++ }
func (p *ProcessEvaluator) pop()  { p.indent-- }

func (p *ProcessEvaluator) line(format string, args ...interface{}) {
	p.b.WriteString(strings.Repeat("    ", p.indent))
	fmt.Fprintf(&p.b, format, args...)
	p.b.WriteByte('\n')
}

// String returns everything rendered so far.
func (p *ProcessEvaluator) String() string { return p.b.String() }

// Block renders each statement of b.
func (p *ProcessEvaluator) Block(b hdl.Block) error {
	for _, st := range b {
		if err := p.Statement(st); err != nil {
			return err
		}
	}
	return nil
}

// Statement renders one statement.
func (p *ProcessEvaluator) Statement(st hdl.Statement) error {
	switch s := st.(type) {
	case *hdl.Assignment:
		return p.assignment(s)
	case *hdl.If:
		return p.ifChain(s)
	case *hdl.Switch:
		return p.switchCase(s)
	case *hdl.AdvanceTime:
		if p.mode == Test {
			p.line("#%d;", s.Amount)
		}
		return nil
	case *hdl.Display:
		if p.mode != Test {
			return nil
		}
		args := []string{quote(s.Format)}
		for _, a := range s.Args {
			text, err := p.ev.Eval(a)
			if err != nil {
				return err
			}
			args = append(args, text)
		}
		p.line("$display(%s);", strings.Join(args, ", "))
		return nil
	case *hdl.Finish:
		if p.mode == Test {
			p.line("$finish;")
		}
		return nil
	}
	return fmt.Errorf("unsupported statement %T", st)
}

func (p *ProcessEvaluator) assignment(a *hdl.Assignment) error {
	lhs, err := p.ev.Target(a.LHS)
	if err != nil {
		return err
	}
	for _, t := range targets(a.LHS) {
		if err := p.drivers.Record(t.name, t.inout, p.mode, p.index); err != nil {
			return err
		}
	}
	rhs, err := p.ev.Eval(a.RHS)
	if err != nil {
		return err
	}
	p.line("%s %s %s;", lhs, p.mode.operator(), rhs)
	return nil
}

func (p *ProcessEvaluator) ifChain(s *hdl.If) error {
	cond, err := p.ev.Condition(s.Cond)
	if err != nil {
		return err
	}
	p.line("if %s begin", cond)
	if err := p.body(s.Body); err != nil {
		return err
	}
	for _, br := range s.ElseIfs {
		cond, err := p.ev.Condition(br.Cond)
		if err != nil {
			return err
		}
		p.line("end else if %s begin", cond)
		if err := p.body(br.Body); err != nil {
			return err
		}
	}
	if s.ElseBody != nil {
		p.line("end else begin")
		if err := p.body(s.ElseBody); err != nil {
			return err
		}
	}
	p.line("end")
	return nil
}

func (p *ProcessEvaluator) switchCase(s *hdl.Switch) error {
	subject, err := p.ev.Condition(s.Subject)
	if err != nil {
		return err
	}
	p.line("case %s", subject)
	p.push()
	for _, c := range s.Cases {
		p.line("%s: begin", c.Value)
		if err := p.body(c.Body); err != nil {
			return err
		}
		p.line("end")
	}
	if s.Default != nil {
		p.line("default: begin")
		if err := p.body(s.Default); err != nil {
			return err
		}
		p.line("end")
	}
	p.pop()
	p.line("endcase")
	return nil
}

func (p *ProcessEvaluator) body(b hdl.Block) error {
	p.push()
	defer p.pop()
	return p.Block(b)
}

type target struct {
	name  string
	inout bool
}

// targets lists the signals and memories an assignment writes.
func targets(lhs hdl.Expr) []target {
	switch n := lhs.(type) {
	case *hdl.Signal:
		return []target{{name: n.Name(), inout: n.Direction() == hdl.Inout}}
	case *hdl.Proxy:
		return []target{{name: n.Name()}}
	case *hdl.Slice:
		return targets(n.Root)
	case *hdl.Concat:
		var out []target
		for _, op := range n.Operands {
			out = append(out, targets(op)...)
		}
		return out
	case *hdl.MemoryElement:
		return []target{{name: n.Memory.Name()}}
	}
	return nil
}
