package hdl

import (
	"fmt"
	"strings"
)

// DUTInstance is the instance name of the module under test in a testbench.
const DUTInstance = "dut"

// Clock toggles a proxy every Half time units.
type Clock struct {
	Proxy *Proxy
	Half  uint
}

// Check is one assertion of a test case.
type Check struct {
	Cond   Expr
	Reason string
}

// TestCase runs Stimulus and then evaluates every check.
type TestCase struct {
	ID          string
	Description string
	Stimulus    Block
	Checks      []Check
}

// TestSuite groups test cases under one header.
type TestSuite struct {
	ID          string
	Description string
	Tests       []TestCase
}

// Simulation is a testbench around a module under test. The testbench can
// only reach the MUT through proxies (for inputs) and read-only aliases (for
// outputs and inouts).
type Simulation struct {
	module   *Module
	mut      *Module
	describe func(*Simulation) error

	timescale string
	proxies   []*Proxy
	readOnly  []*ReadOnly
	clocks    []Clock
	initial   Block

	suiteFailed *Signal
	testFailed  *Signal
}

// NewSimulation returns a testbench named name for mut.
func NewSimulation(name string, mut *Module, describe func(*Simulation) error) *Simulation {
	s := &Simulation{mut: mut, describe: describe}
	s.module = NewModule(name, func(*Module) error { return s.build() })
	s.module.sim = s
	return s
}

// Root is the module the generator renders.
func (s *Simulation) Root() *Module { return s.module }

// Module is the testbench module.
func (s *Simulation) Module() *Module { return s.module }

// MUT is the module under test.
func (s *Simulation) MUT() *Module { return s.mut }

func (s *Simulation) Timescale() string     { return s.timescale }
func (s *Simulation) Proxies() []*Proxy      { return s.proxies }
func (s *Simulation) ReadOnlys() []*ReadOnly { return s.readOnly }
func (s *Simulation) Clocks() []Clock        { return s.clocks }

// Initial is the testbench's initial block, without the trailing $finish.
func (s *Simulation) Initial() Block { return s.initial }

func (s *Simulation) build() error {
	s.timescale = ""
	s.proxies = nil
	s.readOnly = nil
	s.clocks = nil
	s.initial = nil
	s.suiteFailed = nil
	s.testFailed = nil

	if s.mut == nil {
		return &SimulationModuleError{Module: s.module.name, Reason: "no module under test"}
	}
	if s.mut.sim != nil {
		return &SimulationModuleError{Module: s.module.name, Signal: s.mut.name, Reason: "module under test is itself a simulation"}
	}
	if err := s.mut.Describe(); err != nil {
		return fmt.Errorf("module under test %s: %w", s.mut.name, err)
	}
	ports := make(map[string]Expr, len(s.mut.inputs))
	for _, in := range s.mut.inputs {
		if err := s.module.claim(in.name, "proxy"); err != nil {
			return err
		}
		p := &Proxy{target: in, sim: s.module}
		s.proxies = append(s.proxies, p)
		ports[in.name] = p
	}
	for _, list := range [][]*Signal{s.mut.outputs, s.mut.inouts} {
		for _, out := range list {
			if err := s.module.claim(out.name, "read-only alias"); err != nil {
				return err
			}
			s.readOnly = append(s.readOnly, &ReadOnly{target: out, sim: s.module})
		}
	}
	if _, err := s.module.instantiate(DUTInstance, s.mut, ports, true); err != nil {
		return err
	}
	if s.describe == nil {
		return nil
	}
	return s.describe(s)
}

// Proxy returns the writable alias of the MUT input called name.
func (s *Simulation) Proxy(name string) (*Proxy, error) {
	for _, p := range s.proxies {
		if p.target.name == name {
			return p, nil
		}
	}
	return nil, &SimulationModuleError{Module: s.module.name, Signal: name, Reason: "module under test has no input of that name"}
}

// ReadOnly returns the readable alias of the MUT output or inout called name.
func (s *Simulation) ReadOnly(name string) (*ReadOnly, error) {
	for _, r := range s.readOnly {
		if r.target.name == name {
			return r, nil
		}
	}
	return nil, &SimulationModuleError{Module: s.module.name, Signal: name, Reason: "module under test has no output of that name"}
}

// Internal declares a testbench-owned register.
func (s *Simulation) Internal(name string, width uint) (*Signal, error) {
	return s.module.Internal(name, width)
}

// SetTimescale sets the `timescale directive, e.g. "1ns/1ps".
func (s *Simulation) SetTimescale(ts string) {
	s.timescale = ts
}

// Clock generates a free-running clock on the one-bit proxy called name.
func (s *Simulation) Clock(name string, half uint) error {
	p, err := s.Proxy(name)
	if err != nil {
		return err
	}
	if p.Width() != 1 {
		return &WidthError{Module: s.module.name, Signal: name, Op: "clock", Expected: 1, Actual: p.Width()}
	}
	if half == 0 {
		return &SimulationModuleError{Module: s.module.name, Signal: name, Reason: "clock half period must be positive"}
	}
	s.clocks = append(s.clocks, Clock{Proxy: p, Half: half})
	return nil
}

// Stimulus appends statements to the initial block.
func (s *Simulation) Stimulus(stmts ...Statement) error {
	if err := s.check(stmts); err != nil {
		return err
	}
	s.initial = append(s.initial, stmts...)
	return nil
}

// check rejects statements that write anything but proxies or testbench
// signals, or read raw signals of another module.
func (s *Simulation) check(b Block) error {
	var err error
	WalkBlock(b, func(st Statement) {
		if err != nil {
			return
		}
		for _, e := range Exprs(st) {
			if err = s.checkExpr(e); err != nil {
				return
			}
		}
	})
	return err
}

func (s *Simulation) checkExpr(e Expr) error {
	var err error
	Walk(e, func(n Expr) bool {
		if err != nil {
			return false
		}
		switch r := n.(type) {
		case *Signal:
			if r.module != s.module {
				err = &SimulationModuleError{
					Module: s.module.name,
					Signal: r.String(),
					Reason: "testbench must use the proxy or read-only alias instead of the module's own signal",
				}
			}
		case *Proxy:
			if r.sim != s.module {
				err = &SimulationModuleError{Module: s.module.name, Signal: r.Name(), Reason: "proxy belongs to another simulation"}
			}
		case *ReadOnly:
			if r.sim != s.module {
				err = &SimulationModuleError{Module: s.module.name, Signal: r.Name(), Reason: "read-only alias belongs to another simulation"}
			}
		case *MemoryElement:
			if r.Memory.module != s.module {
				err = &SimulationModuleError{Module: s.module.name, Signal: r.Memory.name, Reason: "memory belongs to another module"}
			}
		}
		return err == nil
	})
	return err
}

// AddSuite appends a test suite to the initial block. Progress is reported
// with $display lines:
//
//	Suite <id>
//	--start header--
//	<description>
//	<testId>:<description>   (one per test)
//	--end header--
//	Begin <testId>
//	End <testId>             (test passed) or Failed <testId> + reason line
//	End Suite <id>           (every test passed)
func (s *Simulation) AddSuite(suite TestSuite) error {
	for _, tc := range suite.Tests {
		if err := s.check(tc.Stimulus); err != nil {
			return err
		}
		for _, c := range tc.Checks {
			if err := s.checkExpr(c.Cond); err != nil {
				return err
			}
		}
	}
	if s.suiteFailed == nil {
		var err error
		if s.suiteFailed, err = s.module.Internal("suite_failed", 1); err != nil {
			return err
		}
		if s.testFailed, err = s.module.Internal("test_failed", 1); err != nil {
			return err
		}
	}
	one, _ := Const(1, 1)
	zero, _ := Const(0, 1)

	var out Block
	say := func(line string) {
		out = append(out, &Display{Format: escapeFormat(line)})
	}
	set := func(sig *Signal, v *Constant) Statement {
		return &Assignment{LHS: sig, RHS: v}
	}

	say("Suite " + suite.ID)
	say("--start header--")
	say(suite.Description)
	for _, tc := range suite.Tests {
		say(tc.ID + ":" + tc.Description)
	}
	say("--end header--")
	out = append(out, set(s.suiteFailed, zero))
	for _, tc := range suite.Tests {
		say("Begin " + tc.ID)
		out = append(out, set(s.testFailed, zero))
		out = append(out, tc.Stimulus...)
		for _, c := range tc.Checks {
			report := NewIf(Not(s.testFailed),
				&Display{Format: escapeFormat("Failed " + tc.ID)},
				&Display{Format: escapeFormat(c.Reason)},
			)
			out = append(out, NewIf(Not(c.Cond), report, set(s.testFailed, one), set(s.suiteFailed, one)))
		}
		out = append(out, NewIf(Not(s.testFailed), &Display{Format: escapeFormat("End " + tc.ID)}))
	}
	out = append(out, NewIf(Not(s.suiteFailed), &Display{Format: escapeFormat("End Suite " + suite.ID)}))
	s.initial = append(s.initial, out...)
	return nil
}

var formatEscaper = strings.NewReplacer("\r", " ", "\n", " ", "%", "%%")

func escapeFormat(line string) string {
	return formatEscaper.Replace(line)
}
