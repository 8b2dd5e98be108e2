package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-at-pretension-io/hdlgen/internal/config"
	"github.com/robert-at-pretension-io/hdlgen/internal/designs"
	"github.com/robert-at-pretension-io/hdlgen/internal/facts"
	"github.com/robert-at-pretension-io/hdlgen/internal/policy"
	"github.com/robert-at-pretension-io/hdlgen/internal/verilog"
)

func ruleTables() facts.Tables {
	return facts.Tables{
		Designs: []facts.DesignRow{{Name: "d", Top: "BadTop"}},
		Modules: []facts.ModuleRow{
			{Design: "d", Name: "BadTop", Level: 0},
			{Design: "d", Name: "tb", IsSimulation: true, Level: 0},
		},
		Ports: []facts.PortRow{
			{Design: "d", Module: "BadTop", Name: "CLK", Direction: "input", Width: 1},
			{Design: "d", Module: "BadTop", Name: "clk_b", Direction: "input", Width: 1},
			{Design: "d", Module: "BadTop", Name: "bus", Direction: "output", Width: 128},
		},
		Signals: []facts.SignalRow{
			{Design: "d", Module: "BadTop", Name: "tmp", Width: 4, Kind: "reg"},
			{Design: "d", Module: "BadTop", Name: "used", Width: 4, Kind: "reg"},
			{Design: "d", Module: "tb", Name: "failed", Width: 1, Kind: "reg"},
		},
		Memories: []facts.MemoryRow{},
		Processes: []facts.ProcessRow{
			{Design: "d", Module: "BadTop", Index: 1, Mode: "sync", Edge: "posedge", Clock: "CLK"},
			{Design: "d", Module: "BadTop", Index: 2, Mode: "sync", Edge: "posedge", Clock: "clk_b"},
		},
		Instances:   []facts.InstanceRow{},
		Connections: []facts.ConnectionRow{},
		Drivers: []facts.DriverRow{
			{Design: "d", Module: "BadTop", Target: "used", Mode: "sync", Process: 1},
			{Design: "d", Module: "BadTop", Target: "bus", Mode: "sync", Process: 2},
		},
		GeneratedWires: []facts.GeneratedWireRow{
			{Design: "d", Module: "BadTop", Name: "sliced_0123abcd", Width: 8, Expr: "(a & b)"},
		},
	}
}

func rulesOf(result *policy.Result) map[string]int {
	rules := map[string]int{}
	for _, v := range result.Violations {
		rules[v.Rule]++
	}
	return rules
}

func TestBuiltinRules(t *testing.T) {
	engine, err := policy.New("")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Evaluate(ruleTables())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	want := map[string]int{
		"module_naming":     1,
		"port_naming":       1,
		"undriven_internal": 1,
		"multiple_clocks":   1,
		"wide_port":         1,
		"hoisted_slice":     1,
	}
	got := rulesOf(result)
	for rule, n := range want {
		if got[rule] != n {
			t.Errorf("rule %s: expected %d violations, got %d (all: %v)", rule, n, got[rule], got)
		}
	}
	if got["deep_hierarchy"] != 0 {
		t.Errorf("unexpected deep_hierarchy violation")
	}

	for _, v := range result.Violations {
		if v.Rule == "undriven_internal" && v.Message != `internal signal "tmp" is never assigned` {
			t.Errorf("unexpected undriven message %q", v.Message)
		}
		if v.Module == "tb" {
			t.Errorf("simulation module should not be checked: %+v", v)
		}
	}

	if result.Summary.TotalViolations != len(result.Violations) {
		t.Fatalf("summary total %d != %d violations", result.Summary.TotalViolations, len(result.Violations))
	}
	if result.Summary.Warnings != 4 || result.Summary.Info != 2 || result.Summary.Errors != 0 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
}

func TestApplyConfigOverridesSeverity(t *testing.T) {
	engine, err := policy.New("")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	result, err := engine.Evaluate(ruleTables())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Policy.Rules = map[string]string{
		"hoisted_slice": "off",
		"port_naming":   "error",
	}
	configured := policy.ApplyConfig(result, cfg)

	got := rulesOf(configured)
	if got["hoisted_slice"] != 0 {
		t.Fatalf("expected hoisted_slice disabled, got %v", got)
	}
	for _, v := range configured.Violations {
		if v.Rule == "port_naming" && v.Severity != "error" {
			t.Fatalf("expected port_naming as error, got %s", v.Severity)
		}
	}
	if configured.Summary.Errors != 1 || configured.Summary.Info != 1 {
		t.Fatalf("unexpected summary %+v", configured.Summary)
	}
}

func TestCustomPolicyDir(t *testing.T) {
	dir := t.TempDir()
	rule := `package hdlgen.rules

import rego.v1

custom contains v if {
	some m in input.modules
	m.level == 0
	not m.is_simulation
	v := {
		"rule": "top_marker",
		"severity": "error",
		"design": m.design,
		"module": m.name,
		"message": "top module found",
	}
}
`
	if err := os.WriteFile(filepath.Join(dir, "top.rego"), []byte(rule), 0644); err != nil {
		t.Fatalf("write rule: %v", err)
	}

	engine, err := policy.New(dir)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	result, err := engine.Evaluate(ruleTables())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rulesOf(result)["top_marker"] != 1 {
		t.Fatalf("expected custom rule to fire once, got %v", rulesOf(result))
	}
	if result.Summary.Errors != 1 {
		t.Fatalf("expected custom error counted, got %+v", result.Summary)
	}
}

func TestSampleDesignsHaveNoWarnings(t *testing.T) {
	engine, err := policy.New("")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for _, name := range []string{"counter", "fanout", "counter_tb"} {
		d, _ := designs.Lookup(name)
		top, err := d.Build(nil)
		if err != nil {
			t.Fatalf("build %s: %v", name, err)
		}
		res, err := verilog.New().Build(top)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		result, err := engine.Evaluate(facts.BuildTables(name, res))
		if err != nil {
			t.Fatalf("evaluate %s: %v", name, err)
		}
		if result.Summary.Errors != 0 || result.Summary.Warnings != 0 {
			t.Errorf("%s: expected no warnings or errors, got %+v", name, result.Violations)
		}
	}
}
