package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/hdlgen/internal/hdl"
	"github.com/robert-at-pretension-io/hdlgen/internal/verilog"
)

func buildNested(t *testing.T) *verilog.Result {
	t.Helper()
	leaf := hdl.NewModule("leaf", func(m *hdl.Module) error {
		a := hdl.Must(m.Input("a", 2))
		y := hdl.Must(m.Output("y", 2))
		return m.Comb(hdl.Must(hdl.Assign(y, hdl.Invert(a))))
	})
	mid := hdl.NewModule("mid", func(m *hdl.Module) error {
		a := hdl.Must(m.Input("a", 2))
		y := hdl.Must(m.Output("y", 2))
		u := hdl.Must(m.AddSubmodule("u", leaf, map[string]hdl.Expr{"a": a}))
		return m.Comb(hdl.Must(hdl.Assign(y, hdl.Must(u.Output("y")))))
	})
	top := hdl.NewModule("top", func(m *hdl.Module) error {
		clk := hdl.Must(m.Input("clk", 1))
		a := hdl.Must(m.Input("a", 2))
		q := hdl.Must(m.Output("q", 1))
		u := hdl.Must(m.AddSubmodule("m0", mid, map[string]hdl.Expr{"a": a}))
		bit := hdl.Must(hdl.Bit(hdl.Must(hdl.Xor(hdl.Must(u.Output("y")), a)), 0))
		return m.Sync(hdl.Posedge, clk, hdl.Must(hdl.Assign(q, bit)))
	})
	res, err := verilog.New().Build(top)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return res
}

func TestBuildTablesPopulatesCoreRelations(t *testing.T) {
	tables := BuildTables("nested", buildNested(t))

	if len(tables.Designs) != 1 || tables.Designs[0].Top != "top" {
		t.Fatalf("expected one design row for top, got %+v", tables.Designs)
	}
	if len(tables.Modules) != 3 {
		t.Fatalf("expected 3 module rows, got %d", len(tables.Modules))
	}
	levels := map[string]int{}
	for _, m := range tables.Modules {
		levels[m.Name] = m.Level
	}
	if levels["top"] != 0 || levels["mid"] != 1 || levels["leaf"] != 2 {
		t.Fatalf("unexpected levels %v", levels)
	}
	if len(tables.Ports) != 7 {
		t.Fatalf("expected 7 port rows, got %d", len(tables.Ports))
	}
	if len(tables.Instances) != 2 {
		t.Fatalf("expected 2 instance rows, got %d", len(tables.Instances))
	}
	if len(tables.GeneratedWires) != 1 || tables.GeneratedWires[0].Module != "top" {
		t.Fatalf("expected one generated wire in top, got %+v", tables.GeneratedWires)
	}
	var sync bool
	for _, d := range tables.Drivers {
		if d.Module == "top" && d.Target == "q" && d.Mode == "sync" && d.Process == 1 {
			sync = true
		}
	}
	if !sync {
		t.Fatalf("expected q driven by sync process 1, got %+v", tables.Drivers)
	}
}

func TestBuildTablesNilResult(t *testing.T) {
	tables := BuildTables("none", nil)
	if tables.Len() != 0 || tables.Modules == nil {
		t.Fatalf("expected empty non-nil tables, got %+v", tables)
	}
}

func TestMergeOrdersDesigns(t *testing.T) {
	a := Tables{Designs: []DesignRow{{Name: "zeta", Top: "z"}}, Modules: []ModuleRow{{Design: "zeta", Name: "z"}}}
	b := Tables{Designs: []DesignRow{{Name: "alpha", Top: "a"}}}
	merged := Merge(a, b)
	if len(merged.Designs) != 2 || merged.Designs[0].Name != "alpha" {
		t.Fatalf("expected designs sorted, got %+v", merged.Designs)
	}
	if len(merged.Modules) != 1 {
		t.Fatalf("expected modules carried over, got %+v", merged.Modules)
	}
}
