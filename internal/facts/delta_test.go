package facts

import "testing"

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := Tables{
		Ports: []PortRow{
			{Design: "d", Module: "m", Name: "a", Direction: "input", Width: 4},
		},
		GeneratedWires: []GeneratedWireRow{
			{Design: "d", Module: "m", Name: "sliced_0011aabb", Width: 8, Expr: "(a & b)"},
		},
	}
	next := Tables{
		Ports: []PortRow{
			{Design: "d", Module: "m", Name: "a", Direction: "input", Width: 8},
		},
		GeneratedWires: []GeneratedWireRow{
			{Design: "d", Module: "m", Name: "sliced_0011aabb", Width: 8, Expr: "(a & b)"},
		},
	}

	delta := ComputeDelta(prev, next)

	if len(delta.Added.Ports) != 1 || delta.Added.Ports[0].Width != 8 {
		t.Fatalf("expected 8-bit port added, got %+v", delta.Added.Ports)
	}
	if len(delta.Removed.Ports) != 1 || delta.Removed.Ports[0].Width != 4 {
		t.Fatalf("expected 4-bit port removed, got %+v", delta.Removed.Ports)
	}
	if len(delta.Added.GeneratedWires) != 0 || len(delta.Removed.GeneratedWires) != 0 {
		t.Fatalf("expected unchanged wires to cancel, got %+v", delta)
	}
	if delta.Empty() {
		t.Fatalf("expected non-empty delta")
	}
	if !ComputeDelta(next, next).Empty() {
		t.Fatalf("expected empty delta for identical snapshots")
	}
}
