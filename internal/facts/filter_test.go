package facts

import "testing"

func TestFilterTablesByModules(t *testing.T) {
	tables := Tables{
		Designs: []DesignRow{{Name: "d1", Top: "a"}, {Name: "d2", Top: "c"}},
		Modules: []ModuleRow{
			{Design: "d1", Name: "a"},
			{Design: "d1", Name: "b", Level: 1},
			{Design: "d2", Name: "c"},
		},
		Ports: []PortRow{
			{Module: "a", Name: "clk"},
			{Module: "b", Name: "rst"},
		},
		Drivers: []DriverRow{
			{Module: "a", Target: "q"},
			{Module: "b", Target: "y"},
		},
	}

	filtered := FilterTablesByModules(tables, map[string]bool{"b": true})

	if len(filtered.Modules) != 1 || filtered.Modules[0].Name != "b" {
		t.Fatalf("expected only module b, got %#v", filtered.Modules)
	}
	if len(filtered.Designs) != 1 || filtered.Designs[0].Name != "d1" {
		t.Fatalf("expected design d1 kept, got %#v", filtered.Designs)
	}
	if len(filtered.Ports) != 1 || filtered.Ports[0].Name != "rst" {
		t.Fatalf("expected only b port rows, got %#v", filtered.Ports)
	}
	if len(filtered.Drivers) != 1 || filtered.Drivers[0].Target != "y" {
		t.Fatalf("expected only b driver rows, got %#v", filtered.Drivers)
	}
}

func TestFilterDeltaByModulesEmpty(t *testing.T) {
	delta := Delta{
		Added: Tables{
			Modules: []ModuleRow{{Name: "a"}},
		},
		Removed: Tables{
			Modules: []ModuleRow{{Name: "b"}},
		},
	}

	filtered := FilterDeltaByModules(delta, map[string]bool{})
	if len(filtered.Added.Modules) != 0 || len(filtered.Removed.Modules) != 0 {
		t.Fatalf("expected empty delta, got %#v", filtered)
	}
}
