package facts

// FilterTablesByModules keeps the rows owned by the named modules. A design
// row survives when at least one of its modules does.
func FilterTablesByModules(tables Tables, modules map[string]bool) Tables {
	if len(modules) == 0 {
		return emptyTables()
	}

	out := Tables{
		Modules: where(tables.Modules, func(r ModuleRow) bool { return modules[r.Name] }),
	}
	designs := make(map[string]bool, len(out.Modules))
	for _, m := range out.Modules {
		designs[m.Design] = true
	}
	out.Designs = where(tables.Designs, func(r DesignRow) bool { return designs[r.Name] })
	out.Ports = where(tables.Ports, func(r PortRow) bool { return modules[r.Module] })
	out.Signals = where(tables.Signals, func(r SignalRow) bool { return modules[r.Module] })
	out.Memories = where(tables.Memories, func(r MemoryRow) bool { return modules[r.Module] })
	out.Processes = where(tables.Processes, func(r ProcessRow) bool { return modules[r.Module] })
	out.Instances = where(tables.Instances, func(r InstanceRow) bool { return modules[r.Module] })
	out.Connections = where(tables.Connections, func(r ConnectionRow) bool { return modules[r.Module] })
	out.Drivers = where(tables.Drivers, func(r DriverRow) bool { return modules[r.Module] })
	out.GeneratedWires = where(tables.GeneratedWires, func(r GeneratedWireRow) bool { return modules[r.Module] })
	return out
}

// FilterDeltaByModules narrows both sides of a delta to the named modules.
func FilterDeltaByModules(delta Delta, modules map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByModules(delta.Added, modules),
		Removed: FilterTablesByModules(delta.Removed, modules),
	}
}

func where[R any](rows []R, keep func(R) bool) []R {
	out := []R{}
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
