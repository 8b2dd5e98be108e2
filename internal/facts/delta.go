package facts

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
// Rows are compared by value, so a port whose width changed shows up once in
// Removed and once in Added.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   subtract(next, prev),
		Removed: subtract(prev, next),
	}
}

// Empty reports whether the delta has no rows.
func (d Delta) Empty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len counts the rows of every relation.
func (t Tables) Len() int {
	return len(t.Designs) + len(t.Modules) + len(t.Ports) + len(t.Signals) + len(t.Memories) +
		len(t.Processes) + len(t.Instances) + len(t.Connections) + len(t.Drivers) + len(t.GeneratedWires)
}

// subtract returns the rows of a that do not occur in b.
func subtract(a, b Tables) Tables {
	return Tables{
		Designs:        missingFrom(a.Designs, b.Designs),
		Modules:        missingFrom(a.Modules, b.Modules),
		Ports:          missingFrom(a.Ports, b.Ports),
		Signals:        missingFrom(a.Signals, b.Signals),
		Memories:       missingFrom(a.Memories, b.Memories),
		Processes:      missingFrom(a.Processes, b.Processes),
		Instances:      missingFrom(a.Instances, b.Instances),
		Connections:    missingFrom(a.Connections, b.Connections),
		Drivers:        missingFrom(a.Drivers, b.Drivers),
		GeneratedWires: missingFrom(a.GeneratedWires, b.GeneratedWires),
	}
}

func missingFrom[R comparable](rows, other []R) []R {
	seen := make(map[R]struct{}, len(other))
	for _, r := range other {
		seen[r] = struct{}{}
	}
	out := []R{}
	for _, r := range rows {
		if _, ok := seen[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func emptyTables() Tables {
	return Tables{
		Designs:        []DesignRow{},
		Modules:        []ModuleRow{},
		Ports:          []PortRow{},
		Signals:        []SignalRow{},
		Memories:       []MemoryRow{},
		Processes:      []ProcessRow{},
		Instances:      []InstanceRow{},
		Connections:    []ConnectionRow{},
		Drivers:        []DriverRow{},
		GeneratedWires: []GeneratedWireRow{},
	}
}
