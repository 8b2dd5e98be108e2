// Package designs is the registry of sample designs the hdlgen command can
// build by name.
package designs

import (
	"fmt"
	"sort"

	"github.com/robert-at-pretension-io/hdlgen/internal/verilog"
	"github.com/robert-at-pretension-io/hdlgen/internal/vendor"
)

// Design is a named, buildable top-level description.
type Design struct {
	Name        string
	Description string
	// Vendor names the vendor cores the design instantiates.
	Vendor []string
	build  func(cat *vendor.Catalog) (verilog.Top, error)
}

// Build returns the top of the design, resolving vendor cores from cat.
func (d *Design) Build(cat *vendor.Catalog) (verilog.Top, error) {
	for _, name := range d.Vendor {
		if _, ok := cat.Get(name); !ok {
			return nil, fmt.Errorf("design %s needs vendor core %s: no descriptor loaded", d.Name, name)
		}
	}
	return d.build(cat)
}

// New returns a design that is not registered. build receives the vendor
// catalog after every core in vendorCores was found in it.
func New(name, description string, vendorCores []string, build func(cat *vendor.Catalog) (verilog.Top, error)) *Design {
	return &Design{Name: name, Description: description, Vendor: vendorCores, build: build}
}

var registry = map[string]*Design{}

func register(d *Design) {
	if _, dup := registry[d.Name]; dup {
		panic("designs: duplicate design " + d.Name)
	}
	registry[d.Name] = d
}

func init() {
	register(&Design{
		Name:        "counter",
		Description: "8-bit counter with enable and a combinational wrap flag",
		build:       func(*vendor.Catalog) (verilog.Top, error) { return Counter(), nil },
	})
	register(&Design{
		Name:        "slicer",
		Description: "slices of a 10-bit AND hoisted into one generated wire",
		build:       func(*vendor.Catalog) (verilog.Top, error) { return Slicer(), nil },
	})
	register(&Design{
		Name:        "fanout",
		Description: "two child instances each fanned out to two parent outputs",
		build:       func(*vendor.Catalog) (verilog.Top, error) { return Fanout(), nil },
	})
	register(&Design{
		Name:        "counter_tb",
		Description: "simulation of counter with a reset and count test suite",
		build:       func(*vendor.Catalog) (verilog.Top, error) { return CounterTB(), nil },
	})
	register(&Design{
		Name:        "pad",
		Description: "bidirectional pad through a vendor IOBUF",
		Vendor:      []string{"IOBUF"},
		build: func(cat *vendor.Catalog) (verilog.Top, error) {
			core, _ := cat.Get("IOBUF")
			return Pad(core), nil
		},
	})
}

// Lookup returns the registered design with the given name.
func Lookup(name string) (*Design, bool) {
	d, ok := registry[name]
	return d, ok
}

// Names lists the registered designs, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
