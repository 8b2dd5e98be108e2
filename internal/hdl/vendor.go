package hdl

import (
	"fmt"
	"sort"
	"strings"
)

// ParamValue is a vendor parameter: either a quoted string or a constant.
type ParamValue struct {
	Str   string
	Const *Constant
}

// IsString reports whether the value renders as a string literal.
func (p ParamValue) IsString() bool { return p.Const == nil }

// Param is one named parameter of a vendor core, in declaration order.
type Param struct {
	Name  string
	Value ParamValue
}

// PortSpec names a port of a vendor core and its width.
type PortSpec struct {
	Name  string
	Width uint
}

// VendorCore describes an external IP core by its interface only.
type VendorCore struct {
	Name    string
	Params  []Param
	Inputs  []PortSpec
	Outputs []PortSpec
	// Inouts must be bound to a reference of the instantiating module.
	Inouts []PortSpec
}

// Validate checks that the core can be instantiated.
func (c *VendorCore) Validate() error {
	if err := ValidIdentifier("", c.Name); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, p := range c.Params {
		if err := ValidIdentifier(c.Name, p.Name); err != nil {
			return err
		}
		if seen["param:"+p.Name] {
			return &NameError{Module: c.Name, Name: p.Name, Reason: "duplicate parameter"}
		}
		seen["param:"+p.Name] = true
		if p.Value.IsString() && !linePattern.MatchString(p.Value.Str) {
			return &NameError{Module: c.Name, Name: p.Name, Reason: "string parameter spans several lines"}
		}
	}
	for _, list := range [][]PortSpec{c.Inputs, c.Outputs, c.Inouts} {
		for _, port := range list {
			if err := ValidIdentifier(c.Name, port.Name); err != nil {
				return err
			}
			if port.Width == 0 {
				return &WidthError{Module: c.Name, Signal: port.Name, Op: "vendor port", Expected: 1, Actual: 0}
			}
			if seen["port:"+port.Name] {
				return &NameError{Module: c.Name, Name: port.Name, Reason: "duplicate port"}
			}
			seen["port:"+port.Name] = true
		}
	}
	if len(c.Outputs) == 0 && len(c.Inouts) == 0 {
		return &MissingPortError{Module: c.Name}
	}
	return nil
}

// VendorInstance is one instantiation of a vendor core inside a module.
type VendorInstance struct {
	Instance string
	Core     *VendorCore
	Inputs   []PortBinding
	Inouts   []PortBinding
	// owner is a stand-in module that owns the output signals so they resolve
	// like submodule outputs.
	owner   *Module
	outputs []*Signal
}

// Output returns an output port of the instance for use in expressions.
func (v *VendorInstance) Output(name string) (*Signal, error) {
	for _, s := range v.outputs {
		if s.name == name {
			return s, nil
		}
	}
	return nil, &SubmoduleError{Module: v.Core.Name, Instance: v.Instance, Submodule: v.Core.Name, Reason: fmt.Sprintf("no output %q", name)}
}

// Outputs lists the instance's outputs in descriptor order.
func (v *VendorInstance) Outputs() []*Signal { return v.outputs }

// AddVendor instantiates an external core. ports must name every input and
// inout of the core exactly once.
func (m *Module) AddVendor(instance string, core *VendorCore, ports map[string]Expr) (*VendorInstance, error) {
	if core == nil {
		return nil, &SubmoduleError{Module: m.name, Instance: instance, Reason: "nil vendor core"}
	}
	if err := core.Validate(); err != nil {
		return nil, fmt.Errorf("vendor core %s: %w", core.Name, err)
	}
	if err := m.claim(instance, "vendor instance"); err != nil {
		return nil, err
	}
	v := &VendorInstance{
		Instance: instance,
		Core:     core,
		owner:    &Module{name: core.Name, vendor: true},
	}
	bind := func(spec PortSpec, inout bool) (PortBinding, error) {
		e, ok := ports[spec.Name]
		if !ok {
			return PortBinding{}, &SubmoduleError{Module: m.name, Instance: instance, Submodule: core.Name, Reason: fmt.Sprintf("missing port %q", spec.Name)}
		}
		if e.Width() != spec.Width {
			return PortBinding{}, &WidthError{Module: m.name, Signal: instance + "." + spec.Name, Op: "port connection", Expected: spec.Width, Actual: e.Width()}
		}
		if inout && !IsRef(e) {
			return PortBinding{}, &SubmoduleError{Module: m.name, Instance: instance, Submodule: core.Name, Reason: fmt.Sprintf("inout %q must bind to a signal reference", spec.Name)}
		}
		return PortBinding{Port: spec.Name, Expr: e}, nil
	}
	for _, in := range core.Inputs {
		b, err := bind(in, false)
		if err != nil {
			return nil, err
		}
		v.Inputs = append(v.Inputs, b)
	}
	for _, io := range core.Inouts {
		b, err := bind(io, true)
		if err != nil {
			return nil, err
		}
		v.Inouts = append(v.Inouts, b)
	}
	if len(ports) != len(core.Inputs)+len(core.Inouts) {
		var extra []string
		for name := range ports {
			if !hasPort(core.Inputs, name) && !hasPort(core.Inouts, name) {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		return nil, &SubmoduleError{Module: m.name, Instance: instance, Submodule: core.Name, Reason: "unknown ports: " + strings.Join(extra, ", ")}
	}
	for _, out := range core.Outputs {
		v.outputs = append(v.outputs, &Signal{name: out.Name, width: out.Width, dir: Output, module: v.owner})
	}
	m.vendors = append(m.vendors, v)
	return v, nil
}

func hasPort(ports []PortSpec, name string) bool {
	for _, p := range ports {
		if p.Name == name {
			return true
		}
	}
	return false
}
