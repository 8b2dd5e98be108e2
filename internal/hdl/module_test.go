package hdl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func inverter() *Module {
	return NewModule("inverter", func(m *Module) error {
		a := Must(m.Input("a", 4))
		y := Must(m.Output("y", 4))
		return m.Comb(Must(Assign(y, Invert(a))))
	})
}

func TestDescribeRebuilds(t *testing.T) {
	calls := 0
	m := NewModule("counter", func(m *Module) error {
		calls++
		Must(m.Input("clk", 1))
		Must(m.Output("q", 8))
		return nil
	})
	require.NoError(t, m.Describe())
	first := m.Outputs()[0]
	require.NoError(t, m.Describe())
	require.Equal(t, 2, calls)
	require.Len(t, m.Inputs(), 1)
	require.Len(t, m.Outputs(), 1)
	require.NotSame(t, first, m.Outputs()[0])
}

func TestPortOrderFollowsDeclaration(t *testing.T) {
	m := NewModule("ordered", func(m *Module) error {
		for _, name := range []string{"zeta", "alpha", "mid"} {
			Must(m.Input(name, 1))
		}
		Must(m.Output("out", 1))
		Must(m.Inout("pad", 1))
		return nil
	})
	require.NoError(t, m.Describe())
	var names []string
	for _, p := range m.Ports() {
		names = append(names, p.Name())
	}
	require.Equal(t, []string{"zeta", "alpha", "mid", "out", "pad"}, names)
}

func TestDuplicateNames(t *testing.T) {
	tests := []struct {
		name     string
		describe func(m *Module) error
	}{
		{"input twice", func(m *Module) error {
			Must(m.Input("a", 1))
			_, err := m.Input("a", 2)
			return err
		}},
		{"input and internal", func(m *Module) error {
			Must(m.Input("a", 1))
			_, err := m.Internal("a", 1)
			return err
		}},
		{"memory and output", func(m *Module) error {
			Must(m.Memory("a", 8, 4))
			_, err := m.Output("a", 1)
			return err
		}},
		{"instance and signal", func(m *Module) error {
			in := Must(m.Input("a", 4))
			_, err := m.AddSubmodule("a", inverter(), map[string]Expr{"a": in})
			return err
		}},
		{"reserved word", func(m *Module) error {
			_, err := m.Internal("always", 1)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModule("dup", tt.describe).Describe()
			var nerr *NameError
			require.True(t, errors.As(err, &nerr), "got %v", err)
		})
	}
}

func TestAddSubmoduleValidatesInputs(t *testing.T) {
	tests := []struct {
		name  string
		ports func(m *Module) map[string]Expr
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing",
			ports: func(m *Module) map[string]Expr { return map[string]Expr{} },
			check: func(t *testing.T, err error) {
				var serr *SubmoduleError
				require.True(t, errors.As(err, &serr))
				require.Contains(t, serr.Reason, "missing inputs: a")
			},
		},
		{
			name: "extra",
			ports: func(m *Module) map[string]Expr {
				x := Must(m.Input("x", 4))
				return map[string]Expr{"a": x, "b": x}
			},
			check: func(t *testing.T, err error) {
				var serr *SubmoduleError
				require.True(t, errors.As(err, &serr))
				require.Contains(t, serr.Reason, "unknown ports: b")
			},
		},
		{
			name: "width",
			ports: func(m *Module) map[string]Expr {
				return map[string]Expr{"a": Must(m.Input("x", 3))}
			},
			check: func(t *testing.T, err error) {
				var werr *WidthError
				require.True(t, errors.As(err, &werr))
				require.Equal(t, "inv.a", werr.Signal)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := NewModule("parent", func(m *Module) error {
				_, err := m.AddSubmodule("inv", inverter(), tt.ports(m))
				return err
			})
			tt.check(t, parent.Describe())
		})
	}
}

func TestSubmoduleOutputs(t *testing.T) {
	child := inverter()
	var handle *Submodule
	parent := NewModule("parent", func(m *Module) error {
		x := Must(m.Input("x", 4))
		handle = Must(m.AddSubmodule("inv", child, map[string]Expr{"a": x}))
		y := Must(handle.Output("y"))
		o := Must(m.Output("o", 4))
		return m.Comb(Must(Assign(o, y)))
	})
	require.NoError(t, parent.Describe())
	y, err := handle.Output("y")
	require.NoError(t, err)
	require.Same(t, child, y.Module())
	_, err = handle.Output("missing")
	require.Error(t, err)
}

func TestRecursiveInstantiation(t *testing.T) {
	var self *Module
	self = NewModule("loop", func(m *Module) error {
		Must(m.Output("o", 1))
		_, err := m.AddSubmodule("again", self, nil)
		return err
	})
	err := self.Describe()
	var serr *SubmoduleError
	require.True(t, errors.As(err, &serr), "got %v", err)
	require.Contains(t, serr.Reason, "recursive")
}

func TestSyncRequiresOneBitClock(t *testing.T) {
	m := NewModule("clocked", nil)
	require.NoError(t, m.Describe())
	wide := Must(m.Input("clk", 2))
	err := m.Sync(Posedge, wide)
	var werr *WidthError
	require.True(t, errors.As(err, &werr))
}

func TestVendorInstance(t *testing.T) {
	core := &VendorCore{
		Name: "PLL",
		Params: []Param{
			{Name: "MODE", Value: ParamValue{Str: "LOW"}},
			{Name: "DIV", Value: ParamValue{Const: Must(Const(4, 8))}},
		},
		Inputs:  []PortSpec{{Name: "CLKIN", Width: 1}},
		Outputs: []PortSpec{{Name: "CLKOUT", Width: 1}, {Name: "LOCKED", Width: 1}},
	}
	var v *VendorInstance
	m := NewModule("top", func(m *Module) error {
		clk := Must(m.Input("clk", 1))
		v = Must(m.AddVendor("pll0", core, map[string]Expr{"CLKIN": clk}))
		return nil
	})
	require.NoError(t, m.Describe())
	require.Len(t, v.Outputs(), 2)
	locked, err := v.Output("LOCKED")
	require.NoError(t, err)
	require.True(t, locked.Module().IsVendor())

	bad := NewModule("top", func(m *Module) error {
		clk := Must(m.Input("clk", 1))
		_, err := m.AddVendor("pll0", core, map[string]Expr{"CLKIN": clk, "RST": clk})
		return err
	})
	var serr *SubmoduleError
	require.True(t, errors.As(bad.Describe(), &serr))
}

func TestVendorCoreValidate(t *testing.T) {
	require.Error(t, (&VendorCore{Name: "NOOUT", Inputs: []PortSpec{{Name: "a", Width: 1}}}).Validate())
	require.Error(t, (&VendorCore{Name: "Q", Outputs: []PortSpec{{Name: "o", Width: 0}}}).Validate())
	require.Error(t, (&VendorCore{
		Name:    "Q",
		Params:  []Param{{Name: "S", Value: ParamValue{Str: "a\nb"}}},
		Outputs: []PortSpec{{Name: "o", Width: 1}},
	}).Validate())
	require.NoError(t, (&VendorCore{Name: "IOBUF", Inouts: []PortSpec{{Name: "IO", Width: 1}}}).Validate())
}
