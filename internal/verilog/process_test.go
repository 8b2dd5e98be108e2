package verilog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdlgen/internal/hdl"
)

func TestDriverMap(t *testing.T) {
	d := NewDriverMap("m")
	require.NoError(t, d.Record("a", false, Combinational, 1))
	require.NoError(t, d.Record("a", false, Combinational, 1))
	require.NoError(t, d.Record("b", false, Synchronous, 2))
	require.NoError(t, d.Record("a", false, Test, 3))

	err := d.Record("a", false, Synchronous, 2)
	var conflict *hdl.MultiDriverConflictError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, "comb", conflict.FirstMode)
	require.Equal(t, "sync", conflict.SecondMode)

	err = d.Record("b", false, Synchronous, 4)
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, "sync", conflict.FirstMode)
	require.Equal(t, "sync", conflict.SecondMode)
	require.Equal(t, 4, conflict.SecondDriver)

	err = d.Record("pad", true, Synchronous, 2)
	var bidir *hdl.BidirectionalSignalError
	require.True(t, errors.As(err, &bidir))
	require.Equal(t, "sync", bidir.Mode)

	d.Drive("net", 0)
	d.Drive("net", 0)
	require.True(t, d.Driven("net"))
	require.False(t, d.Driven("pad"))

	drv, ok := d.Lookup("b")
	require.True(t, ok)
	require.Equal(t, Driver{Target: "b", Mode: Synchronous, Index: 2}, drv)

	var names []string
	for _, drv := range d.Drivers() {
		names = append(names, drv.Target)
	}
	require.Equal(t, []string{"a", "b", "net"}, names)

	var none *DriverMap
	require.NoError(t, none.Record("x", true, Test, 1))
}

func TestProcessEvaluatorSwitch(t *testing.T) {
	var rendered string
	m := hdl.NewModule("decoder", func(m *hdl.Module) error {
		sel := hdl.Must(m.Input("sel", 1))
		y := hdl.Must(m.Output("y", 4))
		sw := hdl.Must(hdl.NewSwitch(sel,
			hdl.Case{Value: hdl.Must(hdl.Const(0, 1)), Body: hdl.Block{hdl.Must(hdl.Assign(y, hdl.Must(hdl.Const(1, 4))))}},
			hdl.Case{Value: hdl.Must(hdl.Const(1, 1)), Body: hdl.Block{hdl.Must(hdl.Assign(y, hdl.Must(hdl.Const(2, 4))))}},
		))
		pe := NewProcessEvaluator(NewEvaluator(m, nil, nil), NewDriverMap("decoder"), Combinational, 1, 1)
		if err := pe.Statement(sw); err != nil {
			return err
		}
		rendered = pe.String()
		return nil
	})
	require.NoError(t, m.Describe())
	want := "    case (sel)\n" +
		"        1'h0: begin\n" +
		"            y = 4'h1;\n" +
		"        end\n" +
		"        1'h1: begin\n" +
		"            y = 4'h2;\n" +
		"        end\n" +
		"    endcase\n"
	if diff := cmp.Diff(want, rendered); diff != "" {
		t.Errorf("switch mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessEvaluatorElseIfAndDefault(t *testing.T) {
	var rendered string
	m := hdl.NewModule("prio", func(m *hdl.Module) error {
		a := hdl.Must(m.Input("a", 1))
		b := hdl.Must(m.Input("b", 1))
		sel := hdl.Must(m.Input("sel", 2))
		y := hdl.Must(m.Output("y", 2))
		chain := hdl.NewIf(a, hdl.Must(hdl.Assign(y, hdl.Must(hdl.Const(1, 2))))).
			ElseIf(b, hdl.Must(hdl.Assign(y, hdl.Must(hdl.Const(2, 2))))).
			Else(hdl.Must(hdl.Assign(y, hdl.Must(hdl.Const(3, 2)))))
		sw := hdl.Must(hdl.NewSwitchDefault(sel, hdl.Block{chain},
			hdl.Case{Value: hdl.Must(hdl.Const(0, 2)), Body: hdl.Block{hdl.Must(hdl.Assign(y, sel))}},
		))
		pe := NewProcessEvaluator(NewEvaluator(m, nil, nil), NewDriverMap("prio"), Synchronous, 1, 0)
		if err := pe.Statement(sw); err != nil {
			return err
		}
		rendered = pe.String()
		return nil
	})
	require.NoError(t, m.Describe())
	want := "case (sel)\n" +
		"    2'h0: begin\n" +
		"        y <= sel;\n" +
		"    end\n" +
		"    default: begin\n" +
		"        if (a) begin\n" +
		"            y <= 2'h1;\n" +
		"        end else if (b) begin\n" +
		"            y <= 2'h2;\n" +
		"        end else begin\n" +
		"            y <= 2'h3;\n" +
		"        end\n" +
		"    end\n" +
		"endcase\n"
	if diff := cmp.Diff(want, rendered); diff != "" {
		t.Errorf("if chain mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessEvaluatorTestOnlyStatements(t *testing.T) {
	var comb, test string
	m := hdl.NewModule("bench", func(m *hdl.Module) error {
		x := hdl.Must(m.Internal("x", 4))
		block := hdl.Block{
			hdl.Delay(5),
			hdl.Must(hdl.NewDisplay(`say "hi" \ %d`, x)),
			&hdl.Finish{},
		}
		ev := NewEvaluator(m, nil, nil)
		pc := NewProcessEvaluator(ev, NewDriverMap("bench"), Combinational, 1, 0)
		if err := pc.Block(block); err != nil {
			return err
		}
		pt := NewProcessEvaluator(ev, nil, Test, 2, 0)
		if err := pt.Block(block); err != nil {
			return err
		}
		comb, test = pc.String(), pt.String()
		return nil
	})
	require.NoError(t, m.Describe())
	require.Empty(t, comb)
	require.Equal(t, "#5;\n$display(\"say \\\"hi\\\" \\\\ %d\", x);\n$finish;\n", test)
}
