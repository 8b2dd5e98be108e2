package designs

import (
	"github.com/robert-at-pretension-io/hdlgen/internal/hdl"
)

// Counter counts on every enabled clock edge and flags the cycle it wraps.
func Counter() *hdl.Module {
	return hdl.NewModule("counter", func(m *hdl.Module) error {
		clk := hdl.Must(m.Input("clk", 1))
		rst := hdl.Must(m.Input("rst", 1))
		en := hdl.Must(m.Input("en", 1))
		q := hdl.Must(m.Output("q", 8))
		wrap := hdl.Must(m.Output("wrap", 1))
		count := hdl.Must(m.Internal("count", 8))

		next := hdl.Must(hdl.SliceOf(hdl.Must(hdl.Add(count, hdl.Must(hdl.Const(1, 8)))), 7, 0))
		body := hdl.NewIf(rst, hdl.Must(hdl.Assign(count, hdl.Must(hdl.Const(0, 8))))).
			ElseIf(en, hdl.Must(hdl.Assign(count, next)))
		if err := m.Sync(hdl.Posedge, clk, body); err != nil {
			return err
		}

		full := hdl.Must(hdl.Eq(count, hdl.Must(hdl.Const(0xff, 8))))
		return m.Comb(
			hdl.Must(hdl.Assign(q, count)),
			hdl.Must(hdl.Assign(wrap, hdl.Must(hdl.And(full, en)))),
		)
	})
}

// Slicer reads bit 5 and bits [5:0] of a 10-bit AND, which Verilog cannot
// slice directly.
func Slicer() *hdl.Module {
	return hdl.NewModule("slicer", func(m *hdl.Module) error {
		in := hdl.Must(m.Input("in", 10))
		in2 := hdl.Must(m.Input("in2", 10))
		bit := hdl.Must(m.Output("bit", 1))
		low := hdl.Must(m.Output("low", 6))
		and := hdl.Must(hdl.And(in, in2))
		return m.Comb(
			hdl.Must(hdl.Assign(bit, hdl.Must(hdl.Bit(and, 5)))),
			hdl.Must(hdl.Assign(low, hdl.Must(hdl.SliceOf(and, 5, 0)))),
		)
	})
}

func buffer(name string) *hdl.Module {
	return hdl.NewModule(name, func(m *hdl.Module) error {
		a := hdl.Must(m.Input("a", 4))
		y := hdl.Must(m.Output("y", 4))
		return m.Comb(hdl.Must(hdl.Assign(y, a)))
	})
}

// Fanout instantiates two single-in/single-out children and drives two
// parent outputs from each child output.
func Fanout() *hdl.Module {
	left := buffer("left_buf")
	right := buffer("right_buf")
	return hdl.NewModule("fanout", func(m *hdl.Module) error {
		a := hdl.Must(m.Input("a", 4))
		b := hdl.Must(m.Input("b", 4))
		l := hdl.Must(m.AddSubmodule("l", left, map[string]hdl.Expr{"a": a}))
		r := hdl.Must(m.AddSubmodule("r", right, map[string]hdl.Expr{"a": b}))

		var body []hdl.Statement
		for _, fan := range []struct {
			inst  *hdl.Submodule
			names []string
		}{
			{l, []string{"l0", "l1"}},
			{r, []string{"r0", "r1"}},
		} {
			y := hdl.Must(fan.inst.Output("y"))
			for _, name := range fan.names {
				out := hdl.Must(m.Output(name, 4))
				body = append(body, hdl.Must(hdl.Assign(out, y)))
			}
		}
		return m.Comb(body...)
	})
}

// CounterTB simulates Counter: it holds reset, then counts with enable high.
func CounterTB() *hdl.Simulation {
	return hdl.NewSimulation("counter_tb", Counter(), func(s *hdl.Simulation) error {
		s.SetTimescale("1ns/1ps")
		if err := s.Clock("clk", 5); err != nil {
			return err
		}
		rst := hdl.Must(s.Proxy("rst"))
		en := hdl.Must(s.Proxy("en"))
		q := hdl.Must(s.ReadOnly("q"))
		wrap := hdl.Must(s.ReadOnly("wrap"))

		one := hdl.Must(hdl.Const(1, 1))
		zero := hdl.Must(hdl.Const(0, 1))
		if err := s.Stimulus(
			hdl.Must(hdl.Assign(rst, one)),
			hdl.Must(hdl.Assign(en, zero)),
			hdl.Delay(20),
		); err != nil {
			return err
		}

		return s.AddSuite(hdl.TestSuite{
			ID:          "counter",
			Description: "counter reset and count",
			Tests: []hdl.TestCase{
				{
					ID:          "reset",
					Description: "q is zero while reset is held",
					Stimulus:    hdl.Block{hdl.Delay(10)},
					Checks: []hdl.Check{
						{Cond: hdl.Must(hdl.Eq(q, hdl.Must(hdl.Const(0, 8)))), Reason: "q not cleared by reset"},
						{Cond: hdl.Not(wrap), Reason: "wrap set during reset"},
					},
				},
				{
					ID:          "count",
					Description: "q advances once per enabled cycle",
					Stimulus: hdl.Block{
						hdl.Must(hdl.Assign(rst, zero)),
						hdl.Must(hdl.Assign(en, one)),
						hdl.Delay(30),
					},
					Checks: []hdl.Check{
						{Cond: hdl.Must(hdl.Eq(q, hdl.Must(hdl.Const(3, 8)))), Reason: "q did not count to 3"},
					},
				},
			},
		})
	})
}

// Pad drives a bidirectional pin through a vendor IOBUF. The pad is driven
// when oe is high and read back on y.
func Pad(iobuf *hdl.VendorCore) *hdl.Module {
	return hdl.NewModule("pad", func(m *hdl.Module) error {
		a := hdl.Must(m.Input("a", 1))
		oe := hdl.Must(m.Input("oe", 1))
		y := hdl.Must(m.Output("y", 1))
		pin := hdl.Must(m.Inout("pin", 1))
		buf := hdl.Must(m.AddVendor("pin_buf", iobuf, map[string]hdl.Expr{"I": a, "T": hdl.Not(oe), "IO": pin}))
		return m.Comb(hdl.Must(hdl.Assign(y, hdl.Must(buf.Output("O")))))
	})
}
