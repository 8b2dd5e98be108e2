package verilog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdlgen/internal/hdl"
)

func TestEvaluatorRendering(t *testing.T) {
	type signals struct {
		a, b, bit *hdl.Signal
		mem       *hdl.Memory
	}
	var s signals
	m := hdl.NewModule("render", func(m *hdl.Module) error {
		s.a = hdl.Must(m.Internal("a", 4))
		s.b = hdl.Must(m.Internal("b", 4))
		s.bit = hdl.Must(m.Internal("bit", 1))
		s.mem = hdl.Must(m.Memory("ram", 8, 16))
		return nil
	})
	require.NoError(t, m.Describe())

	tests := []struct {
		name string
		expr func() hdl.Expr
		want string
	}{
		{"constant", func() hdl.Expr { return hdl.Must(hdl.Const(10, 4)) }, "4'ha"},
		{"nested concat is flattened", func() hdl.Expr {
			inner := hdl.Must(hdl.Concatenate(s.a, s.bit))
			return hdl.Must(hdl.Concatenate(inner, s.b))
		}, "{a, bit, b}"},
		{"repeat", func() hdl.Expr { return hdl.Must(hdl.Replicate(s.bit, 3)) }, "{3{bit}}"},
		{"mux", func() hdl.Expr { return hdl.Must(hdl.Mux(s.bit, s.a, s.b)) }, "(bit ? a : b)"},
		{"slice", func() hdl.Expr { return hdl.Must(hdl.SliceOf(s.a, 2, 1)) }, "a[2:1]"},
		{"bit", func() hdl.Expr { return hdl.Must(hdl.Bit(s.a, 3)) }, "a[3]"},
		{"bit of one-bit signal", func() hdl.Expr { return hdl.Must(hdl.Bit(s.bit, 0)) }, "bit"},
		{"zero extend", func() hdl.Expr { return hdl.Must(hdl.Extend(s.a, 6)) }, "{{2{1'b0}}, a}"},
		{"sign extend", func() hdl.Expr { return hdl.Must(hdl.SignExtend(s.a, 8)) }, "{{4{a[3]}}, a}"},
		{"memory read", func() hdl.Expr { return s.mem.At(s.a) }, "ram[a]"},
		{"logical", func() hdl.Expr { return hdl.Must(hdl.LogicalOr(s.bit, hdl.Not(s.bit))) }, "(bit || (!bit))"},
	}
	ev := NewEvaluator(m, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Eval(tt.expr())
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluatorRejectsUnhoistedSlice(t *testing.T) {
	var e hdl.Expr
	m := hdl.NewModule("raw", func(m *hdl.Module) error {
		a := hdl.Must(m.Internal("a", 4))
		e = hdl.Must(hdl.SliceOf(hdl.Must(hdl.Add(a, a)), 3, 0))
		return nil
	})
	require.NoError(t, m.Describe())
	_, err := NewEvaluator(m, nil, nil).Eval(e)
	require.Error(t, err)
}

func TestEvaluatorTarget(t *testing.T) {
	var local, foreign *hdl.Signal
	other := hdl.NewModule("other", func(m *hdl.Module) error {
		foreign = hdl.Must(m.Internal("x", 4))
		return nil
	})
	require.NoError(t, other.Describe())
	m := hdl.NewModule("owner", func(m *hdl.Module) error {
		local = hdl.Must(m.Internal("y", 4))
		return nil
	})
	require.NoError(t, m.Describe())

	ev := NewEvaluator(m, map[*hdl.Signal]string{foreign: "u_x_abcdef"}, nil)
	text, err := ev.Eval(foreign)
	require.NoError(t, err)
	require.Equal(t, "u_x_abcdef", text)

	text, err = ev.Target(hdl.Must(hdl.Concatenate(hdl.Must(hdl.SliceOf(local, 3, 2)), hdl.Must(hdl.SliceOf(local, 1, 0)))))
	require.NoError(t, err)
	require.Equal(t, "{y[3:2], y[1:0]}", text)

	_, err = ev.Target(foreign)
	var target *hdl.AssignmentError
	require.True(t, errors.As(err, &target))
}

func TestQuote(t *testing.T) {
	require.Equal(t, `"plain"`, quote("plain"))
	require.Equal(t, `"a \"b\" c\\d"`, quote(`a "b" c\d`))
}
