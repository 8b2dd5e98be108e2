package hdl

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSignals(t *testing.T, width uint) (*Signal, *Signal) {
	t.Helper()
	m := NewModule("alu", nil)
	require.NoError(t, m.Describe())
	a, err := m.Input("a", width)
	require.NoError(t, err)
	b, err := m.Input("b", width)
	require.NoError(t, err)
	return a, b
}

func TestBinaryWidths(t *testing.T) {
	a, b := testSignals(t, 8)
	tests := []struct {
		name  string
		build func(a, b Expr) (Expr, error)
		width uint
	}{
		{"and", And, 8},
		{"or", Or, 8},
		{"xor", Xor, 8},
		{"shl", Shl, 8},
		{"sra", Sra, 8},
		{"add", Add, 9},
		{"sub", Sub, 9},
		{"eq", Eq, 1},
		{"lt", Lt, 1},
		{"ge", Ge, 1},
		{"land", LogicalAnd, 1},
		{"lor", LogicalOr, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tt.build(a, b)
			require.NoError(t, err)
			require.Equal(t, tt.width, e.Width())
		})
	}
}

func TestBinaryWidthMismatch(t *testing.T) {
	a, _ := testSignals(t, 8)
	_, narrow := testSignals(t, 4)
	for _, build := range []func(a, b Expr) (Expr, error){And, Or, Add, Sub, Eq, Shr, LogicalOr} {
		_, err := build(a, narrow)
		var werr *WidthError
		require.True(t, errors.As(err, &werr), "got %v", err)
		require.Equal(t, uint(8), werr.Expected)
		require.Equal(t, uint(4), werr.Actual)
	}
}

func TestUnaryWidths(t *testing.T) {
	a, _ := testSignals(t, 6)
	require.Equal(t, uint(1), Not(a).Width())
	require.Equal(t, uint(6), Invert(a).Width())
}

func TestSliceBounds(t *testing.T) {
	a, _ := testSignals(t, 10)
	tests := []struct {
		msb, lsb uint
		ok       bool
	}{
		{9, 0, true},
		{5, 5, true},
		{5, 0, true},
		{10, 0, false},
		{3, 4, false},
		{9, 9, true},
	}
	for _, tt := range tests {
		s, err := SliceOf(a, tt.msb, tt.lsb)
		if !tt.ok {
			var serr *SliceError
			require.True(t, errors.As(err, &serr), "[%d:%d]: got %v", tt.msb, tt.lsb, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.msb-tt.lsb+1, s.Width())
	}
}

func TestBitIsSingleSlice(t *testing.T) {
	a, _ := testSignals(t, 4)
	bit, err := Bit(a, 2)
	require.NoError(t, err)
	require.Equal(t, &Slice{Root: a, MSB: 2, LSB: 2}, bit)

	_, err = Bit(a, 4)
	var serr *SliceError
	require.True(t, errors.As(err, &serr))
}

func TestConcatAndRepeat(t *testing.T) {
	a, b := testSignals(t, 3)
	c, err := Concatenate(a, b, a)
	require.NoError(t, err)
	require.Equal(t, uint(9), c.Width())

	_, err = Concatenate(a)
	var cerr *ConcatError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, 1, cerr.Operands)

	r, err := Replicate(a, 4)
	require.NoError(t, err)
	require.Equal(t, uint(12), r.Width())

	for _, n := range []int{0, -1} {
		_, err = Replicate(a, n)
		var rerr *RepeatError
		require.True(t, errors.As(err, &rerr), "count %d", n)
	}
}

func TestConcatCopiesOperands(t *testing.T) {
	a, b := testSignals(t, 2)
	ops := []Expr{a, b}
	c, err := Concatenate(ops...)
	require.NoError(t, err)
	ops[0] = b
	require.Same(t, a, c.(*Concat).Operands[0])
}

func TestMux(t *testing.T) {
	a, b := testSignals(t, 5)
	cond, err := Eq(a, b)
	require.NoError(t, err)
	m, err := Mux(cond, a, b)
	require.NoError(t, err)
	require.Equal(t, uint(5), m.Width())

	_, narrow := testSignals(t, 2)
	_, err = Mux(cond, a, narrow)
	var werr *WidthError
	require.True(t, errors.As(err, &werr))
}

func TestExtension(t *testing.T) {
	a, b := testSignals(t, 4)
	z, err := Extend(a, 8)
	require.NoError(t, err)
	require.Equal(t, uint(8), z.Width())
	require.False(t, z.(*Extension).Signed)

	_, err = Extend(a, 4)
	var eerr *ExtensionError
	require.True(t, errors.As(err, &eerr))

	s, err := SignExtend(a, 6)
	require.NoError(t, err)
	sign := s.(*Extension).SignBit.(*Slice)
	require.Equal(t, uint(3), sign.MSB)
	require.Same(t, a, sign.Root)

	sum, err := Add(a, b)
	require.NoError(t, err)
	s, err = SignExtend(sum, 8)
	require.NoError(t, err)
	require.Len(t, Children(s), 2)
}

func TestConstants(t *testing.T) {
	c, err := Const(255, 8)
	require.NoError(t, err)
	require.Equal(t, "8'hff", c.String())

	_, err = Const(256, 8)
	var cerr *ConstantError
	require.True(t, errors.As(err, &cerr))

	_, err = Const(0, 0)
	require.True(t, errors.As(err, &cerr))

	wide := new(big.Int).Lsh(big.NewInt(1), 99)
	c, err = ConstBig(wide, 100)
	require.NoError(t, err)
	require.Equal(t, "100'h8000000000000000000000000", c.String())
}

func TestOperandsNotMutated(t *testing.T) {
	a, b := testSignals(t, 8)
	and, err := And(a, b)
	require.NoError(t, err)
	before := *and.(*Binary)
	_, err = SliceOf(and, 3, 0)
	require.NoError(t, err)
	_, err = Add(and, and)
	require.NoError(t, err)
	require.Equal(t, before, *and.(*Binary))
}

func TestWalkVisitsSharedNodes(t *testing.T) {
	a, b := testSignals(t, 2)
	and := Must(And(a, b))
	root := Must(Or(and, and))
	count := 0
	Walk(root, func(e Expr) bool {
		if e == and {
			count++
		}
		return true
	})
	require.Equal(t, 2, count)
}

func TestMustRecover(t *testing.T) {
	a, _ := testSignals(t, 2)
	_, narrow := testSignals(t, 3)
	run := func() (err error) {
		defer Recover(&err)
		Must(And(a, narrow))
		return nil
	}
	err := run()
	var werr *WidthError
	require.True(t, errors.As(err, &werr))

	require.Panics(t, func() {
		var err error
		defer Recover(&err)
		panic("not an error from Must")
	})
}

func TestValidIdentifier(t *testing.T) {
	for _, name := range []string{"clk", "_x", "data_in$1", "A9"} {
		require.NoError(t, ValidIdentifier("m", name), name)
	}
	for _, name := range []string{"", "9a", "a-b", "wire", "module", "reg", "a b"} {
		var nerr *NameError
		require.True(t, errors.As(ValidIdentifier("m", name), &nerr), name)
	}
}
