package hdl

import (
	"fmt"
	"math/big"
)

// Direction is the role a signal plays in its module.
type Direction int

const (
	Internal Direction = iota
	Input
	Output
	Inout
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	case Inout:
		return "inout"
	}
	return "internal"
}

// Signal is a named wire or register owned by exactly one module.
type Signal struct {
	name      string
	width     uint
	dir       Direction
	module    *Module
	generated bool
}

func (s *Signal) Width() uint          { return s.width }
func (s *Signal) Name() string         { return s.name }
func (s *Signal) Module() *Module      { return s.module }
func (s *Signal) Direction() Direction { return s.dir }

// Generated reports whether the compiler created the signal (a hoisted slice
// wire) rather than the describe callback.
func (s *Signal) Generated() bool { return s.generated }
func (*Signal) exprNode()         {}

func (s *Signal) String() string {
	if s.module == nil {
		return s.name
	}
	return s.module.name + "." + s.name
}

// NewGeneratedWire creates a compiler-owned internal signal of m. It is used by
// the code generator for hoisted slice roots and is not registered in the
// module's declared internals.
func NewGeneratedWire(m *Module, name string, width uint) *Signal {
	return &Signal{name: name, width: width, dir: Internal, module: m, generated: true}
}

// Proxy is a testbench-writable alias of a module-under-test input.
type Proxy struct {
	target *Signal
	sim    *Module
}

func (p *Proxy) Width() uint     { return p.target.width }
func (p *Proxy) Name() string    { return p.target.name }
func (p *Proxy) Module() *Module { return p.sim }

// Target is the module-under-test input the proxy stands for.
func (p *Proxy) Target() *Signal { return p.target }
func (*Proxy) exprNode()         {}

// ReadOnly is a testbench-readable alias of a module-under-test output.
type ReadOnly struct {
	target *Signal
	sim    *Module
}

func (r *ReadOnly) Width() uint     { return r.target.width }
func (r *ReadOnly) Name() string    { return r.target.name }
func (r *ReadOnly) Module() *Module { return r.sim }

// Target is the module-under-test port the alias observes.
func (r *ReadOnly) Target() *Signal { return r.target }
func (*ReadOnly) exprNode()         {}

// Constant is a literal of fixed width.
type Constant struct {
	value *big.Int
	width uint
}

// Const returns a width-bit constant holding v.
func Const(v uint64, width uint) (*Constant, error) {
	return ConstBig(new(big.Int).SetUint64(v), width)
}

// ConstBig returns a width-bit constant holding v, for values wider than 64 bits.
func ConstBig(v *big.Int, width uint) (*Constant, error) {
	if width == 0 || v.Sign() < 0 || uint(v.BitLen()) > width {
		return nil, &ConstantError{Value: v.String(), Width: width}
	}
	return &Constant{value: new(big.Int).Set(v), width: width}, nil
}

func (c *Constant) Width() uint { return c.width }
func (*Constant) exprNode()     {}

// Value returns a copy of the constant's value.
func (c *Constant) Value() *big.Int { return new(big.Int).Set(c.value) }

// Hex is the lowercase hexadecimal digits of the value.
func (c *Constant) Hex() string { return c.value.Text(16) }

func (c *Constant) String() string { return fmt.Sprintf("%d'h%s", c.width, c.Hex()) }

// Memory is a word-addressed array of registers.
type Memory struct {
	name   string
	width  uint
	depth  uint
	module *Module
}

func (m *Memory) Name() string    { return m.name }
func (m *Memory) Width() uint     { return m.width }
func (m *Memory) Depth() uint     { return m.depth }
func (m *Memory) Module() *Module { return m.module }

// At addresses one word of the memory.
func (m *Memory) At(addr Expr) *MemoryElement {
	return &MemoryElement{Memory: m, Address: addr}
}
