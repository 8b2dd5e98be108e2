package hdl

// Expr is a node of the signal expression graph. Nodes are immutable once
// built and may be shared by several parents, so the graph is a DAG.
type Expr interface {
	// Width is the number of bits the expression evaluates to.
	Width() uint
	exprNode()
}

// Ref is an expression Verilog can slice or index directly: a signal, a
// simulation proxy or a read-only alias.
type Ref interface {
	Expr
	Name() string
	Module() *Module
}

// BinaryOp enumerates the two-operand operators.
type BinaryOp int

const (
	OpAnd BinaryOp = iota
	OpOr
	OpXor
	OpShl
	OpShr
	OpSra
	OpAdd
	OpSub
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLogicalAnd
	OpLogicalOr
)

// OpClass groups operators by their width rule.
type OpClass int

const (
	ClassBitwise OpClass = iota
	ClassShift
	ClassArithmetic
	ClassComparison
	ClassBoolean
)

var binaryTokens = [...]string{
	OpAnd:        "&",
	OpOr:         "|",
	OpXor:        "^",
	OpShl:        "<<",
	OpShr:        ">>",
	OpSra:        ">>>",
	OpAdd:        "+",
	OpSub:        "-",
	OpEq:         "==",
	OpNe:         "!=",
	OpLt:         "<",
	OpLe:         "<=",
	OpGt:         ">",
	OpGe:         ">=",
	OpLogicalAnd: "&&",
	OpLogicalOr:  "||",
}

var binaryNames = [...]string{
	OpAnd:        "and",
	OpOr:         "or",
	OpXor:        "xor",
	OpShl:        "shl",
	OpShr:        "shr",
	OpSra:        "sra",
	OpAdd:        "add",
	OpSub:        "sub",
	OpEq:         "eq",
	OpNe:         "ne",
	OpLt:         "lt",
	OpLe:         "le",
	OpGt:         "gt",
	OpGe:         "ge",
	OpLogicalAnd: "land",
	OpLogicalOr:  "lor",
}

// Token is the Verilog spelling of the operator.
func (op BinaryOp) Token() string { return binaryTokens[op] }

// String is a short mnemonic used in error messages and structural signatures.
func (op BinaryOp) String() string { return binaryNames[op] }

// Class reports the width rule the operator follows.
func (op BinaryOp) Class() OpClass {
	switch op {
	case OpAnd, OpOr, OpXor:
		return ClassBitwise
	case OpShl, OpShr, OpSra:
		return ClassShift
	case OpAdd, OpSub:
		return ClassArithmetic
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return ClassComparison
	default:
		return ClassBoolean
	}
}

// UnaryOp enumerates the one-operand operators.
type UnaryOp int

const (
	// OpNot is boolean negation; the result is one bit wide.
	OpNot UnaryOp = iota
	// OpInvert is bitwise inversion; the width is preserved.
	OpInvert
)

// Token is the Verilog spelling of the operator.
func (op UnaryOp) Token() string {
	if op == OpNot {
		return "!"
	}
	return "~"
}

func (op UnaryOp) String() string {
	if op == OpNot {
		return "not"
	}
	return "inv"
}

// Slice selects bits MSB down to LSB of Root.
type Slice struct {
	Root Expr
	MSB  uint
	LSB  uint
}

func (s *Slice) Width() uint { return s.MSB - s.LSB + 1 }
func (*Slice) exprNode()     {}

// Concat joins operands, most significant first.
type Concat struct {
	Operands []Expr
	width    uint
}

func (c *Concat) Width() uint { return c.width }
func (*Concat) exprNode()     {}

// Repeat replicates Operand Count times.
type Repeat struct {
	Operand Expr
	Count   uint
}

func (r *Repeat) Width() uint { return r.Operand.Width() * r.Count }
func (*Repeat) exprNode()     {}

// Ternary selects Then when Cond is true, else Else.
type Ternary struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (t *Ternary) Width() uint { return t.Then.Width() }
func (*Ternary) exprNode()     {}

// Binary applies a two-operand operator.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (b *Binary) Width() uint {
	switch b.Op.Class() {
	case ClassArithmetic:
		return b.Left.Width() + 1
	case ClassComparison, ClassBoolean:
		return 1
	default:
		return b.Left.Width()
	}
}
func (*Binary) exprNode() {}

// Unary applies a one-operand operator.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

func (u *Unary) Width() uint {
	if u.Op == OpNot {
		return 1
	}
	return u.Operand.Width()
}
func (*Unary) exprNode() {}

// Extension widens Operand to To bits, filling with zeros or copies of SignBit.
type Extension struct {
	Operand Expr
	To      uint
	Signed  bool
	// SignBit is the most significant bit of Operand, kept as its own node so
	// the slice pass can hoist it when Operand is not a plain reference.
	SignBit Expr
}

func (e *Extension) Width() uint { return e.To }
func (*Extension) exprNode()     {}

// MemoryElement reads or writes one word of a memory.
type MemoryElement struct {
	Memory  *Memory
	Address Expr
}

func (m *MemoryElement) Width() uint { return m.Memory.width }
func (*MemoryElement) exprNode()     {}

// IsRef reports whether e can be sliced directly in Verilog.
func IsRef(e Expr) bool {
	_, ok := e.(Ref)
	return ok
}

// Walk visits e and every expression reachable from it, depth first, parents
// before children. Shared nodes are visited once per path.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, child := range Children(e) {
		Walk(child, fn)
	}
}

// Children returns the direct operands of e.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *Slice:
		return []Expr{n.Root}
	case *Concat:
		return n.Operands
	case *Repeat:
		return []Expr{n.Operand}
	case *Ternary:
		return []Expr{n.Cond, n.Then, n.Else}
	case *Binary:
		return []Expr{n.Left, n.Right}
	case *Unary:
		return []Expr{n.Operand}
	case *Extension:
		if n.Signed && n.SignBit != n.Operand {
			return []Expr{n.Operand, n.SignBit}
		}
		return []Expr{n.Operand}
	case *MemoryElement:
		return []Expr{n.Address}
	}
	return nil
}
