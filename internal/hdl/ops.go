package hdl

// Every constructor validates operand shapes and returns a fresh node; operands
// are never modified. This is the only place shape invariants are enforced, so
// a node that exists is a node the generator can render.

func binary(op BinaryOp, a, b Expr) (Expr, error) {
	if a.Width() != b.Width() {
		return nil, &WidthError{Signal: label(b), Op: op.String(), Expected: a.Width(), Actual: b.Width()}
	}
	return &Binary{Op: op, Left: a, Right: b}, nil
}

// And is bitwise a & b.
func And(a, b Expr) (Expr, error) { return binary(OpAnd, a, b) }

// Or is bitwise a | b.
func Or(a, b Expr) (Expr, error) { return binary(OpOr, a, b) }

// Xor is bitwise a ^ b.
func Xor(a, b Expr) (Expr, error) { return binary(OpXor, a, b) }

// Shl is a << b.
func Shl(a, b Expr) (Expr, error) { return binary(OpShl, a, b) }

// Shr is the logical shift a >> b.
func Shr(a, b Expr) (Expr, error) { return binary(OpShr, a, b) }

// Sra is the arithmetic shift a >>> b.
func Sra(a, b Expr) (Expr, error) { return binary(OpSra, a, b) }

// Add is a + b; the result carries one extra bit.
func Add(a, b Expr) (Expr, error) { return binary(OpAdd, a, b) }

// Sub is a - b; the result carries one extra bit.
func Sub(a, b Expr) (Expr, error) { return binary(OpSub, a, b) }

func Eq(a, b Expr) (Expr, error) { return binary(OpEq, a, b) }
func Ne(a, b Expr) (Expr, error) { return binary(OpNe, a, b) }
func Lt(a, b Expr) (Expr, error) { return binary(OpLt, a, b) }
func Le(a, b Expr) (Expr, error) { return binary(OpLe, a, b) }
func Gt(a, b Expr) (Expr, error) { return binary(OpGt, a, b) }
func Ge(a, b Expr) (Expr, error) { return binary(OpGe, a, b) }

// LogicalAnd is a && b.
func LogicalAnd(a, b Expr) (Expr, error) { return binary(OpLogicalAnd, a, b) }

// LogicalOr is a || b.
func LogicalOr(a, b Expr) (Expr, error) { return binary(OpLogicalOr, a, b) }

// Not is boolean negation, one bit wide.
func Not(a Expr) Expr { return &Unary{Op: OpNot, Operand: a} }

// Invert is bitwise inversion.
func Invert(a Expr) Expr { return &Unary{Op: OpInvert, Operand: a} }

// Mux returns cond ? then : els.
func Mux(cond, then, els Expr) (Expr, error) {
	if then.Width() != els.Width() {
		return nil, &WidthError{Signal: label(els), Op: "ternary", Expected: then.Width(), Actual: els.Width()}
	}
	return &Ternary{Cond: cond, Then: then, Else: els}, nil
}

// Concatenate joins operands most significant first.
func Concatenate(operands ...Expr) (Expr, error) {
	if len(operands) < 2 {
		return nil, &ConcatError{Operands: len(operands)}
	}
	var width uint
	for _, op := range operands {
		width += op.Width()
	}
	ops := make([]Expr, len(operands))
	copy(ops, operands)
	return &Concat{Operands: ops, width: width}, nil
}

// Replicate repeats a count times.
func Replicate(a Expr, count int) (Expr, error) {
	if count < 1 {
		return nil, &RepeatError{Signal: label(a), Count: count}
	}
	return &Repeat{Operand: a, Count: uint(count)}, nil
}

// SliceOf selects bits msb down to lsb of a.
func SliceOf(a Expr, msb, lsb uint) (Expr, error) {
	if lsb > msb || msb >= a.Width() {
		return nil, &SliceError{Signal: label(a), MSB: msb, LSB: lsb, Width: a.Width()}
	}
	return &Slice{Root: a, MSB: msb, LSB: lsb}, nil
}

// Bit selects bit i of a; it is SliceOf(a, i, i).
func Bit(a Expr, i uint) (Expr, error) { return SliceOf(a, i, i) }

// Extend zero-extends a to width bits.
func Extend(a Expr, width uint) (Expr, error) {
	if width <= a.Width() {
		return nil, &ExtensionError{Signal: label(a), Width: a.Width(), To: width}
	}
	return &Extension{Operand: a, To: width}, nil
}

// SignExtend replicates the most significant bit of a up to width bits.
func SignExtend(a Expr, width uint) (Expr, error) {
	if width <= a.Width() {
		return nil, &ExtensionError{Signal: label(a), Width: a.Width(), To: width}
	}
	var sign Expr = a
	if a.Width() > 1 || !IsRef(a) {
		sign = &Slice{Root: a, MSB: a.Width() - 1, LSB: a.Width() - 1}
	}
	return &Extension{Operand: a, To: width, Signed: true, SignBit: sign}, nil
}

func label(e Expr) string {
	switch n := e.(type) {
	case Ref:
		return n.Name()
	case *Constant:
		return n.String()
	case *Binary:
		return n.Op.String()
	case *Unary:
		return n.Op.String()
	case *Slice:
		return "slice"
	case *Concat:
		return "concat"
	case *Repeat:
		return "repeat"
	case *Ternary:
		return "ternary"
	case *Extension:
		return "extend"
	case *MemoryElement:
		return n.Memory.name
	}
	return ""
}
