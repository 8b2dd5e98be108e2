package hdl

import (
	"fmt"
	"math/big"
)

// Statement is one element of a process body.
type Statement interface {
	stmtNode()
}

// Block is an ordered statement list.
type Block []Statement

// Assignment writes RHS into LHS.
type Assignment struct {
	LHS Expr
	RHS Expr
}

func (*Assignment) stmtNode() {}

// Assign checks that lhs can be written and that both sides have the same width.
func Assign(lhs, rhs Expr) (*Assignment, error) {
	if err := assignable(lhs); err != nil {
		return nil, err
	}
	if lhs.Width() != rhs.Width() {
		return nil, &WidthError{Signal: label(lhs), Op: "assignment", Expected: lhs.Width(), Actual: rhs.Width()}
	}
	return &Assignment{LHS: lhs, RHS: rhs}, nil
}

func assignable(e Expr) error {
	switch n := e.(type) {
	case *Signal:
		if n.dir == Input {
			return &AssignmentError{Target: n.name, Reason: "input ports are read-only"}
		}
		return nil
	case *Proxy:
		return nil
	case *ReadOnly:
		return &AssignmentError{Target: n.Name(), Reason: "read-only alias of a module-under-test port"}
	case *Slice:
		if !IsRef(n.Root) {
			return &AssignmentError{Target: label(n.Root), Reason: "slice of a compound expression"}
		}
		return assignable(n.Root)
	case *Concat:
		for _, op := range n.Operands {
			if err := assignable(op); err != nil {
				return err
			}
		}
		return nil
	case *MemoryElement:
		return nil
	}
	return &AssignmentError{Target: label(e), Reason: fmt.Sprintf("%T is not assignable", e)}
}

// Branch is a guarded body inside an if chain.
type Branch struct {
	Cond Expr
	Body Block
}

// If is an if / else-if / else chain. A nil ElseBody means there is no else.
type If struct {
	Cond     Expr
	Body     Block
	ElseIfs  []Branch
	ElseBody Block
}

func (*If) stmtNode() {}

// NewIf starts an if chain.
func NewIf(cond Expr, body ...Statement) *If {
	return &If{Cond: cond, Body: body}
}

// ElseIf returns a copy of the chain with one more guarded branch. The
// receiver is left untouched.
func (s *If) ElseIf(cond Expr, body ...Statement) *If {
	next := s.clone()
	next.ElseIfs = append(next.ElseIfs, Branch{Cond: cond, Body: body})
	return next
}

// Else returns a copy of the chain with the fallback body set.
func (s *If) Else(body ...Statement) *If {
	next := s.clone()
	next.ElseBody = append(Block{}, body...)
	return next
}

func (s *If) clone() *If {
	next := *s
	next.ElseIfs = append([]Branch(nil), s.ElseIfs...)
	return &next
}

// Case is one arm of a switch.
type Case struct {
	Value *Constant
	Body  Block
}

// Switch selects the arm whose value equals Subject. A nil Default means the
// cases cover every value of Subject.
type Switch struct {
	Subject Expr
	Cases   []Case
	Default Block
}

func (*Switch) stmtNode() {}

// NewSwitch builds a switch without a default arm; the cases must cover all
// 2^width values of subject.
func NewSwitch(subject Expr, cases ...Case) (*Switch, error) {
	return newSwitch(subject, nil, cases)
}

// NewSwitchDefault builds a switch whose unmatched values run def.
func NewSwitchDefault(subject Expr, def Block, cases ...Case) (*Switch, error) {
	if def == nil {
		def = Block{}
	}
	return newSwitch(subject, def, cases)
}

func newSwitch(subject Expr, def Block, cases []Case) (*Switch, error) {
	seen := make(map[string]bool, len(cases))
	for i, c := range cases {
		if c.Value == nil {
			return nil, &SwitchError{Subject: label(subject), Reason: fmt.Sprintf("case %d has no value", i)}
		}
		if c.Value.Width() != subject.Width() {
			return nil, &WidthError{Signal: label(subject), Op: "case " + c.Value.String(), Expected: subject.Width(), Actual: c.Value.Width()}
		}
		key := c.Value.Hex()
		if seen[key] {
			return nil, &SwitchError{Subject: label(subject), Reason: "duplicate case " + c.Value.String()}
		}
		seen[key] = true
	}
	if def == nil {
		need := new(big.Int).Lsh(big.NewInt(1), subject.Width())
		if need.Cmp(big.NewInt(int64(len(cases)))) != 0 {
			return nil, &SwitchError{
				Subject: label(subject),
				Reason:  fmt.Sprintf("%d cases without default, need %s for a %d-bit subject", len(cases), need, subject.Width()),
			}
		}
	}
	return &Switch{Subject: subject, Cases: append([]Case(nil), cases...), Default: def}, nil
}

// AdvanceTime waits Amount time units; it only renders in testbenches.
type AdvanceTime struct {
	Amount uint
}

func (*AdvanceTime) stmtNode() {}

// Delay returns an AdvanceTime statement.
func Delay(amount uint) *AdvanceTime { return &AdvanceTime{Amount: amount} }

// Display prints a formatted line from a testbench.
type Display struct {
	Format string
	Args   []Expr
}

func (*Display) stmtNode() {}

// NewDisplay validates that format fits in a one-line string literal.
func NewDisplay(format string, args ...Expr) (*Display, error) {
	if !linePattern.MatchString(format) {
		return nil, &AssignmentError{Target: "$display", Reason: fmt.Sprintf("format %q spans several lines", format)}
	}
	return &Display{Format: format, Args: args}, nil
}

// Finish ends the simulation.
type Finish struct{}

func (*Finish) stmtNode() {}

// WalkBlock calls fn for every statement in b, descending into nested bodies.
func WalkBlock(b Block, fn func(Statement)) {
	for _, st := range b {
		fn(st)
		switch s := st.(type) {
		case *If:
			WalkBlock(s.Body, fn)
			for _, br := range s.ElseIfs {
				WalkBlock(br.Body, fn)
			}
			WalkBlock(s.ElseBody, fn)
		case *Switch:
			for _, c := range s.Cases {
				WalkBlock(c.Body, fn)
			}
			WalkBlock(s.Default, fn)
		}
	}
}

// Exprs returns the expressions a statement reads or writes directly, not
// counting nested bodies.
func Exprs(st Statement) []Expr {
	switch s := st.(type) {
	case *Assignment:
		return []Expr{s.LHS, s.RHS}
	case *If:
		out := []Expr{s.Cond}
		for _, br := range s.ElseIfs {
			out = append(out, br.Cond)
		}
		return out
	case *Switch:
		return []Expr{s.Subject}
	case *Display:
		return s.Args
	}
	return nil
}
