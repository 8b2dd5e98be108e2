package verilog

import (
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/hdlgen/internal/hdl"
)

// Evaluator renders expressions of one module to Verilog text.
type Evaluator struct {
	module *hdl.Module
	// outputs maps signals of instantiated modules to the wire that carries
	// them in this module.
	outputs map[*hdl.Signal]string
	slices  *SliceRewrites
}

// NewEvaluator returns an evaluator for m. outputs and slices may be nil.
func NewEvaluator(m *hdl.Module, outputs map[*hdl.Signal]string, slices *SliceRewrites) *Evaluator {
	return &Evaluator{module: m, outputs: outputs, slices: slices}
}

// Resolve returns the name a signal has inside the module being rendered.
func (ev *Evaluator) Resolve(s *hdl.Signal) (string, error) {
	if s.Module() == ev.module {
		return s.Name(), nil
	}
	if sim := ev.module.Simulation(); sim != nil && s.Module() == sim.MUT() {
		return s.Name(), nil
	}
	if name, ok := ev.outputs[s]; ok {
		return name, nil
	}
	owner := ""
	if s.Module() != nil {
		owner = s.Module().Name()
	}
	return "", &hdl.SignalOwnershipError{Module: ev.module.Name(), Signal: s.Name(), Owner: owner}
}

func (ev *Evaluator) alias(r hdl.Ref) (string, error) {
	if r.Module() != ev.module {
		owner := ""
		if r.Module() != nil {
			owner = r.Module().Name()
		}
		return "", &hdl.SignalOwnershipError{Module: ev.module.Name(), Signal: r.Name(), Owner: owner}
	}
	return r.Name(), nil
}

// Eval renders e. Composite expressions come back parenthesised.
func (ev *Evaluator) Eval(e hdl.Expr) (string, error) {
	switch n := e.(type) {
	case *hdl.Signal:
		return ev.Resolve(n)
	case *hdl.Proxy:
		return ev.alias(n)
	case *hdl.ReadOnly:
		return ev.alias(n)
	case *hdl.Constant:
		return n.String(), nil
	case *hdl.Slice:
		return ev.slice(n)
	case *hdl.Concat:
		parts, err := ev.flatten(n, nil)
		if err != nil {
			return "", err
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	case *hdl.Repeat:
		inner, err := ev.Eval(n.Operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("{%d{%s}}", n.Count, inner), nil
	case *hdl.Ternary:
		cond, err := ev.Eval(n.Cond)
		if err != nil {
			return "", err
		}
		then, err := ev.Eval(n.Then)
		if err != nil {
			return "", err
		}
		els, err := ev.Eval(n.Else)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s ? %s : %s)", cond, then, els), nil
	case *hdl.Binary:
		left, err := ev.Eval(n.Left)
		if err != nil {
			return "", err
		}
		right, err := ev.Eval(n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, n.Op.Token(), right), nil
	case *hdl.Unary:
		inner, err := ev.Eval(n.Operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s%s)", n.Op.Token(), inner), nil
	case *hdl.Extension:
		return ev.extension(n)
	case *hdl.MemoryElement:
		if n.Memory.Module() != ev.module {
			return "", &hdl.SignalOwnershipError{Module: ev.module.Name(), Signal: n.Memory.Name(), Owner: n.Memory.Module().Name()}
		}
		addr, err := ev.Eval(n.Address)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", n.Memory.Name(), addr), nil
	case nil:
		return "", fmt.Errorf("module %q: nil expression", ev.module.Name())
	}
	return "", fmt.Errorf("module %q: unsupported expression %T", ev.module.Name(), e)
}

func (ev *Evaluator) flatten(c *hdl.Concat, parts []string) ([]string, error) {
	for _, op := range c.Operands {
		if inner, ok := op.(*hdl.Concat); ok {
			var err error
			if parts, err = ev.flatten(inner, parts); err != nil {
				return nil, err
			}
			continue
		}
		text, err := ev.Eval(op)
		if err != nil {
			return nil, err
		}
		parts = append(parts, text)
	}
	return parts, nil
}

func (ev *Evaluator) slice(s *hdl.Slice) (string, error) {
	var root hdl.Expr = s.Root
	if wire := ev.slices.Lookup(s); wire != nil {
		root = wire
	}
	if !hdl.IsRef(root) {
		return "", fmt.Errorf("module %q: slice of %T was not hoisted", ev.module.Name(), root)
	}
	name, err := ev.Eval(root)
	if err != nil {
		return "", err
	}
	if root.Width() == 1 {
		return name, nil
	}
	if s.MSB == s.LSB {
		return fmt.Sprintf("%s[%d]", name, s.MSB), nil
	}
	return fmt.Sprintf("%s[%d:%d]", name, s.MSB, s.LSB), nil
}

func (ev *Evaluator) extension(x *hdl.Extension) (string, error) {
	inner, err := ev.Eval(x.Operand)
	if err != nil {
		return "", err
	}
	fill := "1'b0"
	if x.Signed {
		if fill, err = ev.Eval(x.SignBit); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("{{%d{%s}}, %s}", x.To-x.Operand.Width(), fill, inner), nil
}

// Target renders the left side of an assignment. Only signals of the module
// being rendered can be written.
func (ev *Evaluator) Target(e hdl.Expr) (string, error) {
	var err error
	hdl.Walk(e, func(n hdl.Expr) bool {
		if err != nil {
			return false
		}
		switch r := n.(type) {
		case *hdl.Signal:
			if r.Module() != ev.module {
				err = &hdl.AssignmentError{Target: r.String(), Reason: fmt.Sprintf("signal is not owned by module %q", ev.module.Name())}
			}
		case *hdl.MemoryElement:
			// The address is read, not written.
			return false
		}
		return err == nil
	})
	if err != nil {
		return "", err
	}
	return ev.Eval(e)
}

// Condition renders e as the parenthesised condition of an if or case.
func (ev *Evaluator) Condition(e hdl.Expr) (string, error) {
	text, err := ev.Eval(e)
	if err != nil {
		return "", err
	}
	switch e.(type) {
	case *hdl.Binary, *hdl.Unary, *hdl.Ternary:
		return text, nil
	}
	return "(" + text + ")", nil
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote renders s as a Verilog string literal.
func quote(s string) string {
	return `"` + stringEscaper.Replace(s) + `"`
}
