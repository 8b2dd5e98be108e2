package verilog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set"

	"github.com/robert-at-pretension-io/hdlgen/internal/hdl"
)

// HoistedWire is a generated wire that carries a sliced compound expression.
type HoistedWire struct {
	Wire *hdl.Signal
	Root hdl.Expr
	Hash string
}

// SliceRewrites records, for one module, which slices read a hoisted wire
// instead of their own root. Expression nodes are never modified; the
// evaluator consults Lookup instead.
type SliceRewrites struct {
	module   *hdl.Module
	rewrites map[*hdl.Slice]*hdl.Signal
	byHash   map[string]*hdl.Signal
	wires    []HoistedWire
	claimed  mapset.Set
	resolve  func(*hdl.Signal) (string, error)
}

// Lookup returns the wire a slice reads from, or nil when it slices its root
// directly.
func (r *SliceRewrites) Lookup(s *hdl.Slice) *hdl.Signal {
	if r == nil {
		return nil
	}
	return r.rewrites[s]
}

// Wires lists hoisted wires in the order they were first needed.
func (r *SliceRewrites) Wires() []HoistedWire {
	if r == nil {
		return nil
	}
	return r.wires
}

// Claimed reports whether name is a hoisted wire.
func (r *SliceRewrites) Claimed(name string) bool {
	return r != nil && r.claimed.Contains(name)
}

// TransformSlices walks every expression of m reachable from a process,
// instance port or testbench statement and hoists the roots of slices that
// are not plain references. resolve names foreign signals so that equal
// structure means equal value inside m.
func TransformSlices(m *hdl.Module, resolve func(*hdl.Signal) (string, error)) (*SliceRewrites, error) {
	r := &SliceRewrites{
		module:   m,
		rewrites: make(map[*hdl.Slice]*hdl.Signal),
		byHash:   make(map[string]*hdl.Signal),
		claimed:  mapset.NewThreadUnsafeSet(),
		resolve:  resolve,
	}
	for _, p := range m.SyncProcesses() {
		if err := r.expr(p.Clock); err != nil {
			return nil, err
		}
		if err := r.block(p.Body); err != nil {
			return nil, err
		}
	}
	for _, body := range m.CombProcesses() {
		if err := r.block(body); err != nil {
			return nil, err
		}
	}
	for _, sub := range m.Submodules() {
		for _, b := range sub.Inputs {
			if err := r.expr(b.Expr); err != nil {
				return nil, err
			}
		}
	}
	for _, v := range m.Vendors() {
		for _, b := range v.Inputs {
			if err := r.expr(b.Expr); err != nil {
				return nil, err
			}
		}
	}
	if sim := m.Simulation(); sim != nil {
		if err := r.block(sim.Initial()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *SliceRewrites) block(b hdl.Block) error {
	var err error
	hdl.WalkBlock(b, func(st hdl.Statement) {
		if err != nil {
			return
		}
		for _, e := range hdl.Exprs(st) {
			if err = r.expr(e); err != nil {
				return
			}
		}
	})
	return err
}

func (r *SliceRewrites) expr(e hdl.Expr) error {
	var err error
	hdl.Walk(e, func(n hdl.Expr) bool {
		if err != nil {
			return false
		}
		s, ok := n.(*hdl.Slice)
		if !ok || hdl.IsRef(s.Root) {
			return true
		}
		if _, done := r.rewrites[s]; done {
			return false
		}
		err = r.hoist(s)
		return err == nil
	})
	return err
}

func (r *SliceRewrites) hoist(s *hdl.Slice) error {
	sig, err := r.signature(s.Root)
	if err != nil {
		return err
	}
	sum := sha256.Sum256([]byte(sig))
	hash := hex.EncodeToString(sum[:])
	if wire, ok := r.byHash[hash]; ok {
		r.rewrites[s] = wire
		return nil
	}
	name := r.wireName(hash)
	wire := hdl.NewGeneratedWire(r.module, name, s.Root.Width())
	r.byHash[hash] = wire
	r.rewrites[s] = wire
	r.claimed.Add(name)
	r.wires = append(r.wires, HoistedWire{Wire: wire, Root: s.Root, Hash: hash})
	return nil
}

func (r *SliceRewrites) wireName(hash string) string {
	for n := 8; ; n += 4 {
		name := "sliced_" + hash[:n]
		if r.claimed.Contains(name) {
			continue
		}
		if r.module.Has(name) {
			continue
		}
		return name
	}
}

// signature is a canonical text form of e; two expressions with the same
// signature compute the same value inside the module.
func (r *SliceRewrites) signature(e hdl.Expr) (string, error) {
	var b strings.Builder
	if err := r.writeSignature(&b, e); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (r *SliceRewrites) writeSignature(b *strings.Builder, e hdl.Expr) error {
	children := hdl.Children(e)
	switch n := e.(type) {
	case *hdl.Signal:
		name, err := r.resolve(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "sig:%s/%d", name, n.Width())
		return nil
	case *hdl.Proxy:
		fmt.Fprintf(b, "proxy:%s/%d", n.Name(), n.Width())
		return nil
	case *hdl.ReadOnly:
		fmt.Fprintf(b, "ro:%s/%d", n.Name(), n.Width())
		return nil
	case *hdl.Constant:
		b.WriteString("const:" + n.String())
		return nil
	case *hdl.Slice:
		fmt.Fprintf(b, "slice[%d:%d]", n.MSB, n.LSB)
	case *hdl.Concat:
		b.WriteString("cat")
	case *hdl.Repeat:
		fmt.Fprintf(b, "rep%d", n.Count)
	case *hdl.Ternary:
		b.WriteString("mux")
	case *hdl.Binary:
		b.WriteString(n.Op.String())
	case *hdl.Unary:
		b.WriteString(n.Op.String())
	case *hdl.Extension:
		fmt.Fprintf(b, "ext%t/%d", n.Signed, n.To)
		children = []hdl.Expr{n.Operand}
	case *hdl.MemoryElement:
		fmt.Fprintf(b, "mem:%s", n.Memory.Name())
	default:
		return fmt.Errorf("module %q: cannot sign %T", r.module.Name(), e)
	}
	b.WriteByte('(')
	for i, c := range children {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := r.writeSignature(b, c); err != nil {
			return err
		}
	}
	b.WriteByte(')')
	return nil
}
