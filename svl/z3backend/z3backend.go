// Package z3backend is a svl.Backend implementation on top of
// github.com/aclements/go-z3, grounded on borzacchiello/gosmt's
// z3backend.go (same recursive convert-with-cache structure, same
// check-and-negate pattern for disequality) and on benbjohnson/glee's
// z3.Solver (assert a query, then check it). It is kept in its own package, like
// gosmt keeps the z3-specific file separate from the expression tree, so
// that the rest of this module never needs a live Z3 install to build or
// run its non-solver tests.
package z3backend

import (
	"github.com/aclements/go-z3/z3"

	"github.com/nfsynth/synapse/svl"
)

// Backend decides svl equality queries with one Z3 context, created by New
// and kept for the Backend's lifetime, and a fresh Z3 solver per query,
// mirroring gosmt's newZ3Backend()/check() reset-before-use pattern rather
// than keeping long-lived incremental solver state, since every query here
// is a one-shot validity check.
type Backend struct {
	cfg *z3.Config
	ctx *z3.Context
}

// New returns a Backend with a fresh Z3 context.
func New() *Backend {
	cfg := z3.NewContextConfig()
	return &Backend{cfg: cfg, ctx: z3.NewContext(cfg)}
}

// EqualUnderConstraints implements svl.Backend.
func (b *Backend) EqualUnderConstraints(e1, e2 svl.Expr, pc1, pc2 []svl.Expr) (alwaysEq, alwaysNotEq bool) {
	alwaysEq = !b.satisfiable(notEq(e1, e2), pc1, pc2)
	alwaysNotEq = !b.satisfiable(eq(e1, e2), pc1, pc2)
	return alwaysEq, alwaysNotEq
}

func eq(e1, e2 svl.Expr) svl.Expr {
	return (&svl.Builder{}).Eq(e1, e2)
}

func notEq(e1, e2 svl.Expr) svl.Expr {
	return (&svl.Builder{}).Not(eq(e1, e2))
}

// satisfiable reports whether query && pc1 && pc2 has a model.
func (b *Backend) satisfiable(query svl.Expr, pc1, pc2 []svl.Expr) bool {
	solver := z3.NewSolver(b.ctx)
	cache := make(map[svl.Expr]z3.Value)

	solver.Assert(b.convert(query, cache).(z3.Bool))
	for _, c := range pc1 {
		solver.Assert(b.convert(c, cache).(z3.Bool))
	}
	for _, c := range pc2 {
		solver.Assert(b.convert(c, cache).(z3.Bool))
	}

	sat, err := solver.Check()
	if err != nil {
		// Treated as "we cannot prove the negation is unsatisfiable":
		// conservatively assume satisfiable, so neither AlwaysEqual nor
		// AlwaysNotEqual is claimed without grounds.
		return true
	}
	return sat
}

func (b *Backend) convert(e svl.Expr, cache map[svl.Expr]z3.Value) z3.Value {
	if v, ok := cache[e]; ok {
		return v
	}

	var result z3.Value
	switch v := e.(type) {
	case *svl.Symbol:
		result = b.ctx.BVConst(v.Label, int(v.WidthBits))
	case *svl.Const:
		result = b.ctx.FromInt(int64(v.Value), b.ctx.BVSort(int(v.WidthBits))).(z3.BV)
	case *svl.Extract:
		src := b.convert(v.Src, cache).(z3.BV)
		result = src.Extract(int(v.OffsetBits+v.WidthBits-1), int(v.OffsetBits))
	case *svl.Concat:
		msb := b.convert(v.MSB, cache).(z3.BV)
		lsb := b.convert(v.LSB, cache).(z3.BV)
		result = msb.Concat(lsb)
	case *svl.Not:
		result = b.convert(v.Src, cache).(z3.Bool).Not()
	case *svl.Binary:
		lhs := b.convert(v.LHS, cache)
		rhs := b.convert(v.RHS, cache)
		switch v.Op {
		case svl.OpEq:
			result = lhs.(z3.BV).Eq(rhs.(z3.BV))
		case svl.OpAnd:
			result = lhs.(z3.Bool).And(rhs.(z3.Bool))
		case svl.OpOr:
			result = lhs.(z3.Bool).Or(rhs.(z3.Bool))
		case svl.OpAdd:
			result = lhs.(z3.BV).Add(rhs.(z3.BV))
		case svl.OpSub:
			result = lhs.(z3.BV).Sub(rhs.(z3.BV))
		}
	}

	cache[e] = result
	return result
}
