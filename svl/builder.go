package svl

// Builder constructs expressions. It has no state of its own (unlike
// gosmt's ExprBuilder, which memoizes by hash for node sharing); this
// core only needs construction, not sharing, so Builder is stateless and
// safe for concurrent use.
type Builder struct{}

// NewBuilder returns a stateless expression builder.
func NewBuilder() *Builder { return &Builder{} }

// And returns the conjunction of one or more boolean expressions.
func (b *Builder) And(exprs ...Expr) Expr {
	switch len(exprs) {
	case 0:
		return &Const{WidthBits: 1, Value: 1}
	case 1:
		return exprs[0]
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = &Binary{Op: OpAnd, LHS: out, RHS: e}
	}
	return out
}

// Not returns the boolean negation of e.
func (b *Builder) Not(e Expr) Expr {
	if n, ok := e.(*Not); ok {
		return n.Src
	}
	return &Not{Src: e}
}

// Eq returns lhs == rhs.
func (b *Builder) Eq(lhs, rhs Expr) Expr {
	return &Binary{Op: OpEq, LHS: lhs, RHS: rhs}
}

// Extract returns the 8-bit byte at bit offset offsetBits within e, i.e.
// Extract(e, offsetBits, 8) per the SMT adapter contract.
func (b *Builder) Extract(e Expr, offsetBits uint) Expr {
	return &Extract{Src: e, OffsetBits: offsetBits, WidthBits: 8}
}
