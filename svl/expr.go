// Package svl is the Symbolic Value Layer: opaque handles to symbolic
// bit-vector expressions and predicates, plus equality and disequality
// queries under a set of path constraints (there is no implication
// query). The decision
// procedures behind Solver are out of scope for this package (the
// SMT solver itself is a non-goal of the core) but a complete, buildable
// module needs a concrete Expr/Builder/Solver contract, so this package
// provides one, grounded on borzacchiello/gosmt's expression-tree design
// (xxhash-keyed structural hashing, a small kind enum).
package svl

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Kind tags the sum of expression variants this layer supports. The set is
// deliberately small: just enough vocabulary for the dependency oracle to
// extract free symbols, slice packet-byte ranges, and build key/index
// disequality guards.
type Kind int

const (
	KindConst Kind = iota
	KindSymbol
	KindExtract
	KindConcat
	KindNot
	KindBinary
)

// BinaryOp is the operator of a Binary expression.
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpAnd
	OpOr
	OpAdd
	OpSub
)

func (op BinaryOp) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	default:
		return fmt.Sprintf("BinaryOp<%d>", int(op))
	}
}

// Expr is an opaque handle to a symbolic expression. Values are immutable
// once constructed; equality between two Exprs is structural, computed by
// Equal as a full tree comparison. Hash is separate and does not take part
// in Equal.
type Expr interface {
	// Kind returns the expression variant.
	Kind() Kind
	// Width returns the bit width of the expression (1 for booleans).
	Width() uint
	// Hash returns a structural hash, stable across process runs for a
	// given expression tree. Two structurally equal expressions always
	// hash equal; the converse need not hold.
	Hash() uint64
	// Equal reports structural equality with other by a full tree
	// comparison.
	Equal(other Expr) bool
	expr()
}

func (*Const) expr()   {}
func (*Symbol) expr()  {}
func (*Extract) expr() {}
func (*Concat) expr()  {}
func (*Not) expr()     {}
func (*Binary) expr()  {}

// Const is a literal bit-vector value.
type Const struct {
	WidthBits uint
	Value     uint64
}

func (c *Const) Kind() Kind  { return KindConst }
func (c *Const) Width() uint { return c.WidthBits }
func (c *Const) Hash() uint64 {
	h := xxhash.New()
	writeU64(h, uint64(KindConst))
	writeU64(h, uint64(c.WidthBits))
	writeU64(h, c.Value)
	return h.Sum64()
}
func (c *Const) Equal(other Expr) bool {
	o, ok := other.(*Const)
	return ok && o.WidthBits == c.WidthBits && o.Value == c.Value
}

// Symbol is a named free variable, e.g. a value bound by a Call argument
// or the distinguished "packet_chunks" array.
type Symbol struct {
	Label     string
	WidthBits uint
	// Offset is meaningful only for reads against an array-typed symbol
	// (such as "packet_chunks"): the constant byte offset being read.
	// HasOffset is false for scalar symbols.
	HasOffset bool
	Offset    uint
}

func (s *Symbol) Kind() Kind  { return KindSymbol }
func (s *Symbol) Width() uint { return s.WidthBits }
func (s *Symbol) Hash() uint64 {
	h := xxhash.New()
	writeU64(h, uint64(KindSymbol))
	h.Write([]byte(s.Label))
	writeU64(h, uint64(s.WidthBits))
	if s.HasOffset {
		writeU64(h, uint64(s.Offset)+1)
	}
	return h.Sum64()
}
func (s *Symbol) Equal(other Expr) bool {
	o, ok := other.(*Symbol)
	return ok && o.Label == s.Label && o.WidthBits == s.WidthBits &&
		o.HasOffset == s.HasOffset && o.Offset == s.Offset
}

// Extract slices WidthBits bits out of Src starting at OffsetBits.
type Extract struct {
	Src        Expr
	OffsetBits uint
	WidthBits  uint
}

func (e *Extract) Kind() Kind  { return KindExtract }
func (e *Extract) Width() uint { return e.WidthBits }
func (e *Extract) Hash() uint64 {
	h := xxhash.New()
	writeU64(h, uint64(KindExtract))
	writeU64(h, e.Src.Hash())
	writeU64(h, uint64(e.OffsetBits))
	writeU64(h, uint64(e.WidthBits))
	return h.Sum64()
}
func (e *Extract) Equal(other Expr) bool {
	o, ok := other.(*Extract)
	return ok && o.OffsetBits == e.OffsetBits && o.WidthBits == e.WidthBits && o.Src.Equal(e.Src)
}

// Concat joins MSB and LSB into a single wider expression.
type Concat struct {
	MSB, LSB Expr
}

func (c *Concat) Kind() Kind  { return KindConcat }
func (c *Concat) Width() uint { return c.MSB.Width() + c.LSB.Width() }
func (c *Concat) Hash() uint64 {
	h := xxhash.New()
	writeU64(h, uint64(KindConcat))
	writeU64(h, c.MSB.Hash())
	writeU64(h, c.LSB.Hash())
	return h.Sum64()
}
func (c *Concat) Equal(other Expr) bool {
	o, ok := other.(*Concat)
	return ok && o.MSB.Equal(c.MSB) && o.LSB.Equal(c.LSB)
}

// Not is boolean negation.
type Not struct {
	Src Expr
}

func (n *Not) Kind() Kind  { return KindNot }
func (n *Not) Width() uint { return n.Src.Width() }
func (n *Not) Hash() uint64 {
	h := xxhash.New()
	writeU64(h, uint64(KindNot))
	writeU64(h, n.Src.Hash())
	return h.Sum64()
}
func (n *Not) Equal(other Expr) bool {
	o, ok := other.(*Not)
	return ok && o.Src.Equal(n.Src)
}

// Binary is a two-operand expression (comparison or arithmetic/boolean).
type Binary struct {
	Op       BinaryOp
	LHS, RHS Expr
}

func (b *Binary) Kind() Kind { return KindBinary }
func (b *Binary) Width() uint {
	if b.Op == OpEq || b.Op == OpAnd || b.Op == OpOr {
		return 1
	}
	return b.LHS.Width()
}
func (b *Binary) Hash() uint64 {
	h := xxhash.New()
	writeU64(h, uint64(KindBinary))
	writeU64(h, uint64(b.Op))
	writeU64(h, b.LHS.Hash())
	writeU64(h, b.RHS.Hash())
	return h.Sum64()
}
func (b *Binary) Equal(other Expr) bool {
	o, ok := other.(*Binary)
	return ok && o.Op == b.Op && o.LHS.Equal(b.LHS) && o.RHS.Equal(b.RHS)
}

func writeU64(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}
