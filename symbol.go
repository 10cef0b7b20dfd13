package synapse

import "github.com/nfsynth/synapse/svl"

// PacketChunksLabel is the distinguished symbol label for packet-byte
// producers. Reads against this symbol are further constrained by byte
// offset range (see ByteRange).
const PacketChunksLabel = "packet_chunks"

// Symbol is a named producer of a symbolic value.
type Symbol struct {
	Label string
	Expr  svl.Expr

	// ByteRange is meaningful only when Label == PacketChunksLabel: the
	// half-open byte range [Base, Base+Width) this symbol's Expr supplies.
	ByteRange ByteRange
}

// ByteRange is a half-open range of packet byte offsets.
type ByteRange struct {
	Base  uint
	Width uint
}

// Contains reports whether the range includes byte offset i.
func (r ByteRange) Contains(i uint) bool {
	return i >= r.Base && i < r.Base+r.Width
}

// SymbolSet is the set of symbols known to be producible at some point in
// a decision graph traversal. Order is irrelevant; membership is keyed by
// label, mirroring the source's BDD::symbols_t (a vector searched linearly
// by label).
type SymbolSet []Symbol

// Find returns the first symbol with the given label, if any.
func (s SymbolSet) Find(label string) (Symbol, bool) {
	for _, sym := range s {
		if sym.Label == label {
			return sym, true
		}
	}
	return Symbol{}, false
}

// FindAll returns every symbol with the given label (relevant only for
// PacketChunksLabel, which may be produced by several Calls along a path).
func (s SymbolSet) FindAll(label string) []Symbol {
	var out []Symbol
	for _, sym := range s {
		if sym.Label == label {
			out = append(out, sym)
		}
	}
	return out
}
