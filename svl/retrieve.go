package svl

// PacketRead is a read of one symbolic byte out of a "packet_chunks"-typed
// array, i.e. an Extract directly over a Symbol with label
// "packet_chunks".
type PacketRead struct {
	Expr       *Extract
	ByteOffset uint
}

// RetrieveSymbols walks expr and returns the set of free symbol labels it
// references, plus every packet-byte read found within it (a read that
// occurs more than once in expr is listed once per occurrence).
// Grounded on module.cpp's RetrieveSymbols klee::ExprVisitor: a small
// recursive walk over the tagged expression sum, collecting labels as it
// goes and special-casing reads against the packet_chunks array.
func RetrieveSymbols(expr Expr) (labels []string, packetReads []PacketRead) {
	seen := map[string]bool{}
	walk(expr, &labels, &packetReads, seen)
	return labels, packetReads
}

func walk(e Expr, labels *[]string, packetReads *[]PacketRead, seen map[string]bool) {
	if e == nil {
		return
	}

	switch v := e.(type) {
	case *Const:
		return
	case *Symbol:
		if !seen[v.Label] {
			seen[v.Label] = true
			*labels = append(*labels, v.Label)
		}
		return
	case *Extract:
		if sym, ok := v.Src.(*Symbol); ok && sym.Label == "packet_chunks" {
			*packetReads = append(*packetReads, PacketRead{
				Expr:       v,
				ByteOffset: v.OffsetBits / 8,
			})
		}
		walk(v.Src, labels, packetReads, seen)
	case *Concat:
		walk(v.MSB, labels, packetReads, seen)
		walk(v.LSB, labels, packetReads, seen)
	case *Not:
		walk(v.Src, labels, packetReads, seen)
	case *Binary:
		walk(v.LHS, labels, packetReads, seen)
		walk(v.RHS, labels, packetReads, seen)
	}
}
