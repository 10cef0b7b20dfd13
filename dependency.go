package synapse

import "github.com/nfsynth/synapse/svl"

// sideEffectTable is the authoritative classification from spec.md §6. It
// is immutable after package initialization — the redesign note in
// spec.md §9 calls for replacing the source's mutable process-wide map
// with exactly this: a table built once, at init, and never mutated
// again, mirroring glee's own funcKey-keyed handler table in
// executor.go (populated once in NewExecutor, read-only thereafter).
var sideEffectTable = map[string]bool{
	"current_time":                 true,
	"map_get":                      false,
	"map_put":                      true,
	"vector_borrow":                false,
	"vector_return":                true,
	"rte_ether_addr_hash":          false,
	"packet_borrow_next_chunk":     true,
	"packet_get_unread_length":     true,
	"packet_return_chunk":          true,
	"expire_items_single_map":      true,
	"dchain_allocate_new_index":    true,
	"dchain_is_index_allocated":    false,
	"dchain_rejuvenate_index":      true,
}

// cannotReorderSet is the set of functions that may never be hoisted,
// regardless of aliasing, per spec.md §6.
var cannotReorderSet = map[string]bool{
	"current_time":                          true,
	"packet_return_chunk":                   true,
	"nf_set_rte_ipv4_udptcp_checksum":        true,
}

// FunctionHasSideEffects looks up fn in the authoritative side-effect
// table. An unknown function is a fatal error — the system refuses to
// reason about primitives it was not told how to classify.
func FunctionHasSideEffects(fn string) (bool, error) {
	se, ok := sideEffectTable[fn]
	if !ok {
		return false, newError(ErrUnknownFunction, "function %q has no side-effect classification", fn)
	}
	return se, nil
}

// FunctionCanBeReordered reports whether fn is absent from the
// cannot-reorder set.
func FunctionCanBeReordered(fn string) bool {
	return !cannotReorderSet[fn]
}

// defaultShouldIgnore is used when a DependencyOracle is constructed with
// a nil ignore predicate. It recognizes no symbols as ignorable; a real
// deployment always supplies its own predicate from the upstream symbol
// factory (spec.md §6), consumed opaquely here.
func defaultShouldIgnore(string) bool { return false }

// DependencyOracle answers the two reorder-safety questions of spec.md
// §4.2 over a DecisionGraph: are a candidate's inputs available yet
// (AreIODependenciesMet), and can it be moved past the nodes between it
// and "current" without changing aliasing behaviour
// (AreRWDependenciesMet).
type DependencyOracle struct {
	Solver       svl.Solver
	Builder      *svl.Builder
	ShouldIgnore func(label string) bool
}

// NewDependencyOracle returns a DependencyOracle backed by solver. A nil
// shouldIgnore defaults to ignoring nothing.
func NewDependencyOracle(solver svl.Solver, shouldIgnore func(string) bool) *DependencyOracle {
	if shouldIgnore == nil {
		shouldIgnore = defaultShouldIgnore
	}
	return &DependencyOracle{Solver: solver, Builder: svl.NewBuilder(), ShouldIgnore: shouldIgnore}
}

// AllGeneratedSymbols walks the predecessor chain from id up to (and
// including) id itself, collecting every symbol generated by a Call node
// along the way. This is BDD::Node::get_all_generated_symbols.
func (g *DecisionGraph) AllGeneratedSymbols(id NodeID) SymbolSet {
	var out SymbolSet
	for id != 0 {
		n, err := g.GetNodeByID(id)
		if err != nil {
			break
		}
		if n.Kind == KindCall {
			out = append(out, n.Generated...)
		}
		id = n.Pred
	}
	return out
}

// areAllSymbolsKnown is are_all_symbols_known: expr is executable given
// known if every free symbol it reads is either ignorable or already
// known, with the special packet_chunks prefix-order rule from
// spec.md §4.2.
func (o *DependencyOracle) areAllSymbolsKnown(expr svl.Expr, known SymbolSet) bool {
	if expr == nil {
		return true
	}

	labels, packetReads := svl.RetrieveSymbols(expr)
	if len(labels) == 0 {
		return true
	}

	sawPacketDependency := false
	for _, label := range labels {
		if o.ShouldIgnore(label) {
			continue
		}
		if _, ok := known.Find(label); !ok {
			return false
		}
		if label == PacketChunksLabel {
			sawPacketDependency = true
		}
	}

	if !sawPacketDependency {
		return true
	}

	knownChunks := known.FindAll(PacketChunksLabel)
	for _, read := range packetReads {
		filled := false
		for _, chunk := range knownChunks {
			if chunk.ByteRange.Contains(read.ByteOffset) {
				filled = true
				break
			}
		}
		if !filled {
			return false
		}
	}

	return true
}

// areIODependenciesMetSymbols is are_io_dependencies_met(node, symbols):
// node is executable given known without consulting the graph at all.
func (o *DependencyOracle) areIODependenciesMetSymbols(node *Node, known SymbolSet) bool {
	switch node.Kind {
	case KindBranch:
		return o.areAllSymbolsKnown(node.CondExpr, known)
	case KindCall:
		for _, arg := range node.Args {
			if arg.Expr != nil && !o.areAllSymbolsKnown(arg.Expr, known) {
				return false
			}
			if arg.In != nil && !o.areAllSymbolsKnown(arg.In, known) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// AreIODependenciesMet is are_io_dependencies_met(current_node, next_node):
// next is executable immediately after current.
func (o *DependencyOracle) AreIODependenciesMet(graph *DecisionGraph, current, next *Node) bool {
	known := graph.AllGeneratedSymbols(current.ID)
	return o.areIODependenciesMetSymbols(next, known)
}

// AreIODependenciesMetExpr is are_io_dependencies_met(current_node, expr):
// used to validate a reorder guard expression itself.
func (o *DependencyOracle) AreIODependenciesMetExpr(graph *DecisionGraph, current *Node, expr svl.Expr) bool {
	known := graph.AllGeneratedSymbols(current.ID)
	return o.areAllSymbolsKnown(expr, known)
}

// objectArg looks up a named argument's Expr on a Call node.
func objectArg(n *Node, name string) (svl.Expr, bool) {
	if n.Kind != KindCall {
		return nil, false
	}
	a, ok := n.Args[name]
	if !ok || a.Expr == nil {
		return nil, false
	}
	return a.Expr, true
}

// always reports (alwaysEqual, alwaysNotEqual) of lhs vs rhs under the
// logical AND across the cross product of pcsBefore x pcsAfter, resolving
// spec.md §9's open question about the source's uniformity assertion: we
// take the conjunction instead of asserting every pair agrees.
func (o *DependencyOracle) always(lhs, rhs svl.Expr, pcsBefore, pcsAfter []svl.Expr) (alwaysEq, alwaysNotEq bool) {
	if len(pcsBefore) == 0 && len(pcsAfter) == 0 {
		return o.Solver.AlwaysEqual(lhs, rhs, nil, nil), o.Solver.AlwaysNotEqual(lhs, rhs, nil, nil)
	}

	alwaysEq = true
	alwaysNotEq = true
	any := false
	for _, c1 := range nonEmpty(pcsBefore) {
		for _, c2 := range nonEmpty(pcsAfter) {
			any = true
			eq := o.Solver.AlwaysEqual(lhs, rhs, []svl.Expr{c1}, []svl.Expr{c2})
			neq := o.Solver.AlwaysNotEqual(lhs, rhs, []svl.Expr{c1}, []svl.Expr{c2})
			alwaysEq = alwaysEq && eq
			alwaysNotEq = alwaysNotEq && neq
		}
	}
	if !any {
		return o.Solver.AlwaysEqual(lhs, rhs, nil, nil), o.Solver.AlwaysNotEqual(lhs, rhs, nil, nil)
	}
	return alwaysEq, alwaysNotEq
}

func nonEmpty(pcs []svl.Expr) []svl.Expr {
	if len(pcs) == 0 {
		return []svl.Expr{nil}
	}
	return pcs
}

// mapCanReorder is map_can_reorder: can `before` be swapped past `next`
// (called `after` in the source) with respect to the "map" argument they
// share. Returns a non-nil guard when the reorder is only conditionally
// safe.
func (o *DependencyOracle) mapCanReorder(graph *DecisionGraph, current, before, next *Node) (bool, svl.Expr, error) {
	if before.Kind != KindCall || next.Kind != KindCall {
		return true, nil, nil
	}

	beforeMap, ok1 := objectArg(before, "map")
	nextMap, ok2 := objectArg(next, "map")
	if !ok1 || !ok2 {
		return true, nil, nil
	}
	if !o.Solver.AlwaysEqual(beforeMap, nextMap, nil, nil) {
		return true, nil, nil
	}

	beforeSE, err := FunctionHasSideEffects(before.Function)
	if err != nil {
		return false, nil, err
	}
	nextSE, err := FunctionHasSideEffects(next.Function)
	if err != nil {
		return false, nil, err
	}
	if !beforeSE && !nextSE {
		return true, nil, nil
	}

	beforeKey, ok1 := before.Args["key"]
	nextKey, ok2 := next.Args["key"]
	if !ok1 || !ok2 || beforeKey.In == nil || nextKey.In == nil {
		return false, nil, nil
	}

	alwaysEq, alwaysNotEq := o.always(beforeKey.In, nextKey.In, before.Constraints, next.Constraints)
	if alwaysEq {
		return false, nil, nil
	}
	if alwaysNotEq {
		return true, nil, nil
	}

	guard := o.Builder.Not(o.Builder.Eq(beforeKey.In, nextKey.In))
	return o.AreIODependenciesMetExpr(graph, current, guard), guard, nil
}

// dchainCanReorder is dchain_can_reorder. Unlike Map and Vector, no key
// refinement is possible: two side-effecting calls on the same dchain
// object are simply not commutable.
func (o *DependencyOracle) dchainCanReorder(before, next *Node) (bool, error) {
	if before.Kind != KindCall || next.Kind != KindCall {
		return true, nil
	}

	beforeSE, err := FunctionHasSideEffects(before.Function)
	if err != nil {
		return false, err
	}
	nextSE, err := FunctionHasSideEffects(next.Function)
	if err != nil {
		return false, err
	}
	if !beforeSE && !nextSE {
		return true, nil
	}

	beforeDchain, ok1 := objectArg(before, "dchain")
	nextDchain, ok2 := objectArg(next, "dchain")
	if !ok1 || !ok2 {
		return true, nil
	}
	if !o.Solver.AlwaysEqual(beforeDchain, nextDchain, nil, nil) {
		return true, nil
	}
	return false, nil
}

// vectorCanReorder is vector_can_reorder: mirrors mapCanReorder using the
// "vector" object and "index" key.
func (o *DependencyOracle) vectorCanReorder(graph *DecisionGraph, current, before, next *Node) (bool, svl.Expr, error) {
	if before.Kind != KindCall || next.Kind != KindCall {
		return true, nil, nil
	}

	beforeSE, err := FunctionHasSideEffects(before.Function)
	if err != nil {
		return false, nil, err
	}
	nextSE, err := FunctionHasSideEffects(next.Function)
	if err != nil {
		return false, nil, err
	}
	if !beforeSE && !nextSE {
		return true, nil, nil
	}

	beforeVector, ok1 := objectArg(before, "vector")
	nextVector, ok2 := objectArg(next, "vector")
	if !ok1 || !ok2 {
		return true, nil, nil
	}
	if !o.Solver.AlwaysEqual(beforeVector, nextVector, nil, nil) {
		return true, nil, nil
	}

	beforeIndex, ok1 := objectArg(before, "index")
	nextIndex, ok2 := objectArg(next, "index")
	assert(ok1 && ok2, "vectorCanReorder: vector call missing index argument")

	alwaysEq, alwaysNotEq := o.always(beforeIndex, nextIndex, before.Constraints, next.Constraints)
	if alwaysEq {
		return false, nil, nil
	}
	if alwaysNotEq {
		return true, nil, nil
	}

	guard := o.Builder.Not(o.Builder.Eq(beforeIndex, nextIndex))
	return o.AreIODependenciesMetExpr(graph, current, guard), guard, nil
}

// AreRWDependenciesMet is are_rw_dependencies_met: considers every node
// strictly between current and next as a potential aliasing hazard, and
// returns the conjunction of every guard the Map/Dchain/Vector predicates
// required.
func (o *DependencyOracle) AreRWDependenciesMet(graph *DecisionGraph, current, next *Node) (bool, svl.Expr, error) {
	var guards []svl.Expr

	node, err := graph.GetNodeByID(next.Pred)
	if err != nil {
		return false, nil, err
	}

	for node.ID != current.ID {
		ok, guard, err := o.mapCanReorder(graph, current, node, next)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, nil, nil
		}
		if guard != nil {
			guards = append(guards, guard)
		}

		ok, err = o.dchainCanReorder(node, next)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, nil, nil
		}

		ok, guard, err = o.vectorCanReorder(graph, current, node, next)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, nil, nil
		}
		if guard != nil {
			guards = append(guards, guard)
		}

		node, err = graph.GetNodeByID(node.Pred)
		if err != nil {
			return false, nil, err
		}
	}

	if len(guards) == 0 {
		return true, nil, nil
	}
	return true, o.Builder.And(guards...), nil
}
