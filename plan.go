package synapse

import (
	"github.com/benbjohnson/immutable"

	"github.com/nfsynth/synapse/svl"
)

// Budget bounds how many reorder variants a plan may still spawn. A zero
// value (Set == false) means unlimited, matching spec.md §9's open
// question about the source's sign-encoded "reordered_nodes" counter: here
// the bound is an explicit option type instead of a sign trick.
type Budget struct {
	Set   bool
	Limit int
	used  int
}

// Unlimited returns a Budget with no bound.
func Unlimited() Budget { return Budget{} }

// Bounded returns a Budget allowing at most limit reorders.
func Bounded(limit int) Budget { return Budget{Set: true, Limit: limit} }

// Exhausted reports whether the budget has been fully spent.
func (b Budget) Exhausted() bool {
	return b.Set && b.used >= b.Limit
}

// spend returns a Budget with one unit consumed. It is a value-type
// operation, consistent with Plan being copied on write.
func (b Budget) spend() Budget {
	b.used++
	return b
}

// Used returns how many reorders this budget has already spent, for
// heuristics that score plans by how much reordering they required.
func (b Budget) Used() int { return b.used }

// nodeIDComparer orders NodeID keys for immutable.SortedMap, mirroring
// glee's uint64Comparer (execution_state.go).
type nodeIDComparer struct{}

func (nodeIDComparer) Compare(a, b interface{}) int {
	x, y := a.(NodeID), b.(NodeID)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Plan is the (DecisionGraph, module-binding) pair the planner explores.
// It is value-typed with clone-on-write semantics: every transformation in
// this module returns a fresh Plan, and Plan.Clone is the only place a
// DecisionGraph is actually duplicated.
type Plan struct {
	Graph *DecisionGraph

	// Bindings maps an active leaf node id to the module assigned to it.
	Bindings map[NodeID]Module

	// ActiveLeaves are the DG node ids not yet bound to a module.
	ActiveLeaves []NodeID

	ReorderBudget Budget

	// Guards memoizes the extra path condition a reorder introduced for a
	// given candidate node id, keyed for later inspection (e.g. by
	// codegen that needs to know which guard a placed module depends on).
	// Backed by immutable.SortedMap so Clone(false) shares it in O(1),
	// grounded on glee's immutable.SortedMap-backed ExecutionState.heap.
	Guards *immutable.SortedMap

	// oracle is the Dependency Oracle GetReordered uses to enumerate
	// candidates at this plan's active leaves. It is carried on the plan
	// (rather than threaded through every ProcessNode call) because it is
	// fixed for the whole exploration and shared, never cloned, across
	// every Plan derived from the same NewPlan call.
	oracle *DependencyOracle
}

// SetOracle attaches the Dependency Oracle the Reorder Engine should use
// for this plan and every plan cloned from it.
func (p *Plan) SetOracle(o *DependencyOracle) { p.oracle = o }

// NewPlan returns an empty plan over graph with an unlimited reorder
// budget and no guards memoized.
func NewPlan(graph *DecisionGraph) *Plan {
	return &Plan{
		Graph:         graph,
		Bindings:      make(map[NodeID]Module),
		ReorderBudget: Unlimited(),
		Guards:        immutable.NewSortedMap(nodeIDComparer{}),
	}
}

// Clone returns a copy of p. When deep is true the DecisionGraph is
// structurally copied (see DecisionGraph.Clone); when false the graph,
// bindings and active-leaf slice are shared with p and must not be
// mutated through the clone without first going through a deep clone.
func (p *Plan) Clone(deep bool) *Plan {
	c := &Plan{
		Graph:         p.Graph.Clone(deep),
		ReorderBudget: p.ReorderBudget,
		Guards:        p.Guards,
		oracle:        p.oracle,
	}
	if deep {
		c.Bindings = make(map[NodeID]Module, len(p.Bindings))
		for k, v := range p.Bindings {
			c.Bindings[k] = v.Clone()
		}
		c.ActiveLeaves = append([]NodeID(nil), p.ActiveLeaves...)
	} else {
		c.Bindings = p.Bindings
		c.ActiveLeaves = p.ActiveLeaves
	}
	return c
}

// BindModule records that leaf has been assigned to module, removing it
// from the active-leaf set.
func (p *Plan) BindModule(leaf NodeID, module Module) {
	p.Bindings[leaf] = module
	out := p.ActiveLeaves[:0]
	for _, id := range p.ActiveLeaves {
		if id != leaf {
			out = append(out, id)
		}
	}
	p.ActiveLeaves = out
}

// ReplaceActiveLeaf swaps old out of the active set for replacement, in
// place. If old is not active (e.g. BindModule already removed it),
// replacement is appended instead.
func (p *Plan) ReplaceActiveLeaf(old, replacement NodeID) {
	for i, id := range p.ActiveLeaves {
		if id == old {
			p.ActiveLeaves[i] = replacement
			return
		}
	}
	p.ActiveLeaves = append(p.ActiveLeaves, replacement)
}

// MemorizeGuard records the extra condition g introduced when hoisting
// the node identified by id.
func (p *Plan) MemorizeGuard(id NodeID, g svl.Expr) {
	p.Guards = p.Guards.Set(id, g)
}

// Guard returns the memoized guard for id, if any.
func (p *Plan) Guard(id NodeID) (svl.Expr, bool) {
	v, ok := p.Guards.Get(id)
	if !ok {
		return nil, false
	}
	return v.(svl.Expr), true
}
