package synapse

import "github.com/nfsynth/synapse/svl"

// Target tags which backend a Module realizes a node for. The core does
// not enumerate the set of targets (per spec.md §6, "the core does not
// care about the set of targets"); it is just an opaque, comparable tag
// supplied by each module package (modules/x86, modules/bmv2, ...).
type Target string

// Visitor is implemented by consumers (e.g. a graphviz dumper, out of
// scope here) that need double-dispatch over the concrete module variant.
// The core only requires that every Module can be visited; it never
// implements a Visitor itself.
type Visitor interface {
	Visit(m Module)
}

// Module is the per-target realization of a decision graph node. It is
// equality-comparable and cloneable, and exposes the symbolic values it
// binds from the Call (or Branch) it was derived from, so Equals and the
// dependency oracle's structural-equality checks can work without any
// module-specific knowledge in the core.
type Module interface {
	Target() Target
	// BoundExprs returns every svl.Expr this module has bound from its
	// source node, in a stable order, for structural-equality comparison.
	BoundExprs() []svl.Expr
	// GeneratedSymbols returns the symbols this module's placement
	// publishes (normally the same as the source Call's Generated list).
	GeneratedSymbols() []Symbol
	Clone() Module
	Equals(other Module) bool
	Visit(v Visitor)
}

// ModulesEqual is the structural equality spec.md §3 requires of Module:
// target type plus SVL-equality of bound expressions plus set equality of
// generated symbols.
func ModulesEqual(a, b Module) bool {
	if a.Target() != b.Target() {
		return false
	}
	ae, be := a.BoundExprs(), b.BoundExprs()
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if !ae[i].Equal(be[i]) {
			return false
		}
	}
	as, bs := a.GeneratedSymbols(), b.GeneratedSymbols()
	if len(as) != len(bs) {
		return false
	}
	for _, s := range as {
		found := false
		for _, t := range bs {
			if s.Label == t.Label && s.Expr.Equal(t.Expr) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ProcessResult is what a target handler (or ProcessNode's dispatch)
// produces for one node: either the module it placed plus the plans that
// result (including reordered alternates once ProcessNode has run), or a
// zero value when the handler declined.
type ProcessResult struct {
	Module   Module
	NextPlans []*Plan
}

// Declined reports whether the handler produced nothing, i.e. this
// platform context does not match this module's target — a normal,
// non-error outcome.
func (r ProcessResult) Declined() bool {
	return r.Module == nil && len(r.NextPlans) == 0
}

// Handler is a target-specific transformation pass: it consumes one DG
// node and produces zero or more successor plans. Declining (returning
// the zero ProcessResult) is normal.
type Handler interface {
	ProcessCall(plan *Plan, node *Node) ProcessResult
	ProcessBranch(plan *Plan, node *Node) ProcessResult
	ProcessReturnInit(plan *Plan, node *Node) ProcessResult
	ProcessReturnProcess(plan *Plan, node *Node) ProcessResult
}

// BaseHandler gives every concrete module a zero-value-returning default
// for each node kind it does not act on, mirroring module.cpp's
// Module::process_branch/process_call/process_return_init/
// process_return_process base implementations (each returns an empty
// processing_result_t).
type BaseHandler struct{}

func (BaseHandler) ProcessCall(*Plan, *Node) ProcessResult          { return ProcessResult{} }
func (BaseHandler) ProcessBranch(*Plan, *Node) ProcessResult        { return ProcessResult{} }
func (BaseHandler) ProcessReturnInit(*Plan, *Node) ProcessResult    { return ProcessResult{} }
func (BaseHandler) ProcessReturnProcess(*Plan, *Node) ProcessResult { return ProcessResult{} }

// ProcessNode dispatches node to the matching Handler method by kind, then
// spawns reordered alternates for every plan the handler produced, per
// spec.md §4.5: "After each successful module placement, MP invokes RE on
// the resulting plan to spawn additional reordered plans."
func ProcessNode(h Handler, plan *Plan, node *Node) ProcessResult {
	assert(node != nil, "ProcessNode called with a nil node")

	var result ProcessResult
	switch node.Kind {
	case KindCall:
		result = h.ProcessCall(plan, node)
	case KindBranch:
		result = h.ProcessBranch(plan, node)
	case KindReturnInit:
		result = h.ProcessReturnInit(plan, node)
	case KindReturnProcess:
		result = h.ProcessReturnProcess(plan, node)
	default:
		assert(false, "ProcessNode: unknown node kind %v", node.Kind)
	}

	if result.Declined() {
		return result
	}

	var reordered []*Plan
	for _, p := range result.NextPlans {
		reordered = append(reordered, GetReordered(p)...)
	}
	result.NextPlans = append(result.NextPlans, reordered...)
	return result
}
