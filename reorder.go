package synapse

import "github.com/nfsynth/synapse/svl"

// Candidate is a future node the Reorder Engine has judged legally
// hoistable to become the immediate successor of some "current" node.
type Candidate struct {
	NodeID NodeID

	// Condition is the conjunction of branch decisions taken while
	// descending from current to reach this candidate during BFS. It is
	// provenance only (useful for diagnostics); it does not feed into
	// ReorderBDD.
	Condition svl.Expr

	// ExtraCondition is the read/write-dependency guard this candidate
	// requires, or nil if the reorder is unconditionally safe.
	ExtraCondition svl.Expr

	// Siblings are the ids of future occurrences of this candidate (by
	// structural equality) that ReorderBDD will splice out once the
	// candidate is hoisted, including the candidate's own id.
	Siblings map[NodeID]bool
}

func andCond(b *svl.Builder, existing, next svl.Expr) svl.Expr {
	if existing == nil {
		return next
	}
	return b.And(existing, next)
}

func isSibling(viable []Candidate, id NodeID) bool {
	for _, c := range viable {
		if c.Siblings[id] {
			return true
		}
	}
	return false
}

// GetCandidates enumerates the nodes legally hoistable to become the
// immediate successor of current, per spec.md §4.3. current must not be
// a Branch.
func (o *DependencyOracle) GetCandidates(graph *DecisionGraph, current *Node) ([]Candidate, error) {
	assert(current.Kind != KindBranch, "GetCandidates called on a Branch node")

	if current.Kind != KindCall || current.Next == 0 {
		return nil, nil
	}

	next, err := graph.GetNodeByID(current.Next)
	if err != nil {
		return nil, err
	}

	type queued struct {
		id        NodeID
		condition svl.Expr
	}
	var queue []queued
	checkFutureBranches := false

	switch next.Kind {
	case KindBranch:
		queue = append(queue,
			queued{next.OnTrue, next.CondExpr},
			queued{next.OnFalse, o.Builder.Not(next.CondExpr)},
		)
		checkFutureBranches = true
	case KindCall:
		if next.Next == 0 {
			return nil, nil
		}
		queue = append(queue, queued{next.Next, nil})
	default:
		return nil, nil
	}

	var viable []Candidate

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		node, err := graph.GetNodeByID(item.id)
		if err != nil {
			return nil, err
		}

		switch node.Kind {
		case KindBranch:
			checkFutureBranches = true
			queue = append(queue,
				queued{node.OnTrue, andCond(o.Builder, item.condition, node.CondExpr)},
				queued{node.OnFalse, andCond(o.Builder, item.condition, o.Builder.Not(node.CondExpr))},
			)
		case KindCall:
			if node.Next != 0 {
				queue = append(queue, queued{node.Next, item.condition})
			}
		}

		if isSibling(viable, node.ID) {
			continue
		}

		if !o.AreIODependenciesMet(graph, current, node) {
			continue
		}

		var extraCondition svl.Expr
		if node.Kind == KindCall {
			if !FunctionCanBeReordered(node.Function) {
				continue
			}
			ok, guard, err := o.AreRWDependenciesMet(graph, current, node)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			extraCondition = guard
		}

		sideEffecting, err := node.HasSideEffects()
		if err != nil {
			return nil, err
		}

		candidate := Candidate{
			NodeID:         node.ID,
			Condition:      item.condition,
			ExtraCondition: extraCondition,
			Siblings:       map[NodeID]bool{},
		}

		if sideEffecting && checkFutureBranches {
			ok, siblings, err := o.isCalledInAllFutureBranches(graph, current, node)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			candidate.Siblings = siblings
		}

		candidate.Siblings[node.ID] = true
		viable = append(viable, candidate)
	}

	return viable, nil
}

// isCalledInAllFutureBranches is is_called_in_all_future_branches: does
// every maximal path from start reach a node structurally equal to
// target? Per spec.md §9's resolution of the source's open question, a
// path that reaches a terminal return without a match is treated as
// failure, not success.
func (o *DependencyOracle) isCalledInAllFutureBranches(graph *DecisionGraph, start, target *Node) (bool, map[NodeID]bool, error) {
	siblings := map[NodeID]bool{}
	ok, err := o.visitFutureBranches(graph, start.ID, target, siblings)
	return ok, siblings, err
}

func (o *DependencyOracle) visitFutureBranches(graph *DecisionGraph, id NodeID, target *Node, siblings map[NodeID]bool) (bool, error) {
	if id == 0 {
		return false, nil
	}

	n, err := graph.GetNodeByID(id)
	if err != nil {
		return false, err
	}

	if o.structurallyEqual(n, target) {
		siblings[n.ID] = true
		return true, nil
	}

	switch n.Kind {
	case KindBranch:
		ok, err := o.visitFutureBranches(graph, n.OnTrue, target, siblings)
		if err != nil || !ok {
			return false, err
		}
		return o.visitFutureBranches(graph, n.OnFalse, target, siblings)
	case KindCall:
		return o.visitFutureBranches(graph, n.Next, target, siblings)
	default:
		return false, nil
	}
}

func (o *DependencyOracle) structurallyEqual(a, b *Node) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindCall:
		return o.callsEqual(a, b)
	case KindBranch:
		return o.Solver.AlwaysEqual(a.CondExpr, b.CondExpr, nil, nil)
	default:
		return false
	}
}

func (o *DependencyOracle) callsEqual(a, b *Node) bool {
	if a.Function != b.Function || len(a.Args) != len(b.Args) {
		return false
	}
	for k, av := range a.Args {
		bv, ok := b.Args[k]
		if !ok {
			return false
		}
		if !exprsEqual(o.Solver, av.Expr, bv.Expr) || !exprsEqual(o.Solver, av.In, bv.In) {
			return false
		}
	}
	return true
}

func exprsEqual(solver svl.Solver, a, b svl.Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return solver.AlwaysEqual(a, b, nil, nil)
}

// leafItem tracks one frontier pointer during the sibling-dedup pass of
// ReorderBDD: the node currently reached, and (if it was reached by
// descending through the synthetic hoist point) which side of that split
// this leaf is on.
type leafItem struct {
	id                NodeID
	branchDecision    bool
	branchDecisionSet bool
}

// ReorderBDD rewrites graph in place to hoist candidate so it becomes the
// immediate successor of current, per spec.md §4.4. The caller is
// responsible for having cloned the owning Plan (Plan.Clone(true)) before
// calling this — ReorderBDD never clones on its own behalf.
func ReorderBDD(graph *DecisionGraph, current *Node, candidate Candidate) error {
	oldNext := current.Next
	assert(oldNext != 0, "ReorderBDD: current has no successor to hoist past")

	candidateNode, err := graph.GetNodeByID(candidate.NodeID)
	if err != nil {
		return err
	}

	clone := graph.CloneNode(candidateNode)

	var leaves []leafItem

	if candidate.ExtraCondition != nil {
		assert(clone.Kind == KindCall, "ReorderBDD: a guarded candidate must be a Call")

		oldNextClone := graph.CloneSubtree(graph, oldNext)

		branch := &Node{ID: graph.NextID(), Kind: KindBranch, CondExpr: candidate.ExtraCondition}
		graph.Insert(branch)
		graph.setBranchChild(branch, true, clone.ID)
		graph.setBranchChild(branch, false, oldNextClone)

		graph.setNext(current, branch.ID)
		graph.setNext(clone, oldNext)

		leaves = append(leaves, leafItem{id: oldNext})
	} else {
		graph.setNext(current, clone.ID)

		if clone.Kind == KindBranch {
			oldNextOnFalse := graph.CloneSubtree(graph, oldNext)
			graph.setBranchChild(clone, true, oldNext)
			graph.setBranchChild(clone, false, oldNextOnFalse)
			leaves = append(leaves,
				leafItem{id: oldNext, branchDecision: true, branchDecisionSet: true},
				leafItem{id: oldNextOnFalse, branchDecision: false, branchDecisionSet: true},
			)
		} else {
			graph.setNext(clone, oldNext)
			leaves = append(leaves, leafItem{id: oldNext})
		}
	}

	for len(leaves) > 0 {
		leaf := leaves[0]
		leaves = leaves[1:]

		if leaf.id == 0 {
			continue
		}

		node, err := graph.GetNodeByID(leaf.id)
		if err != nil {
			return err
		}

		if node.Kind == KindBranch {
			if candidate.Siblings[node.OnTrue] {
				next, err := spliceSibling(graph, node.OnTrue, leaf)
				if err != nil {
					return err
				}
				graph.setBranchChild(node, true, next)
			}
			if candidate.Siblings[node.OnFalse] {
				next, err := spliceSibling(graph, node.OnFalse, leaf)
				if err != nil {
					return err
				}
				graph.setBranchChild(node, false, next)
			}
			leaves = append(leaves,
				leafItem{id: node.OnTrue, branchDecision: leaf.branchDecision, branchDecisionSet: leaf.branchDecisionSet},
				leafItem{id: node.OnFalse, branchDecision: leaf.branchDecision, branchDecisionSet: leaf.branchDecisionSet},
			)
			continue
		}

		next := NodeID(0)
		if node.Kind == KindCall {
			next = node.Next
		}
		if next == 0 {
			continue
		}

		if candidate.Siblings[next] {
			resolved, err := spliceSibling(graph, next, leaf)
			if err != nil {
				return err
			}
			graph.setNext(node, resolved)
			next = resolved
		}

		leaves = append(leaves, leafItem{id: next, branchDecision: leaf.branchDecision, branchDecisionSet: leaf.branchDecisionSet})
	}

	return nil
}

// spliceSibling returns the node that should take the place of a sibling
// occurrence: its Next if it's a Call, or the branch-decision-selected
// child if it's itself a Branch (the source calls this condition
// "branch_decision_set must be true").
func spliceSibling(graph *DecisionGraph, siblingID NodeID, leaf leafItem) (NodeID, error) {
	sibling, err := graph.GetNodeByID(siblingID)
	if err != nil {
		return 0, err
	}
	if sibling.Kind == KindBranch {
		assert(leaf.branchDecisionSet, "ReorderBDD: branch decision not set while splicing a sibling branch")
		if leaf.branchDecision {
			return sibling.OnTrue, nil
		}
		return sibling.OnFalse, nil
	}
	if sibling.Kind == KindCall {
		return sibling.Next, nil
	}
	return 0, nil
}

// GetReordered spawns one alternate Plan per legal reorder at the current
// active leaf's predecessor, per spec.md §4.5. It aborts early if the
// plan's reorder budget is already exhausted.
func GetReordered(plan *Plan) []*Plan {
	if plan.ReorderBudget.Exhausted() {
		return nil
	}
	if len(plan.ActiveLeaves) == 0 {
		return nil
	}

	oracle := plan.oracle
	if oracle == nil {
		return nil
	}

	var reordered []*Plan

	for _, leafID := range plan.ActiveLeaves {
		leaf, err := plan.Graph.GetNodeByID(leafID)
		if err != nil || leaf.Pred == 0 {
			continue
		}
		current, err := plan.Graph.GetNodeByID(leaf.Pred)
		if err != nil || current.Kind == KindBranch {
			continue
		}

		candidates, err := oracle.GetCandidates(plan.Graph, current)
		if err != nil || len(candidates) == 0 {
			continue
		}

		for _, candidate := range candidates {
			cloned := plan.Clone(true)
			currentClone, err := cloned.Graph.GetNodeByID(current.ID)
			if err != nil {
				continue
			}

			if err := ReorderBDD(cloned.Graph, currentClone, candidate); err != nil {
				continue
			}

			if candidate.ExtraCondition != nil {
				cloned.MemorizeGuard(candidate.NodeID, candidate.ExtraCondition)
			}

			newLeaf := currentClone.Next
			cloned.ReplaceActiveLeaf(leafID, newLeaf)
			cloned.ReorderBudget = cloned.ReorderBudget.spend()

			reordered = append(reordered, cloned)
		}
	}

	return reordered
}
