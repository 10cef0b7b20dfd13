package synapse

// DecisionGraph is the mutable branching program being rewritten. Nodes
// are addressed by NodeID in an arena (map[NodeID]*Node) rather than
// linked by pointer, per the redesign in SPEC_FULL.md §3: this makes deep
// clone a copy of the arena map (every node keeps its id) instead of a
// pointer-cycle walk, and
// keeps back-links (Node.Pred) as plain data instead of a second set of
// owning pointers.
type DecisionGraph struct {
	nodes       map[NodeID]*Node
	nextID      NodeID
	initRoot    NodeID
	processRoot NodeID
}

// NewDecisionGraph returns an empty graph with both roots unset and an id
// counter starting at 1 (0 is the "no node" sentinel).
func NewDecisionGraph() *DecisionGraph {
	return &DecisionGraph{nodes: make(map[NodeID]*Node), nextID: 1}
}

// InitRoot returns the id of the init-section root, or 0 if unset.
func (g *DecisionGraph) InitRoot() NodeID { return g.initRoot }

// ProcessRoot returns the id of the process-section root, or 0 if unset.
func (g *DecisionGraph) ProcessRoot() NodeID { return g.processRoot }

// SetInitRoot sets the init-section root. Used only during construction.
func (g *DecisionGraph) SetInitRoot(id NodeID) { g.initRoot = id }

// Insert adds or overwrites n in the arena, keyed by n.ID.
func (g *DecisionGraph) Insert(n *Node) {
	g.nodes[n.ID] = n
	if n.ID >= g.nextID {
		g.nextID = n.ID + 1
	}
}

// GetNodeByID returns the node with the given id, or a NodeNotFound error
// if absent.
func (g *DecisionGraph) GetNodeByID(id NodeID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, newError(ErrNodeNotFound, "no node with id %d", id)
	}
	return n, nil
}

// NextID allocates a strictly increasing id from the graph's monotone
// counter (get_and_inc_id).
func (g *DecisionGraph) NextID() NodeID {
	id := g.nextID
	g.nextID++
	return id
}

// ReplaceProcessRoot rewires the process-section root to newRoot. The old
// root becomes unreachable (but is not removed from the arena; callers
// that care about a compact arena can rely on the fact that an
// unreachable id is simply never looked up again).
func (g *DecisionGraph) ReplaceProcessRoot(newRoot NodeID) {
	g.processRoot = newRoot
	if n, ok := g.nodes[newRoot]; ok {
		n.Pred = 0
	}
}

// Clone returns a new DecisionGraph. When deep is true, every node is
// copied so the result shares no mutable state with g; when false, the
// returned graph shares the underlying node arena with g (cheap, but safe
// only for read-only use — any mutating DecisionGraph method must be
// called on a graph obtained via Clone(true)).
func (g *DecisionGraph) Clone(deep bool) *DecisionGraph {
	if !deep {
		return &DecisionGraph{
			nodes:       g.nodes,
			nextID:      g.nextID,
			initRoot:    g.initRoot,
			processRoot: g.processRoot,
		}
	}

	nodes := make(map[NodeID]*Node, len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = n.Clone()
	}
	return &DecisionGraph{
		nodes:       nodes,
		nextID:      g.nextID,
		initRoot:    g.initRoot,
		processRoot: g.processRoot,
	}
}

// NodeCount returns how many nodes are in the arena, for heuristics that
// score plans by overall size.
func (g *DecisionGraph) NodeCount() int { return len(g.nodes) }

// successors returns the forward-link ids of n (0, 1 or 2 of them).
func successors(n *Node) []NodeID {
	switch n.Kind {
	case KindCall:
		if n.Next == 0 {
			return nil
		}
		return []NodeID{n.Next}
	case KindBranch:
		return []NodeID{n.OnTrue, n.OnFalse}
	default:
		return nil
	}
}

// setNext rewires n's single forward successor (Call only) and fixes the
// new successor's back-link.
func (g *DecisionGraph) setNext(n *Node, next NodeID) {
	assert(n.Kind == KindCall, "setNext called on a %s node", n.Kind)
	n.Next = next
	if child, ok := g.nodes[next]; ok {
		child.Pred = n.ID
	}
}

// setBranchChild rewires one side of a Branch and fixes the child's
// back-link.
func (g *DecisionGraph) setBranchChild(n *Node, onTrue bool, child NodeID) {
	assert(n.Kind == KindBranch, "setBranchChild called on a %s node", n.Kind)
	if onTrue {
		n.OnTrue = child
	} else {
		n.OnFalse = child
	}
	if c, ok := g.nodes[child]; ok {
		c.Pred = n.ID
	}
}

// CloneNode copies orig's own data (Args, Constraints, Generated, ...)
// under a fresh id, with no forward links and no predecessor — the
// caller is responsible for wiring the clone into the graph. This is the
// single-node analogue of CloneSubtree, used by ReorderBDD to duplicate a
// hoisted candidate without also duplicating everything downstream of it.
func (g *DecisionGraph) CloneNode(orig *Node) *Node {
	clone := orig.Clone()
	clone.ID = g.NextID()
	clone.Pred = 0
	clone.Next = 0
	clone.OnTrue = 0
	clone.OnFalse = 0
	g.Insert(clone)
	return clone
}

// CloneSubtree deep-copies every node reachable from root (following Call
// and Branch forward links, stopping at terminals) into fresh ids
// allocated from g's counter, and inserts the copies into g. It returns
// the id of the cloned root. This is recursive_update_ids applied to a
// freshly duplicated subtree in one step, since in this module a subtree
// is always cloned and renumbered together (never renumbered in place).
func (g *DecisionGraph) CloneSubtree(src *DecisionGraph, root NodeID) NodeID {
	if root == 0 {
		return 0
	}

	remap := make(map[NodeID]NodeID)
	order := []NodeID{}
	collectSubtree(src, root, remap, &order)

	for _, old := range order {
		remap[old] = g.NextID()
	}

	for _, old := range order {
		orig, err := src.GetNodeByID(old)
		assert(err == nil, "CloneSubtree: %v", err)
		clone := orig.Clone()
		clone.ID = remap[old]
		if orig.Pred != 0 {
			if newPred, ok := remap[orig.Pred]; ok {
				clone.Pred = newPred
			}
		}
		switch clone.Kind {
		case KindCall:
			if orig.Next != 0 {
				clone.Next = remap[orig.Next]
			}
		case KindBranch:
			clone.OnTrue = remap[orig.OnTrue]
			clone.OnFalse = remap[orig.OnFalse]
		}
		g.Insert(clone)
	}

	return remap[root]
}

func collectSubtree(g *DecisionGraph, root NodeID, seen map[NodeID]NodeID, order *[]NodeID) {
	if root == 0 {
		return
	}
	if _, ok := seen[root]; ok {
		return
	}
	seen[root] = 0
	*order = append(*order, root)

	n, err := g.GetNodeByID(root)
	assert(err == nil, "collectSubtree: %v", err)
	for _, s := range successors(n) {
		collectSubtree(g, s, seen, order)
	}
}

// CloneCalls duplicates every Call ancestor of current into a fresh
// linear prefix chain ending at current itself (unmodified), and splices
// that chain in place of current from current's original predecessor's
// point of view. It returns the id of the head of the new chain (the
// outermost duplicated ancestor, or current itself if current is the
// graph root). Grounded on
// original_source/.../BMv2SimpleSwitchgRPC/send_to_controller.h's
// clone_calls/replace_next: a controller hand-off needs its own private
// copy of the setup calls that led to it, so rewiring the duplicate chain
// never disturbs the paths that still share the original ancestors.
func (g *DecisionGraph) CloneCalls(current *Node) NodeID {
	if current.Pred == 0 {
		return current.ID
	}

	prevID := current.Pred
	root := current.ID
	walk := current

	for walk.Pred != 0 {
		ancestor, err := g.GetNodeByID(walk.Pred)
		assert(err == nil, "CloneCalls: %v", err)

		if ancestor.Kind == KindCall {
			clone := g.CloneNode(ancestor)
			g.setNext(clone, root)
			root = clone.ID
		}

		walk = ancestor
	}

	g.replaceNext(prevID, current.ID, root)
	return root
}

// replaceNext rewires prevID's forward link to oldNext so it instead
// points at newNext, fixing newNext's back-link in the process.
func (g *DecisionGraph) replaceNext(prevID, oldNext, newNext NodeID) {
	if prevID == 0 {
		g.ReplaceProcessRoot(newNext)
		return
	}

	prev, err := g.GetNodeByID(prevID)
	assert(err == nil, "replaceNext: %v", err)

	switch prev.Kind {
	case KindBranch:
		if prev.OnTrue == oldNext {
			g.setBranchChild(prev, true, newNext)
		} else {
			assert(prev.OnFalse == oldNext, "replaceNext: old successor not a child of its recorded predecessor")
			g.setBranchChild(prev, false, newNext)
		}
	default:
		g.setNext(prev, newNext)
	}
}

// ReplaceNodeInBDD locates the node with target.ID reachable from the
// process root, detaches it, and substitutes target in its place: the
// predecessor's forward link (the correct branch side, if the predecessor
// is a Branch) is fixed up, or the process root itself is replaced if
// target is the root. Fails with NodeNotFound if no such id is reachable.
func (g *DecisionGraph) ReplaceNodeInBDD(target *Node) error {
	targetID := target.ID

	worklist := []NodeID{g.processRoot}
	seen := map[NodeID]bool{}

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true

		if id == targetID {
			old, err := g.GetNodeByID(id)
			if err != nil {
				return err
			}
			target.Pred = old.Pred
			g.Insert(target)

			if old.Pred == 0 {
				g.ReplaceProcessRoot(targetID)
				return nil
			}
			pred, err := g.GetNodeByID(old.Pred)
			if err != nil {
				return err
			}
			switch pred.Kind {
			case KindBranch:
				if pred.OnTrue == targetID {
					g.setBranchChild(pred, true, targetID)
				} else {
					assert(pred.OnFalse == targetID, "ReplaceNodeInBDD: target not a child of its recorded predecessor")
					g.setBranchChild(pred, false, targetID)
				}
			default:
				g.setNext(pred, targetID)
			}
			return nil
		}

		n, err := g.GetNodeByID(id)
		if err != nil {
			continue
		}
		worklist = append(worklist, successors(n)...)
	}

	return newError(ErrNodeNotFound, "node %d not reachable from process root", targetID)
}
