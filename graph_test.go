package synapse_test

import (
	"testing"

	"github.com/nfsynth/synapse"
)

func newCall(id synapse.NodeID, fn string) *synapse.Node {
	return &synapse.Node{ID: id, Kind: synapse.KindCall, Function: fn, Args: map[string]synapse.Argument{}}
}

func newReturn(id synapse.NodeID) *synapse.Node {
	return &synapse.Node{ID: id, Kind: synapse.KindReturnProcess}
}

// straightLineGraph builds A -> B -> term, with A and B as Calls.
func straightLineGraph(t *testing.T, fnA, fnB string) (*synapse.DecisionGraph, *synapse.Node, *synapse.Node) {
	t.Helper()
	g := synapse.NewDecisionGraph()

	a := newCall(g.NextID(), fnA)
	b := newCall(g.NextID(), fnB)
	term := newReturn(g.NextID())

	g.Insert(a)
	g.Insert(b)
	g.Insert(term)

	a.Next = b.ID
	b.Pred = a.ID
	b.Next = term.ID
	term.Pred = b.ID

	g.ReplaceProcessRoot(a.ID)

	return g, a, b
}

func TestDecisionGraph_InsertAndGetNodeByID(t *testing.T) {
	g := synapse.NewDecisionGraph()
	n := newCall(g.NextID(), "map_get")
	g.Insert(n)

	got, err := g.GetNodeByID(n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != n {
		t.Fatalf("GetNodeByID returned a different node")
	}

	if _, err := g.GetNodeByID(n.ID + 100); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestDecisionGraph_CloneSubtree_FreshIDs(t *testing.T) {
	g, _, b := straightLineGraph(t, "map_get", "dchain_is_index_allocated")

	maxID := synapse.NodeID(0)
	nextID := g.NextID()
	for id := synapse.NodeID(1); id < nextID; id++ {
		if n, err := g.GetNodeByID(id); err == nil && n.ID > maxID {
			maxID = n.ID
		}
	}

	cloneRoot := g.CloneSubtree(g, b.ID)
	if cloneRoot <= maxID {
		t.Fatalf("CloneSubtree: cloned root id %d does not exceed pre-clone max id %d", cloneRoot, maxID)
	}

	clone, err := g.GetNodeByID(cloneRoot)
	if err != nil {
		t.Fatal(err)
	}
	if clone.Function != "dchain_is_index_allocated" {
		t.Fatalf("clone did not preserve function name: %s", clone.Function)
	}
}

func TestDecisionGraph_ReplaceNodeInBDD_Idempotent(t *testing.T) {
	g, a, b := straightLineGraph(t, "map_get", "dchain_is_index_allocated")

	replacement := b.Clone()
	if err := g.ReplaceNodeInBDD(replacement); err != nil {
		t.Fatal(err)
	}

	got, err := g.GetNodeByID(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Pred != a.ID {
		t.Fatalf("back-link broken: got.Pred=%d, expected %d", got.Pred, a.ID)
	}

	aNow, err := g.GetNodeByID(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if aNow.Next != b.ID {
		t.Fatalf("forward link broken: a.Next=%d, expected %d", aNow.Next, b.ID)
	}
}

func TestDecisionGraph_Clone_Deep_Isolation(t *testing.T) {
	g, a, _ := straightLineGraph(t, "map_get", "dchain_is_index_allocated")

	deep := g.Clone(true)
	cloneA, err := deep.GetNodeByID(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	cloneA.Function = "mutated"

	original, err := g.GetNodeByID(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if original.Function == "mutated" {
		t.Fatal("deep clone shares node state with the original graph")
	}
}

func TestDecisionGraph_CloneCalls(t *testing.T) {
	g := synapse.NewDecisionGraph()

	setup := newCall(g.NextID(), "map_get")
	target := &synapse.Node{ID: g.NextID(), Kind: synapse.KindBranch, CondExpr: nil}
	onTrue := newReturn(g.NextID())
	onFalse := newReturn(g.NextID())

	g.Insert(setup)
	g.Insert(target)
	g.Insert(onTrue)
	g.Insert(onFalse)

	setup.Next = target.ID
	target.Pred = setup.ID
	target.OnTrue = onTrue.ID
	target.OnFalse = onFalse.ID
	onTrue.Pred = target.ID
	onFalse.Pred = target.ID

	g.ReplaceProcessRoot(setup.ID)

	head := g.CloneCalls(target)
	if head == target.ID {
		t.Fatal("CloneCalls did not duplicate the Call ancestor")
	}

	headNode, err := g.GetNodeByID(head)
	if err != nil {
		t.Fatal(err)
	}
	if headNode.Function != "map_get" {
		t.Fatalf("cloned ancestor lost its function name: %q", headNode.Function)
	}
	if headNode.Next != target.ID {
		t.Fatalf("cloned ancestor does not chain into target: Next=%d, want %d", headNode.Next, target.ID)
	}

	// setup was current's own direct predecessor, so replace_next rewires
	// setup's forward link away from target and onto the duplicated chain.
	if setup.Next != head {
		t.Fatalf("original predecessor not rewired onto the cloned chain: setup.Next=%d, want %d", setup.Next, head)
	}

	targetNow, err := g.GetNodeByID(target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if targetNow.Pred != head {
		t.Fatalf("target's back-link not rewired to the cloned chain: Pred=%d, want %d", targetNow.Pred, head)
	}
}

func TestDecisionGraph_CloneCalls_AtProcessRoot(t *testing.T) {
	g := synapse.NewDecisionGraph()

	root := newCall(g.NextID(), "map_get")
	g.Insert(root)
	g.ReplaceProcessRoot(root.ID)

	// A node with no predecessor has no Call ancestors to duplicate:
	// CloneCalls is a no-op that returns the node itself.
	head := g.CloneCalls(root)
	if head != root.ID {
		t.Fatalf("CloneCalls on the process root should be a no-op: got %d, want %d", head, root.ID)
	}
}
