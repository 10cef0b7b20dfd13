package bmv2_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nfsynth/synapse"
	"github.com/nfsynth/synapse/modules/bmv2"
	"github.com/nfsynth/synapse/svl"
)

func callNode(g *synapse.DecisionGraph, fn string, args map[string]synapse.Argument) *synapse.Node {
	n := &synapse.Node{ID: g.NextID(), Kind: synapse.KindCall, Function: fn, Args: args}
	g.Insert(n)
	return n
}

func TestHandler_ProcessCall_TableLookup(t *testing.T) {
	g := synapse.NewDecisionGraph()

	theMap := &svl.Symbol{Label: "a_map", WidthBits: 64}
	key := &svl.Symbol{Label: "a_key", WidthBits: 32}

	n := callNode(g, "map_get", map[string]synapse.Argument{
		"map": {Expr: theMap},
		"key": {In: key},
	})
	term := &synapse.Node{ID: g.NextID(), Kind: synapse.KindReturnProcess}
	g.Insert(term)
	n.Next = term.ID
	term.Pred = n.ID
	g.ReplaceProcessRoot(n.ID)

	plan := synapse.NewPlan(g)
	plan.ActiveLeaves = []synapse.NodeID{n.ID}

	result := bmv2.NewHandler().ProcessCall(plan, n)
	if result.Declined() {
		t.Fatal("a map_get with a known key must resolve to a table lookup, not a controller hand-off")
	}
	tl, ok := result.Module.(*bmv2.TableLookup)
	if !ok {
		t.Fatalf("module type = %T, want *bmv2.TableLookup", result.Module)
	}
	if !tl.Map.Equal(theMap) || !tl.Key.Equal(key) {
		t.Fatal("TableLookup did not bind the call's map/key expressions")
	}
}

func TestHandler_ProcessCall_FallsBackToController(t *testing.T) {
	g := synapse.NewDecisionGraph()

	setup := callNode(g, "dchain_is_index_allocated", map[string]synapse.Argument{})
	n := callNode(g, "vector_borrow", map[string]synapse.Argument{})
	setup.Next = n.ID
	n.Pred = setup.ID
	g.ReplaceProcessRoot(setup.ID)

	plan := synapse.NewPlan(g)
	plan.ActiveLeaves = []synapse.NodeID{n.ID}

	result := bmv2.NewHandler().ProcessCall(plan, n)
	if result.Declined() {
		t.Fatal("a Call the switch pipeline can't realize must fall back to SendToController")
	}
	stc, ok := result.Module.(*bmv2.SendToController)
	if !ok {
		t.Fatalf("module type = %T, want *bmv2.SendToController", result.Module)
	}
	if stc.MetadataCodePath != n.ID {
		t.Fatalf("MetadataCodePath = %d, want %d", stc.MetadataCodePath, n.ID)
	}

	next := result.NextPlans[0]
	newLeaf := next.ActiveLeaves[0]
	if newLeaf == n.ID {
		t.Fatal("the active leaf should have moved to the head of the cloned ancestor chain")
	}

	head, err := next.Graph.GetNodeByID(newLeaf)
	if err != nil {
		t.Fatal(err)
	}
	if head.Function != "dchain_is_index_allocated" {
		t.Fatalf("cloned ancestor head function = %q, want dchain_is_index_allocated", head.Function)
	}
}

func TestHandler_ProcessBranch_AlwaysGoesToController(t *testing.T) {
	g := synapse.NewDecisionGraph()
	branch := &synapse.Node{ID: g.NextID(), Kind: synapse.KindBranch, CondExpr: &svl.Symbol{Label: "cond", WidthBits: 1}}
	g.Insert(branch)
	g.ReplaceProcessRoot(branch.ID)

	plan := synapse.NewPlan(g)
	plan.ActiveLeaves = []synapse.NodeID{branch.ID}

	result := bmv2.NewHandler().ProcessBranch(plan, branch)
	if _, ok := result.Module.(*bmv2.SendToController); !ok {
		t.Fatalf("module type = %T, want *bmv2.SendToController", result.Module)
	}
}

func TestSendToController_CloneCalls(t *testing.T) {
	g := synapse.NewDecisionGraph()

	anc1 := callNode(g, "dchain_allocate_new_index", map[string]synapse.Argument{})
	anc2 := callNode(g, "dchain_is_index_allocated", map[string]synapse.Argument{})
	anc3 := callNode(g, "dchain_rejuvenate_index", map[string]synapse.Argument{})
	n := callNode(g, "vector_borrow", map[string]synapse.Argument{})

	anc1.Next = anc2.ID
	anc2.Pred = anc1.ID
	anc2.Next = anc3.ID
	anc3.Pred = anc2.ID
	anc3.Next = n.ID
	n.Pred = anc3.ID
	g.ReplaceProcessRoot(anc1.ID)

	plan := synapse.NewPlan(g)
	plan.ActiveLeaves = []synapse.NodeID{n.ID}

	result := bmv2.NewHandler().ProcessCall(plan, n)
	if result.Declined() {
		t.Fatal("vector_borrow must fall back to SendToController")
	}

	next := result.NextPlans[0]
	newLeaf := next.ActiveLeaves[0]

	var chain []string
	walk := newLeaf
	for {
		node, err := next.Graph.GetNodeByID(walk)
		if err != nil {
			t.Fatal(err)
		}
		if node.ID == n.ID {
			break
		}
		if node.Kind != synapse.KindCall {
			t.Fatalf("node %d in the cloned prefix is not a Call: %v", node.ID, node.Kind)
		}
		chain = append(chain, node.Function)
		if node.Next == 0 {
			t.Fatal("cloned prefix chain never reached the original node")
		}
		walk = node.Next
	}

	wantChain := []string{"dchain_allocate_new_index", "dchain_is_index_allocated", "dchain_rejuvenate_index"}
	if diff := cmp.Diff(wantChain, chain); diff != "" {
		t.Fatalf("cloned prefix chain mismatch (-want +got):\n%s", diff)
	}

	original, err := next.Graph.GetNodeByID(n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if original.Pred == 0 || original.Pred == n.Pred {
		t.Fatal("the original node's predecessor must now point into the cloned chain")
	}
}

func TestSendToController_Equals(t *testing.T) {
	a := &bmv2.SendToController{MetadataCodePath: 7}
	b := &bmv2.SendToController{MetadataCodePath: 7}
	c := &bmv2.SendToController{MetadataCodePath: 8}

	if !a.Equals(b) {
		t.Fatal("SendToController modules with the same metadata code path must be equal")
	}
	if a.Equals(c) {
		t.Fatal("SendToController modules with different metadata code paths must not be equal")
	}
}
