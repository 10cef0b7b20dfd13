package x86_test

import (
	"testing"

	"github.com/nfsynth/synapse"
	"github.com/nfsynth/synapse/modules/x86"
	"github.com/nfsynth/synapse/svl"
)

func callNode(g *synapse.DecisionGraph, fn string, args map[string]synapse.Argument) *synapse.Node {
	n := &synapse.Node{ID: g.NextID(), Kind: synapse.KindCall, Function: fn, Args: args}
	g.Insert(n)
	return n
}

func TestHandler_ProcessCall_MapGet(t *testing.T) {
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

	h := x86.NewHandler()
	result := h.ProcessCall(plan, n)
	if result.Declined() {
		t.Fatal("x86 handler must not decline a map_get call")
	}

	mg, ok := result.Module.(*x86.MapGet)
	if !ok {
		t.Fatalf("module type = %T, want *x86.MapGet", result.Module)
	}
	if !mg.Map.Equal(theMap) || !mg.Key.Equal(key) {
		t.Fatal("MapGet did not bind the call's map/key expressions")
	}

	if len(result.NextPlans) != 1 {
		t.Fatalf("got %d next plans, want 1", len(result.NextPlans))
	}
	next := result.NextPlans[0]
	if next.ActiveLeaves[0] != term.ID {
		t.Fatalf("active leaf not advanced past the bound call: got %d, want %d", next.ActiveLeaves[0], term.ID)
	}
	if bound, ok := next.Bindings[n.ID]; !ok || !bound.Equals(mg) {
		t.Fatal("call node not bound to its MapGet module")
	}

	// The plan passed in must be untouched (ProcessCall clones before mutating).
	if len(plan.Bindings) != 0 {
		t.Fatal("ProcessCall mutated the caller's plan instead of cloning")
	}
}

func TestHandler_ProcessCall_DchainRejuvenateIndex(t *testing.T) {
	g := synapse.NewDecisionGraph()

	dchain := &svl.Symbol{Label: "dchain", WidthBits: 64}
	index := &svl.Symbol{Label: "idx", WidthBits: 32}
	tm := &svl.Symbol{Label: "time", WidthBits: 64}

	n := callNode(g, "dchain_rejuvenate_index", map[string]synapse.Argument{
		"dchain": {Expr: dchain},
		"index":  {Expr: index},
		"time":   {Expr: tm},
	})
	g.ReplaceProcessRoot(n.ID)

	plan := synapse.NewPlan(g)
	plan.ActiveLeaves = []synapse.NodeID{n.ID}

	result := x86.NewHandler().ProcessCall(plan, n)
	dr, ok := result.Module.(*x86.DchainRejuvenateIndex)
	if !ok {
		t.Fatalf("module type = %T, want *x86.DchainRejuvenateIndex", result.Module)
	}
	if !dr.Dchain.Equal(dchain) || !dr.Index.Equal(index) || !dr.Time.Equal(tm) {
		t.Fatal("DchainRejuvenateIndex did not bind dchain/index/time correctly")
	}

	// n.Next == 0 (no successor): the active-leaf set becomes empty, since
	// there is nothing left to process downstream of this call.
	next := result.NextPlans[0]
	if len(next.ActiveLeaves) != 0 {
		t.Fatalf("expected no active leaves after a terminal call, got %v", next.ActiveLeaves)
	}
}

func TestHandler_ProcessCall_UnknownFunctionDeclines(t *testing.T) {
	g := synapse.NewDecisionGraph()
	n := callNode(g, "some_unmodeled_primitive", map[string]synapse.Argument{})
	g.ReplaceProcessRoot(n.ID)

	plan := synapse.NewPlan(g)
	plan.ActiveLeaves = []synapse.NodeID{n.ID}

	result := x86.NewHandler().ProcessCall(plan, n)
	if !result.Declined() {
		t.Fatal("an unrecognized function must make the handler decline")
	}
}

func TestModulesEqual_MapGet(t *testing.T) {
	theMap := &svl.Symbol{Label: "a_map", WidthBits: 64}
	key := &svl.Symbol{Label: "a_key", WidthBits: 32}

	a := &x86.MapGet{Map: theMap, Key: key}
	b := &x86.MapGet{Map: theMap, Key: key}
	c := &x86.MapGet{Map: theMap, Key: &svl.Symbol{Label: "different_key", WidthBits: 32}}

	if !a.Equals(b) {
		t.Fatal("two MapGet modules bound to the same expressions must be equal")
	}
	if a.Equals(c) {
		t.Fatal("MapGet modules bound to different keys must not be equal")
	}
}
