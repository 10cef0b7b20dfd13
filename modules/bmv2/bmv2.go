// Package bmv2 is the programmable-switch module library: a pipeline
// table match (TableLookup) for the primitives a switch ASIC can realize
// directly, and a controller hand-off (SendToController) for everything
// else, grounded on
// original_source/.../modules/BMv2SimpleSwitchgRPC/send_to_controller.h
// and BMv2SimpleSwitchgRPC.h.
package bmv2

import (
	"github.com/nfsynth/synapse"
	"github.com/nfsynth/synapse/svl"
)

// Target tags every module this package produces.
const Target synapse.Target = "bmv2"

// TableLookup binds a map object and key as a switch-pipeline table
// match — the bmv2 analogue of x86's MapGet/MapPut, since a P4 match-
// action table realizes both reads and writes of a small associative
// store as one primitive.
type TableLookup struct {
	Map       svl.Expr
	Key       svl.Expr
	Generated []synapse.Symbol
}

func (m *TableLookup) Target() synapse.Target            { return Target }
func (m *TableLookup) BoundExprs() []svl.Expr             { return []svl.Expr{m.Map, m.Key} }
func (m *TableLookup) GeneratedSymbols() []synapse.Symbol { return m.Generated }
func (m *TableLookup) Clone() synapse.Module {
	c := *m
	c.Generated = append([]synapse.Symbol(nil), m.Generated...)
	return &c
}
func (m *TableLookup) Equals(other synapse.Module) bool {
	o, ok := other.(*TableLookup)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *TableLookup) Visit(v synapse.Visitor) { v.Visit(m) }

// SendToController diverts a node the switch pipeline cannot realize to
// the controller's x86 fallback path. MetadataCodePath records the id of
// the node that triggered the diversion (retained, per
// send_to_controller.h, because equals() compares it and downstream
// codegen needs to know which branch point this hand-off corresponds to).
type SendToController struct {
	MetadataCodePath synapse.NodeID
}

func (m *SendToController) Target() synapse.Target            { return Target }
func (m *SendToController) BoundExprs() []svl.Expr             { return nil }
func (m *SendToController) GeneratedSymbols() []synapse.Symbol { return nil }
func (m *SendToController) Clone() synapse.Module {
	c := *m
	return &c
}
func (m *SendToController) Equals(other synapse.Module) bool {
	o, ok := other.(*SendToController)
	return ok && m.MetadataCodePath == o.MetadataCodePath
}
func (m *SendToController) Visit(v synapse.Visitor) { v.Visit(m) }

// Handler places TableLookup for map_get/map_put Calls the switch
// pipeline can realize directly, and falls back to SendToController for
// every other Call and every Branch (a switch ASIC cannot evaluate an
// arbitrary symbolic condition; the controller path must).
type Handler struct {
	synapse.BaseHandler
}

// NewHandler returns a ready-to-use bmv2 module handler.
func NewHandler() *Handler { return &Handler{} }

func (h *Handler) ProcessCall(plan *synapse.Plan, node *synapse.Node) synapse.ProcessResult {
	if node.Function == "map_get" || node.Function == "map_put" {
		if module, ok := tableLookup(node); ok {
			return bindLocally(plan, node, module)
		}
	}
	return h.sendToController(plan, node)
}

func (h *Handler) ProcessBranch(plan *synapse.Plan, node *synapse.Node) synapse.ProcessResult {
	return h.sendToController(plan, node)
}

func tableLookup(node *synapse.Node) (*TableLookup, bool) {
	keyArg, ok := node.Args["key"]
	if !ok || keyArg.In == nil {
		return nil, false
	}
	mapArg, ok := node.Args["map"]
	if !ok || mapArg.Expr == nil {
		return nil, false
	}
	return &TableLookup{Map: mapArg.Expr, Key: keyArg.In, Generated: node.Generated}, true
}

func bindLocally(plan *synapse.Plan, node *synapse.Node, module synapse.Module) synapse.ProcessResult {
	next := plan.Clone(true)
	leaf, err := next.Graph.GetNodeByID(node.ID)
	if err != nil {
		return synapse.ProcessResult{}
	}
	next.BindModule(leaf.ID, module)
	if leaf.Next != 0 {
		next.ReplaceActiveLeaf(leaf.ID, leaf.Next)
	}
	return synapse.ProcessResult{Module: module, NextPlans: []*synapse.Plan{next}}
}

// sendToController is process() in send_to_controller.h: it clones node's
// Call ancestors into a private prefix chain, binds node to a
// SendToController module, and makes the head of that chain (still
// unprocessed) the new active leaf.
func (h *Handler) sendToController(plan *synapse.Plan, node *synapse.Node) synapse.ProcessResult {
	next := plan.Clone(true)
	nodeClone, err := next.Graph.GetNodeByID(node.ID)
	if err != nil {
		return synapse.ProcessResult{}
	}

	head := next.Graph.CloneCalls(nodeClone)

	module := &SendToController{MetadataCodePath: node.ID}
	next.BindModule(nodeClone.ID, module)
	next.ReplaceActiveLeaf(node.ID, head)

	return synapse.ProcessResult{Module: module, NextPlans: []*synapse.Plan{next}}
}
