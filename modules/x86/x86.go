// Package x86 is the x86 fast-path module library: one Module variant per
// map, dchain and vector primitive of the core's side-effect table
// (synapse §6), plus ChecksumFixup for nf_set_rte_ipv4_udptcp_checksum,
// grounded on
// original_source/.../modules/x86/dchain_rejuvenate_index.h and
// rte_ether_addr_hash.h.
package x86

import (
	"github.com/nfsynth/synapse"
	"github.com/nfsynth/synapse/svl"
)

// Target tags every module this package produces.
const Target synapse.Target = "x86"

// MapGet binds the map object, key and (generated) value of a map_get
// Call.
type MapGet struct {
	Map       svl.Expr
	Key       svl.Expr
	Generated []synapse.Symbol
}

func (m *MapGet) Target() synapse.Target            { return Target }
func (m *MapGet) BoundExprs() []svl.Expr             { return []svl.Expr{m.Map, m.Key} }
func (m *MapGet) GeneratedSymbols() []synapse.Symbol { return m.Generated }
func (m *MapGet) Clone() synapse.Module {
	c := *m
	c.Generated = append([]synapse.Symbol(nil), m.Generated...)
	return &c
}
func (m *MapGet) Equals(other synapse.Module) bool {
	o, ok := other.(*MapGet)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *MapGet) Visit(v synapse.Visitor) { v.Visit(m) }

// MapPut binds the map object, key and value of a map_put Call.
type MapPut struct {
	Map       svl.Expr
	Key       svl.Expr
	Value     svl.Expr
	Generated []synapse.Symbol
}

func (m *MapPut) Target() synapse.Target            { return Target }
func (m *MapPut) BoundExprs() []svl.Expr             { return []svl.Expr{m.Map, m.Key, m.Value} }
func (m *MapPut) GeneratedSymbols() []synapse.Symbol { return m.Generated }
func (m *MapPut) Clone() synapse.Module {
	c := *m
	c.Generated = append([]synapse.Symbol(nil), m.Generated...)
	return &c
}
func (m *MapPut) Equals(other synapse.Module) bool {
	o, ok := other.(*MapPut)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *MapPut) Visit(v synapse.Visitor) { v.Visit(m) }

// DchainAllocateNewIndex binds the dchain object and the index it
// allocates (generated by the Call).
type DchainAllocateNewIndex struct {
	Dchain    svl.Expr
	Generated []synapse.Symbol
}

func (m *DchainAllocateNewIndex) Target() synapse.Target            { return Target }
func (m *DchainAllocateNewIndex) BoundExprs() []svl.Expr             { return []svl.Expr{m.Dchain} }
func (m *DchainAllocateNewIndex) GeneratedSymbols() []synapse.Symbol { return m.Generated }
func (m *DchainAllocateNewIndex) Clone() synapse.Module {
	c := *m
	c.Generated = append([]synapse.Symbol(nil), m.Generated...)
	return &c
}
func (m *DchainAllocateNewIndex) Equals(other synapse.Module) bool {
	o, ok := other.(*DchainAllocateNewIndex)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *DchainAllocateNewIndex) Visit(v synapse.Visitor) { v.Visit(m) }

// DchainIsIndexAllocated binds the dchain object and the index being
// tested.
type DchainIsIndexAllocated struct {
	Dchain    svl.Expr
	Index     svl.Expr
	Generated []synapse.Symbol
}

func (m *DchainIsIndexAllocated) Target() synapse.Target { return Target }
func (m *DchainIsIndexAllocated) BoundExprs() []svl.Expr {
	return []svl.Expr{m.Dchain, m.Index}
}
func (m *DchainIsIndexAllocated) GeneratedSymbols() []synapse.Symbol { return m.Generated }
func (m *DchainIsIndexAllocated) Clone() synapse.Module {
	c := *m
	c.Generated = append([]synapse.Symbol(nil), m.Generated...)
	return &c
}
func (m *DchainIsIndexAllocated) Equals(other synapse.Module) bool {
	o, ok := other.(*DchainIsIndexAllocated)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *DchainIsIndexAllocated) Visit(v synapse.Visitor) { v.Visit(m) }

// DchainRejuvenateIndex binds the dchain object, the index, and the new
// timestamp, grounded directly on dchain_rejuvenate_index.h.
type DchainRejuvenateIndex struct {
	Dchain svl.Expr
	Index  svl.Expr
	Time   svl.Expr
}

func (m *DchainRejuvenateIndex) Target() synapse.Target { return Target }
func (m *DchainRejuvenateIndex) BoundExprs() []svl.Expr {
	return []svl.Expr{m.Dchain, m.Index, m.Time}
}
func (m *DchainRejuvenateIndex) GeneratedSymbols() []synapse.Symbol { return nil }
func (m *DchainRejuvenateIndex) Clone() synapse.Module {
	c := *m
	return &c
}
func (m *DchainRejuvenateIndex) Equals(other synapse.Module) bool {
	o, ok := other.(*DchainRejuvenateIndex)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *DchainRejuvenateIndex) Visit(v synapse.Visitor) { v.Visit(m) }

// VectorBorrow binds the vector object and index of a vector_borrow Call,
// plus the borrowed cell it generates.
type VectorBorrow struct {
	Vector    svl.Expr
	Index     svl.Expr
	Generated []synapse.Symbol
}

func (m *VectorBorrow) Target() synapse.Target            { return Target }
func (m *VectorBorrow) BoundExprs() []svl.Expr             { return []svl.Expr{m.Vector, m.Index} }
func (m *VectorBorrow) GeneratedSymbols() []synapse.Symbol { return m.Generated }
func (m *VectorBorrow) Clone() synapse.Module {
	c := *m
	c.Generated = append([]synapse.Symbol(nil), m.Generated...)
	return &c
}
func (m *VectorBorrow) Equals(other synapse.Module) bool {
	o, ok := other.(*VectorBorrow)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *VectorBorrow) Visit(v synapse.Visitor) { v.Visit(m) }

// VectorReturn binds the vector object, index and the value written back.
type VectorReturn struct {
	Vector svl.Expr
	Index  svl.Expr
	Value  svl.Expr
}

func (m *VectorReturn) Target() synapse.Target            { return Target }
func (m *VectorReturn) BoundExprs() []svl.Expr             { return []svl.Expr{m.Vector, m.Index, m.Value} }
func (m *VectorReturn) GeneratedSymbols() []synapse.Symbol { return nil }
func (m *VectorReturn) Clone() synapse.Module {
	c := *m
	return &c
}
func (m *VectorReturn) Equals(other synapse.Module) bool {
	o, ok := other.(*VectorReturn)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *VectorReturn) Visit(v synapse.Visitor) { v.Visit(m) }

// ChecksumFixup binds the packet header fields a checksum recompute reads.
// It only ever matches nf_set_rte_ipv4_udptcp_checksum, the one function
// in the cannot-reorder set that is also side-effecting-adjacent enough to
// need its own module: this demonstrates that a module placement and the
// Reorder Engine's cannot-reorder classification are independent
// concerns — ChecksumFixup places the node just like any other, while
// GetCandidates refuses to ever hoist past (or hoist) it.
type ChecksumFixup struct {
	IPHeader  svl.Expr
	L4Header  svl.Expr
}

func (m *ChecksumFixup) Target() synapse.Target            { return Target }
func (m *ChecksumFixup) BoundExprs() []svl.Expr             { return []svl.Expr{m.IPHeader, m.L4Header} }
func (m *ChecksumFixup) GeneratedSymbols() []synapse.Symbol { return nil }
func (m *ChecksumFixup) Clone() synapse.Module {
	c := *m
	return &c
}
func (m *ChecksumFixup) Equals(other synapse.Module) bool {
	o, ok := other.(*ChecksumFixup)
	return ok && synapse.ModulesEqual(m, o)
}
func (m *ChecksumFixup) Visit(v synapse.Visitor) { v.Visit(m) }

// Handler dispatches every x86 Call variant through one process_call
// table, mirroring module.cpp's Module::process_call being overridden per
// concrete module in the source: here the table plays that role instead
// of one override per type, since Go has no virtual dispatch to hang
// fourteen subclasses off of.
type Handler struct {
	synapse.BaseHandler
}

// NewHandler returns a ready-to-use x86 module handler.
func NewHandler() *Handler { return &Handler{} }

func (h *Handler) ProcessCall(plan *synapse.Plan, node *synapse.Node) synapse.ProcessResult {
	module := buildModule(node)
	if module == nil {
		return synapse.ProcessResult{}
	}

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

func buildModule(node *synapse.Node) synapse.Module {
	if node.Kind != synapse.KindCall {
		return nil
	}

	arg := func(name string) svl.Expr {
		a, ok := node.Args[name]
		if !ok {
			return nil
		}
		return a.Expr
	}
	in := func(name string) svl.Expr {
		a, ok := node.Args[name]
		if !ok {
			return nil
		}
		return a.In
	}

	switch node.Function {
	case "map_get":
		return &MapGet{Map: arg("map"), Key: in("key"), Generated: node.Generated}
	case "map_put":
		return &MapPut{Map: arg("map"), Key: in("key"), Value: arg("value"), Generated: node.Generated}
	case "dchain_allocate_new_index":
		return &DchainAllocateNewIndex{Dchain: arg("dchain"), Generated: node.Generated}
	case "dchain_is_index_allocated":
		return &DchainIsIndexAllocated{Dchain: arg("dchain"), Index: arg("index"), Generated: node.Generated}
	case "dchain_rejuvenate_index":
		return &DchainRejuvenateIndex{Dchain: arg("dchain"), Index: arg("index"), Time: arg("time")}
	case "vector_borrow":
		return &VectorBorrow{Vector: arg("vector"), Index: arg("index"), Generated: node.Generated}
	case "vector_return":
		return &VectorReturn{Vector: arg("vector"), Index: arg("index"), Value: arg("value")}
	case "nf_set_rte_ipv4_udptcp_checksum":
		return &ChecksumFixup{IPHeader: arg("ip_header"), L4Header: arg("l4_header")}
	default:
		return nil
	}
}
