// Package planner wires the Decision Graph, Dependency Oracle, Reorder
// Engine and Module Processor into the one-step transition the core
// specifies: advancing a plan's active leaves through process_node.
// Search-frontier management, termination policy and plan exploration
// order beyond one step are explicitly out of scope (spec.md §1); this
// package exists so the whole core is exercisable end to end without
// reintroducing that excluded machinery.
package planner

import (
	"github.com/nfsynth/synapse"
	"github.com/nfsynth/synapse/heuristic"
)

// Planner advances plans one active leaf at a time through a set of
// per-target Handlers, ranking the results with a Heuristic.
type Planner struct {
	Handlers  []synapse.Handler
	Heuristic heuristic.Heuristic
}

// New returns a Planner that tries handlers in order (the first to accept
// a node wins) and ranks results with h.
func New(h heuristic.Heuristic, handlers ...synapse.Handler) *Planner {
	return &Planner{Handlers: handlers, Heuristic: h}
}

// Advance processes every active leaf of plan once: for each leaf, the
// first handler that does not decline produces the successor plans (each
// already expanded with its reordered alternates by synapse.ProcessNode).
// The returned slice is ranked best-first by the Planner's Heuristic.
func (p *Planner) Advance(plan *synapse.Plan) ([]*synapse.Plan, error) {
	var out []*synapse.Plan

	for _, leafID := range plan.ActiveLeaves {
		node, err := plan.Graph.GetNodeByID(leafID)
		if err != nil {
			return nil, err
		}

		for _, h := range p.Handlers {
			result := synapse.ProcessNode(h, plan, node)
			if result.Declined() {
				continue
			}
			out = append(out, result.NextPlans...)
			break
		}
	}

	return heuristic.Rank(p.Heuristic, out), nil
}
