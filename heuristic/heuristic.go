// Package heuristic scores plans so a surrounding search frontier
// (out of scope here) can order them; this package supplies scoring only,
// grounded on heuristics/least_reordered.h.
package heuristic

import (
	"sort"

	"github.com/nfsynth/synapse"
)

// Score ranks a plan along two categories, evaluated in order:
// NumberOfReorderedNodes (minimized first) then NumberOfNodes as a
// tiebreak, mirroring LeastReorderedComparator::get_score.
type Score struct {
	ReorderedNodes int
	TotalNodes     int
}

// Less reports whether s ranks strictly ahead of other — fewer reorders
// wins outright; a tie falls through to fewer total nodes.
func (s Score) Less(other Score) bool {
	if s.ReorderedNodes != other.ReorderedNodes {
		return s.ReorderedNodes < other.ReorderedNodes
	}
	return s.TotalNodes < other.TotalNodes
}

// Heuristic assigns a Score to a plan.
type Heuristic interface {
	Score(plan *synapse.Plan) Score
}

// LeastReordered is the one concrete Heuristic this package provides: it
// prefers plans that needed the fewest reorders, breaking ties by total
// plan size.
type LeastReordered struct{}

func (LeastReordered) Score(plan *synapse.Plan) Score {
	return Score{
		ReorderedNodes: plan.ReorderBudget.Used(),
		TotalNodes:     plan.Graph.NodeCount(),
	}
}

// Rank sorts plans best-first according to h, stably (ties preserve
// enumeration order, per spec.md §5's determinism requirement).
func Rank(h Heuristic, plans []*synapse.Plan) []*synapse.Plan {
	scored := make([]*synapse.Plan, len(plans))
	copy(scored, plans)

	scores := make(map[*synapse.Plan]Score, len(plans))
	for _, p := range scored {
		scores[p] = h.Score(p)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scores[scored[i]].Less(scores[scored[j]])
	})

	return scored
}
