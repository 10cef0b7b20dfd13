package svl

// Solver answers the two query primitives the dependency oracle needs:
// "are these two expressions always equal (resp. always distinct) under
// the given path constraints". Grounded on gosmt's Solver/solverBackend
// split: Solver owns no decision-procedure logic itself, it only adapts a
// pluggable backend.
type Solver interface {
	// AlwaysEqual reports whether e1 == e2 holds in every model satisfying
	// pc1 && pc2. With no path constraints, asks whether e1 == e2 is valid
	// unconditionally.
	AlwaysEqual(e1, e2 Expr, pc1, pc2 []Expr) bool
	// AlwaysNotEqual reports whether e1 != e2 holds in every model
	// satisfying pc1 && pc2.
	AlwaysNotEqual(e1, e2 Expr, pc1, pc2 []Expr) bool
}

// Backend is the pluggable decision procedure behind Solver. The core
// never talks to a Backend directly; it only uses Solver. Alternative
// backends (e.g. svl/z3backend) implement this interface from their own
// package.
type Backend interface {
	// EqualUnderConstraints reports (alwaysEqual, alwaysNotEqual) for e1,
	// e2 under the conjunction of pc1 and pc2.
	EqualUnderConstraints(e1, e2 Expr, pc1, pc2 []Expr) (alwaysEq, alwaysNotEq bool)
}

type solverImpl struct {
	backend Backend
}

// NewSolver returns a Solver backed by the given decision procedure.
func NewSolver(b Backend) Solver {
	return &solverImpl{backend: b}
}

func (s *solverImpl) AlwaysEqual(e1, e2 Expr, pc1, pc2 []Expr) bool {
	eq, _ := s.backend.EqualUnderConstraints(e1, e2, pc1, pc2)
	return eq
}

func (s *solverImpl) AlwaysNotEqual(e1, e2 Expr, pc1, pc2 []Expr) bool {
	_, neq := s.backend.EqualUnderConstraints(e1, e2, pc1, pc2)
	return neq
}
