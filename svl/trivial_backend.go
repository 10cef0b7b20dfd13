package svl

// TrivialBackend decides equality by structural comparison alone: two
// expressions are "always equal" only if they are syntactically identical,
// and "always not equal" only if they are distinct constants. It never
// consults path constraints. This is intentionally weak — it exists so
// unit tests can exercise the dependency oracle and reorder engine without
// a live solver, grounded on gosmt's test-only backend pattern
// (gosmt_test.go constructs solvers without a real Z3 context for
// expression-level unit tests).
type TrivialBackend struct{}

// NewTrivialBackend returns a Backend suitable for tests.
func NewTrivialBackend() *TrivialBackend { return &TrivialBackend{} }

func (b *TrivialBackend) EqualUnderConstraints(e1, e2 Expr, pc1, pc2 []Expr) (alwaysEq, alwaysNotEq bool) {
	if e1.Equal(e2) {
		return true, false
	}
	c1, ok1 := e1.(*Const)
	c2, ok2 := e2.(*Const)
	if ok1 && ok2 && c1.Value != c2.Value {
		return false, true
	}
	return false, false
}
