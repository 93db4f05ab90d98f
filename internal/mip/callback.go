package mip

import (
	"sync"
	"time"
)

// Callback is invoked on every integer-feasible candidate found by the search
type Callback interface {
	Incumbent(cb *CallbackContext) error
}

// CallbackFunc adapts a function to the Callback interface
type CallbackFunc func(cb *CallbackContext) error

// Incumbent calls f(cb)
func (f CallbackFunc) Incumbent(cb *CallbackContext) error { return f(cb) }

// LazyStore is the append-only set of lazy constraints of one solve.
// Add may be called from any goroutine.
type LazyStore struct {
	mu          sync.Mutex
	constraints []*Constraint
}

// NewLazyStore returns an empty store
func NewLazyStore() *LazyStore {
	return &LazyStore{}
}

// Add appends c and returns the new size
func (s *LazyStore) Add(c *Constraint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Lazy = true
	s.constraints = append(s.constraints, c)
	return len(s.constraints)
}

// Len returns the number of stored constraints
func (s *LazyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.constraints)
}

// Snapshot returns the constraints stored so far
func (s *LazyStore) Snapshot() []*Constraint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Constraint, len(s.constraints))
	copy(out, s.constraints)
	return out
}

// since returns constraints added after the first n
func (s *LazyStore) since(n int) []*Constraint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= len(s.constraints) {
		return nil
	}
	out := make([]*Constraint, len(s.constraints)-n)
	copy(out, s.constraints[n:])
	return out
}

// CallbackContext gives a callback read access to the candidate solution and
// lets it submit lazy constraints
type CallbackContext struct {
	model     *Model
	values    []float64
	objective float64
	nodes     int
	started   time.Time
	added     int
}

// Value returns the candidate value of v
func (cb *CallbackContext) Value(v Var) float64 {
	return cb.values[v.index]
}

// Values returns the candidate values of vs
func (cb *CallbackContext) Values(vs []Var) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = cb.values[v.index]
	}
	return out
}

// Objective returns the candidate objective value
func (cb *CallbackContext) Objective() float64 { return cb.objective }

// NodeCount returns the number of branch-and-bound nodes explored so far
func (cb *CallbackContext) NodeCount() int { return cb.nodes }

// Runtime returns the elapsed solve time
func (cb *CallbackContext) Runtime() time.Duration { return time.Since(cb.started) }

// AddLazy submits a lazy constraint that holds for the rest of the solve
func (cb *CallbackContext) AddLazy(e *Expr, sense Sense, rhs float64, name string) error {
	if !cb.model.lazyEnabled {
		return ErrLazyDisabled
	}
	cb.model.lazy.Add(&Constraint{Name: name, Expr: e, Sense: sense, RHS: rhs})
	cb.added++
	return nil
}

// Added returns how many lazy constraints this invocation submitted
func (cb *CallbackContext) Added() int { return cb.added }
