// Package mip is a small mixed-integer programming engine: bounded primal
// simplex for the LP relaxations and depth-first branch-and-bound on top.
//
// The search fires a Callback on every integer-feasible node solution before
// that solution may become the incumbent. The callback can submit lazy
// constraints; a candidate that violates any of them is discarded and the
// node is re-solved with the enlarged constraint set.
package mip

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnbounded is returned when an LP relaxation has no finite optimum
	ErrUnbounded = errors.New("mip: relaxation is unbounded")
	// ErrIterationLimit is returned when the simplex fails to converge
	ErrIterationLimit = errors.New("mip: simplex iteration limit reached")
	// ErrCallbackFailed wraps any error returned by the incumbent callback
	ErrCallbackFailed = errors.New("mip: callback failed")
	// ErrLazyDisabled is returned when a callback adds a lazy constraint
	// without lazy constraints being enabled on the model
	ErrLazyDisabled = errors.New("mip: lazy constraints are not enabled")
	// ErrInvalidBounds is returned for a lower bound above the upper bound
	ErrInvalidBounds = errors.New("mip: lower bound exceeds upper bound")
)

// VarType is the domain of a decision variable
type VarType int

const (
	Continuous VarType = iota
	Integer
	Binary
)

// Sense is the relation of a linear constraint
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "="
	}
}

// Direction is the optimization direction of the objective
type Direction int

const (
	Maximize Direction = iota
	Minimize
)

// Var is a handle to a decision variable of one Model
type Var struct {
	index int
}

// Index returns the column index of the variable
func (v Var) Index() int { return v.index }

type variable struct {
	name   string
	kind   VarType
	lb, ub float64
}

// Term is a coefficient-variable product
type Term struct {
	Coef float64
	Var  Var
}

// Expr is a linear expression. Repeated variables are merged.
type Expr struct {
	terms []Term
	pos   map[int]int
}

// NewExpr returns an empty linear expression
func NewExpr() *Expr {
	return &Expr{pos: make(map[int]int)}
}

// AddTerm adds coef*v to the expression
func (e *Expr) AddTerm(coef float64, v Var) *Expr {
	if e.pos == nil {
		e.pos = make(map[int]int)
	}
	if i, ok := e.pos[v.index]; ok {
		e.terms[i].Coef += coef
		return e
	}
	e.pos[v.index] = len(e.terms)
	e.terms = append(e.terms, Term{Coef: coef, Var: v})
	return e
}

// Remove drops v from the expression
func (e *Expr) Remove(v Var) *Expr {
	i, ok := e.pos[v.index]
	if !ok {
		return e
	}
	last := len(e.terms) - 1
	if i != last {
		e.terms[i] = e.terms[last]
		e.pos[e.terms[i].Var.index] = i
	}
	e.terms = e.terms[:last]
	delete(e.pos, v.index)
	return e
}

// Terms returns the terms with a non-zero coefficient
func (e *Expr) Terms() []Term {
	out := make([]Term, 0, len(e.terms))
	for _, t := range e.terms {
		if t.Coef != 0 {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of stored terms
func (e *Expr) Len() int { return len(e.terms) }

// Evaluate computes the expression for a full assignment of variable values
func (e *Expr) Evaluate(values []float64) float64 {
	sum := 0.0
	for _, t := range e.terms {
		sum += t.Coef * values[t.Var.index]
	}
	return sum
}

// Constraint is a linear constraint expr (sense) rhs
type Constraint struct {
	Name  string
	Expr  *Expr
	Sense Sense
	RHS   float64
	Lazy  bool
}

// Violation returns how far values are from satisfying the constraint (0 when satisfied)
func (c *Constraint) Violation(values []float64) float64 {
	lhs := c.Expr.Evaluate(values)
	switch c.Sense {
	case LessEqual:
		return math.Max(0, lhs-c.RHS)
	case GreaterEqual:
		return math.Max(0, c.RHS-lhs)
	default:
		return math.Abs(lhs - c.RHS)
	}
}

func (c *Constraint) String() string {
	return fmt.Sprintf("%s: %d terms %s %g", c.Name, c.Expr.Len(), c.Sense, c.RHS)
}

// Model holds variables, constraints, the objective and the callback.
// Build it from one goroutine; only the lazy store is safe for concurrent use.
type Model struct {
	vars        []variable
	constraints []*Constraint
	objective   *Expr
	direction   Direction
	callback    Callback
	lazyEnabled bool
	lazy        *LazyStore
}

// NewModel creates an empty maximization model
func NewModel() *Model {
	return &Model{
		objective: NewExpr(),
		direction: Maximize,
		lazy:      NewLazyStore(),
	}
}

func (m *Model) addVar(kind VarType, lb, ub float64, name string) Var {
	v := Var{index: len(m.vars)}
	m.vars = append(m.vars, variable{name: name, kind: kind, lb: lb, ub: ub})
	return v
}

// NewBinary adds a {0,1} variable
func (m *Model) NewBinary(name string) Var {
	return m.addVar(Binary, 0, 1, name)
}

// NewInteger adds an integer variable in [lb, ub]
func (m *Model) NewInteger(lb, ub float64, name string) Var {
	return m.addVar(Integer, lb, ub, name)
}

// NewContinuous adds a continuous variable in [lb, ub]
func (m *Model) NewContinuous(lb, ub float64, name string) Var {
	return m.addVar(Continuous, lb, ub, name)
}

// SetBounds replaces the bounds of v
func (m *Model) SetBounds(v Var, lb, ub float64) error {
	if lb > ub {
		return fmt.Errorf("%w: %s [%g, %g]", ErrInvalidBounds, m.vars[v.index].name, lb, ub)
	}
	m.vars[v.index].lb = lb
	m.vars[v.index].ub = ub
	return nil
}

// SetUpperBound replaces the upper bound of v
func (m *Model) SetUpperBound(v Var, ub float64) error {
	return m.SetBounds(v, m.vars[v.index].lb, ub)
}

// Bounds returns the bounds of v
func (m *Model) Bounds(v Var) (lb, ub float64) {
	return m.vars[v.index].lb, m.vars[v.index].ub
}

// Name returns the name of v
func (m *Model) Name(v Var) string { return m.vars[v.index].name }

// Type returns the domain of v
func (m *Model) Type(v Var) VarType { return m.vars[v.index].kind }

// NumVars returns the number of variables
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of static constraints
func (m *Model) NumConstraints() int { return len(m.constraints) }

// NumLazy returns the number of lazy constraints added so far
func (m *Model) NumLazy() int { return m.lazy.Len() }

// AddConstraint adds a static constraint
func (m *Model) AddConstraint(e *Expr, sense Sense, rhs float64, name string) *Constraint {
	c := &Constraint{Name: name, Expr: e, Sense: sense, RHS: rhs}
	m.constraints = append(m.constraints, c)
	return c
}

// Constraints returns the static constraints
func (m *Model) Constraints() []*Constraint { return m.constraints }

// SetObjective sets the objective expression and direction
func (m *Model) SetObjective(e *Expr, dir Direction) {
	m.objective = e
	m.direction = dir
}

// Objective returns the objective expression
func (m *Model) Objective() *Expr { return m.objective }

// SetCallback registers the incumbent callback
func (m *Model) SetCallback(cb Callback) { m.callback = cb }

// SetLazyConstraints enables or disables lazy constraint submission
func (m *Model) SetLazyConstraints(enabled bool) { m.lazyEnabled = enabled }

// LazyConstraints returns a snapshot of the lazy constraints
func (m *Model) LazyConstraints() []*Constraint { return m.lazy.Snapshot() }
