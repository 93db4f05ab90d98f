package mip

import "time"

// Status is the outcome of Optimize
type Status int

const (
	// StatusOptimal means the incumbent is proven optimal
	StatusOptimal Status = iota
	// StatusFeasible means a limit stopped the search after an incumbent was found
	StatusFeasible
	// StatusInfeasible means no assignment satisfies the constraints
	StatusInfeasible
	// StatusInterrupted means a limit stopped the search before any incumbent
	StatusInterrupted
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "interrupted"
	}
}

// Options bounds the search. Zero values mean no limit.
type Options struct {
	TimeLimit time.Duration
	NodeLimit int
	// Verbose logs search progress every thousand nodes
	Verbose bool
}

// Solution is the result of Optimize
type Solution struct {
	Status    Status
	Objective float64
	// Bound is the best proven bound on the objective when the search stopped
	Bound     float64
	Values    []float64
	NodeCount int
	LazyCount int
	Runtime   time.Duration
}

// HasValues reports whether the solution carries an incumbent
func (s *Solution) HasValues() bool {
	return s != nil && s.Values != nil
}

// IsOptimal reports whether the incumbent is proven optimal
func (s *Solution) IsOptimal() bool {
	return s != nil && s.Status == StatusOptimal
}

// Value returns the incumbent value of v, or 0 without an incumbent
func (s *Solution) Value(v Var) float64 {
	if !s.HasValues() || v.index >= len(s.Values) {
		return 0
	}
	return s.Values[v.index]
}

// Evaluate returns e at the incumbent, or 0 without an incumbent
func (s *Solution) Evaluate(e *Expr) float64 {
	if !s.HasValues() {
		return 0
	}
	return e.Evaluate(s.Values)
}
