package mip

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"
)

const (
	intTol   = 1e-6
	boundTol = 1e-7
)

type bbNode struct {
	lb, ub []float64
	// bound is the relaxation objective of the parent (max sense)
	bound float64
}

type search struct {
	model   *Model
	opts    Options
	cost    []float64
	sign    float64
	integer []bool
	started time.Time

	lp        simplex
	nodes     int
	incumbent []float64
	incObj    float64
	stack     []*bbNode
}

// Optimize runs branch-and-bound on the model. Limits in opts and
// cancellation of ctx stop the search early with StatusFeasible or
// StatusInterrupted; an error is returned only for solver or callback
// failures.
func (m *Model) Optimize(ctx context.Context, opts Options) (*Solution, error) {
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	s := &search{
		model:   m,
		opts:    opts,
		cost:    make([]float64, len(m.vars)),
		sign:    1,
		integer: make([]bool, len(m.vars)),
		started: time.Now(),
		incObj:  math.Inf(-1),
	}
	if m.direction == Minimize {
		s.sign = -1
	}
	for _, t := range m.objective.terms {
		s.cost[t.Var.index] += s.sign * t.Coef
	}

	root := &bbNode{
		lb:    make([]float64, len(m.vars)),
		ub:    make([]float64, len(m.vars)),
		bound: math.Inf(1),
	}
	for j, v := range m.vars {
		root.lb[j], root.ub[j] = v.lb, v.ub
		if v.kind != Continuous {
			s.integer[j] = true
			root.lb[j] = math.Ceil(v.lb - intTol)
			root.ub[j] = math.Floor(v.ub + intTol)
		}
	}
	s.stack = append(s.stack, root)

	limited := false
	for len(s.stack) > 0 {
		if ctx.Err() != nil || (opts.NodeLimit > 0 && s.nodes >= opts.NodeLimit) {
			limited = true
			break
		}
		nd := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		if s.incumbent != nil && nd.bound <= s.incObj+boundTol {
			continue
		}
		s.nodes++
		if err := s.process(ctx, nd); err != nil {
			if errors.Is(err, errStopped) {
				// the node stays open so its bound still counts
				s.stack = append(s.stack, nd)
				limited = true
				break
			}
			return nil, err
		}
		if opts.Verbose && s.nodes%1000 == 0 {
			log.Printf("[MIP] %d nodes, %d open, incumbent %g, lazy %d, %s",
				s.nodes, len(s.stack), s.sign*s.incObj, m.lazy.Len(), time.Since(s.started).Round(time.Millisecond))
		}
	}

	sol := &Solution{
		NodeCount: s.nodes,
		LazyCount: m.lazy.Len(),
		Runtime:   time.Since(s.started),
	}
	bound := s.incObj
	if limited {
		for _, nd := range s.stack {
			bound = math.Max(bound, nd.bound)
		}
	}
	switch {
	case s.incumbent != nil && !limited:
		sol.Status = StatusOptimal
	case s.incumbent != nil:
		sol.Status = StatusFeasible
	case !limited:
		sol.Status = StatusInfeasible
	default:
		sol.Status = StatusInterrupted
	}
	if s.incumbent != nil {
		sol.Values = s.incumbent
		sol.Objective = s.sign * s.incObj
	}
	// Bound stays infinite when the root relaxation was never solved.
	sol.Bound = s.sign * bound
	return sol, nil
}

// process solves one node, re-solving it whenever the callback cuts off the
// candidate it produced.
func (s *search) process(ctx context.Context, nd *bbNode) error {
	for {
		rows := append(append([]*Constraint{}, s.model.constraints...), s.model.lazy.Snapshot()...)
		lp, err := s.lp.solve(ctx, s.cost, rows, nd.lb, nd.ub)
		if errors.Is(err, errStopped) {
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to solve node %d: %w", s.nodes, err)
		}
		if lp.status == lpInfeasible {
			return nil
		}
		if s.incumbent != nil && lp.objective <= s.incObj+boundTol {
			return nil
		}

		if j := s.mostFractional(lp.x); j >= 0 {
			s.branch(nd, j, lp.x[j], lp.objective)
			return nil
		}

		values := make([]float64, len(lp.x))
		for j, x := range lp.x {
			if s.integer[j] {
				x = math.Round(x)
			}
			values[j] = x
		}
		obj := 0.0
		for j, c := range s.cost {
			obj += c * values[j]
		}

		if s.model.callback != nil {
			before := s.model.lazy.Len()
			cb := &CallbackContext{
				model:     s.model,
				values:    values,
				objective: s.sign * obj,
				nodes:     s.nodes,
				started:   s.started,
			}
			if err := s.model.callback.Incumbent(cb); err != nil {
				return fmt.Errorf("%w: %w", ErrCallbackFailed, err)
			}
			if violated(s.model.lazy.since(before), values) {
				continue
			}
		}

		if obj > s.incObj {
			s.incumbent = values
			s.incObj = obj
		}
		return nil
	}
}

func (s *search) mostFractional(x []float64) int {
	best, bestDist := -1, intTol
	for j, v := range x {
		if !s.integer[j] {
			continue
		}
		frac := v - math.Floor(v)
		dist := math.Min(frac, 1-frac)
		if dist > bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

// branch pushes both children of nd on x_j; the child nearer to value is
// pushed last so it is explored first.
func (s *search) branch(nd *bbNode, j int, value, bound float64) {
	down := &bbNode{lb: nd.lb, ub: append([]float64(nil), nd.ub...), bound: bound}
	down.ub[j] = math.Floor(value)
	up := &bbNode{lb: append([]float64(nil), nd.lb...), ub: nd.ub, bound: bound}
	up.lb[j] = math.Ceil(value)

	if value-math.Floor(value) >= 0.5 {
		s.stack = append(s.stack, down, up)
	} else {
		s.stack = append(s.stack, up, down)
	}
}

func violated(cs []*Constraint, values []float64) bool {
	for _, c := range cs {
		if c.Violation(values) > feasTol {
			return true
		}
	}
	return false
}
