package routing

import (
	"fmt"
	"log"
	"sync"
	"time"

	"road-orienteer/internal/mip"
	"road-orienteer/internal/roadgraph"
)

// SubtourStats summarizes the work done by the subtour callback
type SubtourStats struct {
	Calls int
	Cuts  int
	Time  time.Duration
}

// SubtourConstraint is the incumbent callback that cuts off solutions whose
// visited vertices are not all reachable from the start over selected arcs.
// It never touches the variable model; concurrent calls only share the stats.
type SubtourConstraint struct {
	net   *roadgraph.Network
	vars  *Vars
	start int

	mu    sync.Mutex
	stats SubtourStats
}

// NewSubtourConstraint creates the callback for a solve starting at start
func NewSubtourConstraint(net *roadgraph.Network, vars *Vars, start int) *SubtourConstraint {
	return &SubtourConstraint{net: net, vars: vars, start: start}
}

// Incumbent checks the candidate and adds one lazy cut if it is disconnected
func (s *SubtourConstraint) Incumbent(cb *mip.CallbackContext) error {
	started := time.Now()

	disconnected, err := s.FindSubtour(cb)
	if err != nil {
		return err
	}

	cut := false
	if len(disconnected) > 0 {
		expr, escapes, err := s.cutExpr(disconnected)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("subtour_%d", cb.NodeCount())
		if err := cb.AddLazy(expr, mip.GreaterEqual, 0, name); err != nil {
			return fmt.Errorf("failed to add subtour cut: %w", err)
		}
		cut = true
		log.Printf("[SUBTOUR] Cut at node %d: disconnected=%d escape_arcs=%d objective=%g",
			cb.NodeCount(), len(disconnected), escapes, cb.Objective())
	}

	s.mu.Lock()
	s.stats.Calls++
	if cut {
		s.stats.Cuts++
	}
	s.stats.Time += time.Since(started)
	s.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the callback statistics
func (s *SubtourConstraint) Stats() SubtourStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// FindSubtour returns the visited vertices (visit count > 0) that cannot be
// reached from the start over arcs selected in values, in ascending order.
// An empty result means the solution is connected.
func (s *SubtourConstraint) FindSubtour(values ValueSource) ([]int, error) {
	n := s.net.NumVertices()
	reachable, err := s.reachable(values)
	if err != nil {
		return nil, err
	}

	var disconnected []int
	for v := 0; v < n; v++ {
		z, err := s.vars.VertexVar(v)
		if err != nil {
			return nil, err
		}
		if values.Value(z) > 0.5 && !reachable[v] {
			disconnected = append(disconnected, v)
		}
	}
	return disconnected, nil
}

// reachable runs an explicit-stack depth-first search from the start,
// following an arc only in the direction its selected variable travels.
func (s *SubtourConstraint) reachable(values ValueSource) ([]bool, error) {
	explored := make([]bool, s.net.NumVertices())
	explorer := s.net.Explorer()
	stack := []int{s.start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if explored[current] {
			continue
		}
		explored[current] = true

		it := explorer.SetBaseNode(current)
		for it.Next() {
			a := it.Arc()
			x, err := s.vars.ArcVar(a, false)
			if err != nil {
				return nil, fmt.Errorf("subtour search at vertex %d: %w", current, err)
			}
			if values.Value(x) > 0.5 && !explored[a.Adj] {
				stack = append(stack, a.Adj)
			}
		}
	}
	return explored, nil
}

// cutExpr builds sum(escape arcs of S) - sum(z_v for v in S)/T >= 0, where T
// counts every outgoing arc of S and escape arcs lead out of S.
func (s *SubtourConstraint) cutExpr(disconnected []int) (*mip.Expr, int, error) {
	inS := make(map[int]bool, len(disconnected))
	for _, v := range disconnected {
		inS[v] = true
	}

	expr := mip.NewExpr()
	total, escapes := 0, 0
	for _, v := range disconnected {
		out := s.net.OutgoingArcs(v)
		for out.Next() {
			a := out.Arc()
			total++
			if inS[a.Adj] {
				continue
			}
			x, err := s.vars.ArcVar(a, false)
			if err != nil {
				return nil, 0, err
			}
			expr.AddTerm(1, x)
			escapes++
		}
	}
	if total == 0 {
		return nil, 0, fmt.Errorf("visited vertices %v have no outgoing arcs", disconnected)
	}

	for _, v := range disconnected {
		z, err := s.vars.VertexVar(v)
		if err != nil {
			return nil, 0, err
		}
		expr.AddTerm(-1/float64(total), z)
	}
	return expr, escapes, nil
}
