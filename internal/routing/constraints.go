package routing

import (
	"fmt"

	"road-orienteer/internal/mip"
	"road-orienteer/internal/roadgraph"
)

// Constraints assembles the objective and static constraints of the route model
type Constraints struct {
	net   *roadgraph.Network
	model *mip.Model
	vars  *Vars

	objective *mip.Expr
	budget    *mip.Expr
	subtour   *SubtourConstraint
}

// NewConstraints creates an assembler over variables already added to model
func NewConstraints(net *roadgraph.Network, model *mip.Model, vars *Vars) *Constraints {
	return &Constraints{net: net, model: model, vars: vars}
}

// SetupConstraints adds the objective, the distance budget, direction
// exclusivity, flow conservation, visit linkage and start fixation, then
// registers the subtour callback with lazy constraints enabled.
func (c *Constraints) SetupConstraints(start int, maxCost float64) error {
	startVar, err := c.vars.VertexVar(start)
	if err != nil {
		return fmt.Errorf("invalid start vertex: %w", err)
	}

	c.objective = mip.NewExpr()
	c.budget = mip.NewExpr()

	edges := c.net.AllEdges()
	for edges.Next() {
		a := edges.Arc()
		forward, err := c.vars.ArcVar(a, false)
		if err != nil {
			return err
		}
		backward, err := c.vars.ArcVar(a, true)
		if err != nil {
			return err
		}
		score := c.net.Score(a)
		dist := c.net.Distance(a)

		c.objective.AddTerm(score, forward).AddTerm(score, backward)
		c.budget.AddTerm(dist, forward).AddTerm(dist, backward)

		exclusive := mip.NewExpr().AddTerm(1, forward).AddTerm(1, backward)
		c.model.AddConstraint(exclusive, mip.LessEqual, 1, fmt.Sprintf("arc_%d", a.Edge))
	}
	c.model.SetObjective(c.objective, mip.Maximize)
	c.model.AddConstraint(c.budget, mip.LessEqual, maxCost, "max_cost")

	for v := 0; v < c.net.NumVertices(); v++ {
		flow := mip.NewExpr()
		in := c.net.IncomingArcs(v)
		for in.Next() {
			x, err := c.vars.ArcVar(in.Arc(), true)
			if err != nil {
				return err
			}
			flow.AddTerm(1, x)
		}

		visits := mip.NewExpr()
		out := c.net.OutgoingArcs(v)
		for out.Next() {
			x, err := c.vars.ArcVar(out.Arc(), false)
			if err != nil {
				return err
			}
			flow.AddTerm(-1, x)
			visits.AddTerm(1, x)
		}
		c.model.AddConstraint(flow, mip.Equal, 0, fmt.Sprintf("edge_counts_%d", v))

		z, err := c.vars.VertexVar(v)
		if err != nil {
			return err
		}
		visits.AddTerm(-1, z)
		c.model.AddConstraint(visits, mip.Equal, 0, fmt.Sprintf("vertex_visits_%d", v))
	}

	if err := c.model.SetBounds(startVar, 1, 1); err != nil {
		return err
	}

	c.subtour = NewSubtourConstraint(c.net, c.vars, start)
	c.model.SetLazyConstraints(true)
	c.model.SetCallback(c.subtour)
	return nil
}

// Subtour returns the registered subtour callback
func (c *Constraints) Subtour() *SubtourConstraint { return c.subtour }

// ObjectiveValue returns the collected score of values
func (c *Constraints) ObjectiveValue(values ValueSource) float64 {
	return evaluate(c.objective, values)
}

// BudgetValue returns the route distance of values
func (c *Constraints) BudgetValue(values ValueSource) float64 {
	return evaluate(c.budget, values)
}

func evaluate(e *mip.Expr, values ValueSource) float64 {
	if e == nil {
		return 0
	}
	sum := 0.0
	for _, t := range e.Terms() {
		sum += t.Coef * values.Value(t.Var)
	}
	return sum
}
